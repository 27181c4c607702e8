package refstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/dermbill/internal/model"
	"github.com/gyeh/dermbill/internal/refdata"
)

// Child tables first so the code foreign keys never dangle mid-seed.
var truncateOrder = []string{
	"ref.edit_rules",
	"ref.bands",
	"ref.band_tables",
	"ref.tier_policies",
	"ref.anatomic_group_terms",
	"ref.flap_family_terms",
	"ref.chronic_conditions",
	"ref.modifiers",
	"ref.codes",
}

// Seed replaces the reference tables with the contents of t in a single
// transaction. Positions record source order so loads reproduce it.
func Seed(ctx context.Context, pool *pgxpool.Pool, t refdata.Tables, log zerolog.Logger) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, table := range truncateOrder {
		if _, err := tx.Exec(ctx, "TRUNCATE "+table+" CASCADE"); err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"ref", "codes"},
		[]string{"code", "position", "category", "description", "wrvu", "is_addon", "primary_codes", "anatomic_group", "global_days"},
		NewChannelSource(codeRows(t.Codes)))
	if err != nil {
		return fmt.Errorf("copy codes: %w", err)
	}
	log.Info().Int64("rows", n).Msg("codes seeded")

	var familyRows, bandRows [][]any
	for _, bt := range t.BandTables {
		familyRows = append(familyRows, []any{bt.Family, bt.Unit, bt.AddOnCode, bt.AddOnIncrement})
		for i, b := range bt.Bands {
			bandRows = append(bandRows, []any{bt.Family, i, b.UpperBound, b.Code})
		}
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"ref", "band_tables"},
		[]string{"family", "unit", "addon_code", "addon_increment"},
		pgx.CopyFromRows(familyRows)); err != nil {
		return fmt.Errorf("copy band tables: %w", err)
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"ref", "bands"},
		[]string{"family", "position", "upper_bound", "code"},
		pgx.CopyFromRows(bandRows)); err != nil {
		return fmt.Errorf("copy bands: %w", err)
	}

	var tierRows [][]any
	for _, tp := range t.TierPolicies {
		tierRows = append(tierRows, []any{
			tp.Family, tp.BaseCode, tp.BaseCovers, tp.AddOnCode,
			tp.AddOnGroupSize, tp.AddOnMaxUnits, tp.FlatThreshold, tp.FlatCode,
		})
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"ref", "tier_policies"},
		[]string{"family", "base_code", "base_covers", "addon_code", "addon_group_size", "addon_max_units", "flat_threshold", "flat_code"},
		pgx.CopyFromRows(tierRows)); err != nil {
		return fmt.Errorf("copy tier policies: %w", err)
	}

	var editRows [][]any
	for _, r := range t.EditRules {
		editRows = append(editRows, []any{r.CodeA, r.CodeB, string(r.Indicator), string(r.Modifier)})
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"ref", "edit_rules"},
		[]string{"code_a", "code_b", "indicator", "modifier"},
		pgx.CopyFromRows(editRows)); err != nil {
		return fmt.Errorf("copy edit rules: %w", err)
	}

	if err := copyTerms(ctx, tx, "anatomic_group_terms", "group_name", t.AnatomicGroups); err != nil {
		return err
	}
	if err := copyTerms(ctx, tx, "flap_family_terms", "family", t.FlapFamilies); err != nil {
		return err
	}

	var chronicRows [][]any
	for i, term := range t.ChronicConditions {
		chronicRows = append(chronicRows, []any{i, term})
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"ref", "chronic_conditions"},
		[]string{"position", "term"},
		pgx.CopyFromRows(chronicRows)); err != nil {
		return fmt.Errorf("copy chronic conditions: %w", err)
	}

	var modRows [][]any
	for i, m := range t.Modifiers {
		modRows = append(modRows, []any{m.Modifier, i, m.Name, m.UseWhen, m.Document, m.AuditRisk, m.DermExamples})
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"ref", "modifiers"},
		[]string{"modifier", "position", "name", "use_when", "document", "audit_risk", "derm_examples"},
		pgx.CopyFromRows(modRows)); err != nil {
		return fmt.Errorf("copy modifiers: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	log.Info().
		Int("codes", len(t.Codes)).
		Int("band_tables", len(t.BandTables)).
		Int("tier_policies", len(t.TierPolicies)).
		Int("edit_rules", len(t.EditRules)).
		Msg("reference tables seeded")
	return nil
}

// codeRows streams code records as COPY rows.
func codeRows(codes []model.CodeRecord) <-chan []any {
	ch := make(chan []any, 64)
	go func() {
		defer close(ch)
		for i, rec := range codes {
			primaries := rec.PrimaryCodes
			if primaries == nil {
				primaries = []string{}
			}
			ch <- []any{
				rec.Code, i, string(rec.Category), rec.Description, rec.WRVU,
				rec.IsAddOn, primaries, string(rec.AnatomicGroup), rec.GlobalDays,
			}
		}
	}()
	return ch
}

func copyTerms(ctx context.Context, tx pgx.Tx, table, keyCol string, groups map[string][]string) error {
	var rows [][]any
	for _, key := range sortedTermKeys(groups) {
		for i, term := range groups[key] {
			rows = append(rows, []any{key, i, term})
		}
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"ref", table},
		[]string{keyCol, "position", "term"},
		pgx.CopyFromRows(rows)); err != nil {
		return fmt.Errorf("copy %s: %w", table, err)
	}
	return nil
}

func sortedTermKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
