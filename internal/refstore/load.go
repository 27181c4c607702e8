package refstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gyeh/dermbill/internal/model"
	"github.com/gyeh/dermbill/internal/refdata"
)

// Load reads the reference tables from the database and builds a validated
// Store. Validation is the same as for the embedded tables.
func Load(ctx context.Context, pool *pgxpool.Pool) (*refdata.Store, error) {
	t, err := LoadTables(ctx, pool)
	if err != nil {
		return nil, err
	}
	return refdata.FromTables(t)
}

// LoadTables reads the raw table bundle in seeded order.
func LoadTables(ctx context.Context, pool *pgxpool.Pool) (refdata.Tables, error) {
	t := refdata.Tables{
		AnatomicGroups: map[string][]string{},
		FlapFamilies:   map[string][]string{},
	}

	rows, err := pool.Query(ctx, `
		SELECT code, category, description, wrvu, is_addon, primary_codes, anatomic_group, global_days
		FROM ref.codes ORDER BY position`)
	if err != nil {
		return t, fmt.Errorf("query codes: %w", err)
	}
	for rows.Next() {
		var rec model.CodeRecord
		var category, group string
		if err := rows.Scan(&rec.Code, &category, &rec.Description, &rec.WRVU,
			&rec.IsAddOn, &rec.PrimaryCodes, &group, &rec.GlobalDays); err != nil {
			rows.Close()
			return t, fmt.Errorf("scan code: %w", err)
		}
		rec.Category = model.Category(category)
		rec.AnatomicGroup = model.AnatomicGroup(group)
		if len(rec.PrimaryCodes) == 0 {
			rec.PrimaryCodes = nil
		}
		t.Codes = append(t.Codes, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return t, fmt.Errorf("read codes: %w", err)
	}

	tables := map[string]*refdata.BandTable{}
	var tableOrder []string
	rows, err = pool.Query(ctx, `
		SELECT family, unit, addon_code, addon_increment
		FROM ref.band_tables ORDER BY family`)
	if err != nil {
		return t, fmt.Errorf("query band tables: %w", err)
	}
	for rows.Next() {
		var bt refdata.BandTable
		if err := rows.Scan(&bt.Family, &bt.Unit, &bt.AddOnCode, &bt.AddOnIncrement); err != nil {
			rows.Close()
			return t, fmt.Errorf("scan band table: %w", err)
		}
		tables[bt.Family] = &bt
		tableOrder = append(tableOrder, bt.Family)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return t, fmt.Errorf("read band tables: %w", err)
	}

	rows, err = pool.Query(ctx, `
		SELECT family, upper_bound, code
		FROM ref.bands ORDER BY family, position`)
	if err != nil {
		return t, fmt.Errorf("query bands: %w", err)
	}
	for rows.Next() {
		var family, code string
		var upper *float64
		if err := rows.Scan(&family, &upper, &code); err != nil {
			rows.Close()
			return t, fmt.Errorf("scan band: %w", err)
		}
		bt, ok := tables[family]
		if !ok {
			rows.Close()
			return t, fmt.Errorf("band references unknown family %s", family)
		}
		bt.Bands = append(bt.Bands, refdata.Band{UpperBound: upper, Code: code})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return t, fmt.Errorf("read bands: %w", err)
	}
	for _, fam := range tableOrder {
		t.BandTables = append(t.BandTables, *tables[fam])
	}

	rows, err = pool.Query(ctx, `
		SELECT family, base_code, base_covers, addon_code, addon_group_size, addon_max_units, flat_threshold, flat_code
		FROM ref.tier_policies ORDER BY family`)
	if err != nil {
		return t, fmt.Errorf("query tier policies: %w", err)
	}
	for rows.Next() {
		var tp refdata.TierPolicy
		if err := rows.Scan(&tp.Family, &tp.BaseCode, &tp.BaseCovers, &tp.AddOnCode,
			&tp.AddOnGroupSize, &tp.AddOnMaxUnits, &tp.FlatThreshold, &tp.FlatCode); err != nil {
			rows.Close()
			return t, fmt.Errorf("scan tier policy: %w", err)
		}
		t.TierPolicies = append(t.TierPolicies, tp)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return t, fmt.Errorf("read tier policies: %w", err)
	}

	rows, err = pool.Query(ctx, `
		SELECT code_a, code_b, indicator, modifier
		FROM ref.edit_rules ORDER BY code_a, code_b`)
	if err != nil {
		return t, fmt.Errorf("query edit rules: %w", err)
	}
	for rows.Next() {
		var r model.EditRule
		var indicator, modifier string
		if err := rows.Scan(&r.CodeA, &r.CodeB, &indicator, &modifier); err != nil {
			rows.Close()
			return t, fmt.Errorf("scan edit rule: %w", err)
		}
		r.Indicator = model.EditIndicator(indicator)
		r.Modifier = model.Modifier(modifier)
		t.EditRules = append(t.EditRules, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return t, fmt.Errorf("read edit rules: %w", err)
	}

	if err := loadTerms(ctx, pool, "anatomic_group_terms", "group_name", t.AnatomicGroups); err != nil {
		return t, err
	}
	if err := loadTerms(ctx, pool, "flap_family_terms", "family", t.FlapFamilies); err != nil {
		return t, err
	}

	rows, err = pool.Query(ctx, `SELECT term FROM ref.chronic_conditions ORDER BY position`)
	if err != nil {
		return t, fmt.Errorf("query chronic conditions: %w", err)
	}
	for rows.Next() {
		var term string
		if err := rows.Scan(&term); err != nil {
			rows.Close()
			return t, fmt.Errorf("scan chronic condition: %w", err)
		}
		t.ChronicConditions = append(t.ChronicConditions, term)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return t, fmt.Errorf("read chronic conditions: %w", err)
	}

	rows, err = pool.Query(ctx, `
		SELECT modifier, name, use_when, document, audit_risk, derm_examples
		FROM ref.modifiers ORDER BY position`)
	if err != nil {
		return t, fmt.Errorf("query modifiers: %w", err)
	}
	for rows.Next() {
		var m model.ModifierGuidance
		if err := rows.Scan(&m.Modifier, &m.Name, &m.UseWhen, &m.Document, &m.AuditRisk, &m.DermExamples); err != nil {
			rows.Close()
			return t, fmt.Errorf("scan modifier: %w", err)
		}
		t.Modifiers = append(t.Modifiers, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return t, fmt.Errorf("read modifiers: %w", err)
	}

	return t, nil
}

func loadTerms(ctx context.Context, pool *pgxpool.Pool, table, keyCol string, dst map[string][]string) error {
	rows, err := pool.Query(ctx, fmt.Sprintf(
		"SELECT %s, term FROM ref.%s ORDER BY %s, position", keyCol, table, keyCol))
	if err != nil {
		return fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var key, term string
		if err := rows.Scan(&key, &term); err != nil {
			return fmt.Errorf("scan %s: %w", table, err)
		}
		dst[key] = append(dst[key], term)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read %s: %w", table, err)
	}
	return nil
}
