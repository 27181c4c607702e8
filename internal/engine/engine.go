// Package engine orchestrates the four-step analysis: entity extraction,
// current maximum billing, documentation enhancements, and future
// opportunities. The engine is deterministic: the same entities always
// produce byte-identical results.
package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gyeh/dermbill/internal/extract"
	"github.com/gyeh/dermbill/internal/model"
	"github.com/gyeh/dermbill/internal/refdata"
	"github.com/gyeh/dermbill/internal/rules"
	"github.com/gyeh/dermbill/internal/scenario"
)

// AnalysisError wraps an error with the phase where it occurred.
type AnalysisError struct {
	Phase string
	Err   error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("%s: %s", e.Phase, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// Options are the engine's policy knobs.
type Options struct {
	// AggressiveUnbundling attaches distinct-service modifiers to
	// modifier-allowed edit pairs even without documented distinct sites.
	// Off by default; the conservative stance suppresses instead.
	AggressiveUnbundling bool
	// MaxScenarioMatches caps the playbooks consulted per note.
	MaxScenarioMatches int
}

// Engine runs analyses against one reference store and playbook library.
// Safe for concurrent use; all state is read-only after construction.
type Engine struct {
	store     *refdata.Store
	scenarios *scenario.Library
	extractor extract.Extractor
	opts      Options
	log       zerolog.Logger
}

// New builds an engine. A nil extractor defaults to the regex extractor.
func New(store *refdata.Store, lib *scenario.Library, extractor extract.Extractor, opts Options, log zerolog.Logger) *Engine {
	if extractor == nil {
		extractor = extract.NewRegexExtractor()
	}
	if opts.MaxScenarioMatches <= 0 {
		opts.MaxScenarioMatches = 5
	}
	return &Engine{store: store, scenarios: lib, extractor: extractor, opts: opts, log: log}
}

// AnalyzeNote extracts entities from raw note text and analyzes them.
func (e *Engine) AnalyzeNote(ctx context.Context, note string) (*model.AnalysisResult, error) {
	entities, err := e.extractor.Extract(ctx, note)
	if err != nil {
		return nil, &AnalysisError{Phase: "extract", Err: err}
	}
	return e.Analyze(ctx, entities)
}

// Analyze runs the rules pipeline over pre-extracted entities:
// candidates → bundling → E/M gating → totals → enhancements →
// opportunities.
func (e *Engine) Analyze(ctx context.Context, entities []model.ClinicalEntity) (*model.AnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, &AnalysisError{Phase: "candidates", Err: err}
	}
	analysisID := uuid.NewString()
	log := e.log.With().Str("analysis_id", analysisID).Logger()

	// Phase 1: candidate lines from entities.
	cs, err := e.buildCandidates(entities)
	if err != nil {
		return nil, &AnalysisError{Phase: "candidates", Err: err}
	}
	log.Debug().
		Int("lines", len(cs.lines)).
		Int("gaps", len(cs.gaps)).
		Msg("candidates built")

	// Phase 2: pairwise edits and add-on primaries.
	resolved := rules.Resolve(cs.lines, e.store, e.opts.AggressiveUnbundling)

	// Phase 3: office-visit gating and the chronic-care add-on.
	diagnoses := model.Diagnoses(entities)
	rules.ApplySeparateEM(cs.em, resolved, cs.emSeparate)
	if cs.em != nil {
		if !cs.em.Supported() {
			cs.gaps = append(cs.gaps, cs.em.Note)
		}
		resolved = append(resolved, *cs.em)
	}
	if addon, ok := rules.ComplexityAddOnLine(cs.em, diagnoses, e.store); ok {
		resolved = append(resolved, addon)
	}

	// Phase 4: freeze line items and totals.
	items := rules.BuildLineItems(resolved, e.store)
	total := rules.TotalWRVU(items)
	current := model.CurrentBilling{
		Codes:             items,
		TotalWRVU:         total,
		DocumentationGaps: cs.gaps,
	}

	// Phase 5: documentation enhancements.
	enhancements := e.buildEnhancements(cs, diagnoses, total)

	// Phase 6: future opportunities from matched playbooks.
	opps := e.buildOpportunities(entities, diagnoses, items)

	log.Info().
		Float64("total_wrvu", total).
		Int("codes", len(items)).
		Int("gaps", len(cs.gaps)).
		Int("opportunities", len(opps.Opportunities)).
		Msg("analysis complete")

	return &model.AnalysisResult{
		AnalysisID:       analysisID,
		Entities:         model.Summarize(entities),
		CurrentBilling:   current,
		DocEnhancements:  enhancements,
		FutureOpps:       opps,
		ComplianceNotice: model.ComplianceNotice,
	}, nil
}

// buildEnhancements folds the candidate-phase enhancement entries together
// with the visit-level ones that need resolved state.
func (e *Engine) buildEnhancements(cs *candidateSet, diagnoses []string, currentTotal float64) model.Enhancements {
	enh := append([]model.Enhancement{}, cs.enh...)

	emBilled := cs.em != nil && cs.em.Supported()
	if cs.em != nil && !cs.em.Supported() {
		w := e.store.WRVU(cs.em.Code)
		enh = append(enh, model.Enhancement{
			Issue:             "Same-day E/M not separately identified",
			CurrentWRVU:       0,
			SuggestedAddition: "Document the significant, separately identifiable E/M work apart from the procedure note",
			EnhancedCode:      cs.em.Code,
			EnhancedWRVU:      w,
			DeltaWRVU:         w,
			Priority:          "high",
		})
	}
	if !emBilled {
		if _, eligible := rules.ChronicEligible(diagnoses, e.store); eligible {
			w := e.store.WRVU(rules.GComplexityAddOn)
			enh = append(enh, model.Enhancement{
				Issue:             "Chronic condition documented but no billable office visit to carry G2211",
				SuggestedAddition: "When the visit bills, add G2211 for longitudinal chronic care",
				EnhancedCode:      rules.GComplexityAddOn,
				EnhancedWRVU:      w,
				DeltaWRVU:         w,
				Priority:          "medium",
			})
		}
	}

	var improvement float64
	for _, en := range enh {
		improvement += en.DeltaWRVU
	}
	improvement = rules.Round2(improvement)
	return model.Enhancements{
		Enhancements:      enh,
		EnhancedTotalWRVU: rules.Round2(currentTotal + improvement),
		Improvement:       improvement,
	}
}

// buildOpportunities matches playbooks on the diagnoses and procedure
// summary, drops candidates already billed, and ranks the rest.
func (e *Engine) buildOpportunities(entities []model.ClinicalEntity, diagnoses []string, items []model.BillableLineItem) model.Opportunities {
	summary := model.Summarize(entities)
	text := joinAll(diagnoses, summary.Procedures, summary.AnatomicSites)
	matches := e.scenarios.Match(text, e.opts.MaxScenarioMatches)

	billed := map[string]bool{}
	for _, it := range items {
		if it.Supported() {
			billed[it.Code] = true
		}
	}

	var cands []model.OpportunityCandidate
	seen := map[string]bool{}
	for _, m := range matches {
		for _, opp := range m.Opportunities {
			if opp.Code != "" && billed[opp.Code] {
				continue
			}
			key := opp.Code + "|" + opp.Opportunity
			if seen[key] {
				continue
			}
			seen[key] = true
			cands = append(cands, opp)
		}
	}
	return rules.RankOpportunities(cands)
}

func joinAll(lists ...[]string) string {
	var b []byte
	for _, l := range lists {
		for _, s := range l {
			if len(b) > 0 {
				b = append(b, ' ')
			}
			b = append(b, s...)
		}
	}
	return string(b)
}
