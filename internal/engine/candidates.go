package engine

import (
	"fmt"
	"math"
	"strconv"

	"github.com/gyeh/dermbill/internal/model"
	"github.com/gyeh/dermbill/internal/refdata"
	"github.com/gyeh/dermbill/internal/rules"
)

// candidateSet is the output of the candidate phase: billing lines before
// bundling, repairs awaiting aggregation, the office-visit line, and the
// documentation gaps found along the way.
type candidateSet struct {
	lines   []rules.Line
	repairs []model.RepairRecord
	em      *rules.Line
	// emSeparate records that the note documents significant, separately
	// identifiable E/M work.
	emSeparate bool
	gaps       []string
	// enh collects documentation-edit recommendations with computable
	// deltas, built where the gap is detected.
	enh []model.Enhancement
}

// buildCandidates walks the procedure entities and emits candidate lines.
// Missing documentation never aborts the run; it shrinks what is
// supportable and leaves a gap explaining the shortfall.
func (e *Engine) buildCandidates(entities []model.ClinicalEntity) (*candidateSet, error) {
	cs := &candidateSet{}
	for _, ent := range entities {
		if ent.Kind != model.EntityProcedure {
			continue
		}
		var err error
		switch ent.Attr(model.AttrProcedure) {
		case model.ProcExcision:
			err = cs.addExcision(ent, e.store)
		case model.ProcRepair:
			cs.addRepair(ent, e.store)
		case model.ProcFlap:
			err = cs.addFlap(ent, e.store)
		case model.ProcDestructionAK:
			err = cs.addTiered(ent, e.store, refdata.TierDestructionPremalignant, "lesion")
		case model.ProcDestructionBenign:
			err = cs.addTiered(ent, e.store, refdata.TierDestructionBenign, "lesion")
		case model.ProcSkinTagRemoval:
			err = cs.addTiered(ent, e.store, refdata.TierSkinTags, "skin tag")
		case model.ProcBiopsyShave:
			err = cs.addTiered(ent, e.store, refdata.TierBiopsyShave, "lesion")
		case model.ProcBiopsyPunch:
			err = cs.addTiered(ent, e.store, refdata.TierBiopsyPunch, "lesion")
		case model.ProcBiopsyIncisional:
			err = cs.addTiered(ent, e.store, refdata.TierBiopsyIncisional, "lesion")
		case model.ProcILInjection:
			err = cs.addTiered(ent, e.store, refdata.TierILInjection, "lesion")
		case model.ProcNailDebridement:
			err = cs.addTiered(ent, e.store, refdata.TierNailDebridement, "nail")
		case model.ProcMohs:
			err = cs.addTiered(ent, e.store, refdata.TierMohsStage, "stage")
		case model.ProcWoundDebridement:
			err = cs.addWoundDebridement(ent, e.store)
		case model.ProcEMVisit:
			err = cs.setVisit(ent, e.store)
		}
		if err != nil {
			return nil, err
		}
	}

	groups, err := rules.AggregateRepairs(cs.repairs, e.store)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		for _, cu := range g.Lines {
			cs.lines = append(cs.lines, rules.NewLine(cu.Code, cu.Units))
		}
	}
	return cs, nil
}

func (cs *candidateSet) gap(format string, args ...any) {
	cs.gaps = append(cs.gaps, fmt.Sprintf(format, args...))
}

// anatomicGroup maps a procedure's site to a repair/excision group,
// defaulting to the lower-valued trunk group with a gap when the site is
// missing or unmapped.
func (cs *candidateSet) anatomicGroup(ent model.ClinicalEntity, store *refdata.Store, what string) model.AnatomicGroup {
	site := ent.Attr(model.AttrSite)
	if site == "" {
		cs.gap("%s site not documented; coded as trunk/extremities (lower value)", what)
		return model.GroupTrunk
	}
	g, ok := store.AnatomicGroup(site)
	if !ok {
		cs.gap("%s site %q not classifiable; coded as trunk/extremities (lower value)", what, site)
		return model.GroupTrunk
	}
	return g
}

func (cs *candidateSet) addExcision(ent model.ClinicalEntity, store *refdata.Store) error {
	lesionMM, ok := ent.FloatAttr(model.AttrLesionDiameterMM)
	if !ok {
		cs.gap("excision documented without lesion diameter; no excision code supportable")
		floorFamily := refdata.ExcisionFamily(ent.BoolAttr(model.AttrMalignant), model.GroupTrunk)
		if bt, ok := store.BandTable(floorFamily); ok && len(bt.Bands) > 0 {
			floor := bt.Bands[0].Code
			cs.enh = append(cs.enh, model.Enhancement{
				Issue:             "Excision documented without lesion size",
				SuggestedAddition: "Record lesion diameter and narrowest margin before excision",
				EnhancedCode:      floor,
				EnhancedWRVU:      store.WRVU(floor),
				DeltaWRVU:         store.WRVU(floor),
				Priority:          "high",
			})
		}
		return nil
	}
	marginMM, hasMargin := ent.FloatAttr(model.AttrMarginMM)
	if !hasMargin {
		cs.gap("excision margins not documented; excised diameter computed from lesion alone")
		marginMM = 0
	}
	diameter, err := rules.ExcisedDiameterCM(lesionMM, marginMM)
	if err != nil {
		cs.gap("excision measurements unusable (%v); no excision code supportable", err)
		return nil
	}

	malignant := ent.BoolAttr(model.AttrMalignant)
	group := cs.anatomicGroup(ent, store, "excision")
	family := refdata.ExcisionFamily(malignant, group)
	bt, ok := store.BandTable(family)
	if !ok {
		return fmt.Errorf("no band table for family %s", family)
	}
	code, err := rules.SizeToBand(diameter, bt)
	if err != nil {
		return err
	}
	if !hasMargin {
		if next, ok := nextBandUp(bt, code); ok {
			cs.enh = append(cs.enh, model.Enhancement{
				Issue:             "Excision margins not documented",
				CurrentCode:       code,
				CurrentWRVU:       store.WRVU(code),
				SuggestedAddition: "Record the narrowest margin; the excised diameter includes both margins",
				EnhancedCode:      next,
				EnhancedWRVU:      store.WRVU(next),
				DeltaWRVU:         rules.Round2(store.WRVU(next) - store.WRVU(code)),
				Priority:          "medium",
			})
		}
	}
	cs.addEntityLine(ent, code, 1)
	return nil
}

// nextBandUp returns the code one band above the given code in a table.
func nextBandUp(bt refdata.BandTable, code string) (string, bool) {
	for i, b := range bt.Bands {
		if b.Code == code && i+1 < len(bt.Bands) {
			return bt.Bands[i+1].Code, true
		}
	}
	return "", false
}

// addRepair only records the repair; lengths aggregate across entities
// before any band lookup.
func (cs *candidateSet) addRepair(ent model.ClinicalEntity, store *refdata.Store) {
	lengthCM, ok := ent.FloatAttr(model.AttrLengthCM)
	if !ok || lengthCM <= 0 {
		cs.gap("repair documented without sutured length; no repair code supportable")
		if bt, ok := store.BandTable(refdata.RepairFamily(model.RepairSimple, model.GroupTrunk)); ok && len(bt.Bands) > 0 {
			floor := bt.Bands[0].Code
			cs.enh = append(cs.enh, model.Enhancement{
				Issue:             "Repair documented without sutured length",
				SuggestedAddition: "Record the final sutured length, including dog-ears and M-plasty",
				EnhancedCode:      floor,
				EnhancedWRVU:      store.WRVU(floor),
				DeltaWRVU:         store.WRVU(floor),
				Priority:          "high",
			})
		}
		return
	}
	complexity := model.RepairComplexity(ent.Attr(model.AttrComplexity))
	switch complexity {
	case model.RepairSimple, model.RepairIntermediate, model.RepairComplex:
	default:
		cs.gap("repair complexity not documented; coded as simple closure")
		complexity = model.RepairSimple
	}
	cs.repairs = append(cs.repairs, model.RepairRecord{
		LengthCM:      lengthCM,
		Complexity:    complexity,
		Site:          ent.Attr(model.AttrSite),
		AnatomicGroup: cs.anatomicGroup(ent, store, "repair"),
	})
}

func (cs *candidateSet) addFlap(ent model.ClinicalEntity, store *refdata.Store) error {
	primary, okP := ent.FloatAttr(model.AttrPrimaryAreaSqCM)
	secondary, okS := ent.FloatAttr(model.AttrSecondaryAreaSqCM)
	if !okP && !okS {
		cs.gap("flap documented without defect areas; no flap code supportable")
		return nil
	}
	if !okS {
		cs.gap("flap secondary defect area not documented; billed on primary defect alone")
	}
	total, err := rules.FlapTotalArea(primary, secondary)
	if err != nil {
		cs.gap("flap areas unusable (%v); no flap code supportable", err)
		return nil
	}
	family := store.FlapFamily(ent.Attr(model.AttrSite))
	bt, ok := store.BandTable(family)
	if !ok {
		return fmt.Errorf("no band table for family %s", family)
	}
	code, err := rules.SizeToBand(total, bt)
	if err != nil {
		return err
	}
	cs.addEntityLine(ent, code, 1)
	return nil
}

// addTiered handles every count-driven family. A missing count bills the
// base code for a single unit; only what is documented is supportable.
func (cs *candidateSet) addTiered(ent model.ClinicalEntity, store *refdata.Store, family, unit string) error {
	tp, ok := store.TierPolicy(family)
	if !ok {
		return fmt.Errorf("no tier policy for family %s", family)
	}
	count := 1
	if raw := ent.Attr(model.AttrCount); raw == "" {
		cs.gap("%s count not documented for %s; only a single %s is supportable", unit, family, unit)
		cs.countEnhancement(store, tp, unit)
	} else if n, err := strconv.Atoi(raw); err != nil || n < 1 {
		cs.gap("%s count %q for %s unreadable; only a single %s is supportable", unit, raw, family, unit)
		cs.countEnhancement(store, tp, unit)
	} else {
		count = n
	}
	emissions, err := rules.TierCount(count, tp)
	if err != nil {
		return err
	}
	for _, cu := range emissions {
		cs.addEntityLine(ent, cu.Code, cu.Units)
	}
	return nil
}

// countEnhancement records the per-unit upside of documenting an exact
// count for a tiered family.
func (cs *candidateSet) countEnhancement(store *refdata.Store, tp refdata.TierPolicy, unit string) {
	switch {
	case tp.AddOnCode != "":
		cs.enh = append(cs.enh, model.Enhancement{
			Issue:             fmt.Sprintf("Exact %s count not documented", unit),
			CurrentCode:       tp.BaseCode,
			CurrentWRVU:       store.WRVU(tp.BaseCode),
			SuggestedAddition: fmt.Sprintf("Record the exact number of %ss treated; each additional one is billable", unit),
			EnhancedCode:      tp.AddOnCode,
			EnhancedWRVU:      store.WRVU(tp.AddOnCode),
			DeltaWRVU:         store.WRVU(tp.AddOnCode),
			Priority:          "high",
		})
	case tp.FlatCode != "":
		cs.enh = append(cs.enh, model.Enhancement{
			Issue:             fmt.Sprintf("Exact %s count not documented", unit),
			CurrentCode:       tp.BaseCode,
			CurrentWRVU:       store.WRVU(tp.BaseCode),
			SuggestedAddition: fmt.Sprintf("Record the exact number of %ss treated; %d or more bills %s", unit, tp.FlatThreshold, tp.FlatCode),
			EnhancedCode:      tp.FlatCode,
			EnhancedWRVU:      store.WRVU(tp.FlatCode),
			DeltaWRVU:         rules.Round2(store.WRVU(tp.FlatCode) - store.WRVU(tp.BaseCode)),
			Priority:          "high",
		})
	}
}

func (cs *candidateSet) addWoundDebridement(ent model.ClinicalEntity, store *refdata.Store) error {
	tp, ok := store.TierPolicy(refdata.TierWoundDebridement)
	if !ok {
		return fmt.Errorf("no tier policy for family %s", refdata.TierWoundDebridement)
	}
	// Units are 20-sq-cm increments of debrided surface.
	units := 1
	if area, ok := ent.FloatAttr(model.AttrAreaSqCM); ok && area > 0 {
		units = int(math.Ceil(area / 20))
	} else {
		cs.gap("debrided surface area not documented; only the first 20 sq cm is supportable")
	}
	emissions, err := rules.TierCount(units, tp)
	if err != nil {
		return err
	}
	for _, cu := range emissions {
		cs.addEntityLine(ent, cu.Code, cu.Units)
	}
	return nil
}

func (cs *candidateSet) setVisit(ent model.ClinicalEntity, store *refdata.Store) error {
	code := ent.Attr(model.AttrVisitLevel)
	if _, ok := store.Code(code); !ok {
		cs.gap("office visit level %q not recognized; no E/M code supportable", code)
		return nil
	}
	if cs.em != nil {
		// One visit per encounter; keep the first.
		return nil
	}
	line := rules.NewLine(code, 1)
	cs.em = &line
	cs.emSeparate = ent.BoolAttr(model.AttrSeparatelyIdentified)
	return nil
}

// addEntityLine emits one or two lines for a code, expanding bilateral
// procedures into LT/RT sides.
func (cs *candidateSet) addEntityLine(ent model.ClinicalEntity, code string, units int) {
	l := rules.NewLine(code, units)
	l.DistinctSite = ent.BoolAttr(model.AttrDistinctSite)
	if ent.Attr(model.AttrLaterality) == "bilateral" {
		cs.lines = append(cs.lines, rules.BilateralLines(l)...)
		return
	}
	cs.lines = append(cs.lines, l)
}
