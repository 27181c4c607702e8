package engine

import (
	"context"
	"math"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"github.com/gyeh/dermbill/internal/model"
	"github.com/gyeh/dermbill/internal/refdata"
	"github.com/gyeh/dermbill/internal/scenario"
)

func newTestEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	store, err := refdata.Load()
	if err != nil {
		t.Fatalf("load reference tables: %v", err)
	}
	lib, err := scenario.Load()
	if err != nil {
		t.Fatalf("load scenarios: %v", err)
	}
	return New(store, lib, nil, opts, zerolog.Nop())
}

func procEntity(proc string, attrs map[string]string) model.ClinicalEntity {
	all := map[string]string{model.AttrProcedure: proc}
	for k, v := range attrs {
		all[k] = v
	}
	return model.ClinicalEntity{Kind: model.EntityProcedure, Attributes: all}
}

func dxEntity(name string) model.ClinicalEntity {
	return model.ClinicalEntity{
		Kind:       model.EntityDiagnosis,
		Attributes: map[string]string{model.AttrValue: name},
	}
}

func supportedItems(result *model.AnalysisResult) map[string]model.BillableLineItem {
	out := map[string]model.BillableLineItem{}
	for _, it := range result.CurrentBilling.Codes {
		if it.Supported() {
			out[it.Code] = it
		}
	}
	return out
}

func floatEq(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestAnalyze_NailDebridementVisit(t *testing.T) {
	e := newTestEngine(t, Options{})

	entities := []model.ClinicalEntity{
		dxEntity("onychomycosis"),
		dxEntity("plaque psoriasis"),
		procEntity(model.ProcEMVisit, map[string]string{
			model.AttrVisitLevel:           "99214",
			model.AttrEstablishedPatient:   "true",
			model.AttrSeparatelyIdentified: "true",
		}),
		procEntity(model.ProcNailDebridement, map[string]string{
			model.AttrCount: "8",
		}),
	}
	result, err := e.Analyze(context.Background(), entities)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	items := supportedItems(result)
	em, ok := items["99214"]
	if !ok {
		t.Fatal("expected 99214 to bill")
	}
	if em.Modifier != model.ModifierSeparateEM {
		t.Errorf("E/M modifier = %q, want 25", em.Modifier)
	}
	if !floatEq(em.WRVU, 1.92) {
		t.Errorf("E/M wrvu = %v, want 1.92", em.WRVU)
	}
	nails, ok := items["11721"]
	if !ok {
		t.Fatal("expected 11721 for 8 debrided nails")
	}
	if !floatEq(nails.WRVU, 0.53) {
		t.Errorf("11721 wrvu = %v, want 0.53", nails.WRVU)
	}
	if _, ok := items["G2211"]; !ok {
		t.Fatal("psoriasis visit should carry G2211")
	}
	if !floatEq(result.CurrentBilling.TotalWRVU, 2.78) {
		t.Errorf("total = %v, want 2.78", result.CurrentBilling.TotalWRVU)
	}
	if result.ComplianceNotice != model.ComplianceNotice {
		t.Error("compliance notice must accompany every result")
	}
}

func TestAnalyze_NewPatientVisitNoComplexityAddOn(t *testing.T) {
	e := newTestEngine(t, Options{})

	entities := []model.ClinicalEntity{
		dxEntity("plaque psoriasis"),
		procEntity(model.ProcEMVisit, map[string]string{
			model.AttrVisitLevel:         "99204",
			model.AttrEstablishedPatient: "false",
		}),
	}
	result, err := e.Analyze(context.Background(), entities)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	items := supportedItems(result)
	if _, ok := items["99204"]; !ok {
		t.Fatal("expected the new-patient visit to bill")
	}
	if _, ok := items["G2211"]; ok {
		t.Error("G2211 must not ride on a new-patient visit")
	}
}

func TestAnalyze_ExcisionBundlesSimpleRepair(t *testing.T) {
	e := newTestEngine(t, Options{})

	entities := []model.ClinicalEntity{
		procEntity(model.ProcExcision, map[string]string{
			model.AttrLesionDiameterMM: "6",
			model.AttrMarginMM:         "2",
			model.AttrSite:             "back",
		}),
		procEntity(model.ProcRepair, map[string]string{
			model.AttrComplexity: string(model.RepairSimple),
			model.AttrLengthCM:   "3.0",
			model.AttrSite:       "back",
		}),
	}
	result, err := e.Analyze(context.Background(), entities)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	items := supportedItems(result)
	// 6 mm lesion + 2x2 mm margins = 1.0 cm excised diameter.
	if _, ok := items["11401"]; !ok {
		t.Errorf("expected 11401, supported = %v", keys(items))
	}
	if _, ok := items["12002"]; ok {
		t.Error("simple repair must bundle into the excision")
	}
	var suppressed bool
	for _, it := range result.CurrentBilling.Codes {
		if it.Code == "12002" && it.Status == model.StatusSuppressedByBundling {
			suppressed = true
		}
	}
	if !suppressed {
		t.Error("suppressed repair should remain visible with its status")
	}
	if !floatEq(result.CurrentBilling.TotalWRVU, 1.25) {
		t.Errorf("total = %v, want 1.25 (11401 only)", result.CurrentBilling.TotalWRVU)
	}
}

func TestAnalyze_MissingCountShrinksToOne(t *testing.T) {
	e := newTestEngine(t, Options{})

	entities := []model.ClinicalEntity{
		procEntity(model.ProcDestructionAK, nil),
	}
	result, err := e.Analyze(context.Background(), entities)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	items := supportedItems(result)
	if _, ok := items["17000"]; !ok {
		t.Error("undocumented count still supports the first lesion")
	}
	if _, ok := items["17003"]; ok {
		t.Error("add-on lesions need a documented count")
	}
	if len(result.CurrentBilling.DocumentationGaps) == 0 {
		t.Error("missing count must surface as a documentation gap")
	}
	var found bool
	for _, en := range result.DocEnhancements.Enhancements {
		if en.EnhancedCode == "17003" {
			found = true
		}
	}
	if !found {
		t.Error("expected a count-documentation enhancement naming 17003")
	}
}

func TestAnalyze_EMGateWithoutSeparateDocumentation(t *testing.T) {
	e := newTestEngine(t, Options{})

	entities := []model.ClinicalEntity{
		procEntity(model.ProcEMVisit, map[string]string{
			model.AttrVisitLevel: "99213",
		}),
		procEntity(model.ProcNailDebridement, map[string]string{
			model.AttrCount: "4",
		}),
	}
	result, err := e.Analyze(context.Background(), entities)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	items := supportedItems(result)
	if _, ok := items["99213"]; ok {
		t.Error("E/M without separately identifiable documentation must not bill with a procedure")
	}
	if _, ok := items["11720"]; !ok {
		t.Error("four nails bill 11720")
	}
	var emEnh bool
	for _, en := range result.DocEnhancements.Enhancements {
		if en.EnhancedCode == "99213" {
			emEnh = true
			if !floatEq(en.DeltaWRVU, 1.30) {
				t.Errorf("E/M enhancement delta = %v, want 1.30", en.DeltaWRVU)
			}
		}
	}
	if !emEnh {
		t.Error("expected an enhancement recovering the gated E/M")
	}
}

func TestAnalyze_BilateralInjection(t *testing.T) {
	e := newTestEngine(t, Options{})

	entities := []model.ClinicalEntity{
		procEntity(model.ProcILInjection, map[string]string{
			model.AttrCount:      "3",
			model.AttrLaterality: "bilateral",
		}),
	}
	result, err := e.Analyze(context.Background(), entities)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	var lt, rt bool
	for _, it := range result.CurrentBilling.Codes {
		if it.Code != "11900" || !it.Supported() {
			continue
		}
		switch it.Modifier {
		case model.ModifierLeft:
			lt = floatEq(it.WRVU, 0.51)
		case model.ModifierRight:
			rt = floatEq(it.WRVU, 0.26)
		}
	}
	if !lt || !rt {
		t.Errorf("expected 11900-LT at 0.51 and 11900-RT at 0.26, got %+v", result.CurrentBilling.Codes)
	}
	if !floatEq(result.CurrentBilling.TotalWRVU, 0.77) {
		t.Errorf("total = %v, want 0.77", result.CurrentBilling.TotalWRVU)
	}
}

func TestAnalyze_OpportunitiesExcludeBilledCodes(t *testing.T) {
	e := newTestEngine(t, Options{})

	entities := []model.ClinicalEntity{
		dxEntity("plaque psoriasis"),
		procEntity(model.ProcEMVisit, map[string]string{
			model.AttrVisitLevel: "99214",
		}),
	}
	result, err := e.Analyze(context.Background(), entities)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	// G2211 bills automatically here, so the playbook must not re-offer it.
	if _, ok := supportedItems(result)["G2211"]; !ok {
		t.Fatal("expected G2211 on a psoriasis visit")
	}
	for _, opp := range result.FutureOpps.Opportunities {
		if opp.Code == "G2211" {
			t.Error("billed codes must not reappear as opportunities")
		}
	}
	// The IL injection opportunity from the psoriasis playbook survives.
	var il bool
	for _, opp := range result.FutureOpps.Opportunities {
		if opp.Code == "11900" {
			il = true
		}
	}
	if !il {
		t.Error("expected the 11900 opportunity from the psoriasis playbook")
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	e := newTestEngine(t, Options{})

	entities := []model.ClinicalEntity{
		dxEntity("onychomycosis"),
		procEntity(model.ProcEMVisit, map[string]string{
			model.AttrVisitLevel:           "99214",
			model.AttrSeparatelyIdentified: "true",
		}),
		procEntity(model.ProcNailDebridement, map[string]string{model.AttrCount: "8"}),
		procEntity(model.ProcDestructionAK, map[string]string{model.AttrCount: "5"}),
	}
	a, err := e.Analyze(context.Background(), entities)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	b, err := e.Analyze(context.Background(), entities)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !reflect.DeepEqual(a.CurrentBilling, b.CurrentBilling) {
		t.Error("current billing differs between identical runs")
	}
	if !reflect.DeepEqual(a.FutureOpps, b.FutureOpps) {
		t.Error("opportunities differ between identical runs")
	}
}

func TestAnalyzeNote_EndToEnd(t *testing.T) {
	e := newTestEngine(t, Options{})

	note := `Established patient with onychomycosis and plaque psoriasis.
Debridement of 8 toenails performed. Billed 99214. The psoriasis
evaluation was significant, separate and separately identifiable
from the nail procedure.`

	result, err := e.AnalyzeNote(context.Background(), note)
	if err != nil {
		t.Fatalf("AnalyzeNote: %v", err)
	}
	if !floatEq(result.CurrentBilling.TotalWRVU, 2.78) {
		t.Errorf("total = %v, want 2.78 (99214-25 + 11721 + G2211)", result.CurrentBilling.TotalWRVU)
	}
}

func keys(m map[string]model.BillableLineItem) []string {
	var out []string
	for k := range m {
		out = append(out, k)
	}
	return out
}
