package rules_test

import (
	"testing"

	"github.com/gyeh/dermbill/internal/model"
	"github.com/gyeh/dermbill/internal/rules"
)

func TestBuildLineItems_WorkedVisit(t *testing.T) {
	store := loadStore(t)

	// Established level-4 visit with modifier 25, six-plus nail debridement,
	// and the chronic-care add-on: 1.92 + 0.53 + 0.33 = 2.78.
	em := rules.NewLine("99214", 1)
	em.Modifier = model.ModifierSeparateEM
	lines := []rules.Line{em, rules.NewLine("11721", 1), rules.NewLine("G2211", 1)}

	items := rules.BuildLineItems(lines, store)
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}

	wantOrder := []string{"99214", "11721", "G2211"}
	wantWRVU := []float64{1.92, 0.53, 0.33}
	for i := range items {
		if items[i].Code != wantOrder[i] {
			t.Errorf("item %d code = %s, want %s", i, items[i].Code, wantOrder[i])
		}
		if !floatEq(items[i].WRVU, wantWRVU[i]) {
			t.Errorf("item %d wrvu = %v, want %v", i, items[i].WRVU, wantWRVU[i])
		}
	}
	if got := rules.TotalWRVU(items); !floatEq(got, 2.78) {
		t.Errorf("TotalWRVU = %v, want 2.78", got)
	}
}

func TestBuildLineItems_UnitsAndScale(t *testing.T) {
	store := loadStore(t)

	// 17003 carries 0.09 per lesion.
	addon := rules.NewLine("17003", 13)
	items := rules.BuildLineItems([]rules.Line{addon}, store)
	if !floatEq(items[0].WRVU, 1.17) {
		t.Errorf("13 units of 17003 = %v, want 1.17", items[0].WRVU)
	}

	// Bilateral second side bills at half weight.
	sides := rules.BilateralLines(rules.NewLine("11900", 1))
	items = rules.BuildLineItems(sides, store)
	total := rules.TotalWRVU(items)
	if !floatEq(total, 0.77) { // 0.51 + 0.26
		t.Errorf("bilateral 11900 total = %v, want 0.77", total)
	}
}

func TestBuildLineItems_SuppressedContributeNothing(t *testing.T) {
	store := loadStore(t)

	kept := rules.NewLine("11402", 1)
	dropped := rules.NewLine("12002", 1)
	dropped.Status = model.StatusSuppressedByBundling
	dropped.Note = "bundled into 11402"

	items := rules.BuildLineItems([]rules.Line{kept, dropped}, store)
	if len(items) != 2 {
		t.Fatalf("suppressed items must be retained, got %d items", len(items))
	}
	var suppressed model.BillableLineItem
	for _, it := range items {
		if it.Code == "12002" {
			suppressed = it
		}
	}
	if suppressed.WRVU != 0 {
		t.Errorf("suppressed item wrvu = %v, want 0", suppressed.WRVU)
	}
	if suppressed.Note == "" {
		t.Error("suppressed item should keep its note")
	}
	if got := rules.TotalWRVU(items); !floatEq(got, 1.41) {
		t.Errorf("TotalWRVU = %v, want 1.41 (11402 only)", got)
	}
}

func TestBuildLineItems_CanonicalOrder(t *testing.T) {
	store := loadStore(t)

	// Input order is scrambled; output follows category then code.
	lines := []rules.Line{
		rules.NewLine("17000", 1),
		rules.NewLine("99213", 1),
		rules.NewLine("11104", 1),
		rules.NewLine("G2211", 1),
	}
	items := rules.BuildLineItems(lines, store)
	want := []string{"99213", "11104", "17000", "G2211"}
	for i := range want {
		if items[i].Code != want[i] {
			t.Errorf("item %d = %s, want %s", i, items[i].Code, want[i])
		}
	}
}

func TestRound2(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{2.7751, 2.78},
		{2.7749, 2.77},
		{0.404, 0.40},
		{1.0, 1.0},
	}
	for _, tc := range cases {
		if got := rules.Round2(tc.in); !floatEq(got, tc.want) {
			t.Errorf("Round2(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestRankOpportunities(t *testing.T) {
	cands := []model.OpportunityCandidate{
		{Category: model.OpportunityVisitLevel, Finding: "time documented", Code: "99215", WRVU: 0.88},
		{Category: model.OpportunityProcedure, Finding: "thick plaques", Code: "11721", WRVU: 0.53},
		{Category: model.OpportunityComorbidity, Finding: "chronic condition", Code: "G2211", WRVU: 0.33},
		{Category: model.OpportunityProcedure, Finding: "untreated AKs", Code: "17000", WRVU: 0.88},
	}
	got := rules.RankOpportunities(cands)

	// 0.88 procedure beats 0.88 visit_level; then 0.53, then 0.33.
	wantCodes := []string{"17000", "99215", "11721", "G2211"}
	for i := range wantCodes {
		if got.Opportunities[i].Code != wantCodes[i] {
			t.Errorf("rank %d = %s, want %s", i, got.Opportunities[i].Code, wantCodes[i])
		}
	}
	if !floatEq(got.TotalPotentialAddedWRVU, 2.62) {
		t.Errorf("total = %v, want 2.62", got.TotalPotentialAddedWRVU)
	}
}
