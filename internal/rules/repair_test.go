package rules_test

import (
	"errors"
	"testing"

	"github.com/gyeh/dermbill/internal/model"
	"github.com/gyeh/dermbill/internal/rules"
)

func TestAggregateRepairs_SumsWithinGroup(t *testing.T) {
	store := loadStore(t)

	// Three intermediate trunk repairs sum to one band lookup, not three.
	records := []model.RepairRecord{
		{LengthCM: 2.0, Complexity: model.RepairIntermediate, Site: "back", AnatomicGroup: model.GroupTrunk},
		{LengthCM: 3.5, Complexity: model.RepairIntermediate, Site: "left arm", AnatomicGroup: model.GroupTrunk},
		{LengthCM: 1.5, Complexity: model.RepairIntermediate, Site: "chest", AnatomicGroup: model.GroupTrunk},
	}
	groups, err := rules.AggregateRepairs(records, store)
	if err != nil {
		t.Fatalf("AggregateRepairs: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	g := groups[0]
	if !floatEq(g.TotalLengthCM, 7.0) {
		t.Errorf("total length = %v, want 7.0", g.TotalLengthCM)
	}
	if len(g.Lines) != 1 || g.Lines[0].Code != "12034" {
		t.Errorf("lines = %v, want single 12034", g.Lines)
	}
}

func TestAggregateRepairs_NeverSumsAcrossGroups(t *testing.T) {
	store := loadStore(t)

	records := []model.RepairRecord{
		{LengthCM: 4.0, Complexity: model.RepairIntermediate, Site: "cheek", AnatomicGroup: model.GroupFace},
		{LengthCM: 4.0, Complexity: model.RepairIntermediate, Site: "back", AnatomicGroup: model.GroupTrunk},
		{LengthCM: 3.0, Complexity: model.RepairSimple, Site: "back", AnatomicGroup: model.GroupTrunk},
	}
	groups, err := rules.AggregateRepairs(records, store)
	if err != nil {
		t.Fatalf("AggregateRepairs: %v", err)
	}
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d: %+v", len(groups), groups)
	}

	// Groups come back ordered by complexity then anatomic group.
	wantCodes := []string{"12002", "12052", "12032"}
	for i, want := range wantCodes {
		if groups[i].Lines[0].Code != want {
			t.Errorf("group %d code = %s, want %s", i, groups[i].Lines[0].Code, want)
		}
	}
}

func TestAggregateRepairs_ComplexOverflowAddOn(t *testing.T) {
	store := loadStore(t)

	// 9.0 cm of complex trunk repair: 13101 base plus one 13102 add-on.
	records := []model.RepairRecord{
		{LengthCM: 5.0, Complexity: model.RepairComplex, Site: "scalp", AnatomicGroup: model.GroupTrunk},
		{LengthCM: 4.0, Complexity: model.RepairComplex, Site: "back", AnatomicGroup: model.GroupTrunk},
	}
	groups, err := rules.AggregateRepairs(records, store)
	if err != nil {
		t.Fatalf("AggregateRepairs: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	want := []rules.CodeUnits{{Code: "13101", Units: 1}, {Code: "13102", Units: 1}}
	if len(groups[0].Lines) != 2 || groups[0].Lines[0] != want[0] || groups[0].Lines[1] != want[1] {
		t.Errorf("lines = %v, want %v", groups[0].Lines, want)
	}
}

func TestAggregateRepairs_LengthConservation(t *testing.T) {
	store := loadStore(t)

	// Splitting one group's length across records never changes the band.
	whole := []model.RepairRecord{
		{LengthCM: 7.5, Complexity: model.RepairSimple, Site: "back", AnatomicGroup: model.GroupTrunk},
	}
	split := []model.RepairRecord{
		{LengthCM: 2.5, Complexity: model.RepairSimple, Site: "back", AnatomicGroup: model.GroupTrunk},
		{LengthCM: 2.5, Complexity: model.RepairSimple, Site: "chest", AnatomicGroup: model.GroupTrunk},
		{LengthCM: 2.5, Complexity: model.RepairSimple, Site: "left arm", AnatomicGroup: model.GroupTrunk},
	}
	g1, err := rules.AggregateRepairs(whole, store)
	if err != nil {
		t.Fatalf("AggregateRepairs(whole): %v", err)
	}
	g2, err := rules.AggregateRepairs(split, store)
	if err != nil {
		t.Fatalf("AggregateRepairs(split): %v", err)
	}
	if g1[0].Lines[0].Code != g2[0].Lines[0].Code {
		t.Errorf("split lengths resolved to %s, whole to %s", g2[0].Lines[0].Code, g1[0].Lines[0].Code)
	}
	if g1[0].Lines[0].Code != "12002" {
		t.Errorf("7.5 cm simple trunk = %s, want 12002", g1[0].Lines[0].Code)
	}
}

func TestAggregateRepairs_Invalid(t *testing.T) {
	store := loadStore(t)

	_, err := rules.AggregateRepairs([]model.RepairRecord{
		{LengthCM: 0, Complexity: model.RepairSimple, Site: "back", AnatomicGroup: model.GroupTrunk},
	}, store)
	if !errors.Is(err, rules.ErrInvalidMeasurement) {
		t.Errorf("zero length: got %v, want ErrInvalidMeasurement", err)
	}

	_, err = rules.AggregateRepairs([]model.RepairRecord{
		{LengthCM: 2.0, Complexity: model.RepairSimple, Site: "somewhere odd"},
	}, store)
	if !errors.Is(err, rules.ErrUnknownAnatomicGroup) {
		t.Errorf("unmapped site: got %v, want ErrUnknownAnatomicGroup", err)
	}
}
