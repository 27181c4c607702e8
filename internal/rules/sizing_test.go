package rules_test

import (
	"errors"
	"math"
	"testing"

	"github.com/gyeh/dermbill/internal/refdata"
	"github.com/gyeh/dermbill/internal/rules"
)

// loadStore loads the embedded reference tables, failing the test on any
// validation error.
func loadStore(t *testing.T) *refdata.Store {
	t.Helper()
	s, err := refdata.Load()
	if err != nil {
		t.Fatalf("load reference tables: %v", err)
	}
	return s
}

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestExcisedDiameterCM(t *testing.T) {
	cases := []struct {
		name     string
		lesionMM float64
		marginMM float64
		want     float64
	}{
		{"six mm lesion two mm margins", 6, 2, 1.0},
		{"no margins documented as zero", 6, 0, 0.6},
		{"rounding half up", 7, 1.4, 1.0}, // 9.8 mm -> 0.98 cm -> 1.0
		{"large malignant excision", 22, 5, 3.2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := rules.ExcisedDiameterCM(tc.lesionMM, tc.marginMM)
			if err != nil {
				t.Fatalf("ExcisedDiameterCM(%v, %v): %v", tc.lesionMM, tc.marginMM, err)
			}
			if !floatEq(got, tc.want) {
				t.Errorf("ExcisedDiameterCM(%v, %v) = %v, want %v", tc.lesionMM, tc.marginMM, got, tc.want)
			}
		})
	}
}

func TestExcisedDiameterCM_Invalid(t *testing.T) {
	if _, err := rules.ExcisedDiameterCM(0, 2); !errors.Is(err, rules.ErrInvalidMeasurement) {
		t.Errorf("zero lesion diameter: got %v, want ErrInvalidMeasurement", err)
	}
	if _, err := rules.ExcisedDiameterCM(6, -1); !errors.Is(err, rules.ErrInvalidMeasurement) {
		t.Errorf("negative margin: got %v, want ErrInvalidMeasurement", err)
	}
}

func TestFlapTotalArea(t *testing.T) {
	got, err := rules.FlapTotalArea(2.25, 3.0)
	if err != nil {
		t.Fatalf("FlapTotalArea: %v", err)
	}
	if !floatEq(got, 5.25) {
		t.Errorf("FlapTotalArea(2.25, 3.0) = %v, want 5.25", got)
	}

	if _, err := rules.FlapTotalArea(0, 0); !errors.Is(err, rules.ErrInvalidMeasurement) {
		t.Errorf("both areas zero: got %v, want ErrInvalidMeasurement", err)
	}
	if _, err := rules.FlapTotalArea(-1, 3); !errors.Is(err, rules.ErrInvalidMeasurement) {
		t.Errorf("negative area: got %v, want ErrInvalidMeasurement", err)
	}
}

func TestSizeToBand_ExcisionBoundaries(t *testing.T) {
	store := loadStore(t)
	bt, ok := store.BandTable(refdata.FamilyExcisionBenignTrunk)
	if !ok {
		t.Fatal("missing excision_benign_trunk band table")
	}

	cases := []struct {
		size float64
		want string
	}{
		{0.5, "11400"},  // boundary belongs to the lower band
		{0.6, "11401"},
		{1.0, "11401"},
		{1.1, "11402"},
		{4.0, "11404"},
		{9.9, "11406"},  // open top band
	}
	for _, tc := range cases {
		got, err := rules.SizeToBand(tc.size, bt)
		if err != nil {
			t.Fatalf("SizeToBand(%v): %v", tc.size, err)
		}
		if got != tc.want {
			t.Errorf("SizeToBand(%v) = %s, want %s", tc.size, got, tc.want)
		}
	}
}

func TestSizeToBand_ComplexRepairOverflow(t *testing.T) {
	store := loadStore(t)
	bt, ok := store.BandTable("repair_complex_trunk")
	if !ok {
		t.Fatal("missing repair_complex_trunk band table")
	}

	// Past the closed 7.5 cm top the family stays on the top code and adds
	// each-additional-5-cm units.
	code, err := rules.SizeToBand(12.0, bt)
	if err != nil {
		t.Fatalf("SizeToBand(12.0): %v", err)
	}
	if code != "13101" {
		t.Errorf("SizeToBand(12.0) = %s, want 13101", code)
	}

	cases := []struct {
		size  float64
		units int
	}{
		{7.5, 0},
		{7.6, 1},
		{12.5, 1},
		{12.6, 2},
		{20.0, 3},
	}
	for _, tc := range cases {
		if got := rules.BandOverflowUnits(tc.size, bt); got != tc.units {
			t.Errorf("BandOverflowUnits(%v) = %d, want %d", tc.size, got, tc.units)
		}
	}
}

func TestSizeToBand_NoAddOnPastTop(t *testing.T) {
	bound := 2.0
	bt := refdata.BandTable{
		Family: "test_closed",
		Unit:   "cm",
		Bands:  []refdata.Band{{UpperBound: &bound, Code: "00000"}},
	}
	if _, err := rules.SizeToBand(3.0, bt); !errors.Is(err, rules.ErrNoBandFound) {
		t.Errorf("closed family past top: got %v, want ErrNoBandFound", err)
	}
}

func TestRoundTenth(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{0.94, 0.9},
		{0.95, 1.0},
		{1.0, 1.0},
		{2.449999, 2.4},
	}
	for _, tc := range cases {
		if got := rules.RoundTenth(tc.in); !floatEq(got, tc.want) {
			t.Errorf("RoundTenth(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
