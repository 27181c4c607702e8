package scenario

import (
	"testing"

	"github.com/gyeh/dermbill/internal/model"
)

func loadLibrary(t *testing.T) *Library {
	t.Helper()
	lib, err := Load()
	if err != nil {
		t.Fatalf("load scenarios: %v", err)
	}
	return lib
}

func TestLoad_OpportunitiesWellFormed(t *testing.T) {
	lib := loadLibrary(t)
	if len(lib.Names()) < 10 {
		t.Fatalf("expected at least 10 playbooks, got %d", len(lib.Names()))
	}
	for _, name := range lib.Names() {
		s, ok := lib.Scenario(name)
		if !ok {
			t.Fatalf("Names listed %q but lookup failed", name)
		}
		for _, opp := range s.Opportunities {
			if model.CategoryPriority(opp.Category) > 2 {
				t.Errorf("%s: opportunity %q has unknown category %q", name, opp.Opportunity, opp.Category)
			}
			if opp.WRVU <= 0 {
				t.Errorf("%s: opportunity %q has no wrvu", name, opp.Opportunity)
			}
			if opp.Action == "" || opp.TeachingPoint == "" {
				t.Errorf("%s: opportunity %q missing action or teaching point", name, opp.Opportunity)
			}
		}
	}
}

func TestMatch_LongerKeywordsScoreHigher(t *testing.T) {
	lib := loadLibrary(t)

	matches := lib.Match("Patient with plaque psoriasis, no other complaints.", 5)
	if len(matches) == 0 {
		t.Fatal("expected a psoriasis match")
	}
	if matches[0].Name != "Psoriasis" {
		t.Errorf("top match = %s, want Psoriasis", matches[0].Name)
	}
	// "plaque psoriasis" (2) + "psoriasis" (1).
	if matches[0].Score != 3 {
		t.Errorf("score = %d, want 3", matches[0].Score)
	}
}

func TestMatch_WordBoundary(t *testing.T) {
	lib := loadLibrary(t)

	// "snack" must not match "ak", "warts" must not match "wart" keyword
	// unless the plural keyword exists.
	matches := lib.Match("patient brought a snack", 5)
	for _, m := range matches {
		if m.Name == "AK Treatment" {
			t.Error("substring 'ak' inside 'snack' must not match")
		}
	}

	matches = lib.Match("several plantar warts on the left heel", 5)
	found := false
	for _, m := range matches {
		if m.Name == "Wart Treatment" {
			found = true
		}
	}
	if !found {
		t.Error("expected Wart Treatment match")
	}
}

func TestMatch_CapsAndOrder(t *testing.T) {
	lib := loadLibrary(t)

	note := "Onychomycosis with thick nails. Psoriasis stable. Warts on hand. Generalized pruritus. Eczema flare. Acne noted."
	matches := lib.Match(note, 3)
	if len(matches) != 3 {
		t.Fatalf("expected max 3 matches, got %d", len(matches))
	}
	for i := 1; i < len(matches); i++ {
		if matches[i-1].Score < matches[i].Score {
			t.Errorf("matches out of order: %s(%d) before %s(%d)",
				matches[i-1].Name, matches[i-1].Score, matches[i].Name, matches[i].Score)
		}
	}
}

func TestMatchConditions(t *testing.T) {
	lib := loadLibrary(t)

	matches := lib.MatchConditions([]string{"onychomycosis", "plaque psoriasis"}, 5)
	names := map[string]bool{}
	for _, m := range matches {
		names[m.Name] = true
	}
	if !names["Nail Disorder"] || !names["Psoriasis"] {
		t.Errorf("expected Nail Disorder and Psoriasis, got %v", names)
	}
}

func TestScenario_NameNormalization(t *testing.T) {
	lib := loadLibrary(t)

	for _, name := range []string{"AK Treatment", "ak treatment", "AK_Treatment", "ak_treatment"} {
		if _, ok := lib.Scenario(name); !ok {
			t.Errorf("lookup %q failed", name)
		}
	}
	if _, ok := lib.Scenario("No Such Playbook"); ok {
		t.Error("unknown name should not resolve")
	}
}
