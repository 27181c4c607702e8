package rules

import (
	"fmt"
	"strings"

	"github.com/gyeh/dermbill/internal/model"
	"github.com/gyeh/dermbill/internal/refdata"
)

// EMCode returns the office-visit code for a level and patient status.
// Levels run 2 through 5.
func EMCode(level int, established bool) (string, error) {
	if level < 2 || level > 5 {
		return "", fmt.Errorf("%w: visit level %d", ErrInvalidCount, level)
	}
	if established {
		return fmt.Sprintf("9921%d", level), nil
	}
	return fmt.Sprintf("9920%d", level), nil
}

// GComplexityAddOn is the HCPCS add-on for visit complexity inherent to
// longitudinal care of a serious or complex condition.
const GComplexityAddOn = "G2211"

// ApplySeparateEM gates a same-day E/M line against the procedure lines.
// With no billable procedure the visit bills unmodified. With one, the
// visit needs documented significant, separately identifiable work to
// carry modifier 25; otherwise it flips to a documentation gap rather
// than billing bare.
func ApplySeparateEM(em *Line, lines []Line, separatelyDocumented bool) {
	if em == nil || !em.Supported() {
		return
	}
	if !anySupportedProcedure(lines) {
		return
	}
	if separatelyDocumented {
		em.Modifier = model.ModifierSeparateEM
		return
	}
	em.Status = model.StatusMissingDocumentation
	em.Note = "same-day E/M requires documented significant, separately identifiable work (modifier 25)"
}

func anySupportedProcedure(lines []Line) bool {
	for _, l := range lines {
		if l.Supported() {
			return true
		}
	}
	return false
}

// ChronicEligible reports whether any documented diagnosis matches the
// qualifying chronic-condition list for the complexity add-on. Matching
// is whole-word within the diagnosis text, so "plaque psoriasis" counts
// and "eczematous" does not match "eczema".
func ChronicEligible(diagnoses []string, store *refdata.Store) (string, bool) {
	for _, d := range diagnoses {
		for _, cond := range store.ChronicConditions() {
			if containsWordFold(d, cond) {
				return cond, true
			}
		}
	}
	return "", false
}

// ComplexityAddOnLine returns the G2211 line when a billed
// established-patient E/M line exists and a qualifying chronic condition
// is documented, else ok=false. The add-on rides with modifier 25 visits.
// New-patient visits (9920x) carry no longitudinal relationship yet and
// never qualify.
func ComplexityAddOnLine(em *Line, diagnoses []string, store *refdata.Store) (Line, bool) {
	if em == nil || !em.Supported() || !strings.HasPrefix(em.Code, "9921") {
		return Line{}, false
	}
	cond, ok := ChronicEligible(diagnoses, store)
	if !ok {
		return Line{}, false
	}
	l := NewLine(GComplexityAddOn, 1)
	l.Note = fmt.Sprintf("longitudinal care of %s", cond)
	return l, true
}

// containsWordFold reports whether term occurs in text on word
// boundaries, case-insensitively.
func containsWordFold(text, term string) bool {
	text = strings.ToLower(text)
	term = strings.ToLower(term)
	for start := 0; ; {
		i := strings.Index(text[start:], term)
		if i < 0 {
			return false
		}
		i += start
		before := i == 0 || !isWordByte(text[i-1])
		after := i+len(term) == len(text) || !isWordByte(text[i+len(term)])
		if before && after {
			return true
		}
		start = i + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}

// BilateralLines expands one procedure line into side-specific LT/RT
// lines. The first side bills at full weight, the second at half, per the
// multiple-procedure reduction for paired structures.
func BilateralLines(l Line) []Line {
	left := l
	left.Modifier = model.ModifierLeft
	left.Scale = 1.0
	right := l
	right.Modifier = model.ModifierRight
	right.Scale = 0.5
	return []Line{left, right}
}
