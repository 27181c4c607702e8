package rules

import (
	"fmt"

	"github.com/gyeh/dermbill/internal/model"
	"github.com/gyeh/dermbill/internal/refdata"
)

// Line is the resolver's working currency: one candidate code emission
// with its support status. The resolver and E/M pass mutate Lines in
// place; rvu.go freezes them into BillableLineItems at the end.
type Line struct {
	Code     string
	Units    int
	Modifier model.Modifier
	// Scale multiplies the code weight, 1.0 except for the second side of
	// a bilateral pair.
	Scale  float64
	Status model.SupportStatus
	Note   string
	// DistinctSite records that the note documents this service on a
	// separate structure or lesion, which legitimizes modifier-allowed
	// edit pairs.
	DistinctSite bool
}

// NewLine returns a supported, unscaled line.
func NewLine(code string, units int) Line {
	return Line{Code: code, Units: units, Scale: 1.0, Status: model.StatusSupported}
}

// Supported reports whether the line still counts toward billing.
func (l Line) Supported() bool {
	return l.Status == model.StatusSupported
}

// Resolve applies pairwise edits and the add-on primary requirement to a
// candidate line set and returns the resolved set. Lines are never
// removed, only flipped to suppressed with an explanatory note, so the
// report can show what bundled into what.
//
// never_unbundle pairs always suppress the component. modifier-allowed
// pairs keep the component only when both members of the pair document a
// distinct structure (or the engine runs with aggressive unbundling); the
// default is to suppress. Add-ons whose primary code ends up unsupported
// are suppressed too, repeated to a fixed point since suppressing an
// add-on's primary can orphan further add-ons.
func Resolve(lines []Line, store *refdata.Store, aggressive bool) []Line {
	out := make([]Line, len(lines))
	copy(out, lines)

	// Prior modifiers of lines granted an unbundling modifier, so the
	// grant can be rolled back if its partner falls to a later edit.
	granted := map[int]model.Modifier{}

	for i := range out {
		if !out[i].Supported() {
			continue
		}
		for j := range out {
			if i == j || !out[j].Supported() || out[i].Code == out[j].Code {
				continue
			}
			rule, ok := store.EditRule(out[i].Code, out[j].Code)
			if !ok || rule.Indicator == model.EditIndependent {
				continue
			}
			// The component side of the pair is the one that bundles away.
			comp, other := i, j
			if rule.CodeB == out[j].Code {
				comp, other = j, i
			}
			switch rule.Indicator {
			case model.EditNeverUnbundle:
				suppress(&out[comp], rule.CodeA)
			case model.EditModifierAllowed:
				// Unbundling needs the distinct-site documentation on
				// both members, not just the component.
				if (out[comp].DistinctSite && out[other].DistinctSite) || aggressive {
					if _, seen := granted[comp]; !seen {
						granted[comp] = out[comp].Modifier
					}
					out[comp].Modifier = rule.Modifier
				} else {
					suppress(&out[comp], rule.CodeA)
				}
			}
			if !out[i].Supported() {
				break
			}
		}
	}

	// Orphaned add-ons: repeat until no add-on loses its primary.
	for changed := true; changed; {
		changed = false
		for i := range out {
			if !out[i].Supported() {
				continue
			}
			rec, ok := store.Code(out[i].Code)
			if !ok || !rec.IsAddOn || len(rec.PrimaryCodes) == 0 {
				continue
			}
			if !hasSupportedPrimary(out, rec.PrimaryCodes) {
				out[i].Status = model.StatusSuppressedByBundling
				out[i].Note = fmt.Sprintf("add-on code %s requires a billable primary code", out[i].Code)
				changed = true
			}
		}
	}

	// A granted modifier stands only while a supported partner still
	// forms the pair that earned it. Partners can fall to later edits,
	// so re-derive every grant against the final line set.
	for comp, prev := range granted {
		if !out[comp].Supported() {
			continue
		}
		if mod, ok := pairModifier(out, comp, store, aggressive); ok {
			out[comp].Modifier = mod
		} else {
			out[comp].Modifier = prev
		}
	}
	return out
}

// pairModifier finds a supported comprehensive partner that still
// justifies an unbundling modifier on the component at comp.
func pairModifier(lines []Line, comp int, store *refdata.Store, aggressive bool) (model.Modifier, bool) {
	for k := range lines {
		if k == comp || !lines[k].Supported() || lines[k].Code == lines[comp].Code {
			continue
		}
		rule, ok := store.EditRule(lines[comp].Code, lines[k].Code)
		if !ok || rule.Indicator != model.EditModifierAllowed || rule.CodeB != lines[comp].Code {
			continue
		}
		if (lines[comp].DistinctSite && lines[k].DistinctSite) || aggressive {
			return rule.Modifier, true
		}
	}
	return model.ModifierNone, false
}

func suppress(l *Line, comprehensive string) {
	l.Status = model.StatusSuppressedByBundling
	l.Modifier = model.ModifierNone
	l.Note = fmt.Sprintf("bundled into %s", comprehensive)
}

func hasSupportedPrimary(lines []Line, primaries []string) bool {
	for _, l := range lines {
		if !l.Supported() {
			continue
		}
		for _, p := range primaries {
			if l.Code == p {
				return true
			}
		}
	}
	return false
}
