package rules

import (
	"fmt"

	"github.com/gyeh/dermbill/internal/refdata"
)

// CodeUnits is one (code, units) emission from tiering.
type CodeUnits struct {
	Code  string
	Units int
}

// TierCount converts a lesion/specimen/unit count into the optimal code
// combination under a tier policy.
//
// Order of evaluation: a flat-rate threshold, when defined, wins outright;
// the flat code is emitted alone, never alongside base and add-ons. Below
// the threshold the base code covers the first BaseCovers units and each
// AddOnGroupSize beyond that bills one add-on unit. A count of zero emits
// nothing; a negative count is an InvalidCount error.
func TierCount(count int, tp refdata.TierPolicy) ([]CodeUnits, error) {
	if count < 0 {
		return nil, fmt.Errorf("%w: count %d for family %s", ErrInvalidCount, count, tp.Family)
	}
	if count == 0 {
		return nil, nil
	}
	if tp.FlatThreshold > 0 && count >= tp.FlatThreshold {
		return []CodeUnits{{Code: tp.FlatCode, Units: 1}}, nil
	}
	out := []CodeUnits{{Code: tp.BaseCode, Units: 1}}
	if count > tp.BaseCovers && tp.AddOnCode != "" {
		extra := count - tp.BaseCovers
		units := (extra + tp.AddOnGroupSize - 1) / tp.AddOnGroupSize
		if tp.AddOnMaxUnits > 0 && units > tp.AddOnMaxUnits {
			units = tp.AddOnMaxUnits
		}
		out = append(out, CodeUnits{Code: tp.AddOnCode, Units: units})
	}
	return out, nil
}
