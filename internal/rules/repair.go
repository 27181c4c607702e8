package rules

import (
	"fmt"
	"sort"

	"github.com/gyeh/dermbill/internal/model"
	"github.com/gyeh/dermbill/internal/refdata"
)

// RepairGroup is the aggregate of all repairs sharing one complexity ×
// anatomic group, summed before band lookup per CPT's same-classification
// rule.
type RepairGroup struct {
	Complexity    model.RepairComplexity
	AnatomicGroup model.AnatomicGroup
	TotalLengthCM float64
	Lines         []CodeUnits
}

var complexityRank = map[model.RepairComplexity]int{
	model.RepairSimple:       0,
	model.RepairIntermediate: 1,
	model.RepairComplex:      2,
}

// AggregateRepairs groups repair records by (complexity, anatomic group),
// sums sutured lengths within each group, and resolves each sum against
// the group's band table. Lengths are never summed across complexities or
// across anatomic groups. Groups come back in (complexity, group) order so
// repeated runs over the same records emit identical lines.
func AggregateRepairs(records []model.RepairRecord, store *refdata.Store) ([]RepairGroup, error) {
	type key struct {
		c model.RepairComplexity
		g model.AnatomicGroup
	}
	sums := make(map[key]float64)
	for _, r := range records {
		if r.LengthCM <= 0 {
			return nil, fmt.Errorf("%w: repair length %.2f cm at %q must be positive", ErrInvalidMeasurement, r.LengthCM, r.Site)
		}
		if r.AnatomicGroup == model.UnknownAnatomicGroup {
			return nil, fmt.Errorf("%w: repair site %q", ErrUnknownAnatomicGroup, r.Site)
		}
		sums[key{r.Complexity, r.AnatomicGroup}] += r.LengthCM
	}

	keys := make([]key, 0, len(sums))
	for k := range sums {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if complexityRank[keys[i].c] != complexityRank[keys[j].c] {
			return complexityRank[keys[i].c] < complexityRank[keys[j].c]
		}
		return keys[i].g < keys[j].g
	})

	groups := make([]RepairGroup, 0, len(keys))
	for _, k := range keys {
		total := RoundTenth(sums[k])
		family := refdata.RepairFamily(k.c, k.g)
		bt, ok := store.BandTable(family)
		if !ok {
			return nil, fmt.Errorf("%w: no band table for family %s", ErrNoBandFound, family)
		}
		base, err := SizeToBand(total, bt)
		if err != nil {
			return nil, err
		}
		lines := []CodeUnits{{Code: base, Units: 1}}
		if units := BandOverflowUnits(total, bt); units > 0 {
			lines = append(lines, CodeUnits{Code: bt.AddOnCode, Units: units})
		}
		groups = append(groups, RepairGroup{
			Complexity:    k.c,
			AnatomicGroup: k.g,
			TotalLengthCM: total,
			Lines:         lines,
		})
	}
	return groups, nil
}
