package rules

import (
	"math"
	"sort"

	"github.com/gyeh/dermbill/internal/model"
	"github.com/gyeh/dermbill/internal/refdata"
)

// Round2 rounds a wRVU figure to two decimal places, half up.
func Round2(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}

var categoryRank = func() map[model.Category]int {
	m := make(map[model.Category]int, len(model.AllCategories))
	for i, c := range model.AllCategories {
		m[c] = i
	}
	return m
}()

// BuildLineItems freezes resolved lines into billable line items in
// canonical order: category, then code, then modifier. The ordering makes
// repeated runs over the same note byte-identical.
func BuildLineItems(lines []Line, store *refdata.Store) []model.BillableLineItem {
	items := make([]model.BillableLineItem, 0, len(lines))
	for _, l := range lines {
		rec, _ := store.Code(l.Code)
		scale := l.Scale
		if scale == 0 {
			scale = 1.0
		}
		item := model.BillableLineItem{
			Code:        l.Code,
			Description: rec.Description,
			Modifier:    l.Modifier,
			Units:       l.Units,
			Status:      l.Status,
			Note:        l.Note,
		}
		if l.Supported() {
			item.WRVU = Round2(rec.WRVU * float64(l.Units) * scale)
		}
		items = append(items, item)
	}
	sort.SliceStable(items, func(i, j int) bool {
		ri, _ := store.Code(items[i].Code)
		rj, _ := store.Code(items[j].Code)
		if categoryRank[ri.Category] != categoryRank[rj.Category] {
			return categoryRank[ri.Category] < categoryRank[rj.Category]
		}
		if items[i].Code != items[j].Code {
			return items[i].Code < items[j].Code
		}
		return items[i].Modifier < items[j].Modifier
	})
	return items
}

// TotalWRVU sums the supported items' contributions.
func TotalWRVU(items []model.BillableLineItem) float64 {
	var sum float64
	for _, it := range items {
		if it.Supported() {
			sum += it.WRVU
		}
	}
	return Round2(sum)
}

// RankOpportunities orders future-opportunity candidates by descending
// wRVU, breaking ties by category priority and then code, and sums the
// potential gain.
func RankOpportunities(cands []model.OpportunityCandidate) model.Opportunities {
	sorted := make([]model.OpportunityCandidate, len(cands))
	copy(sorted, cands)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].WRVU != sorted[j].WRVU {
			return sorted[i].WRVU > sorted[j].WRVU
		}
		pi, pj := model.CategoryPriority(sorted[i].Category), model.CategoryPriority(sorted[j].Category)
		if pi != pj {
			return pi < pj
		}
		return sorted[i].Code < sorted[j].Code
	})
	var total float64
	for _, c := range sorted {
		total += c.WRVU
	}
	return model.Opportunities{
		Opportunities:           sorted,
		TotalPotentialAddedWRVU: Round2(total),
	}
}
