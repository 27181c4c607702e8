package main

import (
	"fmt"
	"io"

	"github.com/gyeh/dermbill/internal/model"
)

// renderText prints the human-readable analysis report.
func renderText(w io.Writer, source string, res *model.AnalysisResult) {
	fmt.Fprintf(w, "Analysis %s (%s)\n", res.AnalysisID, source)

	fmt.Fprintf(w, "\nCURRENT BILLING\n")
	for _, li := range res.CurrentBilling.Codes {
		code := li.Code
		if li.Modifier != model.ModifierNone {
			code += "-" + string(li.Modifier)
		}
		if li.Supported() {
			fmt.Fprintf(w, "  %-10s x%-2d %6.2f wRVU  %s\n", code, li.Units, li.WRVU, li.Description)
		} else {
			fmt.Fprintf(w, "  %-10s [%s] %s\n", code, li.Status, li.Note)
		}
	}
	fmt.Fprintf(w, "  Total: %.2f wRVU\n", res.CurrentBilling.TotalWRVU)

	if len(res.CurrentBilling.DocumentationGaps) > 0 {
		fmt.Fprintf(w, "\nDOCUMENTATION GAPS\n")
		for _, g := range res.CurrentBilling.DocumentationGaps {
			fmt.Fprintf(w, "  - %s\n", g)
		}
	}

	if len(res.DocEnhancements.Enhancements) > 0 {
		fmt.Fprintf(w, "\nDOCUMENTATION ENHANCEMENTS (+%.2f wRVU -> %.2f)\n",
			res.DocEnhancements.Improvement, res.DocEnhancements.EnhancedTotalWRVU)
		for _, en := range res.DocEnhancements.Enhancements {
			fmt.Fprintf(w, "  [%s] %s\n", en.Priority, en.Issue)
			fmt.Fprintf(w, "        %s\n", en.SuggestedAddition)
			if en.EnhancedCode != "" {
				fmt.Fprintf(w, "        -> %s (+%.2f wRVU)\n", en.EnhancedCode, en.DeltaWRVU)
			}
		}
	}

	if len(res.FutureOpps.Opportunities) > 0 {
		fmt.Fprintf(w, "\nFUTURE OPPORTUNITIES (up to +%.2f wRVU)\n",
			res.FutureOpps.TotalPotentialAddedWRVU)
		for _, opp := range res.FutureOpps.Opportunities {
			fmt.Fprintf(w, "  %s", opp.Opportunity)
			if opp.Code != "" {
				fmt.Fprintf(w, " (%s, %.2f wRVU)", opp.Code, opp.WRVU)
			}
			fmt.Fprintln(w)
			fmt.Fprintf(w, "        %s\n", opp.Action)
			fmt.Fprintf(w, "        %s\n", opp.TeachingPoint)
		}
	}

	fmt.Fprintf(w, "\n%s\n", res.ComplianceNotice)
}
