package model

// ComplianceNotice accompanies every analysis response regardless of
// success or partial failure.
const ComplianceNotice = "These recommendations are for educational purposes and require clinical judgment. " +
	"All billing must reflect services actually performed and documented. " +
	"This tool identifies optimization opportunities within legitimate coding guidelines. " +
	"Consult your compliance officer for facility-specific guidance."

// CurrentBilling is the maximum code set supportable by the note as written.
// Suppressed and gap items are retained, status-tagged, for transparency.
type CurrentBilling struct {
	Codes             []BillableLineItem `json:"codes"`
	TotalWRVU         float64            `json:"total_wrvu"`
	DocumentationGaps []string           `json:"documentation_gaps"`
}

// Enhancement is one documentation-language edit that would increase
// supportable billing, with its wRVU delta.
type Enhancement struct {
	Issue             string  `json:"issue"`
	CurrentCode       string  `json:"current_code,omitempty"`
	CurrentWRVU       float64 `json:"current_wrvu"`
	SuggestedAddition string  `json:"suggested_addition"`
	EnhancedCode      string  `json:"enhanced_code,omitempty"`
	EnhancedWRVU      float64 `json:"enhanced_wrvu"`
	DeltaWRVU         float64 `json:"delta_wrvu"`
	Priority          string  `json:"priority"`
}

// Enhancements groups all documentation-edit recommendations.
type Enhancements struct {
	Enhancements      []Enhancement `json:"enhancements"`
	EnhancedTotalWRVU float64       `json:"enhanced_total_wrvu"`
	Improvement       float64       `json:"improvement"`
}

// OpportunityCategory orders opportunity candidates for tie-breaking:
// procedure > comorbidity > visit_level.
type OpportunityCategory string

const (
	OpportunityProcedure   OpportunityCategory = "procedure"
	OpportunityComorbidity OpportunityCategory = "comorbidity"
	OpportunityVisitLevel  OpportunityCategory = "visit_level"
)

// CategoryPriority returns the fixed tie-break rank for a category; lower
// ranks sort first.
func CategoryPriority(c OpportunityCategory) int {
	switch c {
	case OpportunityProcedure:
		return 0
	case OpportunityComorbidity:
		return 1
	case OpportunityVisitLevel:
		return 2
	default:
		return 3
	}
}

// OpportunityCandidate is one "next time" teaching recommendation supplied
// by the scenario collaborator. The engine ranks candidates; it never
// invents or recomputes their relative values.
type OpportunityCandidate struct {
	Category      OpportunityCategory `json:"category" yaml:"category"`
	Finding       string              `json:"finding" yaml:"finding"`
	Opportunity   string              `json:"opportunity" yaml:"opportunity"`
	Action        string              `json:"action" yaml:"action"`
	Code          string              `json:"code,omitempty" yaml:"code"`
	WRVU          float64             `json:"wrvu" yaml:"wrvu"`
	TeachingPoint string              `json:"teaching_point" yaml:"teaching_point"`
}

// Opportunities groups the ranked future-opportunity list.
type Opportunities struct {
	Opportunities            []OpportunityCandidate `json:"opportunities"`
	TotalPotentialAddedWRVU  float64                `json:"total_potential_additional_wrvu"`
}

// AnalysisResult is the complete four-section analysis for one note. Field
// names and nesting are the de-facto wire format consumed by the CLI and
// HTTP API and must stay stable across versions.
type AnalysisResult struct {
	AnalysisID       string        `json:"analysis_id"`
	Entities         EntitySummary `json:"entities"`
	CurrentBilling   CurrentBilling `json:"current_billing"`
	DocEnhancements  Enhancements  `json:"documentation_enhancements"`
	FutureOpps       Opportunities `json:"future_opportunities"`
	ComplianceNotice string        `json:"compliance_notice"`
}
