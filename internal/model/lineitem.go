package model

// SupportStatus describes whether a line item is billable from the note
// as written, or why not.
type SupportStatus string

const (
	StatusSupported            SupportStatus = "supported"
	StatusMissingMeasurement   SupportStatus = "missing_measurement"
	StatusMissingCount         SupportStatus = "missing_count"
	StatusMissingDocumentation SupportStatus = "missing_documentation"
	StatusSuppressedByBundling SupportStatus = "suppressed_by_bundling"
)

// BillableLineItem is one resolved billing line. Items are immutable once
// created; the resolver replaces items rather than patching them.
type BillableLineItem struct {
	Code        string        `json:"code"`
	Description string        `json:"description"`
	Modifier    Modifier      `json:"modifier,omitempty"`
	Units       int           `json:"units"`
	// WRVU is the line's relative-value contribution: the code weight
	// times units, with the second-side bilateral factor already applied.
	WRVU   float64       `json:"wrvu"`
	Status SupportStatus `json:"status"`
	// Note carries the documentation-gap or suppression explanation for
	// non-supported items.
	Note string `json:"note,omitempty"`
}

// Supported reports whether the item counts toward the current total.
func (li BillableLineItem) Supported() bool {
	return li.Status == StatusSupported
}

// RepairComplexity is the wound-repair complexity level.
type RepairComplexity string

const (
	RepairSimple       RepairComplexity = "simple"
	RepairIntermediate RepairComplexity = "intermediate"
	RepairComplex      RepairComplexity = "complex"
)

// RepairRecord is one repair derived from extracted entities. LengthCM is
// the final sutured length including dog-ears and M-plasty, not the raw
// defect size. Records exist only during aggregation.
type RepairRecord struct {
	LengthCM      float64
	Complexity    RepairComplexity
	Site          string
	AnatomicGroup AnatomicGroup
}
