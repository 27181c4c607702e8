package model

import (
	"sort"
	"strconv"
	"strings"
)

// EntityKind is the type of a clinical entity extracted from a note.
type EntityKind string

const (
	EntityDiagnosis    EntityKind = "diagnosis"
	EntityProcedure    EntityKind = "procedure_performed"
	EntityMeasurement  EntityKind = "measurement"
	EntityAnatomicSite EntityKind = "anatomic_site"
	EntityMedication   EntityKind = "medication"
	EntityTime         EntityKind = "time_documented"
)

// Attribute keys used in ClinicalEntity.Attributes. The extractor writes
// these; the engine reads them. All values are strings; numeric values use
// decimal notation.
const (
	AttrValue     = "value"
	AttrProcedure = "procedure"
	AttrSite      = "site"
	AttrCount     = "count"
	AttrTechnique = "technique"

	AttrLesionDiameterMM = "lesion_diameter_mm"
	AttrMarginMM         = "margin_mm"
	AttrLengthCM         = "length_cm"
	AttrComplexity       = "complexity"
	AttrMalignant        = "malignant"
	AttrPrimaryAreaSqCM  = "primary_area_sq_cm"
	AttrSecondaryAreaSqCM = "secondary_area_sq_cm"
	AttrAreaSqCM         = "area_sq_cm"

	AttrLaterality   = "laterality"   // "left", "right", "bilateral"
	AttrDistinctSite = "distinct_site" // "true" when a distinct lesion/site is documented

	AttrVisitLevel           = "visit_level"            // e.g. "99214"
	AttrEstablishedPatient   = "established_patient"    // "true"/"false"
	AttrSeparatelyIdentified = "separately_identifiable" // "true" when the note documents separate E/M work
)

// Procedure attribute values recognized by the engine.
const (
	ProcExcision          = "excision"
	ProcRepair            = "repair"
	ProcFlap              = "flap"
	ProcDestructionAK     = "destruction_premalignant"
	ProcDestructionBenign = "destruction_benign"
	ProcSkinTagRemoval    = "skin_tag_removal"
	ProcBiopsyShave       = "biopsy_shave"
	ProcBiopsyPunch       = "biopsy_punch"
	ProcBiopsyIncisional  = "biopsy_incisional"
	ProcILInjection       = "il_injection"
	ProcMohs              = "mohs_surgery"
	ProcNailDebridement   = "nail_debridement"
	ProcWoundDebridement  = "wound_debridement"
	ProcEMVisit           = "em_visit"
)

// ClinicalEntity is one extracted fact from a clinical note. Entities are
// immutable snapshots; insertion order is preserved for traceability but
// never affects coding output.
type ClinicalEntity struct {
	Kind       EntityKind        `json:"kind"`
	Attributes map[string]string `json:"attributes"`
}

// Attr returns the named attribute, or "" if absent.
func (e ClinicalEntity) Attr(key string) string {
	return e.Attributes[key]
}

// FloatAttr returns the named attribute parsed as a float.
func (e ClinicalEntity) FloatAttr(key string) (float64, bool) {
	s, ok := e.Attributes[key]
	if !ok || s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// IntAttr returns the named attribute parsed as an int. A non-integer
// value reports ok=false.
func (e ClinicalEntity) IntAttr(key string) (int, bool) {
	s, ok := e.Attributes[key]
	if !ok || s == "" {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}

// BoolAttr reports whether the named attribute is the literal "true".
func (e ClinicalEntity) BoolAttr(key string) bool {
	return e.Attributes[key] == "true"
}

// Measurement is one numeric observation surfaced in the entity summary.
type Measurement struct {
	Type    string  `json:"type"`
	Value   float64 `json:"value"`
	Unit    string  `json:"unit"`
	Context string  `json:"context,omitempty"`
}

// EntitySummary is the caller-facing echo of what was extracted, grouped
// the way the analysis report presents it.
type EntitySummary struct {
	Diagnoses         []string      `json:"diagnoses"`
	Procedures        []string      `json:"procedures"`
	AnatomicSites     []string      `json:"anatomic_sites"`
	Measurements      []Measurement `json:"measurements"`
	Medications       []string      `json:"medications"`
	TimeDocumentation string        `json:"time_documentation,omitempty"`
}

// Summarize builds an EntitySummary from an entity sequence. List entries
// are deduplicated case-insensitively, preserving first-seen order, except
// measurements which are kept in full.
func Summarize(entities []ClinicalEntity) EntitySummary {
	var s EntitySummary
	seen := map[string]map[string]bool{}
	add := func(list *[]string, kind, v string) {
		if v == "" {
			return
		}
		if seen[kind] == nil {
			seen[kind] = map[string]bool{}
		}
		key := strings.ToLower(v)
		if seen[kind][key] {
			return
		}
		seen[kind][key] = true
		*list = append(*list, v)
	}
	for _, e := range entities {
		switch e.Kind {
		case EntityDiagnosis:
			add(&s.Diagnoses, "dx", e.Attr(AttrValue))
		case EntityProcedure:
			add(&s.Procedures, "proc", e.Attr(AttrProcedure))
			add(&s.AnatomicSites, "site", e.Attr(AttrSite))
		case EntityAnatomicSite:
			add(&s.AnatomicSites, "site", e.Attr(AttrValue))
		case EntityMedication:
			add(&s.Medications, "med", e.Attr(AttrValue))
		case EntityMeasurement:
			v, _ := e.FloatAttr(AttrValue)
			s.Measurements = append(s.Measurements, Measurement{
				Type:    e.Attr("type"),
				Value:   v,
				Unit:    e.Attr("unit"),
				Context: e.Attr("context"),
			})
		case EntityTime:
			if s.TimeDocumentation == "" {
				s.TimeDocumentation = e.Attr(AttrValue)
			}
		}
	}
	return s
}

// Diagnoses returns the diagnosis values from an entity sequence, sorted
// and deduplicated, for scenario matching and G2211 checks.
func Diagnoses(entities []ClinicalEntity) []string {
	set := map[string]bool{}
	var out []string
	for _, e := range entities {
		if e.Kind != EntityDiagnosis {
			continue
		}
		v := strings.ToLower(e.Attr(AttrValue))
		if v == "" || set[v] {
			continue
		}
		set[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
