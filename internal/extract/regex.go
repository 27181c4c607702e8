package extract

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/gyeh/dermbill/internal/model"
)

// RegexExtractor structures notes with compiled patterns only. It is the
// offline path: deterministic, no network, never fails. Attributes it
// cannot find are simply absent; the engine surfaces those as
// documentation gaps rather than guessing.
type RegexExtractor struct{}

// NewRegexExtractor returns the pattern-based extractor.
func NewRegexExtractor() *RegexExtractor {
	return &RegexExtractor{}
}

// assocWindow is how far, in bytes, a measurement, count, or site may sit
// from a procedure mention and still be attributed to it.
const assocWindow = 120

var (
	reMargin = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(mm|cm)\s+margins?`)
	reArea   = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:sq\.?\s*cm|cm2|cm²)`)
	reDims   = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*[x×]\s*(\d+(?:\.\d+)?)\s*(cm|mm)`)
	reSize   = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(cm|mm)\b`)

	countPatterns = []struct {
		typ  string
		unit string
		re   *regexp.Regexp
	}{
		{"ak_count", "lesions", regexp.MustCompile(`(?i)\b(\d+)\s*(?:actinic keratoses|actinic lesions|aks?\b)`)},
		{"wart_count", "lesions", regexp.MustCompile(`(?i)\b(\d+)\s*(?:warts?|verrucae?)`)},
		{"tag_count", "lesions", regexp.MustCompile(`(?i)\b(\d+)\s*skin tags?`)},
		{"nail_count", "nails", regexp.MustCompile(`(?i)\b(\d+)\s*(?:nails?|toenails?|fingernails?)`)},
		{"biopsy_count", "biopsies", regexp.MustCompile(`(?i)\b(\d+)\s*biops(?:y|ies)`)},
		{"stage_count", "stages", regexp.MustCompile(`(?i)\b(\d+)\s*stages?`)},
		{"block_count", "blocks", regexp.MustCompile(`(?i)\b(\d+)\s*blocks?`)},
		{"lesion_count", "lesions", regexp.MustCompile(`(?i)\b(\d+)\s*(?:lesions?|spots?|moles?|nevi)`)},
	}

	reSite = regexp.MustCompile(`(?i)\b(?:(left|right|bilateral)\s+)?` +
		`(scalp|forehead|temple|face|cheek|chin|nose|nasal|ear|eyelid|lip|neck|` +
		`chest|back|trunk|abdomen|flank|shoulder|axilla|breast|buttock|` +
		`arm|forearm|elbow|wrist|hand|palm|finger|thumb|` +
		`leg|thigh|knee|shin|calf|ankle|foot|feet|toe|heel|sole|` +
		`nail|toenail|fingernail)s?\b`)

	diagnosisPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(plaque psoriasis|guttate psoriasis|psoriasis|atopic dermatitis|contact dermatitis|seborrheic dermatitis|eczema|rosacea|acne vulgaris|acne)\b`),
		regexp.MustCompile(`(?i)\b(onychomycosis|tinea|cellulitis|folliculitis|herpes|warts?|verruca|molluscum)\b`),
		regexp.MustCompile(`(?i)\b(melanoma|basal cell carcinoma|bcc|squamous cell carcinoma|scc|actinic keratosis|actinic keratoses|seborrheic keratosis|dysplastic nevus|atypical nevus|lipoma|epidermal cyst|pilar cyst|cyst)\b`),
		regexp.MustCompile(`(?i)\b(alopecia|vitiligo|hidradenitis|pruritus|urticaria|lichen planus|morphea)\b`),
	}

	medicationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(triamcinolone acetonide|triamcinolone|clobetasol|betamethasone|hydrocortisone|fluocinonide|mometasone|desonide)\b`),
		regexp.MustCompile(`(?i)\b(tacrolimus|pimecrolimus|calcipotriene|tretinoin|adapalene|benzoyl peroxide|metronidazole|ivermectin|azelaic acid)\b`),
		regexp.MustCompile(`(?i)\b(doxycycline|minocycline|isotretinoin|methotrexate|acitretin|prednisone|hydroxychloroquine|mycophenolate)\b`),
		regexp.MustCompile(`(?i)\b(adalimumab|etanercept|ustekinumab|secukinumab|dupilumab|risankizumab)\b`),
		regexp.MustCompile(`(?i)\b(kenalog|fluorouracil|5-fu|bleomycin)\b`),
	}

	timePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)total (?:visit |encounter )?time[:\s]+\d+\s*(?:minutes?|mins?)`),
		regexp.MustCompile(`(?i)\d+\s*(?:minutes?|mins?)\s*(?:spent|total)`),
		regexp.MustCompile(`(?i)time spent[:\s]+\d+\s*(?:minutes?|mins?)`),
		regexp.MustCompile(`(?i)counseling[:\s]+\d+\s*(?:minutes?|mins?)`),
	}

	reEMCode          = regexp.MustCompile(`\b(99(?:20[2-5]|21[2-5]))\b`)
	reSeparateEM      = regexp.MustCompile(`(?i)separately identifiable|significant(?:,| and) separate`)
	reMalignantDx     = regexp.MustCompile(`(?i)\b(melanoma|basal cell carcinoma|bcc|squamous cell carcinoma|scc)\b`)
	reComplexRepair   = regexp.MustCompile(`(?i)complex (?:repair|closure)`)
	reIntermedRepair  = regexp.MustCompile(`(?i)intermediate (?:repair|closure)|layered closure`)
	reDistinctSiteDoc = regexp.MustCompile(`(?i)separate (?:site|lesion|structure)|distinct (?:site|lesion|structure)`)
)

// procedure patterns, matched in order. Destruction targets are resolved
// from nearby counts and diagnoses after the pattern hit.
var procedurePatterns = []struct {
	proc string
	re   *regexp.Regexp
}{
	{model.ProcBiopsyPunch, regexp.MustCompile(`(?i)punch biops(?:y|ies)`)},
	{model.ProcBiopsyShave, regexp.MustCompile(`(?i)shave biops(?:y|ies)|shave removal`)},
	{model.ProcBiopsyIncisional, regexp.MustCompile(`(?i)incisional biops(?:y|ies)`)},
	{procDestruction, regexp.MustCompile(`(?i)cryotherapy|cryosurgery|liquid nitrogen|\bLN2\b|electrodesiccation and curettage|\bED&C\b|destroyed|destruction`)},
	{model.ProcSkinTagRemoval, regexp.MustCompile(`(?i)skin tags? (?:removed|removal|snipped|snip excision)`)},
	{model.ProcFlap, regexp.MustCompile(`(?i)(?:advancement|rotation|transposition|rhombic|bilobed) flap|adjacent tissue transfer`)},
	{model.ProcExcision, regexp.MustCompile(`(?i)\bexcisions?\b|\bexcised\b|wide local excision`)},
	{model.ProcRepair, regexp.MustCompile(`(?i)(?:simple|intermediate|complex) repair|layered closure|primary closure|\bsutured\b`)},
	{model.ProcILInjection, regexp.MustCompile(`(?i)intralesional(?: injection)?|IL injection`)},
	{model.ProcMohs, regexp.MustCompile(`(?i)\bMohs\b|micrographic surgery`)},
	{model.ProcNailDebridement, regexp.MustCompile(`(?i)nail debridement|debridement of \d+\s*(?:toe|finger)?nails?|nails? debrided`)},
	{model.ProcWoundDebridement, regexp.MustCompile(`(?i)wound debridement|debridement of (?:the )?(?:wound|ulcer)`)},
}

// procDestruction is an internal marker resolved into the premalignant or
// benign destruction procedure per target lesion evidence.
const procDestruction = "destruction"

type located struct {
	pos int
	end int
}

type foundMeasurement struct {
	located
	typ   string
	value float64
	unit  string
}

type foundText struct {
	located
	text string
}

// Extract implements Extractor. The error is always nil.
func (x *RegexExtractor) Extract(_ context.Context, note string) ([]model.ClinicalEntity, error) {
	measurements := findMeasurements(note)
	sites := findSites(note)
	diagnoses := findFirstGroup(note, diagnosisPatterns)
	medications := findFirstGroup(note, medicationPatterns)
	malignantNote := reMalignantDx.MatchString(note)

	var entities []model.ClinicalEntity

	for _, d := range diagnoses {
		entities = append(entities, entity(model.EntityDiagnosis, map[string]string{
			model.AttrValue: strings.ToLower(d.text),
		}))
	}
	for _, s := range sites {
		entities = append(entities, entity(model.EntityAnatomicSite, map[string]string{
			model.AttrValue: s.text,
		}))
	}
	for _, m := range medications {
		entities = append(entities, entity(model.EntityMedication, map[string]string{
			model.AttrValue: strings.ToLower(m.text),
		}))
	}
	for _, m := range measurements {
		entities = append(entities, entity(model.EntityMeasurement, map[string]string{
			"type":          m.typ,
			model.AttrValue: formatFloat(m.value),
			"unit":          m.unit,
			"context":       snippet(note, m.pos, m.end),
		}))
	}
	if t := findTime(note); t != "" {
		entities = append(entities, entity(model.EntityTime, map[string]string{
			model.AttrValue: t,
		}))
	}

	entities = append(entities, x.procedures(note, measurements, sites, malignantNote)...)
	entities = append(entities, emEntities(note)...)

	return dedupe(entities), nil
}

// procedures walks the procedure patterns and enriches each hit from its
// neighborhood.
func (x *RegexExtractor) procedures(note string, measurements []foundMeasurement, sites []foundText, malignantNote bool) []model.ClinicalEntity {
	var out []model.ClinicalEntity
	distinct := reDistinctSiteDoc.MatchString(note)

	for _, pp := range procedurePatterns {
		for _, loc := range pp.re.FindAllStringIndex(note, -1) {
			at := located{pos: loc[0], end: loc[1]}
			attrs := map[string]string{}
			proc := pp.proc

			if site, ok := nearestText(sites, at); ok {
				attrs[model.AttrSite] = site.text
				if lat := lateralityOf(site.text); lat != "" {
					attrs[model.AttrLaterality] = lat
				}
			}

			switch pp.proc {
			case procDestruction:
				proc = resolveDestruction(note, measurements, at, attrs)
			case model.ProcBiopsyPunch, model.ProcBiopsyShave, model.ProcBiopsyIncisional:
				if n, ok := nearestCount(measurements, at, "biopsy_count", "lesion_count"); ok {
					attrs[model.AttrCount] = strconv.Itoa(n)
				} else {
					attrs[model.AttrCount] = "1"
				}
			case model.ProcSkinTagRemoval:
				if n, ok := nearestCount(measurements, at, "tag_count", "lesion_count"); ok {
					attrs[model.AttrCount] = strconv.Itoa(n)
				}
			case model.ProcExcision:
				if m, ok := nearestMeasurement(measurements, at, "size"); ok {
					attrs[model.AttrLesionDiameterMM] = formatFloat(toMM(m.value, m.unit))
				}
				if m, ok := nearestMeasurement(measurements, at, "margin"); ok {
					attrs[model.AttrMarginMM] = formatFloat(toMM(m.value, m.unit))
				}
				if malignantNote {
					attrs[model.AttrMalignant] = "true"
				}
			case model.ProcRepair:
				attrs[model.AttrComplexity] = repairComplexityAt(note, at)
				if m, ok := nearestMeasurement(measurements, at, "size"); ok {
					attrs[model.AttrLengthCM] = formatFloat(toCM(m.value, m.unit))
				}
			case model.ProcFlap:
				areas := windowMeasurements(measurements, at, "area")
				if len(areas) > 0 {
					attrs[model.AttrPrimaryAreaSqCM] = formatFloat(areas[0].value)
				}
				if len(areas) > 1 {
					attrs[model.AttrSecondaryAreaSqCM] = formatFloat(areas[1].value)
				}
			case model.ProcILInjection:
				if n, ok := nearestCount(measurements, at, "lesion_count"); ok {
					attrs[model.AttrCount] = strconv.Itoa(n)
				} else {
					attrs[model.AttrCount] = "1"
				}
			case model.ProcMohs:
				if n, ok := nearestCount(measurements, at, "stage_count"); ok {
					attrs[model.AttrCount] = strconv.Itoa(n)
				}
			case model.ProcNailDebridement:
				if n, ok := nearestCount(measurements, at, "nail_count"); ok {
					attrs[model.AttrCount] = strconv.Itoa(n)
				}
			case model.ProcWoundDebridement:
				if m, ok := nearestMeasurement(measurements, at, "area"); ok {
					attrs[model.AttrAreaSqCM] = formatFloat(m.value)
				}
			}

			if distinct {
				attrs[model.AttrDistinctSite] = "true"
			}
			attrs[model.AttrProcedure] = proc
			out = append(out, entity(model.EntityProcedure, attrs))
		}
	}
	return out
}

// resolveDestruction decides the destruction target from nearby counts,
// falling back to diagnosis evidence anywhere in the note. Premalignant
// wins ties: AK destruction is the dominant dermatologic use.
func resolveDestruction(note string, measurements []foundMeasurement, at located, attrs map[string]string) string {
	if n, ok := nearestCount(measurements, at, "ak_count"); ok {
		attrs[model.AttrCount] = strconv.Itoa(n)
		return model.ProcDestructionAK
	}
	if n, ok := nearestCount(measurements, at, "wart_count"); ok {
		attrs[model.AttrCount] = strconv.Itoa(n)
		return model.ProcDestructionBenign
	}
	if n, ok := nearestCount(measurements, at, "lesion_count"); ok {
		attrs[model.AttrCount] = strconv.Itoa(n)
	}
	lower := strings.ToLower(note)
	if strings.Contains(lower, "actinic") {
		return model.ProcDestructionAK
	}
	if strings.Contains(lower, "wart") || strings.Contains(lower, "verruca") || strings.Contains(lower, "molluscum") || strings.Contains(lower, "seborrheic keratos") {
		return model.ProcDestructionBenign
	}
	return model.ProcDestructionAK
}

func repairComplexityAt(note string, at located) string {
	window := sliceWindow(note, at)
	if reComplexRepair.MatchString(window) {
		return string(model.RepairComplex)
	}
	if reIntermedRepair.MatchString(window) {
		return string(model.RepairIntermediate)
	}
	return string(model.RepairSimple)
}

// emEntities emits a visit entity when the note names its own E/M code.
func emEntities(note string) []model.ClinicalEntity {
	m := reEMCode.FindString(note)
	if m == "" {
		return nil
	}
	attrs := map[string]string{
		model.AttrProcedure:  model.ProcEMVisit,
		model.AttrVisitLevel: m,
	}
	if strings.HasPrefix(m, "9921") {
		attrs[model.AttrEstablishedPatient] = "true"
	} else {
		attrs[model.AttrEstablishedPatient] = "false"
	}
	if reSeparateEM.MatchString(note) {
		attrs[model.AttrSeparatelyIdentified] = "true"
	}
	return []model.ClinicalEntity{entity(model.EntityProcedure, attrs)}
}

// findMeasurements collects sizes, margins, areas, dimensions, and counts.
// Patterns are claimed in specificity order so a "5 mm margin" is a margin,
// not also a size.
func findMeasurements(note string) []foundMeasurement {
	var out []foundMeasurement
	var claimed []located

	claim := func(l located) bool {
		for _, c := range claimed {
			if l.pos < c.end && c.pos < l.end {
				return false
			}
		}
		claimed = append(claimed, l)
		return true
	}

	for _, m := range reMargin.FindAllStringSubmatchIndex(note, -1) {
		l := located{m[0], m[1]}
		if !claim(l) {
			continue
		}
		v, _ := strconv.ParseFloat(note[m[2]:m[3]], 64)
		out = append(out, foundMeasurement{l, "margin", v, strings.ToLower(note[m[4]:m[5]])})
	}
	for _, m := range reArea.FindAllStringSubmatchIndex(note, -1) {
		l := located{m[0], m[1]}
		if !claim(l) {
			continue
		}
		v, _ := strconv.ParseFloat(note[m[2]:m[3]], 64)
		out = append(out, foundMeasurement{l, "area", v, "sq cm"})
	}
	for _, m := range reDims.FindAllStringSubmatchIndex(note, -1) {
		l := located{m[0], m[1]}
		if !claim(l) {
			continue
		}
		// The longer axis drives sizing.
		a, _ := strconv.ParseFloat(note[m[2]:m[3]], 64)
		b, _ := strconv.ParseFloat(note[m[4]:m[5]], 64)
		if b > a {
			a = b
		}
		out = append(out, foundMeasurement{l, "size", a, strings.ToLower(note[m[6]:m[7]])})
	}
	for _, m := range reSize.FindAllStringSubmatchIndex(note, -1) {
		l := located{m[0], m[1]}
		if !claim(l) {
			continue
		}
		v, _ := strconv.ParseFloat(note[m[2]:m[3]], 64)
		out = append(out, foundMeasurement{l, "size", v, strings.ToLower(note[m[4]:m[5]])})
	}
	for _, cp := range countPatterns {
		for _, m := range cp.re.FindAllStringSubmatchIndex(note, -1) {
			l := located{m[0], m[1]}
			if !claim(l) {
				continue
			}
			v, _ := strconv.ParseFloat(note[m[2]:m[3]], 64)
			out = append(out, foundMeasurement{l, cp.typ, v, cp.unit})
		}
	}
	return out
}

func findSites(note string) []foundText {
	var out []foundText
	for _, m := range reSite.FindAllStringIndex(note, -1) {
		text := strings.ToLower(strings.TrimSpace(note[m[0]:m[1]]))
		out = append(out, foundText{located{m[0], m[1]}, text})
	}
	return out
}

func findFirstGroup(note string, patterns []*regexp.Regexp) []foundText {
	var out []foundText
	for _, re := range patterns {
		for _, m := range re.FindAllStringIndex(note, -1) {
			out = append(out, foundText{located{m[0], m[1]}, note[m[0]:m[1]]})
		}
	}
	return out
}

func findTime(note string) string {
	for _, re := range timePatterns {
		if m := re.FindString(note); m != "" {
			return m
		}
	}
	return ""
}

func nearestText(items []foundText, at located) (foundText, bool) {
	best := -1
	for i, it := range items {
		d := distance(it.located, at)
		if d > assocWindow {
			continue
		}
		if best < 0 || d < distance(items[best].located, at) {
			best = i
		}
	}
	if best < 0 {
		return foundText{}, false
	}
	return items[best], true
}

func nearestMeasurement(items []foundMeasurement, at located, typ string) (foundMeasurement, bool) {
	best := -1
	for i, it := range items {
		if it.typ != typ {
			continue
		}
		d := distance(it.located, at)
		if d > assocWindow {
			continue
		}
		if best < 0 || d < distance(items[best].located, at) {
			best = i
		}
	}
	if best < 0 {
		return foundMeasurement{}, false
	}
	return items[best], true
}

// nearestCount tries each count type in preference order.
func nearestCount(items []foundMeasurement, at located, types ...string) (int, bool) {
	for _, typ := range types {
		if m, ok := nearestMeasurement(items, at, typ); ok {
			return int(m.value), true
		}
	}
	return 0, false
}

// windowMeasurements returns all measurements of a type inside the window,
// in note order.
func windowMeasurements(items []foundMeasurement, at located, typ string) []foundMeasurement {
	var out []foundMeasurement
	for _, it := range items {
		if it.typ == typ && distance(it.located, at) <= assocWindow {
			out = append(out, it)
		}
	}
	return out
}

func distance(a, b located) int {
	if a.end <= b.pos {
		return b.pos - a.end
	}
	if b.end <= a.pos {
		return a.pos - b.end
	}
	return 0
}

func lateralityOf(site string) string {
	switch {
	case strings.HasPrefix(site, "left "):
		return "left"
	case strings.HasPrefix(site, "right "):
		return "right"
	case strings.HasPrefix(site, "bilateral "):
		return "bilateral"
	}
	return ""
}

func sliceWindow(note string, at located) string {
	start := at.pos - assocWindow
	if start < 0 {
		start = 0
	}
	end := at.end + assocWindow
	if end > len(note) {
		end = len(note)
	}
	return note[start:end]
}

func snippet(note string, pos, end int) string {
	start := pos - 20
	if start < 0 {
		start = 0
	}
	stop := end + 20
	if stop > len(note) {
		stop = len(note)
	}
	return strings.TrimSpace(note[start:stop])
}

func toMM(v float64, unit string) float64 {
	if unit == "cm" {
		return v * 10
	}
	return v
}

func toCM(v float64, unit string) float64 {
	if unit == "mm" {
		return v / 10
	}
	return v
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func entity(kind model.EntityKind, attrs map[string]string) model.ClinicalEntity {
	return model.ClinicalEntity{Kind: kind, Attributes: attrs}
}

func dedupe(entities []model.ClinicalEntity) []model.ClinicalEntity {
	seen := map[string]bool{}
	out := entities[:0]
	for _, e := range entities {
		if e.Kind == model.EntityMeasurement {
			out = append(out, e)
			continue
		}
		fp := fingerprint(e)
		if seen[fp] {
			continue
		}
		seen[fp] = true
		out = append(out, e)
	}
	return out
}

var _ Extractor = (*RegexExtractor)(nil)

// String names the extractor in logs.
func (x *RegexExtractor) String() string { return "regex" }
