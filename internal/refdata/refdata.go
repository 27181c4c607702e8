// Package refdata holds the immutable billing reference tables: code
// records, band tables, tier policies, pairwise edit rules, anatomic-group
// terms, chronic-condition keywords, and modifier guidance. Tables are
// loaded once into a Store and never mutated; hot reload means building a
// fresh Store and swapping the pointer.
package refdata

import (
	"embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gyeh/dermbill/internal/model"
)

//go:embed data/*.yaml
var dataFS embed.FS

// Store is the indexed, read-only view over all reference tables. Safe for
// concurrent use without locking.
type Store struct {
	codes      map[string]model.CodeRecord
	codeOrder  []string
	bands      map[string]BandTable
	tiers      map[string]TierPolicy
	edits      map[[2]string]model.EditRule
	groupTerms map[model.AnatomicGroup][]string
	flapTerms  map[string][]string
	chronic    []string
	modifiers  map[string]model.ModifierGuidance
	modOrder   []string
}

// Tables is the raw, unindexed bundle of every reference table. Load
// produces one from the embedded YAML; the database-backed store produces
// one from rows. FromTables turns either into a validated Store.
type Tables struct {
	Codes             []model.CodeRecord
	BandTables        []BandTable
	TierPolicies      []TierPolicy
	EditRules         []model.EditRule
	AnatomicGroups    map[string][]string
	FlapFamilies      map[string][]string
	ChronicConditions []string
	Modifiers         []model.ModifierGuidance
}

type codesDoc struct {
	Codes []model.CodeRecord `yaml:"codes"`
}

type bandsDoc struct {
	BandTables []BandTable `yaml:"band_tables"`
}

type tiersDoc struct {
	TierPolicies []TierPolicy `yaml:"tier_policies"`
}

type editRuleEntry struct {
	CodeA     string              `yaml:"code_a"`
	CodeB     string              `yaml:"code_b"`
	CategoryA string              `yaml:"category_a"`
	CategoryB string              `yaml:"category_b"`
	Indicator model.EditIndicator `yaml:"indicator"`
	Modifier  model.Modifier      `yaml:"modifier"`
}

type editsDoc struct {
	EditRules []editRuleEntry `yaml:"edit_rules"`
}

type groupsDoc struct {
	AnatomicGroups map[string][]string `yaml:"anatomic_groups"`
	FlapFamilies   map[string][]string `yaml:"flap_families"`
}

type chronicDoc struct {
	ChronicConditions []string `yaml:"chronic_conditions"`
}

type modifiersDoc struct {
	Modifiers []model.ModifierGuidance `yaml:"modifiers"`
}

// Load parses the embedded reference tables into a Store.
func Load() (*Store, error) {
	t, err := LoadTables()
	if err != nil {
		return nil, err
	}
	return FromTables(t)
}

// LoadTables parses the embedded YAML into a raw Tables bundle. Category-
// level edit rules are expanded to concrete code pairs here, so the bundle
// is self-contained.
func LoadTables() (Tables, error) {
	var t Tables

	var cd codesDoc
	if err := readDoc("data/codes.yaml", &cd); err != nil {
		return t, err
	}
	t.Codes = cd.Codes

	var bd bandsDoc
	if err := readDoc("data/band_tables.yaml", &bd); err != nil {
		return t, err
	}
	t.BandTables = bd.BandTables

	var td tiersDoc
	if err := readDoc("data/tier_policies.yaml", &td); err != nil {
		return t, err
	}
	t.TierPolicies = td.TierPolicies

	var ed editsDoc
	if err := readDoc("data/edit_rules.yaml", &ed); err != nil {
		return t, err
	}
	codes := map[string]model.CodeRecord{}
	var order []string
	for _, rec := range cd.Codes {
		if _, dup := codes[rec.Code]; !dup {
			order = append(order, rec.Code)
		}
		codes[rec.Code] = rec
	}
	for _, e := range ed.EditRules {
		pairs, err := expandEditEntry(e, codes, order)
		if err != nil {
			return t, err
		}
		t.EditRules = append(t.EditRules, pairs...)
	}

	var gd groupsDoc
	if err := readDoc("data/anatomic_groups.yaml", &gd); err != nil {
		return t, err
	}
	t.AnatomicGroups = gd.AnatomicGroups
	t.FlapFamilies = gd.FlapFamilies

	var chd chronicDoc
	if err := readDoc("data/chronic_conditions.yaml", &chd); err != nil {
		return t, err
	}
	t.ChronicConditions = chd.ChronicConditions

	var md modifiersDoc
	if err := readDoc("data/modifiers.yaml", &md); err != nil {
		return t, err
	}
	t.Modifiers = md.Modifiers

	return t, nil
}

// FromTables indexes and validates a raw bundle: every code referenced by a
// band table, tier policy, edit rule, or add-on relationship must exist in
// the code table.
func FromTables(t Tables) (*Store, error) {
	s := &Store{
		codes:      map[string]model.CodeRecord{},
		bands:      map[string]BandTable{},
		tiers:      map[string]TierPolicy{},
		edits:      map[[2]string]model.EditRule{},
		groupTerms: map[model.AnatomicGroup][]string{},
		flapTerms:  map[string][]string{},
		modifiers:  map[string]model.ModifierGuidance{},
	}

	for _, rec := range t.Codes {
		if rec.Code == "" {
			return nil, fmt.Errorf("codes: entry with empty code")
		}
		if _, ok := model.CategoryByName(string(rec.Category)); !ok {
			return nil, fmt.Errorf("codes: code %s has unknown category %q", rec.Code, rec.Category)
		}
		if rec.WRVU < 0 {
			return nil, fmt.Errorf("codes: code %s has negative wRVU", rec.Code)
		}
		if _, dup := s.codes[rec.Code]; dup {
			return nil, fmt.Errorf("codes: duplicate code %s", rec.Code)
		}
		if rec.IsAddOn && len(rec.PrimaryCodes) == 0 {
			return nil, fmt.Errorf("codes: add-on code %s lists no primary codes", rec.Code)
		}
		s.codes[rec.Code] = rec
		s.codeOrder = append(s.codeOrder, rec.Code)
	}
	for _, rec := range s.codes {
		for _, p := range rec.PrimaryCodes {
			if _, ok := s.codes[p]; !ok {
				return nil, fmt.Errorf("codes: add-on %s references unknown primary %s", rec.Code, p)
			}
		}
	}

	for _, bt := range t.BandTables {
		if err := validateBandTable(bt, s.codes); err != nil {
			return nil, err
		}
		s.bands[bt.Family] = bt
	}
	backfillBounds(s)

	for _, tp := range t.TierPolicies {
		if tp.BaseCovers == 0 {
			tp.BaseCovers = 1
		}
		if tp.AddOnGroupSize == 0 {
			tp.AddOnGroupSize = 1
		}
		for _, c := range []string{tp.BaseCode, tp.AddOnCode, tp.FlatCode} {
			if c != "" {
				if _, ok := s.codes[c]; !ok {
					return nil, fmt.Errorf("tier policies: family %s references unknown code %s", tp.Family, c)
				}
			}
		}
		s.tiers[tp.Family] = tp
	}

	for _, r := range t.EditRules {
		if r.Indicator != model.EditNeverUnbundle &&
			r.Indicator != model.EditModifierAllowed &&
			r.Indicator != model.EditIndependent {
			return nil, fmt.Errorf("edit rules: unknown indicator %q", r.Indicator)
		}
		for _, c := range []string{r.CodeA, r.CodeB} {
			if _, ok := s.codes[c]; !ok {
				return nil, fmt.Errorf("edit rules: unknown code %s", c)
			}
		}
		s.edits[[2]string{r.CodeA, r.CodeB}] = r
	}

	for name, terms := range t.AnatomicGroups {
		g := model.AnatomicGroup(name)
		if g != model.GroupTrunk && g != model.GroupFace {
			return nil, fmt.Errorf("anatomic groups: unknown group %q", name)
		}
		s.groupTerms[g] = terms
	}
	for fam, terms := range t.FlapFamilies {
		if _, ok := s.bands[fam]; !ok {
			return nil, fmt.Errorf("anatomic groups: flap family %q has no band table", fam)
		}
		s.flapTerms[fam] = terms
	}

	s.chronic = t.ChronicConditions

	for _, m := range t.Modifiers {
		s.modifiers[m.Modifier] = m
		s.modOrder = append(s.modOrder, m.Modifier)
	}

	return s, nil
}

// Tables dumps the store back into a raw bundle in deterministic order.
// Used to seed the database-backed store from the embedded tables.
func (s *Store) Tables() Tables {
	t := Tables{
		AnatomicGroups:    map[string][]string{},
		FlapFamilies:      map[string][]string{},
		ChronicConditions: append([]string(nil), s.chronic...),
	}
	for _, c := range s.codeOrder {
		t.Codes = append(t.Codes, s.codes[c])
	}
	for _, fam := range sortedKeys(s.bands) {
		t.BandTables = append(t.BandTables, s.bands[fam])
	}
	for _, fam := range sortedKeys(s.tiers) {
		t.TierPolicies = append(t.TierPolicies, s.tiers[fam])
	}
	var pairs [][2]string
	for k := range s.edits {
		pairs = append(pairs, k)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})
	for _, k := range pairs {
		t.EditRules = append(t.EditRules, s.edits[k])
	}
	for g, terms := range s.groupTerms {
		t.AnatomicGroups[string(g)] = append([]string(nil), terms...)
	}
	for fam, terms := range s.flapTerms {
		t.FlapFamilies[fam] = append([]string(nil), terms...)
	}
	for _, m := range s.modOrder {
		t.Modifiers = append(t.Modifiers, s.modifiers[m])
	}
	return t
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func readDoc(path string, out any) error {
	data, err := dataFS.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func validateBandTable(bt BandTable, codes map[string]model.CodeRecord) error {
	if len(bt.Bands) == 0 {
		return fmt.Errorf("band tables: family %s has no bands", bt.Family)
	}
	prev := -1.0
	for i, b := range bt.Bands {
		if _, ok := codes[b.Code]; !ok {
			return fmt.Errorf("band tables: family %s references unknown code %s", bt.Family, b.Code)
		}
		if b.UpperBound == nil {
			if i != len(bt.Bands)-1 {
				return fmt.Errorf("band tables: family %s has open band before the top", bt.Family)
			}
			continue
		}
		if *b.UpperBound <= prev {
			return fmt.Errorf("band tables: family %s bands are not strictly increasing", bt.Family)
		}
		prev = *b.UpperBound
	}
	if bt.AddOnCode != "" {
		if _, ok := codes[bt.AddOnCode]; !ok {
			return fmt.Errorf("band tables: family %s add-on references unknown code %s", bt.Family, bt.AddOnCode)
		}
		if bt.AddOnIncrement <= 0 {
			return fmt.Errorf("band tables: family %s add-on has no increment", bt.Family)
		}
		if _, closed := bt.TopBound(); !closed {
			return fmt.Errorf("band tables: family %s mixes an open top band with an add-on step", bt.Family)
		}
	}
	return nil
}

// backfillBounds writes the band ranges onto the code records so lookup
// callers see size bounds without consulting band tables.
func backfillBounds(s *Store) {
	for _, bt := range s.bands {
		lower := 0.0
		for _, b := range bt.Bands {
			rec := s.codes[b.Code]
			l := lower
			rec.LowerBound = &l
			if b.UpperBound != nil {
				u := *b.UpperBound
				rec.UpperBound = &u
				lower = u
			}
			s.codes[b.Code] = rec
		}
	}
}

// expandEditEntry turns a code- or category-level rule entry into concrete
// code pairs.
func expandEditEntry(e editRuleEntry, codes map[string]model.CodeRecord, order []string) ([]model.EditRule, error) {
	if e.Indicator != model.EditNeverUnbundle &&
		e.Indicator != model.EditModifierAllowed &&
		e.Indicator != model.EditIndependent {
		return nil, fmt.Errorf("edit_rules.yaml: unknown indicator %q", e.Indicator)
	}
	listFor := func(code, category string) ([]string, error) {
		if code != "" {
			if _, ok := codes[code]; !ok {
				return nil, fmt.Errorf("edit_rules.yaml: unknown code %s", code)
			}
			return []string{code}, nil
		}
		cat, ok := model.CategoryByName(category)
		if !ok {
			return nil, fmt.Errorf("edit_rules.yaml: unknown category %q", category)
		}
		var out []string
		for _, c := range order {
			if codes[c].Category == cat {
				out = append(out, c)
			}
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("edit_rules.yaml: category %q matches no codes", category)
		}
		return out, nil
	}
	as, err := listFor(e.CodeA, e.CategoryA)
	if err != nil {
		return nil, err
	}
	bs, err := listFor(e.CodeB, e.CategoryB)
	if err != nil {
		return nil, err
	}
	var rules []model.EditRule
	for _, a := range as {
		for _, b := range bs {
			rules = append(rules, model.EditRule{CodeA: a, CodeB: b, Indicator: e.Indicator, Modifier: e.Modifier})
		}
	}
	return rules, nil
}

// Code returns the record for a code identifier.
func (s *Store) Code(code string) (model.CodeRecord, bool) {
	rec, ok := s.codes[code]
	return rec, ok
}

// WRVU returns the relative-value weight for a code, or 0 when unknown.
func (s *Store) WRVU(code string) float64 {
	return s.codes[code].WRVU
}

// Codes returns all code records in canonical table order.
func (s *Store) Codes() []model.CodeRecord {
	out := make([]model.CodeRecord, 0, len(s.codeOrder))
	for _, c := range s.codeOrder {
		out = append(out, s.codes[c])
	}
	return out
}

// BandTable returns the band table for a family key.
func (s *Store) BandTable(family string) (BandTable, bool) {
	bt, ok := s.bands[family]
	return bt, ok
}

// TierPolicy returns the tier policy for a family key.
func (s *Store) TierPolicy(family string) (TierPolicy, bool) {
	tp, ok := s.tiers[family]
	return tp, ok
}

// EditRule returns the pairwise edit between two codes in either order.
// The returned rule's CodeA is always the comprehensive code.
func (s *Store) EditRule(a, b string) (model.EditRule, bool) {
	if r, ok := s.edits[[2]string{a, b}]; ok {
		return r, true
	}
	r, ok := s.edits[[2]string{b, a}]
	return r, ok
}

// AnatomicGroup resolves a site string to a repair-aggregation group by
// whole-word term matching. ok=false means the site is unmapped.
func (s *Store) AnatomicGroup(site string) (model.AnatomicGroup, bool) {
	// Face terms first: "nasolabial cheek" must not fall through to trunk.
	for _, g := range []model.AnatomicGroup{model.GroupFace, model.GroupTrunk} {
		for _, term := range s.groupTerms[g] {
			if containsWord(site, term) {
				return g, true
			}
		}
	}
	return "", false
}

// FlapFamily resolves a site string to a flap band-table family,
// defaulting to the trunk/scalp/extremities family.
func (s *Store) FlapFamily(site string) string {
	for _, fam := range []string{FamilyFlapNoseEarEyelidLip, FamilyFlapForeheadCheekChinNeck} {
		for _, term := range s.flapTerms[fam] {
			if containsWord(site, term) {
				return fam
			}
		}
	}
	return FamilyFlapTrunkScalpExtremities
}

// ChronicConditions returns the G2211 qualifying keyword list.
func (s *Store) ChronicConditions() []string {
	return s.chronic
}

// Modifier returns guidance for a modifier code (leading dash tolerated).
func (s *Store) Modifier(mod string) (model.ModifierGuidance, bool) {
	g, ok := s.modifiers[strings.TrimPrefix(mod, "-")]
	return g, ok
}

// Modifiers returns all modifier guidance entries in table order.
func (s *Store) Modifiers() []model.ModifierGuidance {
	out := make([]model.ModifierGuidance, 0, len(s.modOrder))
	for _, m := range s.modOrder {
		out = append(out, s.modifiers[m])
	}
	return out
}

// SearchParams filters Search results. Zero values mean "no filter".
type SearchParams struct {
	Category string
	Keyword  string
	MinWRVU  float64
	MaxWRVU  float64
}

// Search returns code records matching the params, sorted by code.
func (s *Store) Search(p SearchParams) []model.CodeRecord {
	kw := strings.ToLower(p.Keyword)
	var out []model.CodeRecord
	for _, c := range s.codeOrder {
		rec := s.codes[c]
		if p.Category != "" && string(rec.Category) != p.Category {
			continue
		}
		if kw != "" && !strings.Contains(strings.ToLower(rec.Description), kw) {
			continue
		}
		if p.MinWRVU > 0 && rec.WRVU < p.MinWRVU {
			continue
		}
		if p.MaxWRVU > 0 && rec.WRVU > p.MaxWRVU {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// containsWord reports whether term occurs in text on word boundaries,
// case-insensitively.
func containsWord(text, term string) bool {
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
