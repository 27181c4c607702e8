package model

// Category classifies a billing code into the dermatology code families
// the engine reasons about.
type Category string

const (
	CategoryEM                      Category = "em"
	CategoryBiopsy                  Category = "biopsy"
	CategoryDestructionPremalignant Category = "destruction_premalignant"
	CategoryDestructionBenign       Category = "destruction_benign"
	CategoryExcisionBenign          Category = "excision_benign"
	CategoryExcisionMalignant       Category = "excision_malignant"
	CategoryRepairSimple            Category = "repair_simple"
	CategoryRepairIntermediate      Category = "repair_intermediate"
	CategoryRepairComplex           Category = "repair_complex"
	CategoryFlap                    Category = "flap"
	CategoryGraft                   Category = "graft"
	CategoryInjection               Category = "injection"
	CategoryMohsStage               Category = "mohs_stage"
	CategoryMohsBlockAddOn          Category = "mohs_block_addon"
	CategoryDebridement             Category = "debridement"
	CategoryNailProcedure           Category = "nail_procedure"
	CategoryVisitAddOn              Category = "visit_addon"
)

// AllCategories lists the known categories in canonical order.
var AllCategories = []Category{
	CategoryEM,
	CategoryBiopsy,
	CategoryDestructionPremalignant,
	CategoryDestructionBenign,
	CategoryExcisionBenign,
	CategoryExcisionMalignant,
	CategoryRepairSimple,
	CategoryRepairIntermediate,
	CategoryRepairComplex,
	CategoryFlap,
	CategoryGraft,
	CategoryInjection,
	CategoryMohsStage,
	CategoryMohsBlockAddOn,
	CategoryDebridement,
	CategoryNailProcedure,
	CategoryVisitAddOn,
}

// CategoryByName returns the Category for the given name, or ok=false.
func CategoryByName(name string) (Category, bool) {
	for _, c := range AllCategories {
		if string(c) == name {
			return c, true
		}
	}
	return "", false
}

// AnatomicGroup is the repair-aggregation grouping for a body site.
// Measurements may only be summed within one group.
type AnatomicGroup string

const (
	// UnknownAnatomicGroup marks a site the term tables could not map.
	UnknownAnatomicGroup AnatomicGroup = ""
	// GroupTrunk covers scalp, neck, axillae, trunk, and extremities.
	GroupTrunk AnatomicGroup = "scalp_neck_trunk_extremities"
	// GroupFace covers face, ears, eyelids, nose, lips, and mucous membrane.
	GroupFace AnatomicGroup = "face_ears_eyelids_nose_lips"
)

// Modifier is a billing modifier from the closed set the engine may attach.
type Modifier string

const (
	ModifierNone              Modifier = ""
	ModifierSeparateEM        Modifier = "25"
	ModifierDistinctService   Modifier = "59"
	ModifierSeparateEncounter Modifier = "XE"
	ModifierSeparateStructure Modifier = "XS"
	ModifierBilateral         Modifier = "50"
	ModifierLeft              Modifier = "LT"
	ModifierRight             Modifier = "RT"
	ModifierStaged            Modifier = "58"
	ModifierUnrelated         Modifier = "79"
)

// CodeRecord is one immutable reference entry for a CPT/HCPCS code.
// Records are loaded once at startup and never mutated.
type CodeRecord struct {
	Code        string   `yaml:"code" json:"code"`
	Category    Category `yaml:"category" json:"category"`
	Description string   `yaml:"description" json:"description"`
	WRVU        float64  `yaml:"wrvu" json:"wrvu"`
	IsAddOn     bool     `yaml:"addon" json:"is_addon"`
	// PrimaryCodes is populated only for add-on codes: the base codes this
	// add-on may be billed alongside.
	PrimaryCodes []string `yaml:"primary_codes" json:"primary_codes,omitempty"`
	// LowerBound/UpperBound describe the size or count range the code
	// covers, when the family is banded. nil means unbounded on that side.
	LowerBound *float64 `yaml:"lower_bound" json:"lower_bound,omitempty"`
	UpperBound *float64 `yaml:"upper_bound" json:"upper_bound,omitempty"`
	// AnatomicGroup is set for site-specific code families.
	AnatomicGroup AnatomicGroup `yaml:"anatomic_group" json:"anatomic_group,omitempty"`
	GlobalDays    int           `yaml:"global_days" json:"global_days"`
}

// EditIndicator is the pairwise bundling relationship between two codes.
type EditIndicator string

const (
	// EditNeverUnbundle removes the component code regardless of modifiers.
	EditNeverUnbundle EditIndicator = "never_unbundle"
	// EditModifierAllowed retains both codes only with a qualifying
	// distinct-site/lesion/encounter modifier on the component code.
	EditModifierAllowed EditIndicator = "may_unbundle_with_modifier"
	// EditIndependent means the pair carries no edit.
	EditIndependent EditIndicator = "independent"
)

// EditRule is one pairwise NCCI-style edit. CodeA is the comprehensive
// code, CodeB the component that bundles into it.
type EditRule struct {
	CodeA     string        `yaml:"code_a"`
	CodeB     string        `yaml:"code_b"`
	Indicator EditIndicator `yaml:"indicator"`
	// Modifier is the modifier that legitimizes the pair when the
	// indicator allows unbundling.
	Modifier Modifier `yaml:"modifier"`
}

// ModifierGuidance is reference prose for one modifier, served by the
// lookup surfaces. Not consulted by the resolver.
type ModifierGuidance struct {
	Modifier     string `yaml:"modifier" json:"modifier"`
	Name         string `yaml:"name" json:"name"`
	UseWhen      string `yaml:"use_when" json:"use_when"`
	Document     string `yaml:"document" json:"document"`
	AuditRisk    string `yaml:"audit_risk" json:"audit_risk"`
	DermExamples string `yaml:"derm_examples" json:"derm_examples,omitempty"`
}
