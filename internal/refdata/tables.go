package refdata

import (
	"fmt"

	"github.com/gyeh/dermbill/internal/model"
)

// Band is one size/length interval mapped to exactly one code. A nil
// UpperBound marks an open-ended top band.
type Band struct {
	UpperBound *float64 `yaml:"upper_bound"`
	Code       string   `yaml:"code"`
}

// BandTable is the ordered band list for one code family (site ×
// benign/malignant, or complexity × anatomic group). Open-ended families
// (complex repairs) define an add-on step instead of an unbounded band:
// each AddOnIncrement beyond the top band's upper bound bills one unit of
// AddOnCode.
type BandTable struct {
	Family         string  `yaml:"family"`
	Unit           string  `yaml:"unit"`
	Bands          []Band  `yaml:"bands"`
	AddOnCode      string  `yaml:"addon_code"`
	AddOnIncrement float64 `yaml:"addon_increment"`
}

// TopBound returns the largest closed upper bound in the table, or ok=false
// when the table ends in an open band.
func (t BandTable) TopBound() (float64, bool) {
	if len(t.Bands) == 0 {
		return 0, false
	}
	last := t.Bands[len(t.Bands)-1]
	if last.UpperBound == nil {
		return 0, false
	}
	return *last.UpperBound, true
}

// TierPolicy drives counting/tiering for one procedure family. Counts up
// to BaseCovers bill the base code alone; each AddOnGroupSize beyond that
// bills one add-on unit; at FlatThreshold the family switches to the
// flat-rate code alone.
type TierPolicy struct {
	Family         string `yaml:"family"`
	BaseCode       string `yaml:"base_code"`
	BaseCovers     int    `yaml:"base_covers"`
	AddOnCode      string `yaml:"addon_code"`
	AddOnGroupSize int    `yaml:"addon_group_size"`
	AddOnMaxUnits  int    `yaml:"addon_max_units"`
	FlatThreshold  int    `yaml:"flat_threshold"`
	FlatCode       string `yaml:"flat_code"`
}

// Band table family keys. Excision families are site × benign/malignant;
// repair families are complexity × anatomic group; flap families follow
// the three CPT site groupings.
const (
	FamilyExcisionBenignTrunk    = "excision_benign_trunk"
	FamilyExcisionBenignFace     = "excision_benign_face"
	FamilyExcisionMalignantTrunk = "excision_malignant_trunk"
	FamilyExcisionMalignantFace  = "excision_malignant_face"

	FamilyFlapNoseEarEyelidLip     = "flap_nose_ear_eyelid_lip"
	FamilyFlapForeheadCheekChinNeck = "flap_forehead_cheek_chin_neck"
	FamilyFlapTrunkScalpExtremities = "flap_trunk_scalp_extremities"
)

// Tier policy family keys.
const (
	TierDestructionPremalignant = "destruction_premalignant"
	TierDestructionBenign       = "destruction_benign"
	TierSkinTags                = "skin_tags"
	TierBiopsyShave             = "biopsy_shave"
	TierBiopsyPunch             = "biopsy_punch"
	TierBiopsyIncisional        = "biopsy_incisional"
	TierILInjection             = "il_injection"
	TierNailDebridement         = "nail_debridement"
	TierWoundDebridement        = "wound_debridement"
	TierMohsStage               = "mohs_stage"
)

// groupKeys maps anatomic groups to the short key used in repair family
// names.
var groupKeys = map[model.AnatomicGroup]string{
	model.GroupTrunk: "trunk",
	model.GroupFace:  "face",
}

// RepairFamily returns the band-table family key for a complexity ×
// anatomic group combination.
func RepairFamily(c model.RepairComplexity, g model.AnatomicGroup) string {
	return fmt.Sprintf("repair_%s_%s", c, groupKeys[g])
}

// ExcisionFamily returns the band-table family key for an excision.
func ExcisionFamily(malignant bool, g model.AnatomicGroup) string {
	kind := "benign"
	if malignant {
		kind = "malignant"
	}
	return fmt.Sprintf("excision_%s_%s", kind, groupKeys[g])
}
