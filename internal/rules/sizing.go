package rules

import (
	"fmt"
	"math"

	"github.com/gyeh/dermbill/internal/refdata"
)

// RoundTenth rounds to one decimal place, half up. Applied to every
// computed diameter or summed length before band lookup so boundary values
// resolve the same way everywhere.
func RoundTenth(v float64) float64 {
	return math.Floor(v*10+0.5) / 10
}

// ExcisedDiameterCM computes the excised specimen diameter in cm from a
// lesion diameter and the narrowest margin, both in mm:
// excised = lesion + 2 × margin.
func ExcisedDiameterCM(lesionMM, marginMM float64) (float64, error) {
	if lesionMM <= 0 {
		return 0, fmt.Errorf("%w: lesion diameter %.2f mm must be positive", ErrInvalidMeasurement, lesionMM)
	}
	if marginMM < 0 {
		return 0, fmt.Errorf("%w: margin %.2f mm must not be negative", ErrInvalidMeasurement, marginMM)
	}
	return RoundTenth((lesionMM + 2*marginMM) / 10), nil
}

// FlapTotalArea computes the billable flap area in sq cm as the sum of the
// primary and secondary defect areas.
func FlapTotalArea(primarySqCM, secondarySqCM float64) (float64, error) {
	if primarySqCM < 0 || secondarySqCM < 0 {
		return 0, fmt.Errorf("%w: defect areas must not be negative", ErrInvalidMeasurement)
	}
	if primarySqCM == 0 && secondarySqCM == 0 {
		return 0, fmt.Errorf("%w: at least one defect area must be positive", ErrInvalidMeasurement)
	}
	return primarySqCM + secondarySqCM, nil
}

// sizeEpsilon absorbs float noise at band boundaries; measurements are
// rounded to a tenth before lookup, so anything finer is representation
// error.
const sizeEpsilon = 1e-9

// SizeToBand resolves a measurement against a band table and returns the
// covering band's code. ErrNoBandFound is returned only when the
// measurement exceeds a closed top band and the family defines no add-on
// step.
func SizeToBand(value float64, bt refdata.BandTable) (string, error) {
	for _, b := range bt.Bands {
		if b.UpperBound == nil || value <= *b.UpperBound+sizeEpsilon {
			return b.Code, nil
		}
	}
	if bt.AddOnCode != "" {
		// Open-ended family: the top tier plus add-on units covers any
		// length; the caller computes units via BandOverflowUnits.
		return bt.Bands[len(bt.Bands)-1].Code, nil
	}
	return "", fmt.Errorf("%w: %.1f %s exceeds top band of family %s", ErrNoBandFound, value, bt.Unit, bt.Family)
}

// BandOverflowUnits returns the add-on units needed to cover value beyond
// the family's closed top tier: ceil((value − top) / increment). Zero when
// the family has no add-on step or the value fits the base tiers.
func BandOverflowUnits(value float64, bt refdata.BandTable) int {
	if bt.AddOnCode == "" {
		return 0
	}
	top, ok := bt.TopBound()
	if !ok || value <= top+sizeEpsilon {
		return 0
	}
	return int(math.Ceil((value - top - sizeEpsilon) / bt.AddOnIncrement))
}
