package shift

import (
	"math"

	"github.com/tariffshift/tariffshift/pkg/types"
)

// DefaultConservationRelTol is the relative tolerance for the per-building
// annual conservation check.
const DefaultConservationRelTol = 1e-6

// RealizedElasticity computes ln(Q'/Q) / ln(P/Pflat). It returns NaN where
// the ratio is undefined: zero or negative quantities, or P == Pflat. NaN is
// a diagnostic value here, never an error.
func RealizedElasticity(qOriginal, qShifted, price, flatRate float64) float64 {
	if qOriginal <= 0 || qShifted <= 0 {
		return math.NaN()
	}
	if price == flatRate || price <= 0 || flatRate <= 0 {
		return math.NaN()
	}
	return math.Log(qShifted/qOriginal) / math.Log(price/flatRate)
}

// CheckConservation verifies that the shifted annual total matches the
// original within the relative tolerance. A zero-consumption building
// trivially conserves.
func CheckConservation(buildingID string, original, shifted []float64, relTol float64) error {
	var origTotal, shiftTotal float64
	for _, v := range original {
		origTotal += v
	}
	for _, v := range shifted {
		shiftTotal += v
	}

	diff := math.Abs(shiftTotal - origTotal)
	scale := math.Abs(origTotal)
	if scale == 0 {
		if diff == 0 {
			return nil
		}
		return &types.ConservationViolationError{
			BuildingID:  buildingID,
			OriginalKWH: origTotal,
			ShiftedKWH:  shiftTotal,
		}
	}
	if diff/scale > relTol {
		return &types.ConservationViolationError{
			BuildingID:  buildingID,
			OriginalKWH: origTotal,
			ShiftedKWH:  shiftTotal,
		}
	}
	return nil
}
