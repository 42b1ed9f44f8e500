package tariff

import (
	"github.com/tariffshift/tariffshift/pkg/hourly"
	"github.com/tariffshift/tariffshift/pkg/types"
)

// ComputeRatio partitions every hourly observation into peak (hour-of-day in
// the window) and off-peak, computes the demand-weighted average cost on
// each side, and returns peak/off-peak. This uses the full set of hourly
// observations, not the 24-bucket profile.
func ComputeRatio(cost, load hourly.Series, window types.PeakWindow) (float64, error) {
	if err := cost.Aligned(load); err != nil {
		return 0, err
	}
	if len(window.Hours) >= 24 {
		return 0, &types.DegenerateWindowError{
			Season: window.Season,
			Reason: "window covers all 24 hours, off-peak partition is empty",
		}
	}

	var peakWeighted, peakWeight, offWeighted, offWeight float64
	for i, t := range cost.Times {
		if window.Contains(t.Hour()) {
			peakWeighted += cost.Values[i] * load.Values[i]
			peakWeight += load.Values[i]
		} else {
			offWeighted += cost.Values[i] * load.Values[i]
			offWeight += load.Values[i]
		}
	}

	if peakWeight == 0 {
		return 0, &types.DegenerateWindowError{
			Season: window.Season,
			Reason: "peak partition has zero total load",
		}
	}
	if offWeight == 0 {
		return 0, &types.DegenerateWindowError{
			Season: window.Season,
			Reason: "off-peak partition has zero total load",
		}
	}
	offAvg := offWeighted / offWeight
	if offAvg == 0 {
		return 0, &types.DegenerateWindowError{
			Season: window.Season,
			Reason: "off-peak demand-weighted average cost is zero",
		}
	}
	return (peakWeighted / peakWeight) / offAvg, nil
}
