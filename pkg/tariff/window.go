package tariff

import (
	"github.com/tariffshift/tariffshift/pkg/hourly"
	"github.com/tariffshift/tariffshift/pkg/types"
)

// Profile holds the demand-weighted average cost for each hour of day,
// aggregated over every hour in the input series.
type Profile [24]float64

// BuildProfile groups the hourly observations into 24 hour-of-day buckets
// and computes the demand-weighted average cost per bucket. Buckets with
// zero total load have a zero profile value.
func BuildProfile(cost, load hourly.Series) (Profile, error) {
	var p Profile
	if err := cost.Aligned(load); err != nil {
		return p, err
	}

	var weighted, weight [24]float64
	for i, t := range cost.Times {
		h := t.Hour()
		weighted[h] += cost.Values[i] * load.Values[i]
		weight[h] += load.Values[i]
	}
	for h := 0; h < 24; h++ {
		if weight[h] > 0 {
			p[h] = weighted[h] / weight[h]
		}
	}
	return p, nil
}

// FindPeakWindow locates the contiguous hour-of-day window of the given
// length with the maximum mean demand-weighted cost. All 24 circular
// rotations are considered; ties are broken by the earliest starting hour.
func FindPeakWindow(season string, cost, load hourly.Series, windowHours int) (types.PeakWindow, error) {
	if windowHours < 1 || windowHours > 24 {
		return types.PeakWindow{}, &types.InvalidWindowError{WindowHours: windowHours}
	}

	profile, err := BuildProfile(cost, load)
	if err != nil {
		return types.PeakWindow{}, err
	}

	bestStart := 0
	bestSum := windowSum(profile, 0, windowHours)
	for start := 1; start < 24; start++ {
		// strict > keeps the earliest start on ties
		if sum := windowSum(profile, start, windowHours); sum > bestSum {
			bestSum = sum
			bestStart = start
		}
	}

	w := types.PeakWindow{Season: season, Hours: make([]int, windowHours)}
	for i := 0; i < windowHours; i++ {
		w.Hours[i] = (bestStart + i) % 24
	}
	return w, nil
}

func windowSum(p Profile, start, length int) float64 {
	var sum float64
	for i := 0; i < length; i++ {
		sum += p[(start+i)%24]
	}
	return sum
}
