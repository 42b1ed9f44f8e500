package shift

import (
	"fmt"
	"math"
	"time"

	"github.com/tariffshift/tariffshift/pkg/types"
)

// SeasonRates describes the rate bands of one season as seen by the shifter.
// FlatRate is the off-peak rate, used as the reference flat price.
type SeasonRates struct {
	Season          string
	PeakPeriodID    string
	OffPeakPeriodID string
	FlatRate        float64
	PeakRate        float64
	Elasticity      float64
}

// RatesFromSchedule extracts the per-season rates from a built schedule.
func RatesFromSchedule(s *types.TariffSchedule) []SeasonRates {
	out := make([]SeasonRates, 0, len(s.Seasons))
	for _, spec := range s.Seasons {
		r := SeasonRates{
			Season:     spec.Name,
			Elasticity: spec.Elasticity,
		}
		for _, p := range s.Periods {
			if p.Season != spec.Name {
				continue
			}
			switch p.Role {
			case types.PeriodRoleReceiver:
				r.OffPeakPeriodID = p.ID
				r.FlatRate = p.DollarsPerKWH
			case types.PeriodRolePeak:
				r.PeakPeriodID = p.ID
				r.PeakRate = p.DollarsPerKWH
			}
		}
		out = append(out, r)
	}
	return out
}

// ValidateRates rejects non-positive reference rates. This runs before any
// building is processed so a malformed tariff never produces
// partially-shifted output.
func ValidateRates(rates []SeasonRates) error {
	for _, r := range rates {
		if r.FlatRate <= 0 {
			return &types.InvalidTariffError{Season: r.Season, Rate: r.FlatRate}
		}
	}
	return nil
}

// Building is one building's full-year hourly consumption, aligned to the
// shared hourly timeline.
type Building struct {
	ID       string
	Eligible bool
	KWH      []float64
}

// BuildingResult is the outcome of shifting one building.
type BuildingResult struct {
	BuildingID string
	Eligible   bool
	// KWH is the redistributed consumption. For ineligible buildings it is
	// the original slice, untouched.
	KWH        []float64
	Results    []types.ShiftResult
	Elasticity []types.ElasticityRecord
	// ConservationErr holds the post-hoc integrity check result, attached
	// rather than thrown so a production batch can flag individual
	// buildings without aborting.
	ConservationErr error
}

type seasonHours struct {
	rates   SeasonRates
	peakIdx []int
	offIdx  []int
}

// Shifter applies the constant-elasticity, zero-sum load shift. It is built
// once per scenario from the shared timeline and period assignment, then
// applied to every building; it holds no mutable state, so a single Shifter
// is safe to use from concurrent goroutines.
type Shifter struct {
	hours   int
	seasons []seasonHours
}

// NewShifter indexes the period assignment by season. periodIDs must be the
// assigner output for the same timestamps.
func NewShifter(times []time.Time, periodIDs []string, rates []SeasonRates) (*Shifter, error) {
	if len(times) != len(periodIDs) {
		return nil, fmt.Errorf("timeline has %d hours but assignment has %d", len(times), len(periodIDs))
	}
	if err := ValidateRates(rates); err != nil {
		return nil, err
	}

	s := &Shifter{hours: len(times)}
	for _, r := range rates {
		sh := seasonHours{rates: r}
		for i, id := range periodIDs {
			switch id {
			case r.PeakPeriodID:
				sh.peakIdx = append(sh.peakIdx, i)
			case r.OffPeakPeriodID:
				sh.offIdx = append(sh.offIdx, i)
			}
		}
		s.seasons = append(s.seasons, sh)
	}
	return s, nil
}

// ShiftBuilding computes the shifted hourly series for one building. Each
// season is processed independently; there is no cross-season transfer.
// Ineligible buildings pass through unchanged.
func (s *Shifter) ShiftBuilding(b Building) (BuildingResult, error) {
	if len(b.KWH) != s.hours {
		return BuildingResult{}, fmt.Errorf("building %s has %d hours, want %d", b.ID, len(b.KWH), s.hours)
	}

	res := BuildingResult{BuildingID: b.ID, Eligible: b.Eligible}
	if !b.Eligible {
		res.KWH = b.KWH
		return res, nil
	}

	shifted := make([]float64, s.hours)
	copy(shifted, b.KWH)

	for _, season := range s.seasons {
		if season.rates.PeakPeriodID == "" {
			// flat season, nothing to shift
			continue
		}

		var qPeak, qOff float64
		for _, i := range season.peakIdx {
			qPeak += b.KWH[i]
		}
		for _, i := range season.offIdx {
			qOff += b.KWH[i]
		}

		// Q* = Q * (P_peak/P_flat)^elasticity; the receiver absorbs the
		// exact negative so the season shift is zero-sum.
		qTarget := qPeak
		if qPeak > 0 && season.rates.Elasticity != 0 {
			qTarget = qPeak * math.Pow(season.rates.PeakRate/season.rates.FlatRate, season.rates.Elasticity)
		}
		deltaPeak := qTarget - qPeak
		deltaOff := -deltaPeak

		if qPeak > 0 {
			for _, i := range season.peakIdx {
				shifted[i] += deltaPeak * (b.KWH[i] / qPeak)
			}
		}
		if deltaOff != 0 {
			if qOff > 0 {
				for _, i := range season.offIdx {
					shifted[i] += deltaOff * (b.KWH[i] / qOff)
				}
			} else if len(season.offIdx) > 0 {
				// zero-consumption receiver: spread the delta evenly so the
				// season still conserves energy
				even := deltaOff / float64(len(season.offIdx))
				for _, i := range season.offIdx {
					shifted[i] += even
				}
			} else {
				return BuildingResult{}, fmt.Errorf(
					"building %s season %s has no receiver hours to absorb %f kWh",
					b.ID, season.rates.Season, deltaOff)
			}
		}

		res.Results = append(res.Results,
			types.ShiftResult{
				BuildingID:  b.ID,
				Season:      season.rates.Season,
				PeriodID:    season.rates.PeakPeriodID,
				OriginalKWH: qPeak,
				TargetKWH:   qTarget,
				DeltaKWH:    deltaPeak,
			},
			types.ShiftResult{
				BuildingID:  b.ID,
				Season:      season.rates.Season,
				PeriodID:    season.rates.OffPeakPeriodID,
				OriginalKWH: qOff,
				TargetKWH:   qOff + deltaOff,
				DeltaKWH:    deltaOff,
			},
		)

		res.Elasticity = append(res.Elasticity,
			types.ElasticityRecord{
				BuildingID:         b.ID,
				PeriodID:           season.rates.PeakPeriodID,
				RealizedElasticity: RealizedElasticity(qPeak, qTarget, season.rates.PeakRate, season.rates.FlatRate),
				OriginalTotalKWH:   qPeak,
				ShiftedTotalKWH:    qTarget,
			},
			types.ElasticityRecord{
				BuildingID:         b.ID,
				PeriodID:           season.rates.OffPeakPeriodID,
				RealizedElasticity: RealizedElasticity(qOff, qOff+deltaOff, season.rates.FlatRate, season.rates.FlatRate),
				OriginalTotalKWH:   qOff,
				ShiftedTotalKWH:    qOff + deltaOff,
			},
		)
	}

	res.KWH = shifted
	return res, nil
}
