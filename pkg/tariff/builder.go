package tariff

import (
	"fmt"

	"github.com/tariffshift/tariffshift/pkg/types"
)

// BalanceBaseRates solves for a base (off-peak) rate per season such that
// the weighted average across seasons equals the target annual average rate.
// Weights are each season's share of annual consumption and are normalized
// internally. Seasons with a configured base rate keep their relative
// structure; unconfigured seasons take the weighted mean of the configured
// ones (or the target, when nothing is configured).
func BalanceBaseRates(specs []types.SeasonSpec, target float64, weights map[string]float64) (map[string]float64, error) {
	if target <= 0 {
		return nil, fmt.Errorf("target annual average rate must be positive, got %f", target)
	}

	var totalWeight float64
	for _, spec := range specs {
		w, ok := weights[spec.Name]
		if !ok {
			return nil, fmt.Errorf("missing consumption weight for season %s", spec.Name)
		}
		if w < 0 {
			return nil, fmt.Errorf("negative consumption weight %f for season %s", w, spec.Name)
		}
		totalWeight += w
	}
	if totalWeight == 0 {
		return nil, fmt.Errorf("season consumption weights sum to zero")
	}

	// Weighted mean of the configured rates, used as the relative anchor for
	// seasons without a configured rate.
	var configuredWeighted, configuredWeight float64
	for _, spec := range specs {
		if spec.BaseRate > 0 {
			w := weights[spec.Name] / totalWeight
			configuredWeighted += spec.BaseRate * w
			configuredWeight += w
		}
	}

	// relative factor per season
	factors := make(map[string]float64, len(specs))
	var weightedFactor float64
	for _, spec := range specs {
		f := 1.0
		if spec.BaseRate > 0 {
			if configuredWeight > 0 {
				f = spec.BaseRate * configuredWeight / configuredWeighted
			}
		}
		factors[spec.Name] = f
		weightedFactor += f * weights[spec.Name] / totalWeight
	}

	scale := target / weightedFactor
	rates := make(map[string]float64, len(specs))
	for _, spec := range specs {
		rates[spec.Name] = scale * factors[spec.Name]
	}
	return rates, nil
}

// SeasonInput bundles everything needed to build one season's rate bands.
type SeasonInput struct {
	// Spec carries the season months and options. BaseRate must hold the
	// balanced off-peak rate.
	Spec   types.SeasonSpec
	Window types.PeakWindow
	Ratio  float64
}

// PeriodID returns the canonical period ID for a season and role.
func PeriodID(season string, role types.PeriodRole) string {
	if role == types.PeriodRolePeak {
		return season + "-peak"
	}
	return season + "-offpeak"
}

// BuildSchedule constructs the complete tariff schedule for the given kind.
//
// For TariffKindTOU each season gets two periods: off-peak at the base rate
// and peak at base rate times the cost-causation ratio; every hour of every
// month in the season maps to peak when its hour-of-day is inside the
// season's window (weekdays only if WeekdayPeakOnly), otherwise off-peak.
// For TariffKindFlat each season gets a single period at the base rate.
// A single season spanning all twelve months degenerates to an annual
// tariff. Tiered and combined kinds have no vectorized implementation and
// return ErrUnsupportedKind.
//
// The returned schedule satisfies the total-mapping invariant: every
// (month, hour, day-type) cell resolves to exactly one period.
func BuildSchedule(kind types.TariffKind, seasons []SeasonInput, fixedMonthlyCharge float64) (*types.TariffSchedule, error) {
	switch kind {
	case types.TariffKindTOU, types.TariffKindFlat:
	case types.TariffKindTiered, types.TariffKindCombined:
		return nil, fmt.Errorf("%w: %s", types.ErrUnsupportedKind, kind)
	default:
		return nil, fmt.Errorf("%w: %s", types.ErrUnsupportedKind, kind)
	}
	if len(seasons) == 0 {
		return nil, fmt.Errorf("at least one season is required")
	}

	if err := validateSeasonMonths(seasons); err != nil {
		return nil, err
	}

	s := &types.TariffSchedule{
		Kind:               kind,
		Periods:            make(map[string]types.Period),
		FixedMonthlyCharge: fixedMonthlyCharge,
		Windows:            make(map[string]types.PeakWindow),
		Ratios:             make(map[string]float64),
	}

	for _, in := range seasons {
		spec := in.Spec
		if spec.BaseRate <= 0 {
			return nil, &types.InvalidTariffError{Season: spec.Name, Rate: spec.BaseRate}
		}

		offID := PeriodID(spec.Name, types.PeriodRoleReceiver)
		s.Periods[offID] = types.Period{
			ID:            offID,
			Season:        spec.Name,
			Role:          types.PeriodRoleReceiver,
			DollarsPerKWH: spec.BaseRate,
		}

		peakID := ""
		if kind == types.TariffKindTOU {
			if err := validateWindow(in.Window, spec.WindowHours); err != nil {
				return nil, err
			}
			if in.Ratio <= 0 {
				return nil, fmt.Errorf("non-positive cost-causation ratio %f for season %s", in.Ratio, spec.Name)
			}
			peakID = PeriodID(spec.Name, types.PeriodRolePeak)
			s.Periods[peakID] = types.Period{
				ID:            peakID,
				Season:        spec.Name,
				Role:          types.PeriodRolePeak,
				DollarsPerKWH: spec.BaseRate * in.Ratio,
			}
			s.Windows[spec.Name] = in.Window
			s.Ratios[spec.Name] = in.Ratio
		}

		for _, m := range spec.Months {
			for h := 0; h < 24; h++ {
				id := offID
				if peakID != "" && in.Window.Contains(h) {
					id = peakID
				}
				s.Weekday[m-1][h] = id
				if peakID != "" && spec.WeekdayPeakOnly {
					s.Weekend[m-1][h] = offID
				} else {
					s.Weekend[m-1][h] = id
				}
			}
		}

		s.Seasons = append(s.Seasons, spec)
	}

	if err := checkTotalMapping(s); err != nil {
		return nil, err
	}
	return s, nil
}

// validateSeasonMonths checks that the seasons partition the calendar:
// every month 1-12 is claimed by exactly one season.
func validateSeasonMonths(seasons []SeasonInput) error {
	claimed := make(map[int]string, 12)
	for _, in := range seasons {
		if len(in.Spec.Months) == 0 {
			return fmt.Errorf("season %s has no months", in.Spec.Name)
		}
		for _, m := range in.Spec.Months {
			if m < 1 || m > 12 {
				return fmt.Errorf("season %s has invalid month %d", in.Spec.Name, m)
			}
			if prev, ok := claimed[m]; ok {
				return fmt.Errorf("month %d claimed by both %s and %s", m, prev, in.Spec.Name)
			}
			claimed[m] = in.Spec.Name
		}
	}
	for m := 1; m <= 12; m++ {
		if _, ok := claimed[m]; !ok {
			return fmt.Errorf("month %d is not covered by any season", m)
		}
	}
	return nil
}

// validateWindow checks the window length matches the configured hours and
// that the hours are contiguous modulo 24.
func validateWindow(w types.PeakWindow, wantHours int) error {
	if len(w.Hours) != wantHours {
		return fmt.Errorf("season %s window has %d hours, want %d", w.Season, len(w.Hours), wantHours)
	}
	for i := 1; i < len(w.Hours); i++ {
		if w.Hours[i] != (w.Hours[i-1]+1)%24 {
			return fmt.Errorf("season %s window hours are not contiguous: %v", w.Season, w.Hours)
		}
	}
	return nil
}

func checkTotalMapping(s *types.TariffSchedule) error {
	for m := 0; m < 12; m++ {
		for h := 0; h < 24; h++ {
			for _, cell := range []string{s.Weekday[m][h], s.Weekend[m][h]} {
				if cell == "" {
					return fmt.Errorf("schedule cell month=%d hour=%d is unmapped", m+1, h)
				}
				if _, ok := s.Periods[cell]; !ok {
					return fmt.Errorf("schedule cell month=%d hour=%d references unknown period %s", m+1, h, cell)
				}
			}
		}
	}
	return nil
}
