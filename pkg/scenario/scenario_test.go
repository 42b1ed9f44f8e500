package scenario

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tariffshift/tariffshift/pkg/revenue"
	"github.com/tariffshift/tariffshift/pkg/types"
)

func validScenario() Scenario {
	return Scenario{
		Year:                2023,
		Timezone:            "UTC",
		Kind:                types.TariffKindTOU,
		TargetAnnualAvgRate: 0.12,
		FixedMonthlyCharge:  10,
		RevenuePolicy:       revenue.PolicyFrozenResidual,
		Seasons: []types.SeasonSpec{
			{Name: "summer", Months: []int{6, 7, 8, 9}, WindowHours: 4, Elasticity: -0.25},
			{Name: "winter", Months: []int{1, 2, 3, 4, 5, 10, 11, 12}, WindowHours: 4, Elasticity: -0.15},
		},
	}
}

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("parses and defaults the kind", func(t *testing.T) {
		path := writeScenario(t, `
year: 2023
timezone: America/Chicago
target_annual_avg_rate: 0.12
fixed_monthly_charge: 10
revenue_policy: frozen_residual
seasons:
  - name: summer
    months: [6, 7, 8, 9]
    window_hours: 4
    elasticity: -0.25
  - name: winter
    months: [1, 2, 3, 4, 5, 10, 11, 12]
    window_hours: 3
    elasticity: -0.15
    base_rate: 0.08
`)
		s, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, types.TariffKindTOU, s.Kind)
		assert.Equal(t, 2023, s.Year)
		require.Len(t, s.Seasons, 2)
		assert.Equal(t, 0.08, s.Seasons[1].BaseRate)
		assert.Equal(t, 3, s.Seasons[1].WindowHours)

		loc, err := s.Location()
		require.NoError(t, err)
		assert.Equal(t, "America/Chicago", loc.String())
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Load(writeScenario(t, "seasons: [\n"))
		require.Error(t, err)
	})

	t.Run("invalid scenario is rejected at load", func(t *testing.T) {
		_, err := Load(writeScenario(t, `
year: 2023
timezone: UTC
target_annual_avg_rate: -1
revenue_policy: frozen_residual
seasons:
  - name: all
    months: [1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12]
    window_hours: 4
`))
		require.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		require.NoError(t, validScenario().Validate())
	})

	t.Run("rejects bad fields", func(t *testing.T) {
		cases := map[string]func(*Scenario){
			"year":          func(s *Scenario) { s.Year = 100 },
			"timezone":      func(s *Scenario) { s.Timezone = "Not/AZone" },
			"no timezone":   func(s *Scenario) { s.Timezone = "" },
			"target":        func(s *Scenario) { s.TargetAnnualAvgRate = 0 },
			"fixed charge":  func(s *Scenario) { s.FixedMonthlyCharge = -1 },
			"policy":        func(s *Scenario) { s.RevenuePolicy = "maximize" },
			"no seasons":    func(s *Scenario) { s.Seasons = nil },
			"unnamed":       func(s *Scenario) { s.Seasons[0].Name = "" },
			"elasticity":    func(s *Scenario) { s.Seasons[0].Elasticity = 0.1 },
			"base rate":     func(s *Scenario) { s.Seasons[0].BaseRate = -0.01 },
			"no months":     func(s *Scenario) { s.Seasons[0].Months = nil },
			"bad month":     func(s *Scenario) { s.Seasons[0].Months = []int{0, 7, 8, 9} },
			"overlap":       func(s *Scenario) { s.Seasons[0].Months = []int{1, 7, 8, 9} },
			"gap":           func(s *Scenario) { s.Seasons[1].Months = []int{1, 2, 3, 4, 5, 10, 11} },
			"window low":    func(s *Scenario) { s.Seasons[0].WindowHours = 0 },
			"window high":   func(s *Scenario) { s.Seasons[0].WindowHours = 25 },
		}
		for name, mutate := range cases {
			t.Run(name, func(t *testing.T) {
				s := validScenario()
				mutate(&s)
				require.Error(t, s.Validate())
			})
		}
	})

	t.Run("window hours only checked for tou", func(t *testing.T) {
		s := validScenario()
		s.Kind = types.TariffKindFlat
		s.Seasons[0].WindowHours = 0
		s.Seasons[1].WindowHours = 0
		require.NoError(t, s.Validate())
	})

	t.Run("window error type", func(t *testing.T) {
		s := validScenario()
		s.Seasons[0].WindowHours = 0
		err := s.Validate()
		var winErr *types.InvalidWindowError
		require.ErrorAs(t, err, &winErr)
	})
}

func TestSeasonFor(t *testing.T) {
	s := validScenario()
	spec, ok := s.SeasonFor(time.July)
	require.True(t, ok)
	assert.Equal(t, "summer", spec.Name)

	spec, ok = s.SeasonFor(time.January)
	require.True(t, ok)
	assert.Equal(t, "winter", spec.Name)
}

func TestHash(t *testing.T) {
	a := validScenario()
	b := validScenario()
	assert.Equal(t, a.Hash(), b.Hash())

	b.TargetAnnualAvgRate = 0.13
	assert.NotEqual(t, a.Hash(), b.Hash())
}
