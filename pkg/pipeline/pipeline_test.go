package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tariffshift/tariffshift/pkg/hourly"
	"github.com/tariffshift/tariffshift/pkg/revenue"
	"github.com/tariffshift/tariffshift/pkg/scenario"
	"github.com/tariffshift/tariffshift/pkg/storage/storagemock"
	"github.com/tariffshift/tariffshift/pkg/tariff"
	"github.com/tariffshift/tariffshift/pkg/types"
)

func testScenario() scenario.Scenario {
	return scenario.Scenario{
		Year:                2023,
		Timezone:            "UTC",
		Kind:                types.TariffKindTOU,
		TargetAnnualAvgRate: 0.10,
		FixedMonthlyCharge:  10,
		RevenuePolicy:       revenue.PolicyFrozenResidual,
		RevenueRequirement:  100000,
		Seasons: []types.SeasonSpec{{
			Name:        "year",
			Months:      []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
			WindowHours: 4,
			Elasticity:  -0.2,
		}},
	}
}

// testInputs builds a full 2023 year: costs peak 16:00-19:59, two buildings
// at a constant 1 kWh/h, one eligible.
func testInputs() Inputs {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)

	in := Inputs{
		Loads:       map[string][]hourly.Point{},
		Eligibility: map[string]bool{"b-elig": true, "b-base": false},
	}
	for t := start; t.Before(end); t = t.Add(time.Hour) {
		cost := 0.05
		if h := t.Hour(); h >= 16 && h < 20 {
			cost = 0.20
		}
		in.BulkCost = append(in.BulkCost, hourly.Point{TS: t, Value: cost})
		in.DistCost = append(in.DistCost, hourly.Point{TS: t, Value: 0.01})
		in.Loads["b-elig"] = append(in.Loads["b-elig"], hourly.Point{TS: t, Value: 1})
		in.Loads["b-base"] = append(in.Loads["b-base"], hourly.Point{TS: t, Value: 1})
	}
	return in
}

func openMock() *storagemock.MockDatabase {
	db := &storagemock.MockDatabase{}
	db.On("InsertRun", mock.Anything, mock.Anything).Return(nil)
	db.On("UpdateRun", mock.Anything, mock.Anything).Return(nil)
	db.On("UpsertTariffDocument", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	db.On("UpsertAssignments", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	db.On("UpsertElasticityRecords", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	return db
}

func TestRun(t *testing.T) {
	t.Run("end to end", func(t *testing.T) {
		db := openMock()
		res, err := New(testScenario(), db, 2).Run(context.Background(), testInputs())
		require.NoError(t, err)

		assert.Len(t, res.Times, hourly.HoursPerYear)
		assert.Empty(t, res.ConservationViolations)

		// peak window lands on the expensive block
		require.Contains(t, res.Tariff.Schedule.Windows, "year")
		assert.Equal(t, []int{16, 17, 18, 19}, res.Tariff.Schedule.Windows["year"].Hours)
		assert.Greater(t, res.Tariff.Schedule.Ratios["year"], 1.0)

		// eligible building moves to the derived tariff, the other stays
		require.Len(t, res.Assignments, 2)
		byID := map[string]string{}
		for _, a := range res.Assignments {
			byID[a.BuildingID] = a.TariffKey
		}
		assert.Equal(t, tariff.DerivedTariffKey, byID["b-elig"])
		assert.Equal(t, tariff.BaselineTariffKey, byID["b-base"])

		// shifting saved marginal cost, frozen residual passes it through
		assert.Equal(t, revenue.PolicyFrozenResidual, res.Reconciliation.Policy)
		assert.Less(t, res.Reconciliation.MCShifted, res.Reconciliation.MCOriginal)
		assert.Less(t, res.Reconciliation.NewRequirement, 100000.0)

		// the ineligible building is untouched
		require.Len(t, res.Buildings, 2)
		for _, b := range res.Buildings {
			if b.BuildingID != "b-base" {
				continue
			}
			for _, v := range b.KWH {
				require.Equal(t, 1.0, v)
			}
		}

		db.AssertCalled(t, "InsertRun", mock.Anything, mock.MatchedBy(func(r types.RunRecord) bool {
			return r.Status == types.RunStatusRunning && r.ID == res.RunID
		}))
		db.AssertCalled(t, "UpdateRun", mock.Anything, mock.MatchedBy(func(r types.RunRecord) bool {
			return r.Status == types.RunStatusComplete && r.ID == res.RunID
		}))
		db.AssertCalled(t, "UpsertTariffDocument", mock.Anything, res.RunID, mock.Anything)
	})

	t.Run("re-derivation is idempotent", func(t *testing.T) {
		first, err := New(testScenario(), openMock(), 2).Run(context.Background(), testInputs())
		require.NoError(t, err)
		second, err := New(testScenario(), openMock(), 5).Run(context.Background(), testInputs())
		require.NoError(t, err)

		assert.Equal(t, first.RunID, second.RunID)

		b1, err := tariff.MarshalDocument(first.Tariff)
		require.NoError(t, err)
		b2, err := tariff.MarshalDocument(second.Tariff)
		require.NoError(t, err)
		assert.Equal(t, b1, b2)
	})

	t.Run("different inputs change the run id", func(t *testing.T) {
		first, err := New(testScenario(), openMock(), 2).Run(context.Background(), testInputs())
		require.NoError(t, err)

		in := testInputs()
		in.BulkCost[0].Value += 0.001
		second, err := New(testScenario(), openMock(), 2).Run(context.Background(), in)
		require.NoError(t, err)
		assert.NotEqual(t, first.RunID, second.RunID)
	})

	t.Run("partial year is rejected", func(t *testing.T) {
		in := testInputs()
		in.BulkCost = in.BulkCost[:100]
		_, err := New(testScenario(), openMock(), 2).Run(context.Background(), in)
		var alignErr *types.InputAlignmentError
		require.ErrorAs(t, err, &alignErr)
	})

	t.Run("misaligned building is rejected", func(t *testing.T) {
		in := testInputs()
		in.Loads["b-elig"] = in.Loads["b-elig"][:5000]
		_, err := New(testScenario(), openMock(), 2).Run(context.Background(), in)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "b-elig")
	})

	t.Run("insert failure aborts before shifting", func(t *testing.T) {
		db := &storagemock.MockDatabase{}
		db.On("InsertRun", mock.Anything, mock.Anything).Return(errors.New("unavailable"))
		_, err := New(testScenario(), db, 2).Run(context.Background(), testInputs())
		require.Error(t, err)
		db.AssertNotCalled(t, "UpsertTariffDocument", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("explicit system load drives the window", func(t *testing.T) {
		in := testInputs()
		// constant system load keeps the demand weighting neutral
		start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(1, 0, 0)
		for ts := start; ts.Before(end); ts = ts.Add(time.Hour) {
			in.SystemLoad = append(in.SystemLoad, hourly.Point{TS: ts, Value: 100})
		}
		res, err := New(testScenario(), openMock(), 2).Run(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, []int{16, 17, 18, 19}, res.Tariff.Schedule.Windows["year"].Hours)
	})

	t.Run("flat kind produces a single period", func(t *testing.T) {
		sc := testScenario()
		sc.Kind = types.TariffKindFlat
		res, err := New(sc, openMock(), 2).Run(context.Background(), testInputs())
		require.NoError(t, err)
		require.Len(t, res.Tariff.Schedule.Periods, 1)
		// nothing to shift against a flat price
		assert.Empty(t, res.ShiftResults)
		assert.InDelta(t, res.Reconciliation.MCOriginal, res.Reconciliation.MCShifted, 1e-9)
	})

	t.Run("unsupported kind surfaces the sentinel", func(t *testing.T) {
		sc := testScenario()
		sc.Kind = types.TariffKindTiered
		_, err := New(sc, openMock(), 2).Run(context.Background(), testInputs())
		require.ErrorIs(t, err, types.ErrUnsupportedKind)
	})
}
