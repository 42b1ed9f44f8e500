package tariff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tariffshift/tariffshift/pkg/types"
)

func TestComputeRatio(t *testing.T) {
	window := types.PeakWindow{Season: "s", Hours: []int{17, 18, 19, 20}}

	t.Run("uniform load", func(t *testing.T) {
		cost, load := weekSeries(t,
			func(h int) float64 {
				if window.Contains(h) {
					return 0.20
				}
				return 0.10
			},
			flatLoad,
		)
		r, err := ComputeRatio(cost, load, window)
		require.NoError(t, err)
		assert.InDelta(t, 2.0, r, 1e-12)
	})

	t.Run("flat cost gives ratio one", func(t *testing.T) {
		cost, load := weekSeries(t, func(int) float64 { return 0.08 }, flatLoad)
		r, err := ComputeRatio(cost, load, window)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, r, 1e-12)
	})

	t.Run("demand weighting", func(t *testing.T) {
		// peak hours carry double load; off-peak averages are unaffected by
		// weighting because the off-peak cost is constant
		cost, load := weekSeries(t,
			func(h int) float64 {
				if h == 17 {
					return 0.30
				}
				if window.Contains(h) {
					return 0.10
				}
				return 0.10
			},
			func(h int) float64 {
				if h == 17 {
					return 3
				}
				return 1
			},
		)
		r, err := ComputeRatio(cost, load, window)
		require.NoError(t, err)
		// peak avg = (0.30*3 + 0.10*3) / 6 = 0.20, off avg = 0.10
		assert.InDelta(t, 2.0, r, 1e-12)
	})

	t.Run("full-day window is degenerate", func(t *testing.T) {
		cost, load := weekSeries(t, func(int) float64 { return 1 }, flatLoad)
		all := types.PeakWindow{Season: "s", Hours: make([]int, 24)}
		for h := 0; h < 24; h++ {
			all.Hours[h] = h
		}
		_, err := ComputeRatio(cost, load, all)
		var degErr *types.DegenerateWindowError
		require.ErrorAs(t, err, &degErr)
	})

	t.Run("zero peak load is degenerate", func(t *testing.T) {
		cost, load := weekSeries(t,
			func(int) float64 { return 1 },
			func(h int) float64 {
				if window.Contains(h) {
					return 0
				}
				return 1
			},
		)
		_, err := ComputeRatio(cost, load, window)
		var degErr *types.DegenerateWindowError
		require.ErrorAs(t, err, &degErr)
	})

	t.Run("zero off-peak load is degenerate", func(t *testing.T) {
		cost, load := weekSeries(t,
			func(int) float64 { return 1 },
			func(h int) float64 {
				if window.Contains(h) {
					return 1
				}
				return 0
			},
		)
		_, err := ComputeRatio(cost, load, window)
		var degErr *types.DegenerateWindowError
		require.ErrorAs(t, err, &degErr)
	})

	t.Run("zero off-peak cost is degenerate", func(t *testing.T) {
		cost, load := weekSeries(t,
			func(h int) float64 {
				if window.Contains(h) {
					return 1
				}
				return 0
			},
			flatLoad,
		)
		_, err := ComputeRatio(cost, load, window)
		var degErr *types.DegenerateWindowError
		require.ErrorAs(t, err, &degErr)
	})
}
