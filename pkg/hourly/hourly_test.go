package hourly

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tariffshift/tariffshift/pkg/types"
)

func yearPoints(year int, loc *time.Location, value func(t time.Time) float64) []Point {
	start := time.Date(year, 1, 1, 0, 0, 0, 0, loc)
	end := start.AddDate(1, 0, 0)
	var pts []Point
	for t := start; t.Before(end); t = t.Add(time.Hour) {
		pts = append(pts, Point{TS: t, Value: value(t)})
	}
	return pts
}

func TestNormalize(t *testing.T) {
	t.Run("sorts and truncates", func(t *testing.T) {
		base := time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)
		pts := []Point{
			{TS: base.Add(2*time.Hour + 30*time.Minute), Value: 3},
			{TS: base, Value: 1},
			{TS: base.Add(time.Hour), Value: 2},
		}
		s := Normalize(pts, time.UTC)
		require.Equal(t, 3, s.Len())
		assert.Equal(t, []float64{1, 2, 3}, s.Values)
		assert.Equal(t, base.Add(2*time.Hour), s.Times[2])
	})

	t.Run("drops leap day", func(t *testing.T) {
		pts := yearPoints(2024, time.UTC, func(time.Time) float64 { return 1 })
		require.Len(t, pts, 8784)
		s := Normalize(pts, time.UTC)
		assert.Equal(t, HoursPerYear, s.Len())
		for _, ts := range s.Times {
			assert.False(t, ts.Month() == time.February && ts.Day() == 29)
		}
	})

	t.Run("dedupes repeated hour keeping first", func(t *testing.T) {
		base := time.Date(2023, 11, 5, 1, 0, 0, 0, time.UTC)
		pts := []Point{
			{TS: base, Value: 10},
			{TS: base, Value: 99},
			{TS: base.Add(time.Hour), Value: 20},
		}
		s := Normalize(pts, time.UTC)
		require.Equal(t, 2, s.Len())
		assert.Equal(t, []float64{10, 20}, s.Values)
	})

	t.Run("keeps the input-first duplicate in large batches", func(t *testing.T) {
		// large enough that an unstable sort would reorder equal timestamps
		base := time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)
		var pts []Point
		for i := 0; i < 2000; i++ {
			v := float64(i)
			if i == 500 {
				v = 111
			}
			pts = append(pts, Point{TS: base.Add(time.Duration(i) * time.Hour), Value: v})
		}
		// late duplicates of one hour, after the first occurrence in input order
		for i := 0; i < 50; i++ {
			pts = append(pts, Point{TS: base.Add(500 * time.Hour), Value: 999})
		}

		s := Normalize(pts, time.UTC)
		require.Equal(t, 2000, s.Len())
		assert.Equal(t, 111.0, s.Values[500])
	})

	t.Run("sub-hourly points collapse to the first", func(t *testing.T) {
		base := time.Date(2023, 11, 5, 1, 0, 0, 0, time.UTC)
		pts := []Point{
			{TS: base.Add(5 * time.Minute), Value: 10},
			{TS: base.Add(45 * time.Minute), Value: 99},
		}
		s := Normalize(pts, time.UTC)
		require.Equal(t, 1, s.Len())
		assert.Equal(t, base, s.Times[0])
		assert.Equal(t, 10.0, s.Values[0])
	})

	t.Run("full non-leap year keeps every hour", func(t *testing.T) {
		pts := yearPoints(2023, time.UTC, func(time.Time) float64 { return 1 })
		s := Normalize(pts, time.UTC)
		assert.Equal(t, HoursPerYear, s.Len())
		require.NoError(t, s.ValidateFullYear())
	})
}

func TestAligned(t *testing.T) {
	base := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	a := Series{
		Times:  []time.Time{base, base.Add(time.Hour)},
		Values: []float64{1, 2},
	}

	t.Run("identical index", func(t *testing.T) {
		b := Series{Times: a.Times, Values: []float64{3, 4}}
		assert.NoError(t, a.Aligned(b))
	})

	t.Run("length mismatch", func(t *testing.T) {
		b := Series{Times: a.Times[:1], Values: []float64{3}}
		err := a.Aligned(b)
		var alignErr *types.InputAlignmentError
		require.ErrorAs(t, err, &alignErr)
	})

	t.Run("timestamp mismatch", func(t *testing.T) {
		b := Series{
			Times:  []time.Time{base, base.Add(2 * time.Hour)},
			Values: []float64{3, 4},
		}
		err := a.Aligned(b)
		var alignErr *types.InputAlignmentError
		require.ErrorAs(t, err, &alignErr)
		assert.Contains(t, alignErr.Error(), "index 1")
	})
}

func TestValidateFullYear(t *testing.T) {
	s := Series{Times: make([]time.Time, 100), Values: make([]float64, 100)}
	err := s.ValidateFullYear()
	var alignErr *types.InputAlignmentError
	require.ErrorAs(t, err, &alignErr)
}

func TestCombine(t *testing.T) {
	base := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	a := Series{
		Times:  []time.Time{base, base.Add(time.Hour)},
		Values: []float64{1, 2},
	}
	b := Series{Times: a.Times, Values: []float64{0.5, 0.25}}

	out, err := Combine(a, b)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 2.25}, out.Values)

	_, err = Combine(a, Series{Times: a.Times[:1], Values: b.Values[:1]})
	require.Error(t, err)
}

func TestFilter(t *testing.T) {
	base := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	s := Series{
		Times: []time.Time{
			base,
			base.AddDate(0, 1, 0),
			base.AddDate(0, 2, 0),
		},
		Values: []float64{1, 2, 3},
	}

	out := s.Filter(func(t time.Time) bool { return t.Month() == time.July })
	require.Equal(t, 1, out.Len())
	assert.Equal(t, 2.0, out.Values[0])

	// receiver is untouched
	assert.Equal(t, 3, s.Len())
}

func TestSum(t *testing.T) {
	s := Series{Values: []float64{1, 2, 3.5}}
	assert.Equal(t, 6.5, s.Sum())
	assert.Zero(t, Series{}.Sum())
}
