package hourly

import (
	"fmt"
	"sort"
	"time"

	"github.com/tariffshift/tariffshift/pkg/types"
)

// HoursPerYear is the length of a calendar-normalized hourly series: leap
// days are dropped and DST-duplicated hours are deduplicated, so every year
// normalizes to the same 8760-hour shape.
const HoursPerYear = 8760

// Point is one raw hourly observation.
type Point struct {
	TS    time.Time
	Value float64
}

// Series is an hourly time series. Times and Values are parallel slices;
// once built the series is treated as immutable.
type Series struct {
	Times  []time.Time
	Values []float64
}

// Len returns the number of hours in the series.
func (s Series) Len() int {
	return len(s.Times)
}

// Sum returns the sum of all values.
func (s Series) Sum() float64 {
	var total float64
	for _, v := range s.Values {
		total += v
	}
	return total
}

// Normalize sorts the points, truncates timestamps to the hour in loc, drops
// leap-day hours and deduplicates repeated hours keeping the first
// occurrence in input order (sub-hourly samples and repeated timestamps
// collapse to one point per hour).
func Normalize(points []Point, loc *time.Location) Series {
	sorted := make([]Point, len(points))
	copy(sorted, points)
	// stable so equal timestamps keep their input order
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TS.Before(sorted[j].TS)
	})

	s := Series{
		Times:  make([]time.Time, 0, len(sorted)),
		Values: make([]float64, 0, len(sorted)),
	}
	var last time.Time
	for _, p := range sorted {
		t := p.TS.In(loc).Truncate(time.Hour)
		if t.Month() == time.February && t.Day() == 29 {
			continue
		}
		if !last.IsZero() && !t.After(last) {
			// points that truncate to an already-seen instant are dropped;
			// the first occurrence wins
			continue
		}
		s.Times = append(s.Times, t)
		s.Values = append(s.Values, p.Value)
		last = t
	}
	return s
}

// Aligned returns an InputAlignmentError if the two series do not share an
// identical time index.
func (s Series) Aligned(o Series) error {
	if s.Len() != o.Len() {
		return &types.InputAlignmentError{
			Detail: fmt.Sprintf("lengths differ: %d vs %d", s.Len(), o.Len()),
		}
	}
	for i := range s.Times {
		if !s.Times[i].Equal(o.Times[i]) {
			return &types.InputAlignmentError{
				Detail: fmt.Sprintf("timestamps differ at index %d: %s vs %s",
					i, s.Times[i].Format(time.RFC3339), o.Times[i].Format(time.RFC3339)),
			}
		}
	}
	return nil
}

// ValidateFullYear returns an InputAlignmentError if the series does not
// cover exactly one normalized calendar year.
func (s Series) ValidateFullYear() error {
	if s.Len() != HoursPerYear {
		return &types.InputAlignmentError{
			Detail: fmt.Sprintf("expected %d hours, got %d", HoursPerYear, s.Len()),
		}
	}
	return nil
}

// Combine returns the elementwise sum of two aligned series.
func Combine(a, b Series) (Series, error) {
	if err := a.Aligned(b); err != nil {
		return Series{}, err
	}
	out := Series{
		Times:  a.Times,
		Values: make([]float64, a.Len()),
	}
	for i := range a.Values {
		out.Values[i] = a.Values[i] + b.Values[i]
	}
	return out, nil
}

// Filter returns the subset of the series whose timestamps satisfy keep.
// The returned slices are fresh; the receiver is not modified.
func (s Series) Filter(keep func(time.Time) bool) Series {
	out := Series{}
	for i, t := range s.Times {
		if keep(t) {
			out.Times = append(out.Times, t)
			out.Values = append(out.Values, s.Values[i])
		}
	}
	return out
}
