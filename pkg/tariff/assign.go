package tariff

import (
	"time"

	"github.com/tariffshift/tariffshift/pkg/types"
)

// Assigner maps timestamps to period IDs via a flattened
// [day-type][month][hour] lookup table. Building the table once lets the
// per-timestamp work stay a pair of array indexes, which matters when the
// assignment runs over buildings x 8760 rows.
type Assigner struct {
	// index 0 = weekday, 1 = weekend
	lookup [2][12][24]string
}

// NewAssigner builds the lookup table from a schedule.
func NewAssigner(s *types.TariffSchedule) *Assigner {
	a := &Assigner{}
	a.lookup[0] = s.Weekday
	a.lookup[1] = s.Weekend
	return a
}

// One returns the period ID for a single timestamp.
func (a *Assigner) One(t time.Time) (string, error) {
	day := 0
	wd := t.Weekday()
	weekend := wd == time.Saturday || wd == time.Sunday
	if weekend {
		day = 1
	}
	id := a.lookup[day][int(t.Month())-1][t.Hour()]
	if id == "" {
		return "", &types.ScheduleCoverageError{
			TS:      t,
			Month:   t.Month(),
			Hour:    t.Hour(),
			Weekend: weekend,
		}
	}
	return id, nil
}

// Assign returns the period ID for every timestamp. The output is
// deterministic: identical input yields identical output.
func (a *Assigner) Assign(times []time.Time) ([]string, error) {
	out := make([]string, len(times))
	for i, t := range times {
		id, err := a.One(t)
		if err != nil {
			return nil, err
		}
		out[i] = id
	}
	return out, nil
}
