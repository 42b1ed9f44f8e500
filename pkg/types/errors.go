package types

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnsupportedKind is returned when a tariff kind has no vectorized
// implementation (tiered and combined rate structures).
var ErrUnsupportedKind = errors.New("unsupported tariff kind")

// InputAlignmentError reports that two hourly series do not share an
// identical time index after calendar normalization.
type InputAlignmentError struct {
	Detail string
}

func (e *InputAlignmentError) Error() string {
	return fmt.Sprintf("input series are not aligned: %s", e.Detail)
}

// InvalidWindowError reports a peak-window length outside [1, 24].
type InvalidWindowError struct {
	WindowHours int
}

func (e *InvalidWindowError) Error() string {
	return fmt.Sprintf("window hours must be within [1, 24], got %d", e.WindowHours)
}

// DegenerateWindowError reports a peak/off-peak partition with an empty or
// zero-weight side.
type DegenerateWindowError struct {
	Season string
	Reason string
}

func (e *DegenerateWindowError) Error() string {
	return fmt.Sprintf("degenerate peak window for season %s: %s", e.Season, e.Reason)
}

// ScheduleCoverageError reports an hour that resolved to no period. The
// builder guarantees total coverage, so seeing this means a schedule
// construction bug.
type ScheduleCoverageError struct {
	TS      time.Time
	Month   time.Month
	Hour    int
	Weekend bool
}

func (e *ScheduleCoverageError) Error() string {
	return fmt.Sprintf("no period for %s (month=%s hour=%d weekend=%t)",
		e.TS.Format(time.RFC3339), e.Month, e.Hour, e.Weekend)
}

// InvalidTariffError reports a non-positive reference rate.
type InvalidTariffError struct {
	Season string
	Rate   float64
}

func (e *InvalidTariffError) Error() string {
	return fmt.Sprintf("non-positive base rate %f for season %s", e.Rate, e.Season)
}

// ConservationViolationError reports a building whose post-shift annual total
// deviates from the pre-shift total beyond tolerance.
type ConservationViolationError struct {
	BuildingID  string
	OriginalKWH float64
	ShiftedKWH  float64
}

func (e *ConservationViolationError) Error() string {
	return fmt.Sprintf("building %s violates energy conservation: original=%f shifted=%f",
		e.BuildingID, e.OriginalKWH, e.ShiftedKWH)
}
