package types

import (
	"time"
)

// TariffKind identifies the shape of a tariff. The set is closed: code that
// dispatches on kind must handle every value and return ErrUnsupportedKind
// for the kinds it cannot vectorize, never silently fall back to another
// implementation.
type TariffKind string

const (
	TariffKindFlat     TariffKind = "flat"
	TariffKindTOU      TariffKind = "tou"
	TariffKindTiered   TariffKind = "tiered"
	TariffKindCombined TariffKind = "combined"
)

// PeriodRole describes how a period participates in demand shifting.
type PeriodRole string

const (
	// PeriodRoleReceiver is the off-peak period that absorbs shifted load.
	PeriodRoleReceiver PeriodRole = "receiver"
	// PeriodRolePeak is the priced-up period that sheds load.
	PeriodRolePeak PeriodRole = "peak"
)

// SeasonSpec is the configuration unit for one season of the tariff. The
// listed seasons must partition the calendar months: disjoint and exhaustive.
type SeasonSpec struct {
	Name string `json:"name" yaml:"name"`
	// Months holds calendar month numbers (1-12).
	Months      []int   `json:"months" yaml:"months"`
	WindowHours int     `json:"windowHours" yaml:"window_hours"`
	Elasticity  float64 `json:"elasticity" yaml:"elasticity"`
	// BaseRate is the configured off-peak rate in $/kWh. Zero means
	// unconfigured; the balancer solves for it.
	BaseRate float64 `json:"baseRate,omitempty" yaml:"base_rate,omitempty"`
	// WeekdayPeakOnly maps weekend hours to the off-peak period even inside
	// the peak window.
	WeekdayPeakOnly bool `json:"weekdayPeakOnly,omitempty" yaml:"weekday_peak_only,omitempty"`
}

// HasMonth reports whether the month number (1-12) belongs to this season.
func (s SeasonSpec) HasMonth(m int) bool {
	for _, sm := range s.Months {
		if sm == m {
			return true
		}
	}
	return false
}

// PeakWindow is an ordered run of hour-of-day values (0-23), contiguous
// modulo 24, belonging to one season.
type PeakWindow struct {
	Season string `json:"season"`
	Hours  []int  `json:"hours"`
}

// Contains reports whether the hour-of-day is inside the window.
func (w PeakWindow) Contains(hour int) bool {
	for _, h := range w.Hours {
		if h == hour {
			return true
		}
	}
	return false
}

// Period is one rate band of the tariff.
type Period struct {
	ID            string     `json:"id"`
	Season        string     `json:"season"`
	Role          PeriodRole `json:"role"`
	DollarsPerKWH float64    `json:"dollarsPerKWH"`
}

// ScheduleMatrix maps (month, hour-of-day) to a period ID for one day type.
// Month index is 0-based (January = 0).
type ScheduleMatrix [12][24]string

// TariffSchedule is the complete period/schedule structure for one tariff.
// Every (month, hour, day-type) cell resolves to exactly one period ID; the
// builder verifies this before the schedule is handed out.
type TariffSchedule struct {
	Kind               TariffKind        `json:"kind"`
	Periods            map[string]Period `json:"periods"`
	Weekday            ScheduleMatrix    `json:"weekday"`
	Weekend            ScheduleMatrix    `json:"weekend"`
	FixedMonthlyCharge float64           `json:"fixedMonthlyCharge"`
	// Seasons preserves the specs the schedule was built from, with the
	// balanced base rates filled in.
	Seasons []SeasonSpec `json:"seasons"`
	// Windows holds the peak window chosen for each season.
	Windows map[string]PeakWindow `json:"windows"`
	// Ratios holds the cost-causation ratio applied per season.
	Ratios map[string]float64 `json:"ratios"`
}

// TariffDocument is the self-describing artifact handed to the billing
// simulator. No external lookup is needed to bill against it. It carries no
// wall-clock fields: re-deriving from identical inputs must produce a
// byte-identical artifact (timestamps live on the RunRecord).
type TariffDocument struct {
	Key       string         `json:"key"`
	RunID     string         `json:"runID"`
	RateUnits string         `json:"rateUnits"`
	Schedule  TariffSchedule `json:"schedule"`
}

// BuildingAssignment maps a building to the tariff it will be billed under.
type BuildingAssignment struct {
	BuildingID string `json:"buildingID"`
	TariffKey  string `json:"tariffKey"`
}

// ShiftResult records the period-level outcome of demand shifting for one
// building and season.
type ShiftResult struct {
	BuildingID  string  `json:"buildingID"`
	Season      string  `json:"season"`
	PeriodID    string  `json:"periodID"`
	OriginalKWH float64 `json:"originalKWH"`
	TargetKWH   float64 `json:"targetKWH"`
	DeltaKWH    float64 `json:"deltaKWH"`
}

// ElasticityRecord is the per-(building, period) realized-elasticity
// diagnostic. RealizedElasticity is NaN where the ratio is undefined.
type ElasticityRecord struct {
	BuildingID         string  `json:"buildingID"`
	PeriodID           string  `json:"periodID"`
	RealizedElasticity float64 `json:"realizedElasticity"`
	OriginalTotalKWH   float64 `json:"originalTotalKWH"`
	ShiftedTotalKWH    float64 `json:"shiftedTotalKWH"`
}

// RunRecord tracks one scenario run for idempotence and audit.
type RunRecord struct {
	ID           string    `json:"id"`
	ScenarioHash string    `json:"scenarioHash"`
	StartedAt    time.Time `json:"startedAt"`
	FinishedAt   time.Time `json:"finishedAt,omitempty"`
	Status       string    `json:"status"`
	Error        string    `json:"error,omitempty"`
}

// Run statuses.
const (
	RunStatusRunning  = "running"
	RunStatusComplete = "complete"
	RunStatusFailed   = "failed"
)
