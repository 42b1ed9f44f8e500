// Package scenario holds the immutable run configuration. A Scenario is
// loaded once, validated eagerly, and passed by value into every stage;
// nothing reads configuration from process-wide state after startup.
package scenario

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tariffshift/tariffshift/pkg/revenue"
	"github.com/tariffshift/tariffshift/pkg/types"
	"gopkg.in/yaml.v3"
)

// Scenario is the full configuration for one tariff-derivation run.
type Scenario struct {
	// Year is the calendar year the hourly inputs cover.
	Year int `yaml:"year" json:"year"`
	// Timezone is the IANA name the schedule is evaluated in.
	Timezone string `yaml:"timezone" json:"timezone"`
	// Kind selects the tariff shape. Defaults to TOU.
	Kind types.TariffKind `yaml:"kind,omitempty" json:"kind,omitempty"`

	TargetAnnualAvgRate float64 `yaml:"target_annual_avg_rate" json:"targetAnnualAvgRate"`
	FixedMonthlyCharge  float64 `yaml:"fixed_monthly_charge" json:"fixedMonthlyCharge"`

	RevenuePolicy      revenue.Policy `yaml:"revenue_policy" json:"revenuePolicy"`
	RevenueRequirement float64        `yaml:"revenue_requirement" json:"revenueRequirement"`

	// ConservationRelTol overrides the default 1e-6 relative tolerance for
	// the per-building conservation check.
	ConservationRelTol float64 `yaml:"conservation_rel_tol,omitempty" json:"conservationRelTol,omitempty"`

	Seasons []types.SeasonSpec `yaml:"seasons" json:"seasons"`
}

// Load reads and validates a scenario from a YAML file.
func Load(path string) (Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("failed to read scenario file: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Scenario{}, fmt.Errorf("failed to parse scenario file %s: %w", path, err)
	}
	if s.Kind == "" {
		s.Kind = types.TariffKindTOU
	}
	if err := s.Validate(); err != nil {
		return Scenario{}, err
	}
	return s, nil
}

// Validate checks the scenario structurally. It runs before any data is
// touched so a malformed scenario never produces partial output.
func (s Scenario) Validate() error {
	if s.Year < 1970 || s.Year > 2200 {
		return fmt.Errorf("invalid year %d", s.Year)
	}
	if s.Timezone == "" {
		return fmt.Errorf("timezone is required")
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", s.Timezone, err)
	}
	if s.TargetAnnualAvgRate <= 0 {
		return fmt.Errorf("target_annual_avg_rate must be positive, got %f", s.TargetAnnualAvgRate)
	}
	if s.FixedMonthlyCharge < 0 {
		return fmt.Errorf("fixed_monthly_charge must not be negative, got %f", s.FixedMonthlyCharge)
	}
	if !s.RevenuePolicy.Valid() {
		return fmt.Errorf("revenue_policy must be %q or %q, got %q",
			revenue.PolicyFrozenResidual, revenue.PolicyFixedRR, s.RevenuePolicy)
	}
	if len(s.Seasons) == 0 {
		return fmt.Errorf("at least one season is required")
	}

	claimed := make(map[int]string, 12)
	for _, spec := range s.Seasons {
		if spec.Name == "" {
			return fmt.Errorf("every season needs a name")
		}
		if s.Kind == types.TariffKindTOU && (spec.WindowHours < 1 || spec.WindowHours > 24) {
			return &types.InvalidWindowError{WindowHours: spec.WindowHours}
		}
		if spec.Elasticity > 0 {
			return fmt.Errorf("season %s elasticity must be <= 0, got %f", spec.Name, spec.Elasticity)
		}
		if spec.BaseRate < 0 {
			return fmt.Errorf("season %s base_rate must not be negative, got %f", spec.Name, spec.BaseRate)
		}
		if len(spec.Months) == 0 {
			return fmt.Errorf("season %s has no months", spec.Name)
		}
		for _, m := range spec.Months {
			if m < 1 || m > 12 {
				return fmt.Errorf("season %s has invalid month %d", spec.Name, m)
			}
			if prev, ok := claimed[m]; ok {
				return fmt.Errorf("month %d claimed by both %s and %s", m, prev, spec.Name)
			}
			claimed[m] = spec.Name
		}
	}
	for m := 1; m <= 12; m++ {
		if _, ok := claimed[m]; !ok {
			return fmt.Errorf("month %d is not covered by any season", m)
		}
	}
	return nil
}

// Location resolves the scenario timezone.
func (s Scenario) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load location %q: %w", s.Timezone, err)
	}
	return loc, nil
}

// SeasonFor returns the spec claiming the given month, if any.
func (s Scenario) SeasonFor(m time.Month) (types.SeasonSpec, bool) {
	for _, spec := range s.Seasons {
		if spec.HasMonth(int(m)) {
			return spec, true
		}
	}
	return types.SeasonSpec{}, false
}

// Hash returns a stable digest of the scenario, used to key run records.
func (s Scenario) Hash() string {
	b, err := json.Marshal(s)
	if err != nil {
		// Scenario is plain data; this cannot fail at runtime.
		panic(fmt.Errorf("failed to marshal scenario: %w", err))
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
