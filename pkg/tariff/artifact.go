package tariff

import (
	"encoding/json"
	"fmt"

	"github.com/tariffshift/tariffshift/pkg/types"
)

// DerivedTariffKey identifies the TOU tariff produced by a run. Buildings
// that do not participate keep BaselineTariffKey.
const (
	DerivedTariffKey  = "derived-tou"
	BaselineTariffKey = "baseline"
)

// NewDocument wraps a schedule into the self-describing artifact consumed by
// the billing simulator.
func NewDocument(key, runID string, schedule *types.TariffSchedule) types.TariffDocument {
	return types.TariffDocument{
		Key:       key,
		RunID:     runID,
		RateUnits: "$/kWh",
		Schedule:  *schedule,
	}
}

// MarshalDocument serializes the artifact deterministically (map keys are
// sorted by encoding/json), so byte-identical inputs produce byte-identical
// artifacts.
func MarshalDocument(doc types.TariffDocument) ([]byte, error) {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tariff document: %w", err)
	}
	return append(b, '\n'), nil
}
