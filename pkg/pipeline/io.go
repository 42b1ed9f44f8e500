package pipeline

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tariffshift/tariffshift/pkg/hourly"
	"github.com/tariffshift/tariffshift/pkg/revenue"
	"github.com/tariffshift/tariffshift/pkg/shift"
	"github.com/tariffshift/tariffshift/pkg/tariff"
	"github.com/tariffshift/tariffshift/pkg/types"
)

// ReadCostCSV reads an hourly cost (or load) table with a header row and
// columns (timestamp, value). Timestamps are RFC3339.
func ReadCostCSV(path string) ([]hourly.Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%s has no data rows", path)
	}

	points := make([]hourly.Point, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) < 2 {
			return nil, fmt.Errorf("%s row %d has %d columns, want 2", path, i+2, len(row))
		}
		ts, err := time.Parse(time.RFC3339, row[0])
		if err != nil {
			return nil, fmt.Errorf("%s row %d has invalid timestamp %q: %w", path, i+2, row[0], err)
		}
		v, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%s row %d has invalid value %q: %w", path, i+2, row[1], err)
		}
		points = append(points, hourly.Point{TS: ts, Value: v})
	}
	return points, nil
}

// ReadLoadsCSV reads a per-building hourly consumption table with a header
// row and columns (building_id, timestamp, kwh).
func ReadLoadsCSV(path string) (map[string][]hourly.Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%s has no data rows", path)
	}

	loads := make(map[string][]hourly.Point)
	for i, row := range rows[1:] {
		if len(row) < 3 {
			return nil, fmt.Errorf("%s row %d has %d columns, want 3", path, i+2, len(row))
		}
		id := strings.TrimSpace(row[0])
		if id == "" {
			return nil, fmt.Errorf("%s row %d has empty building id", path, i+2)
		}
		ts, err := time.Parse(time.RFC3339, row[1])
		if err != nil {
			return nil, fmt.Errorf("%s row %d has invalid timestamp %q: %w", path, i+2, row[1], err)
		}
		v, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			return nil, fmt.Errorf("%s row %d has invalid kwh %q: %w", path, i+2, row[2], err)
		}
		loads[id] = append(loads[id], hourly.Point{TS: ts, Value: v})
	}
	return loads, nil
}

// ReadEligibilityCSV reads (building_id, eligible) rows with a header.
// Buildings missing from the file are treated as ineligible.
func ReadEligibilityCSV(path string) (map[string]bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	flags := make(map[string]bool)
	if len(rows) == 0 {
		return flags, nil
	}
	for i, row := range rows[1:] {
		if len(row) < 2 {
			return nil, fmt.Errorf("%s row %d has %d columns, want 2", path, i+2, len(row))
		}
		eligible, err := strconv.ParseBool(strings.TrimSpace(row[1]))
		if err != nil {
			return nil, fmt.Errorf("%s row %d has invalid eligible flag %q: %w", path, i+2, row[1], err)
		}
		flags[strings.TrimSpace(row[0])] = eligible
	}
	return flags, nil
}

// WriteShiftedLoadsCSV writes the post-shift load table in the same shape as
// the input loads table: (building_id, timestamp, kwh).
func WriteShiftedLoadsCSV(path string, times []time.Time, results []shift.BuildingResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"building_id", "timestamp", "kwh"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range results {
		for i, t := range times {
			row := []string{
				r.BuildingID,
				t.Format(time.RFC3339),
				strconv.FormatFloat(r.KWH[i], 'g', -1, 64),
			}
			if err := w.Write(row); err != nil {
				return fmt.Errorf("failed to write row for building %s: %w", r.BuildingID, err)
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return nil
}

// WriteAssignmentsCSV writes the (building_id, tariff_key) table.
func WriteAssignmentsCSV(path string, rows []types.BuildingAssignment) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"building_id", "tariff_key"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write([]string{row.BuildingID, row.TariffKey}); err != nil {
			return fmt.Errorf("failed to write row for building %s: %w", row.BuildingID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return nil
}

// WriteElasticityCSV writes the elasticity diagnostic table.
func WriteElasticityCSV(path string, recs []types.ElasticityRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"building_id", "period", "realized_elasticity", "original_total_kwh", "shifted_total_kwh"}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, rec := range recs {
		row := []string{
			rec.BuildingID,
			rec.PeriodID,
			strconv.FormatFloat(rec.RealizedElasticity, 'g', -1, 64),
			strconv.FormatFloat(rec.OriginalTotalKWH, 'g', -1, 64),
			strconv.FormatFloat(rec.ShiftedTotalKWH, 'g', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write row for building %s: %w", rec.BuildingID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return nil
}

// WriteTariffJSON writes the tariff artifact.
func WriteTariffJSON(path string, doc types.TariffDocument) error {
	b, err := tariff.MarshalDocument(doc)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// WriteReconciliationJSON writes the revenue reconciliation summary.
func WriteReconciliationJSON(path string, rec revenue.Reconciliation) error {
	b, err := marshalIndent(rec)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// sortedBuildingIDs returns map keys in deterministic order.
func sortedBuildingIDs[V any](m map[string]V) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
