// Command seed generates synthetic scenario inputs for local development:
// a full year of hourly bulk and distribution marginal costs, per-building
// loads, an eligibility table, and a matching scenario YAML.
package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/tariffshift/tariffshift/pkg/hourly"
	"github.com/tariffshift/tariffshift/pkg/log"
)

const scenarioYAML = `year: %d
timezone: UTC
kind: tou
target_annual_avg_rate: 0.12
fixed_monthly_charge: 10
revenue_policy: frozen_residual
seasons:
  - name: summer
    months: [6, 7, 8, 9]
    window_hours: 4
    elasticity: -0.25
  - name: winter
    months: [1, 2, 3, 4, 5, 10, 11, 12]
    window_hours: 4
    elasticity: -0.15
`

func main() {
	outDir := lflag.String("out", "testdata", "Directory to write fixtures to")
	year := 2023
	lflag.JSON(&year, "year", year, "Calendar year to generate")
	buildings := 10
	lflag.JSON(&buildings, "buildings", buildings, "Number of buildings to generate")
	seed := int64(1)
	lflag.JSON(&seed, "seed", seed, "RNG seed")
	lflag.Configure()

	ctx := context.Background()
	log.Ctx(ctx).InfoContext(ctx, "seeding synthetic inputs")

	rng := rand.New(rand.NewSource(seed))

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to create output dir", "error", err)
		os.Exit(1)
	}

	start := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)

	var times []time.Time
	for t := start; t.Before(end); t = t.Add(time.Hour) {
		// Leap day is dropped during normalization anyway
		if t.Month() == time.February && t.Day() == 29 {
			continue
		}
		times = append(times, t)
	}

	bulk := make([]hourly.Point, len(times))
	dist := make([]hourly.Point, len(times))
	for i, t := range times {
		hour := t.Hour()

		// Wholesale price scenario with an evening peak
		basePrice := 0.04
		if hour >= 6 && hour < 9 {
			basePrice = 0.07 // Morning ramp
		} else if hour >= 10 && hour < 15 {
			basePrice = 0.03 // Mid-day lull
		} else if hour >= 17 && hour < 21 {
			basePrice = 0.12 // Evening peak
		}
		if t.Month() >= time.June && t.Month() <= time.September {
			basePrice *= 1.4 // Summer scarcity
		}
		basePrice += (rng.Float64() * 0.01) - 0.005
		bulk[i] = hourly.Point{TS: t, Value: math.Max(basePrice, 0.001)}

		// Distribution cost tracks local congestion (bell curve around 18:00)
		distApart := math.Abs(float64(hour) - 18.0)
		distCost := 0.005 + 0.03*math.Exp(-(distApart*distApart)/8.0)
		dist[i] = hourly.Point{TS: t, Value: distCost}
	}

	if err := writeSeriesCSV(filepath.Join(*outDir, "bulk_costs.csv"), bulk); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to write bulk costs", "error", err)
		os.Exit(1)
	}
	if err := writeSeriesCSV(filepath.Join(*outDir, "dist_costs.csv"), dist); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to write dist costs", "error", err)
		os.Exit(1)
	}

	if err := writeLoads(filepath.Join(*outDir, "loads.csv"), times, buildings, rng); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to write loads", "error", err)
		os.Exit(1)
	}
	if err := writeEligibility(filepath.Join(*outDir, "eligibility.csv"), buildings); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to write eligibility", "error", err)
		os.Exit(1)
	}

	scPath := filepath.Join(*outDir, "scenario.yaml")
	if err := os.WriteFile(scPath, []byte(fmt.Sprintf(scenarioYAML, year)), 0o644); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to write scenario", "error", err)
		os.Exit(1)
	}

	log.Ctx(ctx).InfoContext(ctx, "done", "dir", *outDir, "hours", len(times), "buildings", buildings)
}

func writeSeriesCSV(path string, points []hourly.Point) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"timestamp", "value"}); err != nil {
		return err
	}
	for _, p := range points {
		row := []string{p.TS.Format(time.RFC3339), strconv.FormatFloat(p.Value, 'g', -1, 64)}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeLoads(path string, times []time.Time, buildings int, rng *rand.Rand) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"building_id", "timestamp", "kwh"}); err != nil {
		return err
	}
	for b := 0; b < buildings; b++ {
		id := fmt.Sprintf("bldg-%03d", b+1)
		// Scale varies per building, shape is shared
		scale := 0.8 + rng.Float64()*1.5
		for _, t := range times {
			hour := t.Hour()
			kwh := 0.6 * scale
			if hour >= 7 && hour < 9 {
				kwh += 0.8 * scale // Breakfast
			} else if hour >= 17 && hour < 22 {
				kwh += 1.6 * scale // Evening activities
			}
			kwh += rng.Float64() * 0.2
			row := []string{id, t.Format(time.RFC3339), strconv.FormatFloat(kwh, 'g', -1, 64)}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}
	w.Flush()
	return w.Error()
}

func writeEligibility(path string, buildings int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"building_id", "eligible"}); err != nil {
		return err
	}
	for b := 0; b < buildings; b++ {
		// Even-numbered buildings opt in
		row := []string{fmt.Sprintf("bldg-%03d", b+1), strconv.FormatBool(b%2 == 0)}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
