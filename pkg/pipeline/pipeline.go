// Package pipeline orchestrates the tariff-derivation and demand-shifting
// stages: combine marginal costs, locate the peak window and cost-causation
// ratio per season, build the seasonal schedule, assign periods, shift
// eligible buildings and collect diagnostics. The global stages run exactly
// once before any per-building work begins; per-building work fans out
// across chunks.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tariffshift/tariffshift/pkg/hourly"
	"github.com/tariffshift/tariffshift/pkg/log"
	"github.com/tariffshift/tariffshift/pkg/revenue"
	"github.com/tariffshift/tariffshift/pkg/scenario"
	"github.com/tariffshift/tariffshift/pkg/shift"
	"github.com/tariffshift/tariffshift/pkg/storage"
	"github.com/tariffshift/tariffshift/pkg/tariff"
	"github.com/tariffshift/tariffshift/pkg/types"
)

// runNamespace is the UUID namespace for deterministic run IDs: the same
// scenario applied to the same inputs yields the same run ID, which keeps
// re-derivation idempotent.
var runNamespace = uuid.MustParse("a1f0c0de-7a41-4e79-9c1e-5b2d8f3a6c90")

// Pipeline runs one scenario end to end.
type Pipeline struct {
	scenario scenario.Scenario
	storage  storage.Database
	workers  int
}

// New creates a Pipeline. The scenario must already be validated.
func New(sc scenario.Scenario, db storage.Database, workers int) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{scenario: sc, storage: db, workers: workers}
}

// Inputs are the upstream tables the pipeline consumes.
type Inputs struct {
	BulkCost []hourly.Point
	DistCost []hourly.Point
	// Loads holds per-building hourly consumption.
	Loads map[string][]hourly.Point
	// Eligibility flags buildings that participate in shifting. Missing
	// buildings are ineligible.
	Eligibility map[string]bool
	// SystemLoad is the weighting signal for the peak search. When nil, the
	// sum of the building loads is used.
	SystemLoad []hourly.Point
}

// Result bundles everything a run produces.
type Result struct {
	RunID          string
	Times          []time.Time
	Tariff         types.TariffDocument
	Assignments    []types.BuildingAssignment
	Buildings      []shift.BuildingResult
	ShiftResults   []types.ShiftResult
	Elasticity     []types.ElasticityRecord
	Reconciliation revenue.Reconciliation
	// ConservationViolations lists the flagged buildings. The batch is not
	// aborted for these; callers in a test/CI context should treat any
	// entry as fatal.
	ConservationViolations []error
}

// Run executes the scenario. Structural and configuration errors surface
// before any building is shifted.
func (p *Pipeline) Run(ctx context.Context, in Inputs) (*Result, error) {
	loc, err := p.scenario.Location()
	if err != nil {
		return nil, err
	}

	// combine marginal costs on the normalized calendar
	bulk := hourly.Normalize(in.BulkCost, loc)
	dist := hourly.Normalize(in.DistCost, loc)
	if err := bulk.ValidateFullYear(); err != nil {
		return nil, fmt.Errorf("bulk cost: %w", err)
	}
	combined, err := hourly.Combine(bulk, dist)
	if err != nil {
		return nil, err
	}

	// normalize building loads and derive the system load
	buildings, systemLoad, err := p.prepareLoads(in, loc, combined)
	if err != nil {
		return nil, err
	}

	// derive per-season windows, ratios and balanced base rates, then the
	// schedule; these global stages run once and are read-only afterwards
	sched, err := p.buildSchedule(ctx, combined, systemLoad)
	if err != nil {
		return nil, err
	}

	assigner := tariff.NewAssigner(sched)
	periodIDs, err := assigner.Assign(combined.Times)
	if err != nil {
		return nil, err
	}

	rates := shift.RatesFromSchedule(sched)
	shifter, err := shift.NewShifter(combined.Times, periodIDs, rates)
	if err != nil {
		return nil, err
	}

	runID := p.runID(in)
	run := types.RunRecord{
		ID:           runID,
		ScenarioHash: p.scenario.Hash(),
		StartedAt:    time.Now().UTC(),
		Status:       types.RunStatusRunning,
	}
	if err := p.storage.InsertRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}

	res, err := p.shiftAndCollect(ctx, runID, sched, combined, buildings, shifter)
	run.FinishedAt = time.Now().UTC()
	if err != nil {
		run.Status = types.RunStatusFailed
		run.Error = err.Error()
		if uerr := p.storage.UpdateRun(ctx, run); uerr != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to update failed run", slog.Any("error", uerr))
		}
		return nil, err
	}
	run.Status = types.RunStatusComplete
	if err := p.storage.UpdateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to finalize run: %w", err)
	}
	return res, nil
}

// prepareLoads normalizes every building series, checks alignment against
// the combined cost index and computes the system load.
func (p *Pipeline) prepareLoads(in Inputs, loc *time.Location, combined hourly.Series) ([]shift.Building, hourly.Series, error) {
	ids := sortedBuildingIDs(in.Loads)
	buildings := make([]shift.Building, 0, len(ids))
	systemValues := make([]float64, combined.Len())

	for _, id := range ids {
		s := hourly.Normalize(in.Loads[id], loc)
		if err := combined.Aligned(s); err != nil {
			return nil, hourly.Series{}, fmt.Errorf("building %s loads: %w", id, err)
		}
		buildings = append(buildings, shift.Building{
			ID:       id,
			Eligible: in.Eligibility[id],
			KWH:      s.Values,
		})
		for i, v := range s.Values {
			systemValues[i] += v
		}
	}

	systemLoad := hourly.Series{Times: combined.Times, Values: systemValues}
	if in.SystemLoad != nil {
		systemLoad = hourly.Normalize(in.SystemLoad, loc)
		if err := combined.Aligned(systemLoad); err != nil {
			return nil, hourly.Series{}, fmt.Errorf("system load: %w", err)
		}
	}
	return buildings, systemLoad, nil
}

// buildSchedule runs the global derivation stages for every season.
func (p *Pipeline) buildSchedule(ctx context.Context, combined, systemLoad hourly.Series) (*types.TariffSchedule, error) {
	sc := p.scenario
	totalLoad := systemLoad.Sum()

	inputs := make([]tariff.SeasonInput, 0, len(sc.Seasons))
	weights := make(map[string]float64, len(sc.Seasons))
	for _, spec := range sc.Seasons {
		inSeason := func(t time.Time) bool { return spec.HasMonth(int(t.Month())) }
		seasonCost := combined.Filter(inSeason)
		seasonLoad := systemLoad.Filter(inSeason)

		if totalLoad > 0 {
			weights[spec.Name] = seasonLoad.Sum() / totalLoad
		} else {
			weights[spec.Name] = float64(len(spec.Months)) / 12.0
		}

		si := tariff.SeasonInput{Spec: spec}
		if sc.Kind == types.TariffKindTOU {
			window, err := tariff.FindPeakWindow(spec.Name, seasonCost, seasonLoad, spec.WindowHours)
			if err != nil {
				return nil, fmt.Errorf("season %s: %w", spec.Name, err)
			}
			ratio, err := tariff.ComputeRatio(seasonCost, seasonLoad, window)
			if err != nil {
				return nil, fmt.Errorf("season %s: %w", spec.Name, err)
			}
			si.Window = window
			si.Ratio = ratio
			log.Ctx(ctx).InfoContext(ctx, "derived season window",
				slog.String("season", spec.Name),
				slog.Any("hours", window.Hours),
				slog.Float64("ratio", ratio),
			)
		}
		inputs = append(inputs, si)
	}

	baseRates, err := tariff.BalanceBaseRates(sc.Seasons, sc.TargetAnnualAvgRate, weights)
	if err != nil {
		return nil, err
	}
	for i := range inputs {
		inputs[i].Spec.BaseRate = baseRates[inputs[i].Spec.Name]
	}

	return tariff.BuildSchedule(sc.Kind, inputs, sc.FixedMonthlyCharge)
}

// shiftAndCollect runs the per-building stages and assembles artifacts.
func (p *Pipeline) shiftAndCollect(
	ctx context.Context,
	runID string,
	sched *types.TariffSchedule,
	combined hourly.Series,
	buildings []shift.Building,
	shifter *shift.Shifter,
) (*Result, error) {
	relTol := p.scenario.ConservationRelTol
	if relTol <= 0 {
		relTol = shift.DefaultConservationRelTol
	}

	results, err := shift.Run(ctx, shifter, buildings, p.workers, relTol)
	if err != nil {
		return nil, err
	}

	res := &Result{
		RunID:     runID,
		Times:     combined.Times,
		Buildings: results,
		Tariff:    tariff.NewDocument(tariff.DerivedTariffKey, runID, sched),
	}

	origTotals := make([]float64, combined.Len())
	shiftTotals := make([]float64, combined.Len())
	for bi, r := range results {
		key := tariff.BaselineTariffKey
		if r.Eligible {
			key = tariff.DerivedTariffKey
		}
		res.Assignments = append(res.Assignments, types.BuildingAssignment{
			BuildingID: r.BuildingID,
			TariffKey:  key,
		})
		res.ShiftResults = append(res.ShiftResults, r.Results...)
		res.Elasticity = append(res.Elasticity, r.Elasticity...)
		if r.ConservationErr != nil {
			res.ConservationViolations = append(res.ConservationViolations, r.ConservationErr)
		}
		for i := range combined.Times {
			origTotals[i] += buildings[bi].KWH[i]
			shiftTotals[i] += r.KWH[i]
		}
	}

	var mcOriginal, mcShifted float64
	for i, c := range combined.Values {
		mcOriginal += c * origTotals[i]
		mcShifted += c * shiftTotals[i]
	}
	rec, err := revenue.Reconcile(p.scenario.RevenuePolicy, mcOriginal, mcShifted, p.scenario.RevenueRequirement)
	if err != nil {
		return nil, err
	}
	res.Reconciliation = rec

	if err := p.persist(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (p *Pipeline) persist(ctx context.Context, res *Result) error {
	if err := p.storage.UpsertTariffDocument(ctx, res.RunID, res.Tariff); err != nil {
		return fmt.Errorf("failed to persist tariff document: %w", err)
	}
	if err := p.storage.UpsertAssignments(ctx, res.RunID, res.Assignments); err != nil {
		return fmt.Errorf("failed to persist assignments: %w", err)
	}
	if err := p.storage.UpsertElasticityRecords(ctx, res.RunID, res.Elasticity); err != nil {
		return fmt.Errorf("failed to persist elasticity records: %w", err)
	}
	return nil
}

// runID derives a deterministic run ID from the scenario and input digests.
func (p *Pipeline) runID(in Inputs) string {
	h := sha256.New()
	fmt.Fprintf(h, "scenario:%s\n", p.scenario.Hash())
	digestPoints := func(label string, pts []hourly.Point) {
		fmt.Fprintf(h, "%s:%d\n", label, len(pts))
		for _, pt := range pts {
			fmt.Fprintf(h, "%d:%g\n", pt.TS.Unix(), pt.Value)
		}
	}
	digestPoints("bulk", in.BulkCost)
	digestPoints("dist", in.DistCost)
	digestPoints("system", in.SystemLoad)
	for _, id := range sortedBuildingIDs(in.Loads) {
		fmt.Fprintf(h, "building:%s:%t\n", id, in.Eligibility[id])
		digestPoints(id, in.Loads[id])
	}
	return uuid.NewSHA1(runNamespace, h.Sum(nil)).String()
}

func marshalIndent(v interface{}) ([]byte, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal: %w", err)
	}
	return append(b, '\n'), nil
}
