package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/tariffshift/tariffshift/pkg/hourly"
	"github.com/tariffshift/tariffshift/pkg/log"
	"github.com/tariffshift/tariffshift/pkg/pipeline"
	"github.com/tariffshift/tariffshift/pkg/scenario"
	"github.com/tariffshift/tariffshift/pkg/server"
	"github.com/tariffshift/tariffshift/pkg/storage"

	"github.com/levenlabs/go-lflag"
	"github.com/levenlabs/go-llog"
)

func main() {
	// init packages
	db := storage.Configured()
	srv := server.Configured(db)

	scenarioPath := lflag.RequiredString("scenario", "Path to the scenario YAML file")
	bulkPath := lflag.RequiredString("bulk-costs", "Path to the bulk marginal-cost CSV")
	distPath := lflag.RequiredString("dist-costs", "Path to the distribution marginal-cost CSV")
	loadsPath := lflag.RequiredString("loads", "Path to the per-building hourly loads CSV")
	eligPath := lflag.String("eligibility", "", "Path to the building eligibility CSV (default: all buildings ineligible)")
	sysLoadPath := lflag.String("system-load", "", "Path to an hourly system load CSV (default: sum of building loads)")
	outDir := lflag.String("out", ".", "Directory to write output artifacts to")
	serve := lflag.Bool("serve", false, "Serve run artifacts over HTTP after a successful run")
	strict := lflag.Bool("strict-conservation", false, "Exit non-zero if any building fails the conservation check")
	workers := 4
	lflag.JSON(&workers, "workers", workers, "Number of parallel building chunks")

	// parse flags
	lflag.Configure()

	var level slog.Level
	// lflag automatically sets llog's level, but we need to set the slog level
	switch llog.GetLevel() {
	case llog.DebugLevel:
		level = slog.LevelDebug
	case llog.InfoLevel:
		level = slog.LevelInfo
	case llog.WarnLevel:
		level = slog.LevelWarn
	case llog.ErrorLevel:
		level = slog.LevelError
	default:
		panic(fmt.Errorf("unknown log level: %s", llog.GetLevel().String()))
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	slog.Debug("logger configured", slog.String("level", level.String()))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	defer func() {
		if err := db.Close(); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", "error", err)
		}
	}()

	sc, err := scenario.Load(*scenarioPath)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "invalid scenario", "error", err)
		os.Exit(1)
	}

	in, err := readInputs(*bulkPath, *distPath, *loadsPath, *eligPath, *sysLoadPath)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to read inputs", "error", err)
		os.Exit(1)
	}

	res, err := pipeline.New(sc, db, workers).Run(ctx, in)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "pipeline failed", "error", err)
		os.Exit(1)
	}
	log.Ctx(ctx).InfoContext(ctx, "pipeline complete",
		slog.String("runID", res.RunID),
		slog.Int("buildings", len(res.Buildings)),
		slog.Int("conservationViolations", len(res.ConservationViolations)),
	)

	if err := writeOutputs(*outDir, res); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to write outputs", "error", err)
		os.Exit(1)
	}

	if len(res.ConservationViolations) > 0 {
		for _, v := range res.ConservationViolations {
			log.Ctx(ctx).WarnContext(ctx, "flagged building", "error", v)
		}
		if *strict {
			log.Ctx(ctx).ErrorContext(ctx, "conservation check failed",
				slog.Int("violations", len(res.ConservationViolations)))
			os.Exit(1)
		}
	}

	if *serve {
		if err := srv.Run(ctx); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "server failed", "error", err)
			os.Exit(1)
		}
		log.Ctx(ctx).InfoContext(ctx, "server exited cleanly")
	}
}

func readInputs(bulkPath, distPath, loadsPath, eligPath, sysLoadPath string) (pipeline.Inputs, error) {
	var in pipeline.Inputs
	var err error

	if in.BulkCost, err = pipeline.ReadCostCSV(bulkPath); err != nil {
		return in, err
	}
	if in.DistCost, err = pipeline.ReadCostCSV(distPath); err != nil {
		return in, err
	}
	if in.Loads, err = pipeline.ReadLoadsCSV(loadsPath); err != nil {
		return in, err
	}
	if eligPath != "" {
		if in.Eligibility, err = pipeline.ReadEligibilityCSV(eligPath); err != nil {
			return in, err
		}
	}
	if sysLoadPath != "" {
		var pts []hourly.Point
		if pts, err = pipeline.ReadCostCSV(sysLoadPath); err != nil {
			return in, err
		}
		in.SystemLoad = pts
	}
	return in, nil
}

func writeOutputs(dir string, res *pipeline.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir %s: %w", dir, err)
	}
	if err := pipeline.WriteTariffJSON(filepath.Join(dir, "tariff.json"), res.Tariff); err != nil {
		return err
	}
	if err := pipeline.WriteAssignmentsCSV(filepath.Join(dir, "assignments.csv"), res.Assignments); err != nil {
		return err
	}
	if err := pipeline.WriteShiftedLoadsCSV(filepath.Join(dir, "shifted_loads.csv"), res.Times, res.Buildings); err != nil {
		return err
	}
	if err := pipeline.WriteElasticityCSV(filepath.Join(dir, "elasticity.csv"), res.Elasticity); err != nil {
		return err
	}
	return pipeline.WriteReconciliationJSON(filepath.Join(dir, "reconciliation.json"), res.Reconciliation)
}
