package shift

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tariffshift/tariffshift/pkg/log"
)

// Run shifts every building, fanning the work out across the given number of
// worker goroutines. Buildings are independent, so the set is split into
// contiguous chunks; results are written back by input index, which makes
// the output order (and content) independent of scheduling.
//
// Conservation violations are attached to the individual BuildingResult;
// structural errors abort the whole run.
func Run(ctx context.Context, s *Shifter, buildings []Building, workers int, relTol float64) ([]BuildingResult, error) {
	if workers < 1 {
		workers = 1
	}
	if workers > len(buildings) && len(buildings) > 0 {
		workers = len(buildings)
	}
	if relTol <= 0 {
		relTol = DefaultConservationRelTol
	}

	results := make([]BuildingResult, len(buildings))
	errs := make([]error, workers)

	var wg sync.WaitGroup
	chunk := (len(buildings) + workers - 1) / workers
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if end > len(buildings) {
			end = len(buildings)
		}
		if start >= end {
			break
		}

		wg.Add(1)
		go func(worker, start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					errs[worker] = err
					return
				}
				res, err := s.ShiftBuilding(buildings[i])
				if err != nil {
					errs[worker] = err
					return
				}
				if res.Eligible {
					res.ConservationErr = CheckConservation(res.BuildingID, buildings[i].KWH, res.KWH, relTol)
				}
				results[i] = res
			}
		}(w, start, end)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("shift run failed: %w", err)
		}
	}

	var violations int
	for _, r := range results {
		if r.ConservationErr != nil {
			violations++
			log.Ctx(ctx).WarnContext(ctx, "conservation violation",
				slog.String("buildingID", r.BuildingID),
				slog.Any("error", r.ConservationErr),
			)
		}
	}
	if violations > 0 {
		log.Ctx(ctx).WarnContext(ctx, "shift run completed with flagged buildings",
			slog.Int("violations", violations),
			slog.Int("buildings", len(buildings)),
		)
	}
	return results, nil
}
