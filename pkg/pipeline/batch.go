package pipeline

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// WorkerFactory builds one Orchestrator per worker. Each worker must get
// its own workspace root; the per-candidate stage order stays strictly
// sequential inside a worker.
type WorkerFactory func(workerID int) (Orchestrator, error)

// RunBatch processes the candidate ids of one project. With workers == 1
// the ids run sequentially in order; with more workers they are distributed
// over independent orchestrators. The first fatal error cancels the
// remaining batch.
func RunBatch(
	ctx context.Context,
	log logrus.FieldLogger,
	project string,
	candidateIDs []int,
	workers int,
	factory WorkerFactory,
) error {
	log = log.WithFields(logrus.Fields{
		"component":  "batch",
		"project":    project,
		"candidates": len(candidateIDs),
		"workers":    workers,
	})

	if len(candidateIDs) == 0 {
		log.Info("Nothing to do")

		return nil
	}

	if workers <= 1 {
		orch, err := factory(0)
		if err != nil {
			return fmt.Errorf("creating worker: %w", err)
		}

		for _, id := range candidateIDs {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			if err := orch.ProcessCandidate(ctx, project, id); err != nil {
				return fmt.Errorf("candidate %d: %w", id, err)
			}
		}

		log.Info("Batch completed")

		return nil
	}

	// Resolve every worker before spawning any goroutine, so a factory
	// failure cannot leave already-started workers processing candidates
	// behind an error return.
	orchestrators := make([]Orchestrator, workers)

	for i := range orchestrators {
		orch, err := factory(i)
		if err != nil {
			return fmt.Errorf("creating worker %d: %w", i, err)
		}

		orchestrators[i] = orch
	}

	g, ctx := errgroup.WithContext(ctx)

	idCh := make(chan int)

	g.Go(func() error {
		defer close(idCh)

		for _, id := range candidateIDs {
			select {
			case idCh <- id:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		return nil
	})

	for _, orch := range orchestrators {
		g.Go(func() error {
			for id := range idCh {
				if err := orch.ProcessCandidate(ctx, project, id); err != nil {
					return fmt.Errorf("candidate %d: %w", id, err)
				}
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("Batch completed")

	return nil
}
