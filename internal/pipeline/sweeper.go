package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/triad3/irpf-import/internal/domain"
	"github.com/triad3/irpf-import/internal/logger"
	"github.com/triad3/irpf-import/internal/storage"
)

// InterruptedDetail is the failure detail of declarations whose import job was lost.
const InterruptedDetail = "importação interrompida"

// Sweeper fails declarations stuck in Processing. The in-memory queue loses
// its jobs on restart, so nothing else would ever close them.
type Sweeper struct {
	repo     storage.DeclarationRepository
	reporter *Reporter
	now      func() time.Time
}

func NewSweeper(repo storage.DeclarationRepository) *Sweeper {
	return &Sweeper{
		repo:     repo,
		reporter: NewReporter(repo),
		now:      time.Now,
	}
}

// Sweep marks every declaration created more than olderThan ago and still
// processing as failed. It returns how many were closed.
func (s *Sweeper) Sweep(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.now().Add(-olderThan)

	stale, err := s.repo.ListStale(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("Sweep: list stale declarations: %w", err)
	}

	closed := 0
	for _, d := range stale {
		dctx := logger.WithContext(ctx, logger.ForDeclaration(logger.FromContext(ctx), d.ID, d.AccountID))

		err := s.reporter.Report(dctx, d.ID, domain.Failed(domain.StepQueue, InterruptedDetail), nil)
		switch {
		case err == nil:
			closed++
		case errors.Is(err, domain.ErrStatusFinal), errors.Is(err, domain.ErrNotFound):
			// Finished or deleted in the meantime.
		default:
			return closed, fmt.Errorf("Sweep: %w", err)
		}
	}

	log := logger.FromContext(ctx)
	log.Info().Int("stale", len(stale)).Int("closed", closed).Time("cutoff", cutoff).Msg("Stale declarations swept")

	return closed, nil
}
