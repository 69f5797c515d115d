package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/triad3/irpf-import/internal/domain"
	"github.com/triad3/irpf-import/internal/logger"
	"github.com/triad3/irpf-import/internal/storage"
)

// StatusFromError maps a step failure to the terminal status shown to users.
// Errors without a dedicated status fall back to Failed carrying the step.
func StatusFromError(step domain.StepID, err error) domain.Status {
	code, _ := domain.CodeOf(err)
	switch code {
	case domain.CodeEmptyResponse:
		return domain.EmptyResponse()
	case domain.CodeMalformedExtractionPayload:
		return domain.ParseError()
	case domain.CodeNoDataExtracted:
		return domain.NoData()
	case domain.CodeMappingFailed:
		return domain.MappingError()
	}

	var e *domain.Error
	if errors.As(err, &e) {
		// Keep the code and message; drop the wrapped cause, which is too
		// long to be useful after truncation.
		return domain.Failed(step, fmt.Sprintf("%s: %s", e.Code, e.Message))
	}
	return domain.Failed(step, err.Error())
}

// Reporter writes the terminal status of a declaration.
type Reporter struct {
	repo storage.DeclarationRepository
}

func NewReporter(repo storage.DeclarationRepository) *Reporter {
	return &Reporter{repo: repo}
}

// Report moves the declaration to status. A declaration that already holds a
// terminal status is left untouched and domain.ErrStatusFinal is returned.
func (r *Reporter) Report(ctx context.Context, declarationID string, status domain.Status, summary []domain.CollectionResult) error {
	if !status.IsTerminal() {
		return fmt.Errorf("Report: %q is not a terminal status", status.Kind)
	}

	log := logger.FromContext(ctx).With().
		Str("status", status.String()).
		Logger()

	if err := r.repo.UpdateStatus(ctx, declarationID, status, summary); err != nil {
		if errors.Is(err, domain.ErrStatusFinal) {
			log.Warn().Msg("Declaration already has a final status, skipping update")
		} else {
			log.Error().Err(err).Msg("Failed to update declaration status")
		}
		return fmt.Errorf("Report: update status: %w", err)
	}

	log.Info().Msg("Declaration status updated")
	return nil
}
