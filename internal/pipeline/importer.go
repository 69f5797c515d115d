package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/triad3/irpf-import/internal/domain"
	"github.com/triad3/irpf-import/internal/llm"
	"github.com/triad3/irpf-import/internal/logger"
	"github.com/triad3/irpf-import/internal/metrics"
)

// ImportRequest is phase two of an import. Document, when set, takes
// precedence over DocumentURI.
type ImportRequest struct {
	DeclarationID string
	AccountID     string
	TaxYear       int
	Filename      string
	DocumentURI   string
	Document      []byte
}

// Deps are the collaborators of an import run.
type Deps struct {
	Repo      Repository
	Fetcher   DocumentFetcher
	Extractor TextExtractor
	LLM       llm.Extractor
	Metrics   *metrics.Recorder
}

// Importer runs the background phase of an import and reports its outcome.
type Importer struct {
	pipeline *Pipeline
	reporter *Reporter
	metrics  *metrics.Recorder
}

func NewImporter(deps Deps) *Importer {
	rec := deps.Metrics
	if rec == nil {
		rec = metrics.NewNop()
	}

	return &Importer{
		pipeline: NewPipeline(
			&DownloadStep{Fetcher: deps.Fetcher},
			&ExtractTextStep{Extractor: deps.Extractor},
			&AIRequestStep{Client: deps.LLM, Metrics: rec},
			&NormalizeStep{},
			&MapPayloadStep{},
			&PersistStep{Persister: NewPersister(deps.Repo, deps.Repo, rec)},
		),
		reporter: NewReporter(deps.Repo),
		metrics:  rec,
	}
}

// Run executes every step and writes exactly one terminal status. Step
// errors never escape: they become the returned status.
func (i *Importer) Run(ctx context.Context, req ImportRequest) domain.Status {
	start := time.Now()
	log := logger.ForDeclaration(logger.FromContext(ctx), req.DeclarationID, req.AccountID)
	ctx = logger.WithContext(ctx, log)

	state := &ImportState{
		Declaration: &domain.Declaration{
			ID:        req.DeclarationID,
			AccountID: req.AccountID,
			TaxYear:   req.TaxYear,
			Filename:  req.Filename,
			Status:    domain.Processing(),
		},
		DocumentURI: req.DocumentURI,
		Document:    req.Document,
	}

	status := domain.Imported()
	if err := i.pipeline.Execute(ctx, state); err != nil {
		var se *StepError
		if errors.As(err, &se) {
			status = StatusFromError(se.Step, se.Err)
		} else {
			status = StatusFromError(domain.StepReport, err)
		}
	}

	if err := i.reporter.Report(ctx, req.DeclarationID, status, state.Results); err != nil && !errors.Is(err, domain.ErrStatusFinal) {
		// One more attempt with the reporting failure itself.
		status = domain.Failed(domain.StepReport, err.Error())
		_ = i.reporter.Report(ctx, req.DeclarationID, status, state.Results)
	}

	i.metrics.ImportFinished(ctx, status, time.Since(start))

	inserted := 0
	for _, r := range state.Results {
		inserted += r.Inserted
	}
	log.Info().
		Str("status", status.String()).
		Int("inserted", inserted).
		Dur("duration", time.Since(start)).
		Msg("Import finished")

	return status
}
