package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/triad3/irpf-import/internal/domain"
	"github.com/triad3/irpf-import/internal/extraction"
	"github.com/triad3/irpf-import/internal/llm"
	"github.com/triad3/irpf-import/internal/logger"
	"github.com/triad3/irpf-import/internal/metrics"
)

// MinTranscriptLength is the shortest transcript worth sending to the model.
const MinTranscriptLength = 50

// PipelineStep represents a single step of the background import.
type PipelineStep interface {
	ID() domain.StepID
	Execute(ctx context.Context, state *ImportState) error
}

// ImportState holds the shared state across all pipeline steps.
type ImportState struct {
	Declaration *domain.Declaration
	DocumentURI string
	Document    []byte

	Transcript string
	Response   *llm.Response
	Normalized *extraction.Normalized
	Payload    *extraction.Payload
	Results    []domain.CollectionResult
}

// StepError records which step stopped the run.
type StepError struct {
	Step domain.StepID
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps sequentially and stops at the first error, which is
// returned as a *StepError. Panics inside a step are returned the same way.
func (p *Pipeline) Execute(ctx context.Context, state *ImportState) error {
	for _, step := range p.steps {
		log := logger.FromContext(ctx).With().Str("step", string(step.ID())).Logger()
		start := time.Now()

		if err := runStep(logger.WithContext(ctx, log), step, state); err != nil {
			log.Error().Err(err).Dur("duration", time.Since(start)).Msg("Step failed")
			return &StepError{Step: step.ID(), Err: err}
		}
		log.Debug().Dur("duration", time.Since(start)).Msg("Step completed")
	}
	return nil
}

func runStep(ctx context.Context, step PipelineStep, state *ImportState) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return step.Execute(ctx, state)
}

// DownloadStep loads the document bytes unless they were passed inline.
type DownloadStep struct {
	Fetcher DocumentFetcher
}

func (s *DownloadStep) ID() domain.StepID { return domain.StepDownload }

func (s *DownloadStep) Execute(ctx context.Context, state *ImportState) error {
	if len(state.Document) > 0 {
		return nil
	}
	if state.DocumentURI == "" {
		return fmt.Errorf("no document to import")
	}
	if s.Fetcher == nil {
		return fmt.Errorf("no blob store configured for %s", state.DocumentURI)
	}

	data, err := s.Fetcher.Fetch(ctx, state.DocumentURI)
	if err != nil {
		return fmt.Errorf("fetch document: %w", err)
	}
	if len(data) == 0 {
		return fmt.Errorf("document %s is empty", state.DocumentURI)
	}
	state.Document = data
	return nil
}

// ExtractTextStep turns the PDF into a transcript.
type ExtractTextStep struct {
	Extractor TextExtractor
}

func (s *ExtractTextStep) ID() domain.StepID { return domain.StepExtractText }

func (s *ExtractTextStep) Execute(ctx context.Context, state *ImportState) error {
	text, err := s.Extractor.Extract(ctx, state.Document)
	if err != nil {
		return err
	}

	if n := utf8.RuneCountInString(strings.TrimSpace(text)); n < MinTranscriptLength {
		return domain.Errorf(domain.CodeUnreadableDocument, "transcript too short (%d characters)", n)
	}

	state.Transcript = text
	// The PDF is no longer needed.
	state.Document = nil
	return nil
}

// AIRequestStep sends the transcript to the model.
type AIRequestStep struct {
	Client  llm.Extractor
	Metrics *metrics.Recorder
}

func (s *AIRequestStep) ID() domain.StepID { return domain.StepAIRequest }

func (s *AIRequestStep) Execute(ctx context.Context, state *ImportState) error {
	taxYear := state.Declaration.TaxYear
	start := time.Now()

	resp, err := s.Client.Extract(ctx, llm.Request{
		SystemInstruction: extraction.SystemInstruction(taxYear),
		Transcript:        state.Transcript,
		TaxYear:           taxYear,
	})
	if s.Metrics != nil {
		s.Metrics.ExtractionFinished(ctx, s.Client.Name(), time.Since(start), err)
	}
	if err != nil {
		return err
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("model", resp.Model).
		Dur("duration", resp.Duration).
		Int("response_length", len(resp.Text)).
		Msg("Model replied")

	state.Response = resp
	return nil
}

// NormalizeStep cleans and parses the model reply.
type NormalizeStep struct{}

func (s *NormalizeStep) ID() domain.StepID { return domain.StepNormalize }

func (s *NormalizeStep) Execute(ctx context.Context, state *ImportState) error {
	if state.Response == nil {
		return domain.Errorf(domain.CodeEmptyResponse, "no model reply")
	}

	n, err := extraction.Normalize(state.Response.Text)
	if err != nil {
		return err
	}

	log := logger.FromContext(ctx)
	if err := extraction.Validate(n.Clean); err != nil {
		log.Warn().Err(err).Msg("Extraction payload does not match the schema")
	}
	log.Info().Int("items", n.Total).Msg("Model reply normalized")

	state.Normalized = n
	return nil
}

// MapPayloadStep decodes the normalized reply into typed entries.
type MapPayloadStep struct{}

func (s *MapPayloadStep) ID() domain.StepID { return domain.StepMapPayload }

func (s *MapPayloadStep) Execute(ctx context.Context, state *ImportState) error {
	p, err := extraction.Decode(state.Normalized.Clean)
	if err != nil {
		return err
	}
	state.Payload = p
	return nil
}

// PersistStep fans the payload out. Per-collection failures are reported in
// the results and never stop the run.
type PersistStep struct {
	Persister *Persister
	Now       func() time.Time
}

func (s *PersistStep) ID() domain.StepID { return domain.StepPersist }

func (s *PersistStep) Execute(ctx context.Context, state *ImportState) error {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	state.Results = s.Persister.Persist(ctx, PersistInput{
		Declaration: state.Declaration,
		Payload:     state.Payload,
		RawPayload:  []byte(state.Normalized.Clean),
		Today:       now(),
	})
	return nil
}
