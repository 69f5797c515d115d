// Package app opens the backends selected by the configuration. It is shared
// by the API server and the CLI.
package app

import (
	"context"
	"fmt"
	"io"

	"github.com/triad3/irpf-import/internal/blob"
	"github.com/triad3/irpf-import/internal/blob/gcs"
	"github.com/triad3/irpf-import/internal/blob/s3"
	"github.com/triad3/irpf-import/internal/config"
	infraBQ "github.com/triad3/irpf-import/internal/infra/bigquery"
	"github.com/triad3/irpf-import/internal/infra/postgres"
	"github.com/triad3/irpf-import/internal/llm"
	"github.com/triad3/irpf-import/internal/llm/gemini"
	"github.com/triad3/irpf-import/internal/llm/openai"
	"github.com/triad3/irpf-import/internal/metrics"
	"github.com/triad3/irpf-import/internal/pdftext"
	"github.com/triad3/irpf-import/internal/pipeline"
	"github.com/triad3/irpf-import/internal/storage"
)

// OpenStore connects the configured storage backend.
func OpenStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.StorageBackend {
	case config.StoragePostgres:
		return postgres.Open(ctx, cfg.DatabaseURL)
	case config.StorageBigQuery:
		return infraBQ.Open(ctx, cfg.BigQueryProject, cfg.BigQueryDataset)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenBlobs connects the configured document store. The closer releases the
// underlying client.
func OpenBlobs(ctx context.Context, cfg *config.Config) (blob.Store, io.Closer, error) {
	switch cfg.BlobBackend {
	case config.BlobGCS:
		s, err := gcs.New(ctx, cfg.BlobBucket)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case config.BlobS3:
		s, err := s3.New(ctx, cfg.BlobBucket)
		if err != nil {
			return nil, nil, err
		}
		return s, nopCloser{}, nil
	case config.BlobMemory:
		return blob.NewMemoryStore(), nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("unknown blob backend %q", cfg.BlobBackend)
	}
}

// NewLLM creates the configured extraction backend.
func NewLLM(ctx context.Context, cfg *config.Config) (llm.Extractor, error) {
	switch cfg.LLMProvider {
	case config.ProviderGemini:
		return gemini.NewClient(ctx, gemini.Config{
			APIKey:  cfg.LLMAPIKey,
			Model:   cfg.LLMModel,
			Timeout: cfg.LLMTimeout,
		})
	case config.ProviderOpenAI:
		return openai.NewClient(openai.Config{
			APIKey:  cfg.LLMAPIKey,
			BaseURL: cfg.LLMBaseURL,
			Model:   cfg.LLMModel,
			Timeout: cfg.LLMTimeout,
		}, nil), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLMProvider)
	}
}

// NewImporter assembles the background import over opened backends.
func NewImporter(store storage.Store, blobs blob.Store, client llm.Extractor, rec *metrics.Recorder) *pipeline.Importer {
	return pipeline.NewImporter(pipeline.Deps{
		Repo:      store,
		Fetcher:   blobs,
		Extractor: pdftext.NewExtractor(),
		LLM:       client,
		Metrics:   rec,
	})
}
