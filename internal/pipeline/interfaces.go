package pipeline

import (
	"context"

	"github.com/triad3/irpf-import/internal/storage"
)

// DocumentFetcher loads an uploaded document from blob storage.
type DocumentFetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// TextExtractor turns document bytes into a page-ordered transcript.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// Repository is what the import run needs from storage.
type Repository interface {
	storage.DeclarationRepository
	storage.RecordRepository
}
