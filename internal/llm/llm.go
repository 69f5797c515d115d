// Package llm defines the generative-text backends used to extract the
// structured content of a declaration transcript.
package llm

import (
	"context"
	"time"
)

// DefaultTimeout bounds a single extraction call when the configuration does not set one.
const DefaultTimeout = 120 * time.Second

// Request is one single-turn extraction call.
type Request struct {
	SystemInstruction string
	Transcript        string
	TaxYear           int
}

// Response is the raw reply of the backend. Text is not normalized.
type Response struct {
	Text     string
	Model    string
	Duration time.Duration
}

// Extractor sends a transcript to a generative-text backend. Implementations
// make exactly one upstream call per Extract and never retry. Errors carry one
// of the codes RateLimited, QuotaExceeded, UpstreamError or EmptyResponse.
type Extractor interface {
	Extract(ctx context.Context, req Request) (*Response, error)
	Name() string
}
