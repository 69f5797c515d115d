package gemini

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"google.golang.org/genai"

	"github.com/triad3/irpf-import/internal/domain"
	"github.com/triad3/irpf-import/internal/llm"
)

type mockGenerator struct {
	GenerateContentFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	calls               int
}

func (m *mockGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.calls++
	return m.GenerateContentFunc(ctx, model, contents, config)
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: text}}}},
		},
	}
}

func TestExtract(t *testing.T) {
	gen := &mockGenerator{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			if model != "gemini-test" {
				t.Errorf("model = %q", model)
			}
			if config.ResponseMIMEType != "application/json" {
				t.Errorf("ResponseMIMEType = %q", config.ResponseMIMEType)
			}
			if config.SystemInstruction == nil || config.SystemInstruction.Parts[0].Text != "schema" {
				t.Error("system instruction not forwarded")
			}
			if len(contents) != 1 || contents[0].Parts[0].Text != "transcript" {
				t.Error("transcript not forwarded as user content")
			}
			if _, ok := ctx.Deadline(); !ok {
				t.Error("call is not bounded by a deadline")
			}
			return textResponse(`{"rendimentos":[]}`), nil
		},
	}
	c := newClient(gen, Config{Model: "gemini-test", Timeout: time.Second})

	resp, err := c.Extract(context.Background(), llm.Request{SystemInstruction: "schema", Transcript: "transcript", TaxYear: 2024})
	if err != nil {
		t.Fatalf("Extract() unexpected error: %v", err)
	}
	if resp.Text != `{"rendimentos":[]}` {
		t.Errorf("Text = %q", resp.Text)
	}
	if resp.Model != "gemini-test" {
		t.Errorf("Model = %q", resp.Model)
	}
}

func TestExtractErrors(t *testing.T) {
	tests := []struct {
		name string
		resp *genai.GenerateContentResponse
		err  error
		want domain.ErrorCode
	}{
		{name: "empty reply", resp: textResponse("  "), want: domain.CodeEmptyResponse},
		{name: "no candidates", resp: &genai.GenerateContentResponse{}, want: domain.CodeEmptyResponse},
		{name: "rate limited", err: genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED", Message: "Too many requests"}, want: domain.CodeRateLimited},
		{name: "throttle mentions quota", err: genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED", Message: "Resource has been exhausted (e.g. check quota)."}, want: domain.CodeRateLimited},
		{name: "quota", err: genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED", Message: "You exceeded your current quota, check your plan and billing details"}, want: domain.CodeQuotaExceeded},
		{name: "wrapped pointer", err: fmt.Errorf("call: %w", &genai.APIError{Code: 503, Message: "unavailable"}), want: domain.CodeUpstreamError},
		{name: "timeout", err: context.DeadlineExceeded, want: domain.CodeUpstreamError},
		{name: "transport", err: errors.New("connection reset"), want: domain.CodeUpstreamError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &mockGenerator{
				GenerateContentFunc: func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
					return tt.resp, tt.err
				},
			}
			c := newClient(gen, Config{})

			_, err := c.Extract(context.Background(), llm.Request{Transcript: "x"})
			if !domain.IsCode(err, tt.want) {
				t.Fatalf("Extract() error = %v, want %s", err, tt.want)
			}
			if gen.calls != 1 {
				t.Errorf("calls = %d, want exactly 1", gen.calls)
			}
		})
	}
}

func TestName(t *testing.T) {
	c := newClient(&mockGenerator{}, Config{})
	if c.Name() != "gemini:"+DefaultModelName {
		t.Errorf("Name() = %q", c.Name())
	}
}
