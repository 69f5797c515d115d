// Package gemini implements llm.Extractor on top of the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/triad3/irpf-import/internal/domain"
	"github.com/triad3/irpf-import/internal/llm"
)

// DefaultModelName is used when no model is configured.
const DefaultModelName = "gemini-2.5-flash"

const backendName = "gemini"

// generator is the subset of *genai.Models the client calls.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Config configures the Gemini backend.
type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client sends extraction requests to Gemini.
type Client struct {
	models  generator
	model   string
	timeout time.Duration
}

// NewClient creates a Gemini client. An empty API key lets the SDK fall back
// to GOOGLE_API_KEY or Vertex AI application default credentials.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	cc := &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1beta"},
	}
	if cfg.APIKey != "" {
		cc.APIKey = cfg.APIKey
		cc.Backend = genai.BackendGeminiAPI
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("NewClient: create genai client: %w", err)
	}
	return newClient(client.Models, cfg), nil
}

func newClient(models generator, cfg Config) *Client {
	c := &Client{models: models, model: cfg.Model, timeout: cfg.Timeout}
	if c.model == "" {
		c.model = DefaultModelName
	}
	if c.timeout <= 0 {
		c.timeout = llm.DefaultTimeout
	}
	return c
}

func (c *Client) Name() string {
	return backendName + ":" + c.model
}

// Extract performs one GenerateContent call with a JSON response MIME type.
func (c *Client) Extract(ctx context.Context, req llm.Request) (*llm.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.SystemInstruction, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr[float32](0),
	}
	contents := []*genai.Content{
		genai.NewContentFromText(req.Transcript, genai.RoleUser),
	}

	start := time.Now()
	resp, err := c.models.GenerateContent(ctx, c.model, contents, config)
	elapsed := time.Since(start)
	if err != nil {
		return nil, classify(err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return nil, domain.Errorf(domain.CodeEmptyResponse, "%s: empty response from model", backendName)
	}

	model := c.model
	if resp.ModelVersion != "" {
		model = resp.ModelVersion
	}
	return &llm.Response{Text: text, Model: model, Duration: elapsed}, nil
}

func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Status + " " + apiErr.Message
		return llm.ClassifyStatus(backendName, apiErr.Code, msg, llm.IsQuotaMessage(apiErr.Message))
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		msg := apiErrPtr.Status + " " + apiErrPtr.Message
		return llm.ClassifyStatus(backendName, apiErrPtr.Code, msg, llm.IsQuotaMessage(apiErrPtr.Message))
	}
	return llm.TransportError(backendName, err)
}
