// Package openai implements llm.Extractor against any OpenAI-compatible
// chat/completions endpoint.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/triad3/irpf-import/internal/domain"
	"github.com/triad3/irpf-import/internal/llm"
	"github.com/triad3/irpf-import/internal/logger"
)

const (
	DefaultBaseURL   = "https://api.openai.com/v1"
	DefaultModelName = "gpt-4o-mini"

	backendName = "openai"

	// maxErrorBody caps how much of an error body is read and kept.
	maxErrorBody = 4096
)

// Config configures the OpenAI-compatible backend.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client sends extraction requests to a chat/completions endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a client. A nil httpClient uses http.DefaultClient.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModelName
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = llm.DefaultTimeout
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{cfg: cfg, httpClient: httpClient}
}

func (c *Client) Name() string {
	return backendName + ":" + c.cfg.Model
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat map[string]any `json:"response_format"`
	Messages       []chatMessage  `json:"messages"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Extract performs one chat/completions call in JSON mode.
func (c *Client) Extract(ctx context.Context, req llm.Request) (*llm.Response, error) {
	log := logger.FromContext(ctx)

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body := chatRequest{
		Model:          c.cfg.Model,
		Temperature:    0,
		ResponseFormat: map[string]any{"type": "json_object"},
		Messages: []chatMessage{
			{Role: "system", Content: req.SystemInstruction},
			{Role: "user", Content: req.Transcript},
		},
	}

	start := time.Now()
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := c.post(ctx, endpoint, body)
	elapsed := time.Since(start)
	if err != nil {
		log.Error().Err(err).Dur("elapsed", elapsed).Str("model", c.cfg.Model).Msg("chat completion failed")
		return nil, err
	}

	var cc chatResponse
	if err := json.Unmarshal(raw, &cc); err != nil {
		return nil, domain.NewError(domain.CodeUpstreamError, "openai: decode response", err)
	}
	if len(cc.Choices) == 0 || strings.TrimSpace(cc.Choices[0].Message.Content) == "" {
		return nil, domain.Errorf(domain.CodeEmptyResponse, "%s: empty response from model", backendName)
	}

	model := c.cfg.Model
	if cc.Model != "" {
		model = cc.Model
	}
	return &llm.Response{Text: cc.Choices[0].Message.Content, Model: model, Duration: elapsed}, nil
}

func (c *Client) post(ctx context.Context, url string, body chatRequest) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("post: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("post: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, llm.TransportError(backendName, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log := logger.FromContext(ctx)
			log.Warn().Err(err).Msg("openai response body close error")
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		text, quota := parseError(msg)
		return nil, llm.ClassifyStatus(backendName, resp.StatusCode, text, quota)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, llm.TransportError(backendName, err)
	}
	return raw, nil
}

// parseError extracts "code: message" from an OpenAI error envelope and
// falls back to the raw body. quota is set only by the insufficient_quota
// code or type; rate-limit messages mention billing as well.
func parseError(body []byte) (msg string, quota bool) {
	var env struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    any    `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err == nil && env.Error.Message != "" {
		code := env.Error.Type
		if s, ok := env.Error.Code.(string); ok && s != "" {
			code = s
		}
		quota = code == llm.QuotaCode || env.Error.Type == llm.QuotaCode
		if code != "" {
			return code + ": " + env.Error.Message, quota
		}
		return env.Error.Message, quota
	}
	return strings.TrimSpace(string(body)), false
}
