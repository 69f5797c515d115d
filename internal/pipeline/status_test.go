package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/triad3/irpf-import/internal/domain"
)

func TestStatusFromError(t *testing.T) {
	tests := []struct {
		name string
		step domain.StepID
		err  error
		want string
	}{
		{"empty response", domain.StepAIRequest, domain.Errorf(domain.CodeEmptyResponse, "blank"), "Erro: Resposta vazia da IA"},
		{"malformed", domain.StepNormalize, domain.Errorf(domain.CodeMalformedExtractionPayload, "bad"), "Erro ao processar resposta"},
		{"no data", domain.StepNormalize, domain.Errorf(domain.CodeNoDataExtracted, "none"), "Erro: Nenhum dado encontrado"},
		{"mapping", domain.StepMapPayload, fmt.Errorf("wrapped: %w", domain.Errorf(domain.CodeMappingFailed, "x")), "Erro ao processar dados"},
		{"rate limited", domain.StepAIRequest, domain.NewError(domain.CodeRateLimited, "gemini: rate limited", errors.New("429")), "Erro (ai_request): RateLimited: gemini: rate limited"},
		{"plain error", domain.StepDownload, errors.New("bucket missing"), "Erro (download): bucket missing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusFromError(tt.step, tt.err).String(); got != tt.want {
				t.Errorf("StatusFromError() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStatusFromError_TruncatesDetail(t *testing.T) {
	s := StatusFromError(domain.StepPersist, errors.New(strings.Repeat("x", 500)))
	if got := len([]rune(s.Detail)); got != domain.MaxStatusDetail {
		t.Errorf("detail length = %d, want %d", got, domain.MaxStatusDetail)
	}
}

func TestReporter_RejectsNonTerminal(t *testing.T) {
	repo := newMockRepository()
	repo.seed("d", "acc", 2024)

	if err := NewReporter(repo).Report(testContext(), "d", domain.Processing(), nil); err == nil {
		t.Error("Report() should refuse Processando")
	}
	if repo.statusCalls != 0 {
		t.Error("non-terminal status reached the repository")
	}
}

func TestSweeper_Sweep(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	repo := newMockRepository()
	repo.seed("stale", "acc", 2024)
	repo.seed("done", "acc", 2024)
	_ = repo.UpdateStatus(context.Background(), "done", domain.Imported(), nil)

	var gotCutoff time.Time
	repo.ListStaleFunc = func(ctx context.Context, before time.Time) ([]*domain.Declaration, error) {
		gotCutoff = before
		// "done" finished between the listing and the update.
		return []*domain.Declaration{
			{ID: "stale", AccountID: "acc"},
			{ID: "done", AccountID: "acc"},
		}, nil
	}

	s := NewSweeper(repo)
	s.now = func() time.Time { return now }

	closed, err := s.Sweep(testContext(), 30*time.Minute)
	if err != nil {
		t.Fatalf("Sweep() unexpected error: %v", err)
	}
	if closed != 1 {
		t.Errorf("closed = %d, want 1", closed)
	}
	if !gotCutoff.Equal(now.Add(-30 * time.Minute)) {
		t.Errorf("cutoff = %v", gotCutoff)
	}
	if got := repo.status("stale").String(); got != "Erro (queue): importação interrompida" {
		t.Errorf("stale status = %q", got)
	}
	if got := repo.status("done"); got != domain.Imported() {
		t.Errorf("finished declaration changed to %s", got)
	}
}

func TestSweeper_ListError(t *testing.T) {
	repo := newMockRepository()
	repo.ListStaleFunc = func(ctx context.Context, before time.Time) ([]*domain.Declaration, error) {
		return nil, errors.New("timeout")
	}

	if _, err := NewSweeper(repo).Sweep(testContext(), time.Minute); err == nil {
		t.Error("Sweep() expected error")
	}
}
