package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestStatus_String(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		want   string
	}{
		{name: "processing", status: Processing(), want: "Processando"},
		{name: "imported", status: Imported(), want: "Importada"},
		{name: "empty response", status: EmptyResponse(), want: "Erro: Resposta vazia da IA"},
		{name: "parse error", status: ParseError(), want: "Erro ao processar resposta"},
		{name: "no data", status: NoData(), want: "Erro: Nenhum dado encontrado"},
		{name: "mapping error", status: MappingError(), want: "Erro ao processar dados"},
		{name: "failed", status: Failed(StepAIRequest, "QuotaExceeded: sem créditos"), want: "Erro (ai_request): QuotaExceeded: sem créditos"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFailed_TruncatesDetail(t *testing.T) {
	detail := strings.Repeat("é", MaxStatusDetail+40)
	s := Failed(StepPersist, detail)

	if got := len([]rune(s.Detail)); got != MaxStatusDetail {
		t.Errorf("detail length = %d runes, want %d", got, MaxStatusDetail)
	}
}

func TestStatus_CanTransition(t *testing.T) {
	terminal := []Status{Imported(), EmptyResponse(), ParseError(), NoData(), MappingError(), Failed(StepQueue, "x")}

	for _, to := range terminal {
		if !Processing().CanTransition(to) {
			t.Errorf("Processing -> %s should be allowed", to)
		}
		if Processing().CanTransition(Processing()) {
			t.Errorf("Processing -> Processing should be refused")
		}
		for _, from := range terminal {
			if from.CanTransition(to) {
				t.Errorf("%s -> %s should be refused", from, to)
			}
			if from.CanTransition(Processing()) {
				t.Errorf("%s -> Processando should be refused", from)
			}
		}
	}
}

func TestParseStatusKind(t *testing.T) {
	if _, err := ParseStatusKind("imported"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := ParseStatusKind("Importada"); err == nil {
		t.Error("expected error for rendered label")
	}
}

func TestDeclaration_MarshalJSON(t *testing.T) {
	d := Declaration{ID: "d1", AccountID: "acc", TaxYear: 2024, Status: Failed(StepExtractText, "boom")}

	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if out["status"] != "Erro (extract_text): boom" {
		t.Errorf("status = %v", out["status"])
	}
	info, ok := out["status_info"].(map[string]any)
	if !ok || info["kind"] != "failed" || info["step"] != "extract_text" {
		t.Errorf("status_info = %v", out["status_info"])
	}
}

func TestErrorCodes(t *testing.T) {
	base := NewError(CodeQuotaExceeded, "billing", errors.New("402"))
	wrapped := fmt.Errorf("ai step: %w", base)

	code, ok := CodeOf(wrapped)
	if !ok || code != CodeQuotaExceeded {
		t.Errorf("CodeOf = %v, %v", code, ok)
	}
	if !IsCode(wrapped, CodeQuotaExceeded) {
		t.Error("IsCode should match wrapped error")
	}
	if IsCode(errors.New("plain"), CodeQuotaExceeded) {
		t.Error("IsCode should not match plain error")
	}
	if !strings.Contains(wrapped.Error(), "402") {
		t.Errorf("cause missing from %q", wrapped.Error())
	}
}
