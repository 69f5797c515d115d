package extraction

import (
	"errors"
	"strings"
	"testing"

	"github.com/triad3/irpf-import/internal/domain"
)

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```\n", `{"a":1}`},
		{"prose around", "Here it is:\n{\"a\":1}\nThanks", `{"a":1}`},
		{"single line fence", "```{}```", "{}"},
		{"top level array kept whole", `[{"a":1}]`, `[{"a":1}]`},
		{"prose before array", "Itens:\n[{\"a\":1}]", "Itens:\n[{\"a\":1}]"},
		{"blank", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripCodeFences(tt.in); got != tt.want {
				t.Errorf("StripCodeFences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestReplaceTypography(t *testing.T) {
	in := "“nome”: ‘x’ – y — z…"
	want := `"nome": 'x' - y - z...`
	if got := ReplaceTypography(in); got != want {
		t.Errorf("ReplaceTypography() = %q, want %q", got, want)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantCode  domain.ErrorCode
		wantTotal int
	}{
		{
			name:      "valid object",
			raw:       `{"rendimentos":[{"fonte_pagadora":"ACME LTDA"}],"bens_direitos":[{"codigo":"01"}]}`,
			wantTotal: 2,
		},
		{
			name:      "fenced with smart quotes",
			raw:       "```json\n{“rendimentos”: [{“valor”: 10}]}\n```",
			wantTotal: 1,
		},
		{
			name:      "newline inside string needs loose pass",
			raw:       "{\"dividas\": [{\"nome\": \"Financiamento\ncasa\"}]}",
			wantTotal: 1,
		},
		{
			name:     "broken json",
			raw:      "{ broken json",
			wantCode: domain.CodeMalformedExtractionPayload,
		},
		{
			name:     "top level array",
			raw:      `[{"a":1}]`,
			wantCode: domain.CodeMalformedExtractionPayload,
		},
		{
			name:     "fenced top level array",
			raw:      "```json\n[{\"rendimentos\":[{\"valor\":10}]}]\n```",
			wantCode: domain.CodeMalformedExtractionPayload,
		},
		{
			name:     "empty reply",
			raw:      "",
			wantCode: domain.CodeEmptyResponse,
		},
		{
			name:     "empty fence",
			raw:      "```json\n```",
			wantCode: domain.CodeEmptyResponse,
		},
		{
			name:     "all arrays empty",
			raw:      `{"declaracao":{"valor_pagar":10},"rendimentos":[],"dividas":[]}`,
			wantCode: domain.CodeNoDataExtracted,
		},
		{
			name:     "arrays absent",
			raw:      `{}`,
			wantCode: domain.CodeNoDataExtracted,
		},
		{
			name:     "null",
			raw:      `null`,
			wantCode: domain.CodeMalformedExtractionPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.raw)
			if tt.wantCode != "" {
				if !domain.IsCode(err, tt.wantCode) {
					t.Fatalf("Normalize() error = %v, want code %s", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize() unexpected error: %v", err)
			}
			if got.Total != tt.wantTotal {
				t.Errorf("Total = %d, want %d", got.Total, tt.wantTotal)
			}
		})
	}
}

func TestNormalizeKeepsCurlyQuotesInsideStrings(t *testing.T) {
	raw := `{"bens_direitos":[{"discriminacao":"Apto “Bela Vista”"}]}`

	got, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize() unexpected error: %v", err)
	}
	if got.Clean != raw {
		t.Errorf("Clean = %q, want the reply unchanged", got.Clean)
	}
	items := got.Raw["bens_direitos"].([]any)
	if d := items[0].(map[string]any)["discriminacao"]; d != "Apto “Bela Vista”" {
		t.Errorf("discriminacao = %q", d)
	}
}

func TestNormalizeMalformedCarriesSnippet(t *testing.T) {
	raw := "{ " + strings.Repeat("x", 2000)
	_, err := Normalize(raw)

	var e *domain.Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *domain.Error, got %v", err)
	}
	if e.Code != domain.CodeMalformedExtractionPayload {
		t.Fatalf("Code = %s", e.Code)
	}
	if n := len([]rune(e.Snippet)); n != domain.MaxSnippet {
		t.Errorf("snippet length = %d, want %d", n, domain.MaxSnippet)
	}
	if !strings.HasPrefix(e.Snippet, "{ xxx") {
		t.Errorf("snippet = %q", e.Snippet[:10])
	}
}

func TestCountItems(t *testing.T) {
	obj := map[string]any{
		"rendimentos":      []any{map[string]any{}, map[string]any{}},
		"contas_bancarias": []any{map[string]any{}},
		"dividas":          "not an array",
	}
	counts := CountItems(obj)
	if counts[domain.CollectionIncome] != 2 {
		t.Errorf("income = %d, want 2", counts[domain.CollectionIncome])
	}
	if counts[domain.CollectionBankAccounts] != 1 {
		t.Errorf("bank accounts = %d, want 1", counts[domain.CollectionBankAccounts])
	}
	if counts[domain.CollectionDebts] != 0 {
		t.Errorf("debts = %d, want 0", counts[domain.CollectionDebts])
	}
	if len(counts) != len(domain.AllCollections) {
		t.Errorf("len(counts) = %d, want %d", len(counts), len(domain.AllCollections))
	}
}
