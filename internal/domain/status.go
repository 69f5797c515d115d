package domain

import (
	"fmt"
	"strings"
)

// StatusKind is the stored discriminator of a declaration's lifecycle status.
type StatusKind string

const (
	StatusProcessing    StatusKind = "processing"
	StatusImported      StatusKind = "imported"
	StatusEmptyResponse StatusKind = "empty_response"
	StatusParseError    StatusKind = "parse_error"
	StatusNoData        StatusKind = "no_data"
	StatusMappingError  StatusKind = "mapping_error"
	StatusFailed        StatusKind = "failed"
)

// StepID names the import step that was running when a generic failure happened.
type StepID string

const (
	StepDownload    StepID = "download"
	StepExtractText StepID = "extract_text"
	StepAIRequest   StepID = "ai_request"
	StepNormalize   StepID = "normalize"
	StepMapPayload  StepID = "map_payload"
	StepPersist     StepID = "persist"
	StepReport      StepID = "report"
	StepQueue       StepID = "queue"
)

// MaxStatusDetail is the number of runes of an error message kept on a Failed status.
const MaxStatusDetail = 100

// Status is the lifecycle state of a Declaration. Step and Detail are only
// set for the Failed kind.
type Status struct {
	Kind   StatusKind `json:"kind"`
	Step   StepID     `json:"step,omitempty"`
	Detail string     `json:"detail,omitempty"`
}

func Processing() Status    { return Status{Kind: StatusProcessing} }
func Imported() Status      { return Status{Kind: StatusImported} }
func EmptyResponse() Status { return Status{Kind: StatusEmptyResponse} }
func ParseError() Status    { return Status{Kind: StatusParseError} }
func NoData() Status        { return Status{Kind: StatusNoData} }
func MappingError() Status  { return Status{Kind: StatusMappingError} }

// Failed builds the catch-all failure status. The detail is trimmed to MaxStatusDetail runes.
func Failed(step StepID, detail string) Status {
	return Status{Kind: StatusFailed, Step: step, Detail: Truncate(strings.TrimSpace(detail), MaxStatusDetail)}
}

// IsTerminal reports whether the status can no longer change.
func (s Status) IsTerminal() bool {
	switch s.Kind {
	case StatusImported, StatusEmptyResponse, StatusParseError, StatusNoData, StatusMappingError, StatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether a declaration in status s may move to status to.
// The only legal transitions leave Processing for a terminal status.
func (s Status) CanTransition(to Status) bool {
	return s.Kind == StatusProcessing && to.IsTerminal()
}

// String renders the label shown to end users.
func (s Status) String() string {
	switch s.Kind {
	case StatusProcessing:
		return "Processando"
	case StatusImported:
		return "Importada"
	case StatusEmptyResponse:
		return "Erro: Resposta vazia da IA"
	case StatusParseError:
		return "Erro ao processar resposta"
	case StatusNoData:
		return "Erro: Nenhum dado encontrado"
	case StatusMappingError:
		return "Erro ao processar dados"
	case StatusFailed:
		return fmt.Sprintf("Erro (%s): %s", s.Step, s.Detail)
	default:
		return string(s.Kind)
	}
}

// ParseStatusKind validates a stored kind value.
func ParseStatusKind(v string) (StatusKind, error) {
	k := StatusKind(v)
	switch k {
	case StatusProcessing, StatusImported, StatusEmptyResponse, StatusParseError, StatusNoData, StatusMappingError, StatusFailed:
		return k, nil
	}
	return "", fmt.Errorf("unknown status kind %q", v)
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
