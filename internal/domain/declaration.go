package domain

import (
	"encoding/json"
	"time"
)

// Declaration is one tax-year import attempt of an account.
// It is created in Processing status and receives exactly one terminal status.
type Declaration struct {
	ID                 string             `json:"id"`
	AccountID          string             `json:"account_id"`
	TaxYear            int                `json:"ano"`
	Status             Status             `json:"-"`
	Filename           string             `json:"nome_arquivo"`
	RawPayload         json.RawMessage    `json:"dados_extraidos,omitempty"`
	AmountToPay        float64            `json:"valor_pagar"`
	AmountToRefund     float64            `json:"valor_restituir"`
	ReceiptID          string             `json:"numero_recibo,omitempty"`
	SubmissionDeadline *time.Time         `json:"prazo_entrega,omitempty"`
	Summary            []CollectionResult `json:"resumo_importacao,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// DeclarationHeader holds the fields written back onto the declaration after fan-out.
type DeclarationHeader struct {
	AmountToPay        float64
	AmountToRefund     float64
	ReceiptID          string
	SubmissionDeadline *time.Time
	RawPayload         json.RawMessage
}

// MarshalJSON renders the status both as the user-facing label and as its structured form.
func (d Declaration) MarshalJSON() ([]byte, error) {
	type alias Declaration
	return json.Marshal(struct {
		alias
		Status     string `json:"status"`
		StatusInfo Status `json:"status_info"`
	}{
		alias:      alias(d),
		Status:     d.Status.String(),
		StatusInfo: d.Status,
	})
}

// TotalInserted sums the inserted counts of the import summary.
func (d *Declaration) TotalInserted() int {
	total := 0
	for _, r := range d.Summary {
		total += r.Inserted
	}
	return total
}
