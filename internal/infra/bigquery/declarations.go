package bigquery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"

	"github.com/triad3/irpf-import/internal/domain"
)

// declarationRow mirrors the declaracoes_irpf table.
type declarationRow struct {
	ID                 string              `bigquery:"id"`
	AccountID          string              `bigquery:"account_id"`
	TaxYear            int64               `bigquery:"ano"`
	StatusKind         string              `bigquery:"status_kind"`
	StatusStep         bigquery.NullString `bigquery:"status_step"`
	StatusDetail       bigquery.NullString `bigquery:"status_detail"`
	Filename           bigquery.NullString `bigquery:"nome_arquivo"`
	RawPayload         bigquery.NullString `bigquery:"dados_extraidos"`
	AmountToPay        *big.Rat            `bigquery:"valor_pagar"`
	AmountToRefund     *big.Rat            `bigquery:"valor_restituir"`
	ReceiptID          bigquery.NullString `bigquery:"numero_recibo"`
	SubmissionDeadline bigquery.NullDate   `bigquery:"prazo_entrega"`
	Summary            bigquery.NullString `bigquery:"resumo_importacao"`
	CreatedAt          time.Time           `bigquery:"created_at"`
	UpdatedAt          time.Time           `bigquery:"updated_at"`
}

const declarationSelect = `
	SELECT id, account_id, ano, status_kind, status_step, status_detail,
	       nome_arquivo, dados_extraidos, valor_pagar, valor_restituir,
	       numero_recibo, prazo_entrega, resumo_importacao, created_at, updated_at
	FROM %s`

func (r *declarationRow) toDomain() (*domain.Declaration, error) {
	kind, err := domain.ParseStatusKind(r.StatusKind)
	if err != nil {
		return nil, fmt.Errorf("declaration %s: %w", r.ID, err)
	}
	d := &domain.Declaration{
		ID:        r.ID,
		AccountID: r.AccountID,
		TaxYear:   int(r.TaxYear),
		Status: domain.Status{
			Kind:   kind,
			Step:   domain.StepID(r.StatusStep.StringVal),
			Detail: r.StatusDetail.StringVal,
		},
		Filename:       r.Filename.StringVal,
		AmountToPay:    ratToFloat(r.AmountToPay),
		AmountToRefund: ratToFloat(r.AmountToRefund),
		ReceiptID:      r.ReceiptID.StringVal,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.SubmissionDeadline.Valid {
		t := r.SubmissionDeadline.Date.In(time.UTC)
		d.SubmissionDeadline = &t
	}
	if r.RawPayload.Valid && r.RawPayload.StringVal != "" {
		d.RawPayload = json.RawMessage(r.RawPayload.StringVal)
	}
	if r.Summary.Valid && r.Summary.StringVal != "" {
		if err := json.Unmarshal([]byte(r.Summary.StringVal), &d.Summary); err != nil {
			return nil, fmt.Errorf("declaration %s: decode summary: %w", r.ID, err)
		}
	}
	return d, nil
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

func nullDate(t *time.Time) bigquery.NullDate {
	if t == nil {
		return bigquery.NullDate{}
	}
	return bigquery.NullDate{Date: civil.DateOf(*t), Valid: true}
}

// CreateDeclaration inserts the declaration with a DML statement.
func (s *Store) CreateDeclaration(ctx context.Context, d *domain.Declaration) error {
	sql := fmt.Sprintf(`
		INSERT %s (
			id, account_id, ano, status_kind, status_step, status_detail,
			nome_arquivo, valor_pagar, valor_restituir, created_at, updated_at
		)
		VALUES (
			@id, @account_id, @ano, @status_kind, @status_step, @status_detail,
			@nome_arquivo, @valor_pagar, @valor_restituir, @created_at, @updated_at
		)
	`, s.table(declarationsTable))

	params := []bigquery.QueryParameter{
		{Name: "id", Value: d.ID},
		{Name: "account_id", Value: d.AccountID},
		{Name: "ano", Value: int64(d.TaxYear)},
		{Name: "status_kind", Value: string(d.Status.Kind)},
		{Name: "status_step", Value: nullString(string(d.Status.Step))},
		{Name: "status_detail", Value: nullString(d.Status.Detail)},
		{Name: "nome_arquivo", Value: nullString(d.Filename)},
		{Name: "valor_pagar", Value: numeric(d.AmountToPay)},
		{Name: "valor_restituir", Value: numeric(d.AmountToRefund)},
		{Name: "created_at", Value: d.CreatedAt},
		{Name: "updated_at", Value: d.UpdatedAt},
	}

	if _, err := s.runDML(ctx, sql, params); err != nil {
		return fmt.Errorf("CreateDeclaration: %w", err)
	}
	return nil
}

func (s *Store) GetDeclaration(ctx context.Context, accountID, id string) (*domain.Declaration, error) {
	sql := fmt.Sprintf(declarationSelect+`
		WHERE id = @id AND account_id = @account_id
		LIMIT 1
	`, s.table(declarationsTable))

	rows, err := s.readDeclarations(ctx, sql, []bigquery.QueryParameter{
		{Name: "id", Value: id},
		{Name: "account_id", Value: accountID},
	})
	if err != nil {
		return nil, fmt.Errorf("GetDeclaration: %w", err)
	}
	if len(rows) == 0 {
		return nil, domain.ErrNotFound
	}
	return rows[0], nil
}

func (s *Store) ListDeclarations(ctx context.Context, accountID string) ([]*domain.Declaration, error) {
	sql := fmt.Sprintf(declarationSelect+`
		WHERE account_id = @account_id
		ORDER BY created_at DESC
	`, s.table(declarationsTable))

	rows, err := s.readDeclarations(ctx, sql, []bigquery.QueryParameter{
		{Name: "account_id", Value: accountID},
	})
	if err != nil {
		return nil, fmt.Errorf("ListDeclarations: %w", err)
	}
	return rows, nil
}

func (s *Store) ListStale(ctx context.Context, before time.Time) ([]*domain.Declaration, error) {
	sql := fmt.Sprintf(declarationSelect+`
		WHERE status_kind = @processing AND created_at < @before
		ORDER BY created_at
	`, s.table(declarationsTable))

	rows, err := s.readDeclarations(ctx, sql, []bigquery.QueryParameter{
		{Name: "processing", Value: string(domain.StatusProcessing)},
		{Name: "before", Value: before},
	})
	if err != nil {
		return nil, fmt.Errorf("ListStale: %w", err)
	}
	return rows, nil
}

func (s *Store) readDeclarations(ctx context.Context, sql string, params []bigquery.QueryParameter) ([]*domain.Declaration, error) {
	q := s.client.Query(sql)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("query read: %w", err)
	}

	var out []*domain.Declaration
	for {
		var row declarationRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iter next: %w", err)
		}
		d, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *Store) UpdateDeclarationHeader(ctx context.Context, id string, h domain.DeclarationHeader) error {
	sql := fmt.Sprintf(`
		UPDATE %s
		SET valor_pagar = @valor_pagar,
		    valor_restituir = @valor_restituir,
		    numero_recibo = @numero_recibo,
		    prazo_entrega = @prazo_entrega,
		    dados_extraidos = @dados_extraidos,
		    updated_at = CURRENT_TIMESTAMP()
		WHERE id = @id
	`, s.table(declarationsTable))

	params := []bigquery.QueryParameter{
		{Name: "valor_pagar", Value: numeric(h.AmountToPay)},
		{Name: "valor_restituir", Value: numeric(h.AmountToRefund)},
		{Name: "numero_recibo", Value: nullString(h.ReceiptID)},
		{Name: "prazo_entrega", Value: nullDate(h.SubmissionDeadline)},
		{Name: "dados_extraidos", Value: nullString(string(h.RawPayload))},
		{Name: "id", Value: id},
	}

	n, err := s.runDML(ctx, sql, params)
	if err != nil {
		return fmt.Errorf("UpdateDeclarationHeader: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateStatus only touches rows still in Processing status.
func (s *Store) UpdateStatus(ctx context.Context, id string, status domain.Status, summary []domain.CollectionResult) error {
	if !status.IsTerminal() {
		return errors.New("UpdateStatus: target status is not terminal")
	}

	summaryJSON := ""
	if len(summary) > 0 {
		b, err := json.Marshal(summary)
		if err != nil {
			return fmt.Errorf("UpdateStatus: marshal summary: %w", err)
		}
		summaryJSON = string(b)
	}

	sql := fmt.Sprintf(`
		UPDATE %s
		SET status_kind = @status_kind,
		    status_step = @status_step,
		    status_detail = @status_detail,
		    resumo_importacao = @resumo_importacao,
		    updated_at = CURRENT_TIMESTAMP()
		WHERE id = @id AND status_kind = @processing
	`, s.table(declarationsTable))

	params := []bigquery.QueryParameter{
		{Name: "status_kind", Value: string(status.Kind)},
		{Name: "status_step", Value: nullString(string(status.Step))},
		{Name: "status_detail", Value: nullString(status.Detail)},
		{Name: "resumo_importacao", Value: nullString(summaryJSON)},
		{Name: "id", Value: id},
		{Name: "processing", Value: string(domain.StatusProcessing)},
	}

	n, err := s.runDML(ctx, sql, params)
	if err != nil {
		return fmt.Errorf("UpdateStatus: %w", err)
	}
	if n > 0 {
		return nil
	}

	exists, err := s.declarationExists(ctx, id)
	if err != nil {
		return fmt.Errorf("UpdateStatus: %w", err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrStatusFinal
}

func (s *Store) declarationExists(ctx context.Context, id string) (bool, error) {
	q := s.client.Query(fmt.Sprintf(`SELECT COUNT(1) AS n FROM %s WHERE id = @id`, s.table(declarationsTable)))
	q.Parameters = []bigquery.QueryParameter{{Name: "id", Value: id}}

	it, err := q.Read(ctx)
	if err != nil {
		return false, fmt.Errorf("query read: %w", err)
	}
	var row struct {
		N int64 `bigquery:"n"`
	}
	if err := it.Next(&row); err != nil {
		return false, fmt.Errorf("iter next: %w", err)
	}
	return row.N > 0, nil
}
