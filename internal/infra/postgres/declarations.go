package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/triad3/irpf-import/internal/domain"
	"github.com/triad3/irpf-import/internal/storage"
)

// declarationRow is the table shape of a Declaration.
type declarationRow struct {
	ID                 string     `db:"id"`
	AccountID          string     `db:"account_id"`
	TaxYear            int        `db:"ano"`
	StatusKind         string     `db:"status_kind"`
	StatusStep         string     `db:"status_step"`
	StatusDetail       string     `db:"status_detail"`
	Filename           string     `db:"nome_arquivo"`
	RawPayload         []byte     `db:"dados_extraidos"`
	AmountToPay        float64    `db:"valor_pagar"`
	AmountToRefund     float64    `db:"valor_restituir"`
	ReceiptID          string     `db:"numero_recibo"`
	SubmissionDeadline *time.Time `db:"prazo_entrega"`
	Summary            []byte     `db:"resumo_importacao"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
}

var declarationColumns = storage.Columns(declarationRow{})

func newDeclarationRow(d *domain.Declaration) (*declarationRow, error) {
	var summary []byte
	if len(d.Summary) > 0 {
		b, err := json.Marshal(d.Summary)
		if err != nil {
			return nil, fmt.Errorf("marshal summary: %w", err)
		}
		summary = b
	}
	return &declarationRow{
		ID:                 d.ID,
		AccountID:          d.AccountID,
		TaxYear:            d.TaxYear,
		StatusKind:         string(d.Status.Kind),
		StatusStep:         string(d.Status.Step),
		StatusDetail:       d.Status.Detail,
		Filename:           d.Filename,
		RawPayload:         d.RawPayload,
		AmountToPay:        d.AmountToPay,
		AmountToRefund:     d.AmountToRefund,
		ReceiptID:          d.ReceiptID,
		SubmissionDeadline: d.SubmissionDeadline,
		Summary:            summary,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}, nil
}

func (r *declarationRow) toDomain() (*domain.Declaration, error) {
	kind, err := domain.ParseStatusKind(r.StatusKind)
	if err != nil {
		return nil, fmt.Errorf("declaration %s: %w", r.ID, err)
	}
	d := &domain.Declaration{
		ID:                 r.ID,
		AccountID:          r.AccountID,
		TaxYear:            r.TaxYear,
		Status:             domain.Status{Kind: kind, Step: domain.StepID(r.StatusStep), Detail: r.StatusDetail},
		Filename:           r.Filename,
		AmountToPay:        r.AmountToPay,
		AmountToRefund:     r.AmountToRefund,
		ReceiptID:          r.ReceiptID,
		SubmissionDeadline: r.SubmissionDeadline,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
	if len(r.RawPayload) > 0 {
		d.RawPayload = json.RawMessage(r.RawPayload)
	}
	if len(r.Summary) > 0 {
		if err := json.Unmarshal(r.Summary, &d.Summary); err != nil {
			return nil, fmt.Errorf("declaration %s: decode summary: %w", r.ID, err)
		}
	}
	return d, nil
}

func (s *Store) CreateDeclaration(ctx context.Context, d *domain.Declaration) error {
	row, err := newDeclarationRow(d)
	if err != nil {
		return fmt.Errorf("CreateDeclaration: %w", err)
	}

	query, args, err := psql().Insert(declarationsTable).
		Columns(declarationColumns...).
		Values(storage.Values(row)...).
		ToSql()
	if err != nil {
		return fmt.Errorf("CreateDeclaration: build query: %w", err)
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("CreateDeclaration: insert: %w", err)
	}
	return nil
}

func (s *Store) GetDeclaration(ctx context.Context, accountID, id string) (*domain.Declaration, error) {
	query, args, err := psql().Select(declarationColumns...).From(declarationsTable).
		Where(sq.Eq{"id": id, "account_id": accountID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("GetDeclaration: build query: %w", err)
	}

	var row declarationRow
	if err := pgxscan.Get(ctx, s.pool, &row, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("GetDeclaration: select: %w", err)
	}
	return row.toDomain()
}

func (s *Store) ListDeclarations(ctx context.Context, accountID string) ([]*domain.Declaration, error) {
	query, args, err := psql().Select(declarationColumns...).From(declarationsTable).
		Where(sq.Eq{"account_id": accountID}).
		OrderBy("created_at desc").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ListDeclarations: build query: %w", err)
	}
	return s.selectDeclarations(ctx, "ListDeclarations", query, args)
}

func (s *Store) ListStale(ctx context.Context, before time.Time) ([]*domain.Declaration, error) {
	query, args, err := psql().Select(declarationColumns...).From(declarationsTable).
		Where(sq.Eq{"status_kind": string(domain.StatusProcessing)}).
		Where(sq.Lt{"created_at": before}).
		OrderBy("created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ListStale: build query: %w", err)
	}
	return s.selectDeclarations(ctx, "ListStale", query, args)
}

func (s *Store) selectDeclarations(ctx context.Context, op, query string, args []any) ([]*domain.Declaration, error) {
	var rows []*declarationRow
	if err := pgxscan.Select(ctx, s.pool, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("%s: select: %w", op, err)
	}

	out := make([]*domain.Declaration, 0, len(rows))
	for _, r := range rows {
		d, err := r.toDomain()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *Store) UpdateDeclarationHeader(ctx context.Context, id string, h domain.DeclarationHeader) error {
	query, args, err := buildHeaderUpdate(id, h)
	if err != nil {
		return fmt.Errorf("UpdateDeclarationHeader: build query: %w", err)
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("UpdateDeclarationHeader: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func buildHeaderUpdate(id string, h domain.DeclarationHeader) (string, []any, error) {
	var raw []byte
	if len(h.RawPayload) > 0 {
		raw = h.RawPayload
	}
	return psql().Update(declarationsTable).
		Set("valor_pagar", h.AmountToPay).
		Set("valor_restituir", h.AmountToRefund).
		Set("numero_recibo", h.ReceiptID).
		Set("prazo_entrega", h.SubmissionDeadline).
		Set("dados_extraidos", raw).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id}).
		ToSql()
}

func (s *Store) UpdateStatus(ctx context.Context, id string, status domain.Status, summary []domain.CollectionResult) error {
	query, args, err := buildStatusUpdate(id, status, summary)
	if err != nil {
		return fmt.Errorf("UpdateStatus: build query: %w", err)
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("UpdateStatus: update: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Nothing matched: either the row is gone or it already left Processing.
	var exists bool
	err = s.pool.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM "+declarationsTable+" WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("UpdateStatus: check existence: %w", err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrStatusFinal
}

func buildStatusUpdate(id string, status domain.Status, summary []domain.CollectionResult) (string, []any, error) {
	if !status.IsTerminal() {
		return "", nil, errors.New("target status is not terminal")
	}

	var summaryJSON []byte
	if len(summary) > 0 {
		b, err := json.Marshal(summary)
		if err != nil {
			return "", nil, fmt.Errorf("marshal summary: %w", err)
		}
		summaryJSON = b
	}

	return psql().Update(declarationsTable).
		Set("status_kind", string(status.Kind)).
		Set("status_step", string(status.Step)).
		Set("status_detail", status.Detail).
		Set("resumo_importacao", summaryJSON).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id, "status_kind": string(domain.StatusProcessing)}).
		ToSql()
}
