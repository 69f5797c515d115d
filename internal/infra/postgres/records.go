package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/triad3/irpf-import/internal/domain"
	"github.com/triad3/irpf-import/internal/storage"
)

// buildInsert builds one multi-row INSERT for rows of a single record type.
func buildInsert[T any](table string, rows []T) (string, []any, error) {
	if len(rows) == 0 {
		return "", nil, fmt.Errorf("no rows for %s", table)
	}
	b := psql().Insert(table).Columns(storage.Columns(rows[0])...)
	for i := range rows {
		b = b.Values(storage.Values(&rows[i])...)
	}
	return b.ToSql()
}

func insertRows[T any](ctx context.Context, db execer, table string, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	query, args, err := buildInsert(table, rows)
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	return nil
}

func (s *Store) InsertIncomeItems(ctx context.Context, rows []domain.IncomeItem) error {
	if err := insertRows(ctx, s.pool, string(domain.CollectionIncome), rows); err != nil {
		return fmt.Errorf("InsertIncomeItems: %w", err)
	}
	return nil
}

func (s *Store) InsertAssetRights(ctx context.Context, rows []domain.AssetRightItem) error {
	if err := insertRows(ctx, s.pool, string(domain.CollectionAssetsRights), rows); err != nil {
		return fmt.Errorf("InsertAssetRights: %w", err)
	}
	return nil
}

func (s *Store) InsertDeclarationDebts(ctx context.Context, rows []domain.DeclarationDebtItem) error {
	if err := insertRows(ctx, s.pool, string(domain.CollectionDeclarationDebts), rows); err != nil {
		return fmt.Errorf("InsertDeclarationDebts: %w", err)
	}
	return nil
}

func (s *Store) InsertFixedAssets(ctx context.Context, rows []domain.FixedAsset) error {
	if err := insertRows(ctx, s.pool, string(domain.CollectionFixedAssets), rows); err != nil {
		return fmt.Errorf("InsertFixedAssets: %w", err)
	}
	return nil
}

func (s *Store) InsertFinancialApplications(ctx context.Context, rows []domain.FinancialApplication) error {
	if err := insertRows(ctx, s.pool, string(domain.CollectionFinancialApplications), rows); err != nil {
		return fmt.Errorf("InsertFinancialApplications: %w", err)
	}
	return nil
}

func (s *Store) InsertPensionPlans(ctx context.Context, rows []domain.PensionPlan) error {
	if err := insertRows(ctx, s.pool, string(domain.CollectionPensionPlans), rows); err != nil {
		return fmt.Errorf("InsertPensionPlans: %w", err)
	}
	return nil
}

func (s *Store) InsertBankAccounts(ctx context.Context, rows []domain.BankAccount) error {
	if err := insertRows(ctx, s.pool, string(domain.CollectionBankAccounts), rows); err != nil {
		return fmt.Errorf("InsertBankAccounts: %w", err)
	}
	return nil
}

func (s *Store) InsertDebts(ctx context.Context, rows []domain.GenericDebt) error {
	if err := insertRows(ctx, s.pool, string(domain.CollectionDebts), rows); err != nil {
		return fmt.Errorf("InsertDebts: %w", err)
	}
	return nil
}

func buildItemSelect(table string, columns []string, accountID, declarationID string) (string, []any, error) {
	return psql().Select(columns...).From(table).
		Where(sq.Eq{"account_id": accountID, "declaracao_id": declarationID}).
		OrderBy("created_at", "id").
		ToSql()
}

func selectItems[T any](ctx context.Context, s *Store, table string, accountID, declarationID string) ([]T, error) {
	var zero T
	query, args, err := buildItemSelect(table, storage.Columns(zero), accountID, declarationID)
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows := make([]T, 0)
	if err := pgxscan.Select(ctx, s.pool, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select from %s: %w", table, err)
	}
	return rows, nil
}

func (s *Store) ListIncomeItems(ctx context.Context, accountID, declarationID string) ([]domain.IncomeItem, error) {
	rows, err := selectItems[domain.IncomeItem](ctx, s, string(domain.CollectionIncome), accountID, declarationID)
	if err != nil {
		return nil, fmt.Errorf("ListIncomeItems: %w", err)
	}
	return rows, nil
}

func (s *Store) ListAssetRights(ctx context.Context, accountID, declarationID string) ([]domain.AssetRightItem, error) {
	rows, err := selectItems[domain.AssetRightItem](ctx, s, string(domain.CollectionAssetsRights), accountID, declarationID)
	if err != nil {
		return nil, fmt.Errorf("ListAssetRights: %w", err)
	}
	return rows, nil
}

func (s *Store) ListDeclarationDebts(ctx context.Context, accountID, declarationID string) ([]domain.DeclarationDebtItem, error) {
	rows, err := selectItems[domain.DeclarationDebtItem](ctx, s, string(domain.CollectionDeclarationDebts), accountID, declarationID)
	if err != nil {
		return nil, fmt.Errorf("ListDeclarationDebts: %w", err)
	}
	return rows, nil
}

var _ storage.Store = (*Store)(nil)
