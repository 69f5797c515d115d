package bigquery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"

	"github.com/triad3/irpf-import/internal/domain"
	"github.com/triad3/irpf-import/internal/storage"
)

// recordSaver streams one domain record built from its db-tagged columns.
type recordSaver struct {
	id      string
	columns map[string]any
	created time.Time
}

func newRecordSaver(record any, created time.Time) *recordSaver {
	cols := storage.ToMap(record)
	id, _ := cols["id"].(string)
	return &recordSaver{id: id, columns: cols, created: created}
}

// Save implements bigquery.ValueSaver. The record id doubles as insert id
// so that retried streaming calls are deduplicated.
func (r *recordSaver) Save() (map[string]bigquery.Value, string, error) {
	row := make(map[string]bigquery.Value, len(r.columns)+1)
	for k, v := range r.columns {
		row[k] = toBigQueryValue(v)
	}
	row["created_at"] = r.created
	return row, r.id, nil
}

func toBigQueryValue(v any) bigquery.Value {
	switch x := v.(type) {
	case time.Time:
		return civil.DateOf(x)
	case *time.Time:
		if x == nil {
			return nil
		}
		return civil.DateOf(*x)
	case float64:
		return numeric(x)
	case *float64:
		if x == nil {
			return nil
		}
		return numeric(*x)
	case int:
		return int64(x)
	case *int:
		if x == nil {
			return nil
		}
		return int64(*x)
	case *string:
		if x == nil {
			return nil
		}
		return *x
	default:
		return v
	}
}

func insertRecords[T any](ctx context.Context, s *Store, table string, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	now := time.Now().UTC()
	savers := make([]*recordSaver, 0, len(rows))
	for i := range rows {
		savers = append(savers, newRecordSaver(&rows[i], now))
	}

	inserter := s.client.Dataset(s.datasetID).Table(table).Inserter()
	if err := inserter.Put(ctx, savers); err != nil {
		return fmt.Errorf("streaming insert into %s: %w", table, err)
	}
	return nil
}

func (s *Store) InsertIncomeItems(ctx context.Context, rows []domain.IncomeItem) error {
	if err := insertRecords(ctx, s, string(domain.CollectionIncome), rows); err != nil {
		return fmt.Errorf("InsertIncomeItems: %w", err)
	}
	return nil
}

func (s *Store) InsertAssetRights(ctx context.Context, rows []domain.AssetRightItem) error {
	if err := insertRecords(ctx, s, string(domain.CollectionAssetsRights), rows); err != nil {
		return fmt.Errorf("InsertAssetRights: %w", err)
	}
	return nil
}

func (s *Store) InsertDeclarationDebts(ctx context.Context, rows []domain.DeclarationDebtItem) error {
	if err := insertRecords(ctx, s, string(domain.CollectionDeclarationDebts), rows); err != nil {
		return fmt.Errorf("InsertDeclarationDebts: %w", err)
	}
	return nil
}

func (s *Store) InsertFixedAssets(ctx context.Context, rows []domain.FixedAsset) error {
	if err := insertRecords(ctx, s, string(domain.CollectionFixedAssets), rows); err != nil {
		return fmt.Errorf("InsertFixedAssets: %w", err)
	}
	return nil
}

func (s *Store) InsertFinancialApplications(ctx context.Context, rows []domain.FinancialApplication) error {
	if err := insertRecords(ctx, s, string(domain.CollectionFinancialApplications), rows); err != nil {
		return fmt.Errorf("InsertFinancialApplications: %w", err)
	}
	return nil
}

func (s *Store) InsertPensionPlans(ctx context.Context, rows []domain.PensionPlan) error {
	if err := insertRecords(ctx, s, string(domain.CollectionPensionPlans), rows); err != nil {
		return fmt.Errorf("InsertPensionPlans: %w", err)
	}
	return nil
}

func (s *Store) InsertBankAccounts(ctx context.Context, rows []domain.BankAccount) error {
	if err := insertRecords(ctx, s, string(domain.CollectionBankAccounts), rows); err != nil {
		return fmt.Errorf("InsertBankAccounts: %w", err)
	}
	return nil
}

func (s *Store) InsertDebts(ctx context.Context, rows []domain.GenericDebt) error {
	if err := insertRecords(ctx, s, string(domain.CollectionDebts), rows); err != nil {
		return fmt.Errorf("InsertDebts: %w", err)
	}
	return nil
}

// numericColumns are cast to FLOAT64 on read so rows load into the domain types.
var numericColumns = map[string]bool{
	"valor":                       true,
	"irrf":                        true,
	"contribuicao_previdenciaria": true,
	"situacao_ano_anterior":       true,
	"situacao_ano_atual":          true,
}

func selectList(columns []string) string {
	parts := make([]string, len(columns))
	for i, c := range columns {
		if numericColumns[c] {
			parts[i] = fmt.Sprintf("CAST(%s AS FLOAT64) AS %s", c, c)
		} else {
			parts[i] = c
		}
	}
	return strings.Join(parts, ", ")
}

func readItems[T any](ctx context.Context, s *Store, table, accountID, declarationID string) ([]T, error) {
	var zero T
	sql := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE account_id = @account_id AND declaracao_id = @declaracao_id
		ORDER BY created_at, id
	`, selectList(storage.Columns(zero)), s.table(table))

	q := s.client.Query(sql)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "account_id", Value: accountID},
		{Name: "declaracao_id", Value: declarationID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("query read: %w", err)
	}

	rows := make([]T, 0)
	for {
		var r T
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iter next: %w", err)
		}
		rows = append(rows, r)
	}
	return rows, nil
}

func (s *Store) ListIncomeItems(ctx context.Context, accountID, declarationID string) ([]domain.IncomeItem, error) {
	rows, err := readItems[domain.IncomeItem](ctx, s, string(domain.CollectionIncome), accountID, declarationID)
	if err != nil {
		return nil, fmt.Errorf("ListIncomeItems: %w", err)
	}
	return rows, nil
}

func (s *Store) ListAssetRights(ctx context.Context, accountID, declarationID string) ([]domain.AssetRightItem, error) {
	rows, err := readItems[domain.AssetRightItem](ctx, s, string(domain.CollectionAssetsRights), accountID, declarationID)
	if err != nil {
		return nil, fmt.Errorf("ListAssetRights: %w", err)
	}
	return rows, nil
}

func (s *Store) ListDeclarationDebts(ctx context.Context, accountID, declarationID string) ([]domain.DeclarationDebtItem, error) {
	rows, err := readItems[domain.DeclarationDebtItem](ctx, s, string(domain.CollectionDeclarationDebts), accountID, declarationID)
	if err != nil {
		return nil, fmt.Errorf("ListDeclarationDebts: %w", err)
	}
	return rows, nil
}

var _ storage.Store = (*Store)(nil)
