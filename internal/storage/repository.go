// Package storage defines the persistence contracts of the import pipeline.
// Implementations live under internal/infra.
package storage

import (
	"context"
	"time"

	"github.com/triad3/irpf-import/internal/domain"
)

// DeclarationRepository provides declaration lifecycle operations.
type DeclarationRepository interface {
	// CreateDeclaration inserts a new declaration row in Processing status.
	CreateDeclaration(ctx context.Context, d *domain.Declaration) error

	// GetDeclaration returns one declaration of the account, or domain.ErrNotFound.
	GetDeclaration(ctx context.Context, accountID, id string) (*domain.Declaration, error)

	// ListDeclarations returns the account's declarations, newest first.
	ListDeclarations(ctx context.Context, accountID string) ([]*domain.Declaration, error)

	// UpdateDeclarationHeader writes the amounts, receipt, deadline and raw payload.
	UpdateDeclarationHeader(ctx context.Context, id string, h domain.DeclarationHeader) error

	// UpdateStatus moves a declaration still in Processing status to a terminal
	// status and stores the import summary. It returns domain.ErrStatusFinal
	// when the stored status is no longer Processing and domain.ErrNotFound when
	// the row does not exist.
	UpdateStatus(ctx context.Context, id string, status domain.Status, summary []domain.CollectionResult) error

	// ListStale returns declarations still in Processing status created before the cutoff.
	ListStale(ctx context.Context, before time.Time) ([]*domain.Declaration, error)
}

// RecordRepository provides the bulk inserts of the eight destination collections.
// Each Insert call writes all rows in one operation.
type RecordRepository interface {
	InsertIncomeItems(ctx context.Context, rows []domain.IncomeItem) error
	InsertAssetRights(ctx context.Context, rows []domain.AssetRightItem) error
	InsertDeclarationDebts(ctx context.Context, rows []domain.DeclarationDebtItem) error
	InsertFixedAssets(ctx context.Context, rows []domain.FixedAsset) error
	InsertFinancialApplications(ctx context.Context, rows []domain.FinancialApplication) error
	InsertPensionPlans(ctx context.Context, rows []domain.PensionPlan) error
	InsertBankAccounts(ctx context.Context, rows []domain.BankAccount) error
	InsertDebts(ctx context.Context, rows []domain.GenericDebt) error
}

// DeclarationItemReader reads back the declaration-linked collections.
type DeclarationItemReader interface {
	ListIncomeItems(ctx context.Context, accountID, declarationID string) ([]domain.IncomeItem, error)
	ListAssetRights(ctx context.Context, accountID, declarationID string) ([]domain.AssetRightItem, error)
	ListDeclarationDebts(ctx context.Context, accountID, declarationID string) ([]domain.DeclarationDebtItem, error)
}

// Store is a complete storage backend.
type Store interface {
	DeclarationRepository
	RecordRepository
	DeclarationItemReader

	// Migrate creates the tables when they do not exist.
	Migrate(ctx context.Context) error
	Close() error
}
