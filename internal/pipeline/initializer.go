package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/triad3/irpf-import/internal/domain"
	"github.com/triad3/irpf-import/internal/logger"
	"github.com/triad3/irpf-import/internal/storage"
)

const (
	// DefaultFilename is stored when the upload carries no name.
	DefaultFilename = "declaracao.pdf"

	// MinTaxYear is the oldest tax year accepted for import.
	MinTaxYear = 2000
)

// StartRequest is phase one of an import.
type StartRequest struct {
	AccountID string
	TaxYear   int
	Filename  string
}

// Initializer validates an import request and creates its Declaration.
type Initializer struct {
	repo  storage.DeclarationRepository
	now   func() time.Time
	newID func() string
}

func NewInitializer(repo storage.DeclarationRepository) *Initializer {
	return &Initializer{
		repo:  repo,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Start inserts a Declaration in Processing status and returns it. Nothing
// else runs here; the caller hands the id to the background import.
func (i *Initializer) Start(ctx context.Context, req StartRequest) (*domain.Declaration, error) {
	accountID := strings.TrimSpace(req.AccountID)
	if accountID == "" {
		return nil, domain.Errorf(domain.CodeMissingRequiredField, "account id is required")
	}

	now := i.now().UTC()
	maxYear := now.Year() + 1
	if req.TaxYear < MinTaxYear || req.TaxYear > maxYear {
		return nil, domain.Errorf(domain.CodeMissingRequiredField, "tax year must be between %d and %d, got %d", MinTaxYear, maxYear, req.TaxYear)
	}

	filename := strings.TrimSpace(req.Filename)
	if filename == "" {
		filename = DefaultFilename
	}

	d := &domain.Declaration{
		ID:        i.newID(),
		AccountID: accountID,
		TaxYear:   req.TaxYear,
		Status:    domain.Processing(),
		Filename:  filename,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := i.repo.CreateDeclaration(ctx, d); err != nil {
		return nil, fmt.Errorf("Start: create declaration: %w", err)
	}

	log := logger.ForDeclaration(logger.FromContext(ctx), d.ID, d.AccountID)
	log.Info().Int("ano", d.TaxYear).Str("filename", d.Filename).Msg("Declaration created")

	return d, nil
}
