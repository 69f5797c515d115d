package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/triad3/irpf-import/internal/domain"
	"github.com/triad3/irpf-import/internal/extraction"
	"github.com/triad3/irpf-import/internal/logger"
	"github.com/triad3/irpf-import/internal/metrics"
	"github.com/triad3/irpf-import/internal/storage"
)

// PersistInput is one decoded payload bound to its declaration.
type PersistInput struct {
	Declaration *domain.Declaration
	Payload     *extraction.Payload
	RawPayload  json.RawMessage
	// Today is the fallback for missing required dates.
	Today time.Time
}

// Persister fans a payload out into the eight record collections.
// Collections are written independently; one failing insert does not stop the others.
type Persister struct {
	records storage.RecordRepository
	decls   storage.DeclarationRepository
	metrics *metrics.Recorder
	newID   func() string
}

func NewPersister(records storage.RecordRepository, decls storage.DeclarationRepository, rec *metrics.Recorder) *Persister {
	if rec == nil {
		rec = metrics.NewNop()
	}
	return &Persister{
		records: records,
		decls:   decls,
		metrics: rec,
		newID:   uuid.NewString,
	}
}

// Persist maps and inserts every collection, then writes the declaration
// header. It returns one result per collection in domain.AllCollections order.
func (p *Persister) Persist(ctx context.Context, in PersistInput) []domain.CollectionResult {
	d := in.Declaration
	payload := in.Payload
	if payload == nil {
		payload = &extraction.Payload{}
	}
	today := in.Today
	if today.IsZero() {
		today = time.Now()
	}

	mc := mapContext{
		accountID:     d.AccountID,
		declarationID: d.ID,
		taxYear:       d.TaxYear,
		today:         time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC),
		newID:         p.newID,
	}

	results := []domain.CollectionResult{
		insertCollection(ctx, domain.CollectionIncome, mapIncome(mc, payload.Income), p.records.InsertIncomeItems),
		insertCollection(ctx, domain.CollectionAssetsRights, mapAssetRights(mc, payload.AssetsRights), p.records.InsertAssetRights),
		insertCollection(ctx, domain.CollectionDeclarationDebts, mapDeclarationDebts(mc, payload.DeclarationDebts), p.records.InsertDeclarationDebts),
		insertCollection(ctx, domain.CollectionFixedAssets, mapFixedAssets(mc, payload.FixedAssets), p.records.InsertFixedAssets),
		insertCollection(ctx, domain.CollectionFinancialApplications, mapFinancialApplications(mc, payload.FinancialApplications), p.records.InsertFinancialApplications),
		insertCollection(ctx, domain.CollectionPensionPlans, mapPensionPlans(mc, payload.PensionPlans), p.records.InsertPensionPlans),
		insertCollection(ctx, domain.CollectionBankAccounts, mapBankAccounts(mc, payload.BankAccounts), p.records.InsertBankAccounts),
		insertCollection(ctx, domain.CollectionDebts, mapDebts(mc, payload.Debts), p.records.InsertDebts),
	}

	for _, r := range results {
		p.metrics.CollectionPersisted(ctx, r)
	}

	p.writeHeader(ctx, d.ID, payload.Header, in.RawPayload)

	return results
}

// insertCollection runs one bulk insert. Empty collections are not sent.
func insertCollection[T any](ctx context.Context, c domain.Collection, rows []T, insert func(context.Context, []T) error) (res domain.CollectionResult) {
	res.Collection = c
	if len(rows) == 0 {
		return res
	}

	log := logger.FromContext(ctx).With().Str("collection", string(c)).Logger()

	defer func() {
		if r := recover(); r != nil {
			res.Inserted = 0
			res.Error = fmt.Sprintf("panic: %v", r)
			log.Error().Str("panic", res.Error).Msg("Bulk insert panicked")
		}
	}()

	if err := insert(ctx, rows); err != nil {
		res.Error = err.Error()
		log.Error().Err(err).Int("rows", len(rows)).Msg("Bulk insert failed")
		return res
	}

	res.Inserted = len(rows)
	log.Debug().Int("rows", res.Inserted).Msg("Bulk insert succeeded")
	return res
}

// writeHeader stores the totals and the raw payload on the declaration.
// Failures are logged; the inserted collections stay in place.
func (p *Persister) writeHeader(ctx context.Context, declarationID string, h *extraction.Header, raw json.RawMessage) {
	header := domain.DeclarationHeader{RawPayload: raw}
	if h != nil {
		header.AmountToPay = h.AmountToPay.Or(0)
		header.AmountToRefund = h.AmountToRefund.Or(0)
		header.ReceiptID = h.ReceiptID.Or("")
		header.SubmissionDeadline = h.SubmissionDeadline.Ptr()
	}

	if err := p.decls.UpdateDeclarationHeader(ctx, declarationID, header); err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Msg("Failed to update declaration header")
	}
}
