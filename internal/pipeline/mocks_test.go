package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/triad3/irpf-import/internal/domain"
	"github.com/triad3/irpf-import/internal/llm"
	"github.com/triad3/irpf-import/internal/logger"
)

func testContext() context.Context {
	return logger.WithContext(context.Background(), logger.Nop())
}

// mockRepository keeps declarations and inserted rows in memory. Status
// updates follow the storage contract: only Processing rows change.
type mockRepository struct {
	mu sync.Mutex

	CreateDeclarationFunc       func(ctx context.Context, d *domain.Declaration) error
	UpdateDeclarationHeaderFunc func(ctx context.Context, id string, h domain.DeclarationHeader) error
	ListStaleFunc               func(ctx context.Context, before time.Time) ([]*domain.Declaration, error)

	// InsertErrs makes the insert of a collection fail.
	InsertErrs map[domain.Collection]error

	declarations map[string]*domain.Declaration
	headers      map[string]domain.DeclarationHeader
	statusCalls  int
	insertCalls  map[domain.Collection]int

	income           []domain.IncomeItem
	assetRights      []domain.AssetRightItem
	declarationDebts []domain.DeclarationDebtItem
	fixedAssets      []domain.FixedAsset
	applications     []domain.FinancialApplication
	pensionPlans     []domain.PensionPlan
	bankAccounts     []domain.BankAccount
	debts            []domain.GenericDebt
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		declarations: map[string]*domain.Declaration{},
		headers:      map[string]domain.DeclarationHeader{},
		insertCalls:  map[domain.Collection]int{},
	}
}

// seed registers a declaration in Processing status.
func (m *mockRepository) seed(id, accountID string, year int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.declarations[id] = &domain.Declaration{ID: id, AccountID: accountID, TaxYear: year, Status: domain.Processing()}
}

func (m *mockRepository) status(id string) domain.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.declarations[id].Status
}

func (m *mockRepository) totalInsertCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.insertCalls {
		n += c
	}
	return n
}

func (m *mockRepository) CreateDeclaration(ctx context.Context, d *domain.Declaration) error {
	if m.CreateDeclarationFunc != nil {
		if err := m.CreateDeclarationFunc(ctx, d); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *d
	m.declarations[d.ID] = &cp
	return nil
}

func (m *mockRepository) GetDeclaration(ctx context.Context, accountID, id string) (*domain.Declaration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.declarations[id]
	if !ok || d.AccountID != accountID {
		return nil, domain.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *mockRepository) ListDeclarations(ctx context.Context, accountID string) ([]*domain.Declaration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Declaration
	for _, d := range m.declarations {
		if d.AccountID == accountID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRepository) UpdateDeclarationHeader(ctx context.Context, id string, h domain.DeclarationHeader) error {
	if m.UpdateDeclarationHeaderFunc != nil {
		if err := m.UpdateDeclarationHeaderFunc(ctx, id, h); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.headers[id] = h
	return nil
}

func (m *mockRepository) UpdateStatus(ctx context.Context, id string, status domain.Status, summary []domain.CollectionResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusCalls++
	d, ok := m.declarations[id]
	if !ok {
		return domain.ErrNotFound
	}
	if !d.Status.CanTransition(status) {
		return domain.ErrStatusFinal
	}
	d.Status = status
	d.Summary = summary
	return nil
}

func (m *mockRepository) ListStale(ctx context.Context, before time.Time) ([]*domain.Declaration, error) {
	if m.ListStaleFunc != nil {
		return m.ListStaleFunc(ctx, before)
	}
	return nil, nil
}

func (m *mockRepository) insert(c domain.Collection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertCalls[c]++
	return m.InsertErrs[c]
}

func (m *mockRepository) InsertIncomeItems(ctx context.Context, rows []domain.IncomeItem) error {
	if err := m.insert(domain.CollectionIncome); err != nil {
		return err
	}
	m.income = append(m.income, rows...)
	return nil
}

func (m *mockRepository) InsertAssetRights(ctx context.Context, rows []domain.AssetRightItem) error {
	if err := m.insert(domain.CollectionAssetsRights); err != nil {
		return err
	}
	m.assetRights = append(m.assetRights, rows...)
	return nil
}

func (m *mockRepository) InsertDeclarationDebts(ctx context.Context, rows []domain.DeclarationDebtItem) error {
	if err := m.insert(domain.CollectionDeclarationDebts); err != nil {
		return err
	}
	m.declarationDebts = append(m.declarationDebts, rows...)
	return nil
}

func (m *mockRepository) InsertFixedAssets(ctx context.Context, rows []domain.FixedAsset) error {
	if err := m.insert(domain.CollectionFixedAssets); err != nil {
		return err
	}
	m.fixedAssets = append(m.fixedAssets, rows...)
	return nil
}

func (m *mockRepository) InsertFinancialApplications(ctx context.Context, rows []domain.FinancialApplication) error {
	if err := m.insert(domain.CollectionFinancialApplications); err != nil {
		return err
	}
	m.applications = append(m.applications, rows...)
	return nil
}

func (m *mockRepository) InsertPensionPlans(ctx context.Context, rows []domain.PensionPlan) error {
	if err := m.insert(domain.CollectionPensionPlans); err != nil {
		return err
	}
	m.pensionPlans = append(m.pensionPlans, rows...)
	return nil
}

func (m *mockRepository) InsertBankAccounts(ctx context.Context, rows []domain.BankAccount) error {
	if err := m.insert(domain.CollectionBankAccounts); err != nil {
		return err
	}
	m.bankAccounts = append(m.bankAccounts, rows...)
	return nil
}

func (m *mockRepository) InsertDebts(ctx context.Context, rows []domain.GenericDebt) error {
	if err := m.insert(domain.CollectionDebts); err != nil {
		return err
	}
	m.debts = append(m.debts, rows...)
	return nil
}

type mockLLM struct {
	ExtractFunc func(ctx context.Context, req llm.Request) (*llm.Response, error)
	calls       int
	lastRequest llm.Request
}

func (m *mockLLM) Extract(ctx context.Context, req llm.Request) (*llm.Response, error) {
	m.calls++
	m.lastRequest = req
	return m.ExtractFunc(ctx, req)
}

func (m *mockLLM) Name() string { return "mock:test" }

// replying returns a mock whose model always answers text.
func replying(text string) *mockLLM {
	return &mockLLM{ExtractFunc: func(ctx context.Context, req llm.Request) (*llm.Response, error) {
		return &llm.Response{Text: text, Model: "mock-1", Duration: time.Millisecond}, nil
	}}
}

type mockFetcher struct {
	FetchFunc func(ctx context.Context, uri string) ([]byte, error)
}

func (m *mockFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	return m.FetchFunc(ctx, uri)
}

type mockTextExtractor struct {
	ExtractFunc func(ctx context.Context, data []byte) (string, error)
}

func (m *mockTextExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	return m.ExtractFunc(ctx, data)
}

// transcript is a text layer long enough to pass the minimum length check.
const transcript = `DECLARAÇÃO DE AJUSTE ANUAL - IRPF 2024
RENDIMENTOS TRIBUTÁVEIS RECEBIDOS DE PESSOA JURÍDICA
ACME LTDA 12.345.678/0001-90 50.000,00 5.000,00
BENS E DIREITOS 01 Apartamento 200.000,00 220.000,00`

func staticText(text string) *mockTextExtractor {
	return &mockTextExtractor{ExtractFunc: func(ctx context.Context, data []byte) (string, error) {
		return text, nil
	}}
}
