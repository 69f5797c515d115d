package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/triad3/irpf-import/internal/api/handlers"
	"github.com/triad3/irpf-import/internal/api/middleware"
	"github.com/triad3/irpf-import/internal/blob"
	"github.com/triad3/irpf-import/internal/domain"
	"github.com/triad3/irpf-import/internal/jobs"
	"github.com/triad3/irpf-import/internal/jobs/inmemory"
	"github.com/triad3/irpf-import/internal/logger"
	"github.com/triad3/irpf-import/internal/pipeline"
)

type mockStarter struct {
	StartFunc func(ctx context.Context, req pipeline.StartRequest) (*domain.Declaration, error)
	calls     int
}

func (m *mockStarter) Start(ctx context.Context, req pipeline.StartRequest) (*domain.Declaration, error) {
	m.calls++
	return m.StartFunc(ctx, req)
}

type reported struct {
	id     string
	status domain.Status
}

type mockReporter struct {
	reports []reported
}

func (m *mockReporter) Report(ctx context.Context, declarationID string, status domain.Status, summary []domain.CollectionResult) error {
	m.reports = append(m.reports, reported{id: declarationID, status: status})
	return nil
}

type mockReader struct {
	decls map[string]*domain.Declaration
}

func (m *mockReader) GetDeclaration(ctx context.Context, accountID, id string) (*domain.Declaration, error) {
	d, ok := m.decls[id]
	if !ok || d.AccountID != accountID {
		return nil, domain.ErrNotFound
	}
	return d, nil
}

func (m *mockReader) ListDeclarations(ctx context.Context, accountID string) ([]*domain.Declaration, error) {
	var out []*domain.Declaration
	for _, d := range m.decls {
		if d.AccountID == accountID {
			out = append(out, d)
		}
	}
	return out, nil
}

type mockExporter struct {
	DeclarationXLSXFunc func(ctx context.Context, accountID, id string) ([]byte, error)
}

func (m *mockExporter) DeclarationXLSX(ctx context.Context, accountID, id string) ([]byte, error) {
	return m.DeclarationXLSXFunc(ctx, accountID, id)
}

type mockPublisher struct {
	PublishImportFunc func(ctx context.Context, job *jobs.ImportDeclarationJob) error
	published         []*jobs.ImportDeclarationJob
}

func (m *mockPublisher) PublishImport(ctx context.Context, job *jobs.ImportDeclarationJob) error {
	if m.PublishImportFunc != nil {
		if err := m.PublishImportFunc(ctx, job); err != nil {
			return err
		}
	}
	job.JobID = "job-1"
	m.published = append(m.published, job)
	return nil
}

func (m *mockPublisher) Close() error { return nil }

type testServer struct {
	handler   http.Handler
	starter   *mockStarter
	reporter  *mockReporter
	reader    *mockReader
	publisher *mockPublisher
	blobs     *blob.MemoryStore
	jobStore  *inmemory.Store
}

func newTestServer(t *testing.T, maxUpload int64) *testServer {
	t.Helper()

	s := &testServer{
		starter: &mockStarter{
			StartFunc: func(ctx context.Context, req pipeline.StartRequest) (*domain.Declaration, error) {
				if req.TaxYear == 0 {
					return nil, domain.Errorf(domain.CodeMissingRequiredField, "ano is required")
				}
				return &domain.Declaration{
					ID:        "decl-1",
					AccountID: req.AccountID,
					TaxYear:   req.TaxYear,
					Filename:  req.Filename,
					Status:    domain.Processing(),
				}, nil
			},
		},
		reporter: &mockReporter{},
		reader: &mockReader{decls: map[string]*domain.Declaration{
			"decl-a": {ID: "decl-a", AccountID: "acc-1", TaxYear: 2024, Status: domain.Imported(), RawPayload: json.RawMessage(`{"x":1}`)},
			"decl-b": {ID: "decl-b", AccountID: "acc-1", TaxYear: 2023, Status: domain.Failed(domain.StepAIRequest, "RateLimited: slow down")},
			"decl-c": {ID: "decl-c", AccountID: "acc-2", TaxYear: 2024, Status: domain.Imported()},
		}},
		publisher: &mockPublisher{},
		blobs:     blob.NewMemoryStore(),
		jobStore:  inmemory.NewStore(),
	}

	exporter := &mockExporter{
		DeclarationXLSXFunc: func(ctx context.Context, accountID, id string) ([]byte, error) {
			if _, err := s.reader.GetDeclaration(ctx, accountID, id); err != nil {
				return nil, err
			}
			return []byte("PK-xlsx"), nil
		},
	}

	s.handler = NewRouter(RouterConfig{
		Declarations: handlers.NewDeclarationsHandler(handlers.DeclarationsConfig{
			Starter:        s.starter,
			Reporter:       s.reporter,
			Reader:         s.reader,
			Exporter:       exporter,
			Blobs:          s.blobs,
			Publisher:      s.publisher,
			MaxUploadBytes: maxUpload,
		}),
		Jobs: handlers.NewJobsHandler(s.jobStore),
		Auth: middleware.HeaderAuth,
		Log:  logger.Nop(),
	})
	return s
}

func (s *testServer) do(req *http.Request, accountID string) *httptest.ResponseRecorder {
	if accountID != "" {
		req.Header.Set(middleware.AccountHeader, accountID)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, filename string, content []byte, year string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if year != "" {
		if err := mw.WriteField("ano", year); err != nil {
			t.Fatal(err)
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(content)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/declarations/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestImport_Accepted(t *testing.T) {
	s := newTestServer(t, 0)

	rec := s.do(uploadRequest(t, "irpf-2024.pdf", []byte("%PDF-1.4 test"), "2024"), "acc-1")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (%s)", rec.Code, rec.Body.String())
	}

	var resp handlers.ImportResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.DeclarationID != "decl-1" || resp.JobID != "job-1" || resp.Status != "Processando" {
		t.Errorf("response = %+v", resp)
	}

	if len(s.publisher.published) != 1 {
		t.Fatalf("published %d jobs, want 1", len(s.publisher.published))
	}
	job := s.publisher.published[0]
	if job.AccountID != "acc-1" || job.TaxYear != 2024 || job.Filename != "irpf-2024.pdf" {
		t.Errorf("job = %+v", job)
	}
	data, err := s.blobs.Fetch(context.Background(), job.DocumentURI)
	if err != nil {
		t.Fatalf("document not stored: %v", err)
	}
	if string(data) != "%PDF-1.4 test" {
		t.Errorf("stored document = %q", data)
	}
	if len(s.reporter.reports) != 0 {
		t.Errorf("unexpected status reports: %+v", s.reporter.reports)
	}
}

func TestImport_Rejected(t *testing.T) {
	tests := []struct {
		name       string
		filename   string
		content    []byte
		year       string
		account    string
		maxUpload  int64
		wantStatus int
		wantBody   string
	}{
		{name: "unauthenticated", filename: "a.pdf", content: []byte("%PDF"), year: "2024", wantStatus: http.StatusUnauthorized},
		{name: "missing file", year: "2024", account: "acc-1", wantStatus: http.StatusBadRequest},
		{name: "bad year", filename: "a.pdf", content: []byte("%PDF"), year: "dois mil", account: "acc-1", wantStatus: http.StatusBadRequest},
		{name: "missing year", filename: "a.pdf", content: []byte("%PDF"), account: "acc-1", wantStatus: http.StatusBadRequest},
		{name: "unknown extension", filename: "a.exe", content: []byte("MZ"), year: "2024", account: "acc-1", wantStatus: http.StatusBadRequest},
		{name: "accepted but unsupported", filename: "a.dec", content: []byte("x"), year: "2024", account: "acc-1", wantStatus: http.StatusUnprocessableEntity, wantBody: handlers.NotSupportedMessage},
		{name: "oversize", filename: "a.pdf", content: bytes.Repeat([]byte("x"), 64), year: "2024", account: "acc-1", maxUpload: 16, wantStatus: http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.maxUpload)

			rec := s.do(uploadRequest(t, tt.filename, tt.content, tt.year), tt.account)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantBody != "" && !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %s, want %q", rec.Body.String(), tt.wantBody)
			}
			if len(s.publisher.published) != 0 {
				t.Error("rejected upload must not be queued")
			}
		})
	}
}

func TestImport_PublishFailureFailsDeclaration(t *testing.T) {
	s := newTestServer(t, 0)
	s.publisher.PublishImportFunc = func(ctx context.Context, job *jobs.ImportDeclarationJob) error {
		return jobs.ErrQueueClosed
	}

	rec := s.do(uploadRequest(t, "a.pdf", []byte("%PDF"), "2024"), "acc-1")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if len(s.reporter.reports) != 1 {
		t.Fatalf("reports = %d, want 1", len(s.reporter.reports))
	}
	got := s.reporter.reports[0]
	if got.id != "decl-1" || got.status.Kind != domain.StatusFailed || got.status.Step != domain.StepQueue {
		t.Errorf("report = %+v", got)
	}
}

func TestImport_StartError(t *testing.T) {
	s := newTestServer(t, 0)
	s.starter.StartFunc = func(ctx context.Context, req pipeline.StartRequest) (*domain.Declaration, error) {
		return nil, errors.New("database down")
	}

	rec := s.do(uploadRequest(t, "a.pdf", []byte("%PDF"), "2024"), "acc-1")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if len(s.reporter.reports) != 0 || len(s.publisher.published) != 0 {
		t.Error("nothing should be reported or queued without a declaration")
	}
}

func TestDeclarations_ListAndGet(t *testing.T) {
	s := newTestServer(t, 0)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/declarations", nil), "acc-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var list struct {
		Declarations []map[string]any `json:"declarations"`
		Count        int              `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if list.Count != 2 {
		t.Errorf("count = %d, want 2", list.Count)
	}
	for _, d := range list.Declarations {
		if _, ok := d["dados_extraidos"]; ok {
			t.Error("list must not carry the raw payload")
		}
	}

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/declarations?status=failed", nil), "acc-1")
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if list.Count != 1 || list.Declarations[0]["status"] != "Erro (ai_request): RateLimited: slow down" {
		t.Errorf("filtered list = %+v", list.Declarations)
	}

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/declarations?status=bogus", nil), "acc-1")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bogus status filter = %d, want 400", rec.Code)
	}

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/declarations/decl-a", nil), "acc-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var got map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got["status"] != "Importada" || got["id"] != "decl-a" {
		t.Errorf("declaration = %+v", got)
	}

	// Another account's declaration is invisible.
	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/declarations/decl-c", nil), "acc-1")
	if rec.Code != http.StatusNotFound {
		t.Errorf("foreign declaration status = %d, want 404", rec.Code)
	}
}

func TestDeclarations_Export(t *testing.T) {
	s := newTestServer(t, 0)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/declarations/decl-a/export.xlsx", nil), "acc-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "declaracao-decl-a.xlsx") {
		t.Errorf("Content-Disposition = %q", rec.Header().Get("Content-Disposition"))
	}
	if rec.Body.String() != "PK-xlsx" {
		t.Errorf("body = %q", rec.Body.String())
	}

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/declarations/missing/export.xlsx", nil), "acc-1")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing export status = %d, want 404", rec.Code)
	}
}

func TestJobs(t *testing.T) {
	s := newTestServer(t, 0)
	ctx := context.Background()
	now := time.Now()
	for _, j := range []*jobs.ImportDeclarationJob{
		{JobID: "j1", AccountID: "acc-1", DeclarationID: "decl-a", Status: jobs.JobStatusCompleted, CreatedAt: now},
		{JobID: "j2", AccountID: "acc-2", DeclarationID: "decl-c", Status: jobs.JobStatusPending, CreatedAt: now},
	} {
		if err := s.jobStore.SaveJob(ctx, j); err != nil {
			t.Fatal(err)
		}
	}

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/jobs", nil), "acc-1")
	var list struct {
		Jobs  []jobs.ImportDeclarationJob `json:"jobs"`
		Count int                         `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if list.Count != 1 || list.Jobs[0].JobID != "j1" {
		t.Errorf("jobs = %+v", list.Jobs)
	}

	if rec := s.do(httptest.NewRequest(http.MethodGet, "/api/jobs/j1", nil), "acc-1"); rec.Code != http.StatusOK {
		t.Errorf("own job status = %d, want 200", rec.Code)
	}
	if rec := s.do(httptest.NewRequest(http.MethodGet, "/api/jobs/j2", nil), "acc-1"); rec.Code != http.StatusNotFound {
		t.Errorf("foreign job status = %d, want 404", rec.Code)
	}
	if rec := s.do(httptest.NewRequest(http.MethodGet, "/api/jobs/nope", nil), "acc-1"); rec.Code != http.StatusNotFound {
		t.Errorf("missing job status = %d, want 404", rec.Code)
	}
}

func TestHealthIsPublic(t *testing.T) {
	s := newTestServer(t, 0)
	rec := s.do(httptest.NewRequest(http.MethodGet, "/health", nil), "")
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing request id header")
	}
}
