package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/alexedwards/flow"
	"github.com/go-playground/form/v4"

	"github.com/triad3/irpf-import/internal/api/middleware"
	"github.com/triad3/irpf-import/internal/blob"
	"github.com/triad3/irpf-import/internal/domain"
	"github.com/triad3/irpf-import/internal/jobs"
	"github.com/triad3/irpf-import/internal/logger"
	"github.com/triad3/irpf-import/internal/pipeline"
)

// DefaultMaxUploadBytes is the upload ceiling when none is configured.
const DefaultMaxUploadBytes int64 = 20 << 20

// NotSupportedMessage answers uploads with an accepted extension the import
// cannot read yet.
const NotSupportedMessage = "formato ainda não suportado"

// allowedExtensions lists what the upload form accepts. Only PDFs are imported.
var allowedExtensions = map[string]bool{
	".pdf": true,
	".dec": true,
	".txt": true,
	".rec": true,
	".bkp": true,
}

var decoder = form.NewDecoder()

// Starter creates the Processing declaration of an upload.
type Starter interface {
	Start(ctx context.Context, req pipeline.StartRequest) (*domain.Declaration, error)
}

// StatusReporter writes a terminal status.
type StatusReporter interface {
	Report(ctx context.Context, declarationID string, status domain.Status, summary []domain.CollectionResult) error
}

// DeclarationReader reads the account's declarations.
type DeclarationReader interface {
	GetDeclaration(ctx context.Context, accountID, id string) (*domain.Declaration, error)
	ListDeclarations(ctx context.Context, accountID string) ([]*domain.Declaration, error)
}

// Exporter renders a declaration workbook.
type Exporter interface {
	DeclarationXLSX(ctx context.Context, accountID, declarationID string) ([]byte, error)
}

// DeclarationsHandler handles declaration endpoints.
type DeclarationsHandler struct {
	starter   Starter
	reporter  StatusReporter
	reader    DeclarationReader
	exporter  Exporter
	blobs     blob.Store
	publisher jobs.Publisher
	maxUpload int64
}

// DeclarationsConfig wires a DeclarationsHandler.
type DeclarationsConfig struct {
	Starter        Starter
	Reporter       StatusReporter
	Reader         DeclarationReader
	Exporter       Exporter
	Blobs          blob.Store
	Publisher      jobs.Publisher
	MaxUploadBytes int64
}

// NewDeclarationsHandler creates a new declarations handler.
func NewDeclarationsHandler(cfg DeclarationsConfig) *DeclarationsHandler {
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	return &DeclarationsHandler{
		starter:   cfg.Starter,
		reporter:  cfg.Reporter,
		reader:    cfg.Reader,
		exporter:  cfg.Exporter,
		blobs:     cfg.Blobs,
		publisher: cfg.Publisher,
		maxUpload: maxUpload,
	}
}

type importForm struct {
	TaxYear int `form:"ano"`
}

// ImportResponse is returned once phase one finished and the import is queued.
type ImportResponse struct {
	DeclarationID string `json:"declaration_id"`
	Status        string `json:"status"`
	JobID         string `json:"job_id"`
}

// Import handles POST /api/declarations/import
func (h *DeclarationsHandler) Import(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	accountID, ok := middleware.AccountID(ctx)
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	// Multipart framing adds a little on top of the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, "arquivo excede o tamanho máximo")
			return
		}
		middleware.WriteError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	var f importForm
	if err := decoder.Decode(&f, r.MultipartForm.Value); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "ano must be a year")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	if header.Size > h.maxUpload {
		middleware.WriteError(w, http.StatusRequestEntityTooLarge, "arquivo excede o tamanho máximo")
		return
	}

	filename := filepath.Base(header.Filename)
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		middleware.WriteError(w, http.StatusBadRequest, fmt.Sprintf("extensão %q não permitida", ext))
		return
	}
	if ext != ".pdf" {
		middleware.WriteError(w, http.StatusUnprocessableEntity, NotSupportedMessage)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read upload")
		middleware.WriteError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	decl, err := h.starter.Start(ctx, pipeline.StartRequest{
		AccountID: accountID,
		TaxYear:   f.TaxYear,
		Filename:  filename,
	})
	if err != nil {
		if domain.IsCode(err, domain.CodeMissingRequiredField) {
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Err(err).Msg("Failed to start import")
		middleware.WriteError(w, http.StatusInternalServerError, "failed to start import")
		return
	}

	log = logger.ForDeclaration(log, decl.ID, accountID)
	ctx = logger.WithContext(ctx, log)

	job := &jobs.ImportDeclarationJob{
		DeclarationID: decl.ID,
		AccountID:     accountID,
		TaxYear:       decl.TaxYear,
		Filename:      decl.Filename,
	}

	if h.blobs != nil {
		key, err := blob.NewKey(accountID, filename)
		if err != nil {
			h.abort(ctx, w, decl.ID, domain.StepQueue, err)
			return
		}
		uri, err := h.blobs.Put(ctx, key, "application/pdf", data)
		if err != nil {
			h.abort(ctx, w, decl.ID, domain.StepQueue, fmt.Errorf("store document: %w", err))
			return
		}
		job.DocumentURI = uri
	} else {
		job.Document = data
	}

	if err := h.publisher.PublishImport(ctx, job); err != nil {
		h.abort(ctx, w, decl.ID, domain.StepQueue, fmt.Errorf("enqueue import: %w", err))
		return
	}

	log.Info().Str("job_id", job.JobID).Int("bytes", len(data)).Msg("Import queued")

	middleware.WriteJSON(w, http.StatusAccepted, ImportResponse{
		DeclarationID: decl.ID,
		Status:        decl.Status.String(),
		JobID:         job.JobID,
	})
}

// abort fails a declaration that could not be handed to the background phase.
func (h *DeclarationsHandler) abort(ctx context.Context, w http.ResponseWriter, declarationID string, step domain.StepID, cause error) {
	log := logger.FromContext(ctx)
	log.Error().Err(cause).Msg("Failed to dispatch import")

	if err := h.reporter.Report(ctx, declarationID, domain.Failed(step, cause.Error()), nil); err != nil {
		log.Error().Err(err).Msg("Failed to mark declaration as failed")
	}
	middleware.WriteError(w, http.StatusServiceUnavailable, "import could not be queued")
}

// ListDeclarations handles GET /api/declarations
func (h *DeclarationsHandler) ListDeclarations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accountID, ok := middleware.AccountID(ctx)
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var kind domain.StatusKind
	if v := r.URL.Query().Get("status"); v != "" {
		k, err := domain.ParseStatusKind(v)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		kind = k
	}

	decls, err := h.reader.ListDeclarations(ctx, accountID)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Msg("Failed to list declarations")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list declarations")
		return
	}

	out := make([]*domain.Declaration, 0, len(decls))
	for _, d := range decls {
		if kind != "" && d.Status.Kind != kind {
			continue
		}
		// The raw payload is only served on the detail endpoint.
		c := *d
		c.RawPayload = nil
		out = append(out, &c)
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"declarations": out,
		"count":        len(out),
	})
}

// GetDeclaration handles GET /api/declarations/:id
func (h *DeclarationsHandler) GetDeclaration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accountID, ok := middleware.AccountID(ctx)
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	id := flow.Param(ctx, "id")

	decl, err := h.reader.GetDeclaration(ctx, accountID, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Declaration not found")
			return
		}
		log := logger.FromContext(ctx)
		log.Error().Err(err).Str("declaration_id", id).Msg("Failed to get declaration")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get declaration")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, decl)
}

// ExportDeclaration handles GET /api/declarations/:id/export.xlsx
func (h *DeclarationsHandler) ExportDeclaration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accountID, ok := middleware.AccountID(ctx)
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	id := flow.Param(ctx, "id")

	data, err := h.exporter.DeclarationXLSX(ctx, accountID, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Declaration not found")
			return
		}
		log := logger.FromContext(ctx)
		log.Error().Err(err).Str("declaration_id", id).Msg("Failed to export declaration")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to export declaration")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "declaracao-"+id+".xlsx"))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
