package pipeline

import (
	"context"
	"testing"

	"github.com/triad3/irpf-import/internal/domain"
	"github.com/triad3/irpf-import/internal/jobs"
)

type otherJob struct{}

func (otherJob) GetID() string             { return "x" }
func (otherJob) GetType() jobs.JobType     { return "other" }
func (otherJob) GetStatus() jobs.JobStatus { return jobs.JobStatusPending }

func TestImporter_HandleJob(t *testing.T) {
	ctx := testContext()
	repo := newMockRepository()
	repo.seed("decl-1", "acc-1", 2024)
	imp := newTestImporter(repo, replying(acmeReply))

	job := &jobs.ImportDeclarationJob{
		JobID:         "job-1",
		DeclarationID: "decl-1",
		AccountID:     "acc-1",
		TaxYear:       2024,
		Document:      []byte("%PDF-1.4"),
	}
	if err := imp.HandleJob(ctx, job); err != nil {
		t.Fatalf("HandleJob() unexpected error: %v", err)
	}
	if job.Outcome != "Importada" {
		t.Errorf("Outcome = %q, want Importada", job.Outcome)
	}
	if got := repo.status("decl-1").String(); got != "Importada" {
		t.Errorf("stored status = %s", got)
	}
}

func TestImporter_HandleJobFailedImportIsNotRetried(t *testing.T) {
	ctx := testContext()
	repo := newMockRepository()
	repo.seed("decl-1", "acc-1", 2024)
	imp := newTestImporter(repo, replying(""))

	job := &jobs.ImportDeclarationJob{JobID: "job-1", DeclarationID: "decl-1", AccountID: "acc-1", TaxYear: 2024, Document: []byte("%PDF")}
	if err := imp.HandleJob(ctx, job); err != nil {
		t.Fatalf("HandleJob() unexpected error: %v", err)
	}
	if job.Outcome != repo.status("decl-1").String() {
		t.Errorf("Outcome = %q, stored = %q", job.Outcome, repo.status("decl-1"))
	}
}

func TestImporter_HandleJobRejects(t *testing.T) {
	imp := newTestImporter(newMockRepository(), replying(acmeReply))

	if err := imp.HandleJob(context.Background(), otherJob{}); err == nil {
		t.Error("expected error for foreign job type")
	}
}

func TestImporter_HandleJobWithoutDocumentFailsDeclaration(t *testing.T) {
	ctx := testContext()
	repo := newMockRepository()
	repo.seed("decl-1", "acc-1", 2024)
	imp := newTestImporter(repo, replying(acmeReply))

	job := &jobs.ImportDeclarationJob{JobID: "job-1", DeclarationID: "decl-1", AccountID: "acc-1", TaxYear: 2024}
	if err := imp.HandleJob(ctx, job); err == nil {
		t.Fatal("expected error for job without document")
	}

	got := repo.status("decl-1")
	if got.Kind != domain.StatusFailed || got.Step != domain.StepQueue {
		t.Fatalf("stored status = %s, want failure at queue", got)
	}
	if job.Outcome != got.String() {
		t.Errorf("Outcome = %q, stored = %q", job.Outcome, got)
	}
}
