package pipeline

import (
	"context"
	"fmt"

	"github.com/triad3/irpf-import/internal/domain"
	"github.com/triad3/irpf-import/internal/jobs"
)

// HandleJob runs an import job. The import outcome lands on the declaration
// and on job.Outcome; only jobs the importer cannot read return an error.
func (i *Importer) HandleJob(ctx context.Context, job jobs.Job) error {
	j, ok := job.(*jobs.ImportDeclarationJob)
	if !ok {
		return fmt.Errorf("unexpected job type: %T", job)
	}
	if j.DocumentURI == "" && len(j.Document) == 0 {
		err := fmt.Errorf("job %s has no document", j.JobID)
		status := domain.Failed(domain.StepQueue, err.Error())
		// Report logs its own failures.
		_ = i.reporter.Report(ctx, j.DeclarationID, status, nil)
		j.Outcome = status.String()
		return err
	}

	status := i.Run(ctx, ImportRequest{
		DeclarationID: j.DeclarationID,
		AccountID:     j.AccountID,
		TaxYear:       j.TaxYear,
		Filename:      j.Filename,
		DocumentURI:   j.DocumentURI,
		Document:      j.Document,
	})
	j.Outcome = status.String()
	return nil
}
