package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/triad3/irpf-import/internal/app"
	"github.com/triad3/irpf-import/internal/blob"
	"github.com/triad3/irpf-import/internal/domain"
	"github.com/triad3/irpf-import/internal/jobs"
	"github.com/triad3/irpf-import/internal/jobs/inmemory"
	"github.com/triad3/irpf-import/internal/metrics"
	"github.com/triad3/irpf-import/internal/pipeline"
)

var importCommand = &cli.Command{
	Name:  "import",
	Usage: "Import a declaration PDF and wait for the outcome",
	Flags: []cli.Flag{
		&cli.PathFlag{
			Name:     "file",
			Aliases:  []string{"f"},
			Usage:    "Path to the declaration PDF",
			Required: true,
		},
		&cli.IntFlag{
			Name:     "year",
			Aliases:  []string{"y"},
			Usage:    "Tax year of the declaration",
			Required: true,
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "How long to wait for the import to finish",
			Value: 10 * time.Minute,
		},
	},
	Action: func(c *cli.Context) error {
		account, err := requireAccount(c)
		if err != nil {
			return err
		}

		path := c.Path("file")
		if ext := strings.ToLower(filepath.Ext(path)); ext != ".pdf" {
			return fmt.Errorf("%s: formato ainda não suportado", ext)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		e, err := setup(c)
		if err != nil {
			return err
		}
		defer e.Close()

		blobs, closer, err := app.OpenBlobs(e.ctx, e.cfg)
		if err != nil {
			return fmt.Errorf("failed to open blob storage: %w", err)
		}
		defer closer.Close()

		client, err := app.NewLLM(e.ctx, e.cfg)
		if err != nil {
			return fmt.Errorf("failed to create llm client: %w", err)
		}
		importer := app.NewImporter(e.store, blobs, client, metrics.NewNop())

		filename := filepath.Base(path)
		decl, err := pipeline.NewInitializer(e.store).Start(e.ctx, pipeline.StartRequest{
			AccountID: account,
			TaxYear:   c.Int("year"),
			Filename:  filename,
		})
		if err != nil {
			return err
		}
		e.log.Info().Str("declaration_id", decl.ID).Msg("Declaration created")

		key, err := blob.NewKey(account, filename)
		if err != nil {
			return err
		}
		uri, err := blobs.Put(e.ctx, key, "application/pdf", data)
		if err != nil {
			reportErr := pipeline.NewReporter(e.store).Report(e.ctx, decl.ID, domain.Failed(domain.StepQueue, err.Error()), nil)
			if reportErr != nil {
				e.log.Error().Err(reportErr).Msg("Failed to mark declaration as failed")
			}
			return fmt.Errorf("failed to store document: %w", err)
		}

		jobStore := inmemory.NewStore()
		queue := inmemory.NewQueue(1, jobStore, inmemory.WithWorkers(1))
		if err := queue.Start(e.ctx, importer.HandleJob); err != nil {
			return err
		}

		job := &jobs.ImportDeclarationJob{
			DeclarationID: decl.ID,
			AccountID:     account,
			TaxYear:       decl.TaxYear,
			Filename:      filename,
			DocumentURI:   uri,
		}
		if err := queue.PublishImport(e.ctx, job); err != nil {
			return fmt.Errorf("failed to queue import: %w", err)
		}

		waitCtx, cancel := context.WithTimeout(e.ctx, c.Duration("timeout"))
		defer cancel()
		if err := queue.Stop(waitCtx); err != nil {
			return fmt.Errorf("import did not finish: %w", err)
		}

		done, err := jobStore.GetJob(e.ctx, job.JobID)
		if err != nil {
			return err
		}
		if done.Status != jobs.JobStatusCompleted {
			return fmt.Errorf("job %s ended %s: %s", done.JobID, done.Status, done.Error)
		}

		fmt.Printf("%s\t%s\n", decl.ID, done.Outcome)
		return nil
	},
}
