// Package bigquery implements storage.Store on BigQuery.
//
// Declarations are written with DML so their status can be updated later;
// rows in the streaming buffer cannot be updated. The eight collections are
// append-only and use the streaming Inserter.
package bigquery

import (
	"context"
	"fmt"
	"math/big"

	"cloud.google.com/go/bigquery"
)

const declarationsTable = "declaracoes_irpf"

// Store is the BigQuery storage backend.
type Store struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// Open creates a BigQuery client for projectID and returns a Store writing to datasetID.
func Open(ctx context.Context, projectID, datasetID string) (*Store, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("Open: creating client: %w", err)
	}
	return NewStore(client, datasetID), nil
}

// NewStore wraps an existing client.
func NewStore(client *bigquery.Client, datasetID string) *Store {
	return &Store{client: client, projectID: client.Project(), datasetID: datasetID}
}

// Close closes the BigQuery client connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func (s *Store) table(name string) string {
	return tableRef(s.projectID, s.datasetID, name)
}

func tableRef(projectID, datasetID, name string) string {
	return fmt.Sprintf("`%s.%s.%s`", projectID, datasetID, name)
}

// runDML runs a DML statement and returns the number of affected rows.
func (s *Store) runDML(ctx context.Context, sql string, params []bigquery.QueryParameter) (int64, error) {
	q := s.client.Query(sql)
	q.Parameters = params

	job, err := q.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return 0, fmt.Errorf("job error: %w", err)
	}

	if status.Statistics != nil {
		if qs, ok := status.Statistics.Details.(*bigquery.QueryStatistics); ok {
			return qs.NumDMLAffectedRows, nil
		}
	}
	return 0, nil
}

func numeric(v float64) *big.Rat {
	r := new(big.Rat)
	if _, ok := r.SetString(fmt.Sprintf("%.9f", v)); !ok {
		return new(big.Rat)
	}
	return r
}

func ratToFloat(r *big.Rat) float64 {
	if r == nil {
		return 0
	}
	f, _ := r.Float64()
	return f
}
