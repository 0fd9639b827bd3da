package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/rfm-segmentation/internal/ingest"
	"github.com/dvloznov/rfm-segmentation/internal/rfm"
)

// RFMRepository provides an interface for RFM result persistence and for
// reading raw transactions kept in BigQuery.
type RFMRepository interface {
	// EnsureTables creates the results and analysis_runs tables if missing.
	EnsureTables(ctx context.Context) error

	// StartAnalysisRun records a RUNNING analysis of sourceURI and returns its run_id.
	StartAnalysisRun(ctx context.Context, sourceURI string) (string, error)

	// MarkAnalysisRunSucceeded sets status=SUCCESS and the customer count for a run.
	MarkAnalysisRunSucceeded(ctx context.Context, runID string, customers int) error

	// MarkAnalysisRunFailed sets status=FAILED and error_message for a run.
	MarkAnalysisRunFailed(ctx context.Context, runID string, runErr error)

	// SaveCustomerRFM writes every record of table under runID.
	SaveCustomerRFM(ctx context.Context, runID string, table *rfm.Table) error

	// ReadTransactions reads a raw transactions table.
	ReadTransactions(ctx context.Context, ref TableRef) (*ingest.RawTable, error)
}

// BigQueryRFMRepository is the concrete implementation of RFMRepository
// that interacts with BigQuery. It holds a shared BigQuery client to avoid
// creating a new connection for each operation.
type BigQueryRFMRepository struct {
	client  *bigquery.Client
	results TableRef
	now     func() time.Time
}

// NewBigQueryRFMRepository creates a repository writing results to the
// given table, with a shared BigQuery client in its project.
func NewBigQueryRFMRepository(ctx context.Context, results TableRef) (*BigQueryRFMRepository, error) {
	client, err := bigquery.NewClient(ctx, results.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryRFMRepository: creating client: %w", err)
	}
	return &BigQueryRFMRepository{
		client:  client,
		results: results,
		now:     time.Now,
	}, nil
}

// Close closes the BigQuery client connection. This should be called when
// the repository is no longer needed to release resources.
func (r *BigQueryRFMRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Results returns the table RFM rows are written to.
func (r *BigQueryRFMRepository) Results() TableRef {
	return r.results
}

// EnsureTables creates the results and analysis_runs tables if missing.
func (r *BigQueryRFMRepository) EnsureTables(ctx context.Context) error {
	if err := EnsureCustomerRFMTableWithClient(ctx, r.client, r.results); err != nil {
		return err
	}
	return EnsureAnalysisRunsTableWithClient(ctx, r.client, r.results)
}

// StartAnalysisRun delegates to StartAnalysisRunWithClient with the shared client.
func (r *BigQueryRFMRepository) StartAnalysisRun(ctx context.Context, sourceURI string) (string, error) {
	return StartAnalysisRunWithClient(ctx, r.client, r.results, sourceURI)
}

// MarkAnalysisRunSucceeded delegates to MarkAnalysisRunSucceededWithClient with the shared client.
func (r *BigQueryRFMRepository) MarkAnalysisRunSucceeded(ctx context.Context, runID string, customers int) error {
	return MarkAnalysisRunSucceededWithClient(ctx, r.client, r.results, runID, customers)
}

// MarkAnalysisRunFailed delegates to MarkAnalysisRunFailedWithClient with the shared client.
func (r *BigQueryRFMRepository) MarkAnalysisRunFailed(ctx context.Context, runID string, runErr error) {
	MarkAnalysisRunFailedWithClient(ctx, r.client, r.results, runID, runErr)
}

// SaveCustomerRFM converts table to rows and inserts them with the shared client.
func (r *BigQueryRFMRepository) SaveCustomerRFM(ctx context.Context, runID string, table *rfm.Table) error {
	rows := NewCustomerRFMRows(runID, table, r.now())
	return InsertCustomerRFMWithClient(ctx, r.client, r.results, rows)
}

// ReadTransactions delegates to ReadTransactionTableWithClient with the shared client.
func (r *BigQueryRFMRepository) ReadTransactions(ctx context.Context, ref TableRef) (*ingest.RawTable, error) {
	return ReadTransactionTableWithClient(ctx, r.client, ref)
}
