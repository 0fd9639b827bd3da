package pipeline

import (
	"context"

	"github.com/dvloznov/rfm-segmentation/internal/gcs"
	infra "github.com/dvloznov/rfm-segmentation/internal/infra/bigquery"
	"github.com/dvloznov/rfm-segmentation/internal/ingest"
	"github.com/dvloznov/rfm-segmentation/internal/rfm"
)

// StorageService is an interface for storage operations.
type StorageService = gcs.StorageService

// TransactionWarehouse reads raw transaction tables for bq:// sources.
type TransactionWarehouse interface {
	ReadTransactions(ctx context.Context, ref infra.TableRef) (*ingest.RawTable, error)
}

// ResultStore persists a computed table under a run ID.
type ResultStore interface {
	SaveCustomerRFM(ctx context.Context, runID string, table *rfm.Table) error
}

// RunTracker records the lifecycle of an analysis run.
type RunTracker interface {
	// StartAnalysisRun records a RUNNING analysis of sourceURI and returns its run ID.
	StartAnalysisRun(ctx context.Context, sourceURI string) (string, error)

	// MarkAnalysisRunSucceeded records success and the number of customers scored.
	MarkAnalysisRunSucceeded(ctx context.Context, runID string, customers int) error

	// MarkAnalysisRunFailed records the error that stopped the run.
	MarkAnalysisRunFailed(ctx context.Context, runID string, runErr error)
}

// Exporter writes the finished table somewhere and returns where.
type Exporter interface {
	Export(ctx context.Context, state *PipelineState) (string, error)
}
