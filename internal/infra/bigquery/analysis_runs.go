package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
)

// AnalysisRunsTable records one row per analysis, next to the results table.
const AnalysisRunsTable = "analysis_runs"

// Analysis run statuses.
const (
	RunStatusRunning = "RUNNING"
	RunStatusSuccess = "SUCCESS"
	RunStatusFailed  = "FAILED"
)

type AnalysisRunRow struct {
	RunID     string `bigquery:"run_id"`     // REQUIRED
	SourceURI string `bigquery:"source_uri"` // REQUIRED

	StartedTS  time.Time              `bigquery:"started_ts"`  // REQUIRED
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts"` // NULLABLE

	Status       string `bigquery:"status"`        // NULLABLE
	ErrorMessage string `bigquery:"error_message"` // NULLABLE

	CustomerCount bigquery.NullInt64 `bigquery:"customer_count"` // NULLABLE
}
