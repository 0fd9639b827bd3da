package bigquery

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/rfm-segmentation/internal/logger"
	"github.com/google/uuid"
)

// maxErrorMessageLen caps error_message so a huge error cannot fail the update.
const maxErrorMessageLen = 2000

// EnsureAnalysisRunsTableWithClient creates the analysis_runs table in the
// dataset of ref if it does not exist yet.
func EnsureAnalysisRunsTableWithClient(ctx context.Context, client *bigquery.Client, ref TableRef) error {
	q := client.Query(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			run_id         STRING NOT NULL,
			source_uri     STRING NOT NULL,
			started_ts     TIMESTAMP NOT NULL,
			finished_ts    TIMESTAMP,
			status         STRING,
			error_message  STRING,
			customer_count INT64
		)
	`, ref.Sibling(AnalysisRunsTable).quoted()))

	if err := runStatement(ctx, q); err != nil {
		return fmt.Errorf("EnsureAnalysisRunsTable: %w", err)
	}
	return nil
}

// StartAnalysisRunWithClient inserts a new row into analysis_runs with
// status=RUNNING and returns the generated run_id.
func StartAnalysisRunWithClient(ctx context.Context, client *bigquery.Client, ref TableRef, sourceURI string) (string, error) {
	runID := uuid.NewString()

	q := client.Query(fmt.Sprintf(`
		INSERT %s (run_id, source_uri, started_ts, status)
		VALUES (@run_id, @source_uri, @started_ts, @status)
	`, ref.Sibling(AnalysisRunsTable).quoted()))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: runID},
		{Name: "source_uri", Value: sourceURI},
		{Name: "started_ts", Value: time.Now()},
		{Name: "status", Value: RunStatusRunning},
	}

	if err := runStatement(ctx, q); err != nil {
		return "", fmt.Errorf("StartAnalysisRun: %w", err)
	}
	return runID, nil
}

// MarkAnalysisRunSucceededWithClient sets status=SUCCESS, finished_ts and
// the number of customers written.
func MarkAnalysisRunSucceededWithClient(ctx context.Context, client *bigquery.Client, ref TableRef, runID string, customers int) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    customer_count = @customer_count,
		    error_message = ""
		WHERE run_id = @run_id
	`, ref.Sibling(AnalysisRunsTable).quoted()))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: RunStatusSuccess},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "customer_count", Value: int64(customers)},
		{Name: "run_id", Value: runID},
	}

	if err := runStatement(ctx, q); err != nil {
		return fmt.Errorf("MarkAnalysisRunSucceeded: %w", err)
	}
	return nil
}

// MarkAnalysisRunFailedWithClient sets status=FAILED, finished_ts and
// error_message. Failures to update are logged, not returned.
func MarkAnalysisRunFailedWithClient(ctx context.Context, client *bigquery.Client, ref TableRef, runID string, runErr error) {
	log := logger.FromContext(ctx)

	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = @error_message
		WHERE run_id = @run_id
	`, ref.Sibling(AnalysisRunsTable).quoted()))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: RunStatusFailed},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "error_message", Value: truncateError(runErr)},
		{Name: "run_id", Value: runID},
	}

	if err := runStatement(ctx, q); err != nil {
		log.Error().
			Err(err).
			Str("run_id", runID).
			Msg("MarkAnalysisRunFailed: updating run")
	}
}

func truncateError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ToValidUTF8(err.Error(), "\uFFFD")
	if len(msg) <= maxErrorMessageLen {
		return msg
	}
	// Cut on a rune boundary; BigQuery rejects invalid UTF-8 in STRING.
	n := maxErrorMessageLen
	for n > 0 && !utf8.RuneStart(msg[n]) {
		n--
	}
	return msg[:n]
}
