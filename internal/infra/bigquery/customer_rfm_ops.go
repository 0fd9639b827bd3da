package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/rfm-segmentation/internal/rfm"
)

// insertBatchSize bounds the rows sent in one streaming insert request.
const insertBatchSize = 500

// NewCustomerRFMRows converts a table into rows tagged with runID.
func NewCustomerRFMRows(runID string, table *rfm.Table, computedAt time.Time) []*CustomerRFMRow {
	records := table.Records()
	rows := make([]*CustomerRFMRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, &CustomerRFMRow{
			RunID:            runID,
			CustomerID:       r.CustomerID,
			LastPurchaseDate: r.LastPurchaseDate,
			ReferenceDate:    table.ReferenceDate(),
			RecencyDays:      int64(r.RecencyDays),
			Frequency:        int64(r.Frequency),
			Monetary:         r.Monetary.Rat(),
			RScore:           int64(r.RScore),
			FScore:           int64(r.FScore),
			MScore:           int64(r.MScore),
			RFMCode:          r.RFMCode,
			Segment:          string(r.Segment),
			ComputedTS:       computedAt.UTC(),
		})
	}
	return rows
}

// EnsureCustomerRFMTableWithClient creates the RFM results table if it does
// not exist yet.
func EnsureCustomerRFMTableWithClient(ctx context.Context, client *bigquery.Client, ref TableRef) error {
	q := client.Query(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			run_id             STRING NOT NULL,
			customer_id        STRING NOT NULL,
			last_purchase_date DATE NOT NULL,
			reference_date     DATE NOT NULL,
			recency_days       INT64 NOT NULL,
			frequency          INT64 NOT NULL,
			monetary           NUMERIC NOT NULL,
			r_score            INT64,
			f_score            INT64,
			m_score            INT64,
			rfm_code           STRING,
			segment            STRING,
			computed_ts        TIMESTAMP NOT NULL
		)
		PARTITION BY DATE(computed_ts)
		CLUSTER BY segment
	`, ref.quoted()))

	if err := runStatement(ctx, q); err != nil {
		return fmt.Errorf("EnsureCustomerRFMTable: %s: %w", ref, err)
	}
	return nil
}

// InsertCustomerRFM inserts rows into ref with a short-lived client.
func InsertCustomerRFM(ctx context.Context, ref TableRef, rows []*CustomerRFMRow) error {
	client, err := bigquery.NewClient(ctx, ref.ProjectID)
	if err != nil {
		return fmt.Errorf("InsertCustomerRFM: bigquery client: %w", err)
	}
	defer client.Close()

	return InsertCustomerRFMWithClient(ctx, client, ref, rows)
}

// InsertCustomerRFMWithClient streams rows into ref in batches using the
// provided BigQuery client.
func InsertCustomerRFMWithClient(ctx context.Context, client *bigquery.Client, ref TableRef, rows []*CustomerRFMRow) error {
	if len(rows) == 0 {
		return nil
	}

	inserter := client.DatasetInProject(ref.ProjectID, ref.DatasetID).Table(ref.TableID).Inserter()
	for start := 0; start < len(rows); start += insertBatchSize {
		end := min(start+insertBatchSize, len(rows))
		if err := inserter.Put(ctx, rows[start:end]); err != nil {
			return fmt.Errorf("InsertCustomerRFM: inserting rows %d-%d into %s: %w", start, end, ref, err)
		}
	}
	return nil
}
