// Package report serializes finalized RFM tables for files, object storage
// and HTTP responses.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/dvloznov/rfm-segmentation/internal/rfm"
)

// CSVHeader is the output column order.
var CSVHeader = []string{
	"customer_id",
	"last_purchase_date",
	"recency_days",
	"frequency",
	"monetary",
	"r_score",
	"f_score",
	"m_score",
	"rfm_code",
	"segment",
}

// WriteCSV writes the header row followed by one row per customer.
func WriteCSV(w io.Writer, table *rfm.Table) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(CSVHeader); err != nil {
		return fmt.Errorf("WriteCSV: writing header: %w", err)
	}

	for _, r := range table.Records() {
		row := []string{
			r.CustomerID,
			r.LastPurchaseDate.String(),
			strconv.Itoa(r.RecencyDays),
			strconv.Itoa(r.Frequency),
			r.Monetary.String(),
			strconv.Itoa(r.RScore),
			strconv.Itoa(r.FScore),
			strconv.Itoa(r.MScore),
			r.RFMCode,
			string(r.Segment),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("WriteCSV: writing customer %s: %w", r.CustomerID, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("WriteCSV: flushing: %w", err)
	}
	return nil
}
