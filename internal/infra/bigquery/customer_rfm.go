package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/civil"
)

// DefaultCustomerRFMTable is the table RFM results are written to when no
// other name is configured.
const DefaultCustomerRFMTable = "customer_rfm"

// CustomerRFMRow is one customer of one analysis run.
type CustomerRFMRow struct {
	RunID      string `bigquery:"run_id"`      // REQUIRED
	CustomerID string `bigquery:"customer_id"` // REQUIRED

	LastPurchaseDate civil.Date `bigquery:"last_purchase_date"` // REQUIRED
	ReferenceDate    civil.Date `bigquery:"reference_date"`     // REQUIRED

	RecencyDays int64    `bigquery:"recency_days"` // REQUIRED
	Frequency   int64    `bigquery:"frequency"`    // REQUIRED
	Monetary    *big.Rat `bigquery:"monetary"`     // REQUIRED NUMERIC

	RScore  int64  `bigquery:"r_score"`
	FScore  int64  `bigquery:"f_score"`
	MScore  int64  `bigquery:"m_score"`
	RFMCode string `bigquery:"rfm_code"`
	Segment string `bigquery:"segment"`

	ComputedTS time.Time `bigquery:"computed_ts"` // REQUIRED
}
