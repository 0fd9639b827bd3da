package domain

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Transaction is one cleaned invoice line: it has a customer, a positive
// quantity and a positive unit price. Rows that fail those checks never
// become a Transaction.
type Transaction struct {
	CustomerID string          // from "customer_id" / "CustomerID"
	InvoiceID  string          // from "invoice_id" / "InvoiceNo"
	Timestamp  time.Time       // from "invoice_timestamp" / "InvoiceDate"
	Quantity   int64           // > 0
	UnitPrice  decimal.Decimal // > 0
}

// LineTotal returns Quantity × UnitPrice.
func (t Transaction) LineTotal() decimal.Decimal {
	return t.UnitPrice.Mul(decimal.NewFromInt(t.Quantity))
}

// PurchaseDate is the timestamp truncated to its calendar date.
func (t Transaction) PurchaseDate() civil.Date {
	return civil.DateOf(t.Timestamp)
}

// CustomerRFM is one row of the segmentation output.
type CustomerRFM struct {
	CustomerID       string          `json:"customer_id"`
	LastPurchaseDate civil.Date      `json:"last_purchase_date"`
	RecencyDays      int             `json:"recency_days"`
	Frequency        int             `json:"frequency"`
	Monetary         decimal.Decimal `json:"monetary"`
	RScore           int             `json:"r_score"`
	FScore           int             `json:"f_score"`
	MScore           int             `json:"m_score"`
	RFMCode          string          `json:"rfm_code"`
	Segment          Segment         `json:"segment"`
}
