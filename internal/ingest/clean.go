package ingest

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/rfm-segmentation/internal/domain"
	"github.com/shopspring/decimal"
)

// naValues are the field spellings treated as missing.
var naValues = map[string]bool{
	"":     true,
	"na":   true,
	"n/a":  true,
	"#n/a": true,
	"nan":  true,
	"null": true,
	"none": true,
	"<na>": true,
}

// CleanStats counts what Clean kept and why it dropped the rest.
type CleanStats struct {
	Total            int
	Kept             int
	MissingCustomer  int
	BadQuantity      int // missing or <= 0
	BadUnitPrice     int // missing or <= 0
	MissingInvoice   int
	MissingTimestamp int
}

// Dropped returns the number of rows excluded from the cleaned set.
func (s CleanStats) Dropped() int {
	return s.Total - s.Kept
}

// Clean types every row of t and keeps those with a customer, a positive
// quantity and a positive unit price. Excluded rows are dropped without a
// per-row error. Checks run in column order customer, quantity, unit price,
// invoice, timestamp and stop at the first failure, so a malformed value in
// an already-dropped row is never inspected. A present value that cannot be
// parsed is a FormatError.
func Clean(t *RawTable, s *Schema, opts Options) ([]domain.Transaction, CleanStats, error) {
	opts = opts.withDefaults()
	stats := CleanStats{Total: t.Len()}
	txs := make([]domain.Transaction, 0, t.Len())

	for i, row := range t.Rows {
		line := 0
		if i < len(t.Lines) {
			line = t.Lines[i]
		}

		customerID, ok := present(row[s.CustomerID])
		if !ok {
			stats.MissingCustomer++
			continue
		}

		rawQty, ok := present(row[s.Quantity])
		if !ok {
			stats.BadQuantity++
			continue
		}
		qty, err := parseQuantity(rawQty)
		if err != nil {
			return nil, stats, &domain.FormatError{Line: line, Column: t.Header[s.Quantity], Err: err}
		}
		if qty <= 0 {
			stats.BadQuantity++
			continue
		}

		rawPrice, ok := present(row[s.UnitPrice])
		if !ok {
			stats.BadUnitPrice++
			continue
		}
		price, err := decimal.NewFromString(rawPrice)
		if err != nil {
			return nil, stats, &domain.FormatError{Line: line, Column: t.Header[s.UnitPrice], Err: err}
		}
		if !price.IsPositive() {
			stats.BadUnitPrice++
			continue
		}

		invoiceID, ok := present(row[s.InvoiceID])
		if !ok {
			stats.MissingInvoice++
			continue
		}

		rawTS, ok := present(row[s.InvoiceTimestamp])
		if !ok {
			stats.MissingTimestamp++
			continue
		}
		ts, err := parseTimestamp(rawTS, opts.TimestampLayouts, opts.Location)
		if err != nil {
			return nil, stats, &domain.FormatError{Line: line, Column: t.Header[s.InvoiceTimestamp], Err: err}
		}

		txs = append(txs, domain.Transaction{
			CustomerID: customerID,
			InvoiceID:  invoiceID,
			Timestamp:  ts,
			Quantity:   qty,
			UnitPrice:  price,
		})
	}

	stats.Kept = len(txs)
	return txs, stats, nil
}

func present(v string) (string, bool) {
	v = strings.TrimSpace(v)
	if naValues[strings.ToLower(v)] {
		return "", false
	}
	return v, true
}

// parseQuantity accepts integers and integral decimals such as "6.0".
func parseQuantity(v string) (int64, error) {
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return 0, fmt.Errorf("invalid quantity %q", v)
	}
	if !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("quantity %q is not a whole number", v)
	}
	return d.IntPart(), nil
}

func parseTimestamp(v string, layouts []string, loc *time.Location) (time.Time, error) {
	for _, layout := range layouts {
		if ts, err := time.ParseInLocation(layout, v, loc); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", v)
}
