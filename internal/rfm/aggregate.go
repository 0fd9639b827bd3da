package rfm

import (
	"cmp"
	"math"
	"slices"
	"strconv"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/rfm-segmentation/internal/domain"
	"github.com/shopspring/decimal"
)

// customerMetrics is the per-customer aggregate built before scoring.
type customerMetrics struct {
	CustomerID   string
	LastPurchase civil.Date
	RecencyDays  int
	Frequency    int
	Monetary     decimal.Decimal
}

// aggregate groups cleaned transactions by customer and derives the raw
// recency, frequency and monetary values. The reference date is one day
// after the latest purchase date of any customer. Customers are returned in
// ascending customer ID order.
func aggregate(txs []domain.Transaction) ([]customerMetrics, civil.Date) {
	type accumulator struct {
		last     civil.Date
		invoices map[string]struct{}
		monetary decimal.Decimal
	}

	byCustomer := make(map[string]*accumulator)
	for _, tx := range txs {
		acc, ok := byCustomer[tx.CustomerID]
		if !ok {
			acc = &accumulator{
				last:     tx.PurchaseDate(),
				invoices: make(map[string]struct{}),
				monetary: decimal.Zero,
			}
			byCustomer[tx.CustomerID] = acc
		}
		if d := tx.PurchaseDate(); d.After(acc.last) {
			acc.last = d
		}
		acc.invoices[tx.InvoiceID] = struct{}{}
		acc.monetary = acc.monetary.Add(tx.LineTotal())
	}

	if len(byCustomer) == 0 {
		return nil, civil.Date{}
	}

	var maxDate civil.Date
	ids := make([]string, 0, len(byCustomer))
	for id, acc := range byCustomer {
		ids = append(ids, id)
		if acc.last.After(maxDate) {
			maxDate = acc.last
		}
	}
	slices.SortFunc(ids, compareCustomerID)

	reference := maxDate.AddDays(1)
	metrics := make([]customerMetrics, 0, len(ids))
	for _, id := range ids {
		acc := byCustomer[id]
		metrics = append(metrics, customerMetrics{
			CustomerID:   id,
			LastPurchase: acc.last,
			RecencyDays:  reference.DaysSince(acc.last),
			Frequency:    len(acc.invoices),
			Monetary:     acc.monetary,
		})
	}
	return metrics, reference
}

// compareCustomerID orders numeric IDs by value ahead of non-numeric IDs,
// which compare lexicographically.
func compareCustomerID(a, b string) int {
	fa, numA := numericID(a)
	fb, numB := numericID(b)
	switch {
	case numA && numB:
		if c := cmp.Compare(fa, fb); c != 0 {
			return c
		}
	case numA:
		return -1
	case numB:
		return 1
	}
	return cmp.Compare(a, b)
}

func numericID(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
