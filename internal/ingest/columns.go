package ingest

import (
	"strings"
	"unicode"

	"github.com/dvloznov/rfm-segmentation/internal/domain"
)

// Canonical column names.
const (
	ColumnCustomerID       = "customer_id"
	ColumnInvoiceID        = "invoice_id"
	ColumnInvoiceTimestamp = "invoice_timestamp"
	ColumnQuantity         = "quantity"
	ColumnUnitPrice        = "unit_price"
)

// RequiredColumns lists the canonical columns every source must carry, in the
// order they are reported when missing.
var RequiredColumns = []string{
	ColumnCustomerID,
	ColumnInvoiceTimestamp,
	ColumnInvoiceID,
	ColumnQuantity,
	ColumnUnitPrice,
}

// columnAliases maps folded header names to canonical columns. Keys are
// lowercase with every non-alphanumeric rune removed, so "Customer ID",
// "customer_id" and "CustomerID" all fold to "customerid".
var columnAliases = map[string]string{
	"customerid": ColumnCustomerID,
	"customer":   ColumnCustomerID,
	"clientid":   ColumnCustomerID,

	"invoiceid":     ColumnInvoiceID,
	"invoiceno":     ColumnInvoiceID,
	"invoicenumber": ColumnInvoiceID,
	"invoice":       ColumnInvoiceID,
	"orderid":       ColumnInvoiceID,

	"invoicetimestamp": ColumnInvoiceTimestamp,
	"invoicedate":      ColumnInvoiceTimestamp,
	"invoicedatetime":  ColumnInvoiceTimestamp,
	"orderdate":        ColumnInvoiceTimestamp,

	"quantity": ColumnQuantity,
	"qty":      ColumnQuantity,

	"unitprice": ColumnUnitPrice,
	"price":     ColumnUnitPrice,
}

// Schema holds the header index of each required column.
type Schema struct {
	CustomerID       int
	InvoiceID        int
	InvoiceTimestamp int
	Quantity         int
	UnitPrice        int
}

// ValidateSchema resolves every required column in the table header. When one
// or more are absent it returns a SchemaError naming all of them.
func ValidateSchema(t *RawTable, opts Options) (*Schema, error) {
	aliases := make(map[string]string, len(columnAliases)+len(opts.ColumnAliases))
	for k, v := range columnAliases {
		aliases[k] = v
	}
	for k, v := range opts.ColumnAliases {
		aliases[foldHeader(k)] = v
	}

	found := make(map[string]int, len(RequiredColumns))
	for i, h := range t.Header {
		canonical, ok := aliases[foldHeader(h)]
		if !ok {
			continue
		}
		// First matching column wins.
		if _, seen := found[canonical]; !seen {
			found[canonical] = i
		}
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := found[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &domain.SchemaError{Missing: missing}
	}

	return &Schema{
		CustomerID:       found[ColumnCustomerID],
		InvoiceID:        found[ColumnInvoiceID],
		InvoiceTimestamp: found[ColumnInvoiceTimestamp],
		Quantity:         found[ColumnQuantity],
		UnitPrice:        found[ColumnUnitPrice],
	}, nil
}

func foldHeader(h string) string {
	h = strings.TrimSpace(strings.Trim(h, "\"'"))
	var b strings.Builder
	for _, r := range h {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
