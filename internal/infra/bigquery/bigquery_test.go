package bigquery

import (
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/rfm-segmentation/internal/domain"
	"github.com/dvloznov/rfm-segmentation/internal/rfm"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTableURI(t *testing.T) {
	tests := []struct {
		uri     string
		want    TableRef
		wantErr bool
	}{
		{"bq://acme.retail.transactions", TableRef{"acme", "retail", "transactions"}, false},
		{"bq://acme.retail", TableRef{}, true},
		{"bq://acme..transactions", TableRef{}, true},
		{"gs://acme/retail.csv", TableRef{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got, err := ParseTableURI(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, "acme.retail.transactions", got.String())
		})
	}
}

func TestTableRef_Sibling(t *testing.T) {
	ref := TableRef{ProjectID: "acme", DatasetID: "analytics", TableID: "customer_rfm"}
	runs := ref.Sibling(AnalysisRunsTable)
	assert.Equal(t, "acme.analytics.analysis_runs", runs.String())
	assert.Equal(t, "`acme.analytics.analysis_runs`", runs.quoted())
}

func TestNewCustomerRFMRows(t *testing.T) {
	ref := civil.Date{Year: 2011, Month: time.December, Day: 10}
	table := rfm.NewTable(ref, []domain.CustomerRFM{
		{
			CustomerID:       "12346",
			LastPurchaseDate: civil.Date{Year: 2011, Month: time.January, Day: 18},
			RecencyDays:      326,
			Frequency:        1,
			Monetary:         decimal.RequireFromString("77183.60"),
			RScore:           1,
			FScore:           1,
			MScore:           5,
			RFMCode:          "115",
			Segment:          domain.SegmentChurnedCustomers,
		},
	})
	computedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))

	rows := NewCustomerRFMRows("run-1", table, computedAt)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "run-1", row.RunID)
	assert.Equal(t, "12346", row.CustomerID)
	assert.Equal(t, ref, row.ReferenceDate)
	assert.Equal(t, civil.Date{Year: 2011, Month: time.January, Day: 18}, row.LastPurchaseDate)
	assert.Equal(t, int64(326), row.RecencyDays)
	assert.Equal(t, 0, row.Monetary.Cmp(big.NewRat(385918, 5)), "monetary %s", row.Monetary.FloatString(2))
	assert.Equal(t, "115", row.RFMCode)
	assert.Equal(t, "Churned Customers", row.Segment)
	assert.Equal(t, time.UTC, row.ComputedTS.Location())
	assert.True(t, row.ComputedTS.Equal(computedAt))
}

func TestCustomerRFMRowSchema(t *testing.T) {
	schema, err := bigquery.InferSchema(CustomerRFMRow{})
	require.NoError(t, err)

	types := make(map[string]bigquery.FieldType, len(schema))
	for _, f := range schema {
		types[f.Name] = f.Type
	}
	assert.Equal(t, bigquery.DateFieldType, types["last_purchase_date"])
	assert.Equal(t, bigquery.NumericFieldType, types["monetary"])
	assert.Equal(t, bigquery.IntegerFieldType, types["r_score"])
	assert.Equal(t, bigquery.TimestampFieldType, types["computed_ts"])
	assert.Len(t, schema, 13)
}

func TestStringifyValue(t *testing.T) {
	tests := []struct {
		name string
		in   bigquery.Value
		want string
	}{
		{"null", nil, ""},
		{"string", "17850", "17850"},
		{"int", int64(6), "6"},
		{"float", float64(2.55), "2.55"},
		{"numeric", big.NewRat(255, 100), "2.55"},
		{"whole numeric", big.NewRat(17850, 1), "17850"},
		{"timestamp", time.Date(2010, 12, 1, 8, 26, 0, 0, time.UTC), "2010-12-01T08:26:00Z"},
		{"date", civil.Date{Year: 2010, Month: time.December, Day: 1}, "2010-12-01"},
		{"datetime", civil.DateTime{
			Date: civil.Date{Year: 2010, Month: time.December, Day: 1},
			Time: civil.Time{Hour: 8, Minute: 26},
		}, "2010-12-01T08:26:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stringifyValue(tt.in))
		})
	}
}

func TestTruncateError(t *testing.T) {
	assert.Equal(t, "", truncateError(nil))
	long := make([]byte, maxErrorMessageLen+10)
	for i := range long {
		long[i] = 'x'
	}
	assert.Len(t, truncateError(&domain.IOError{Source: string(long), Op: "read"}), maxErrorMessageLen)

	// "io error: read " is 15 bytes, so two-byte runes straddle the cut.
	accented := strings.Repeat("é", maxErrorMessageLen)
	got := truncateError(&domain.IOError{Source: accented, Op: "read"})
	assert.True(t, utf8.ValidString(got))
	assert.Len(t, got, maxErrorMessageLen-1)
	assert.True(t, strings.HasPrefix(got, "io error: read é"))

	got = truncateError(errors.New("bad \xff byte"))
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "bad \uFFFD byte", got)
}
