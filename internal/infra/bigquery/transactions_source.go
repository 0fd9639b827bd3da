package bigquery

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/rfm-segmentation/internal/ingest"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
)

// ReadTransactionTable reads a raw transactions table with a short-lived
// client.
func ReadTransactionTable(ctx context.Context, ref TableRef) (*ingest.RawTable, error) {
	client, err := bigquery.NewClient(ctx, ref.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("ReadTransactionTable: bigquery client: %w", err)
	}
	defer client.Close()

	return ReadTransactionTableWithClient(ctx, client, ref)
}

// ReadTransactionTableWithClient reads every column of ref into a RawTable
// so it goes through the same schema validation and cleaning as a file.
// NULL becomes an empty field.
func ReadTransactionTableWithClient(ctx context.Context, client *bigquery.Client, ref TableRef) (*ingest.RawTable, error) {
	q := client.Query(fmt.Sprintf("SELECT * FROM %s", ref.quoted()))
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ReadTransactionTable: query read: %w", err)
	}

	table := &ingest.RawTable{Source: tableURIScheme + ref.String()}
	for {
		var values []bigquery.Value
		err := it.Next(&values)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ReadTransactionTable: iter next: %w", err)
		}

		row := make([]string, len(values))
		for i, v := range values {
			row[i] = stringifyValue(v)
		}
		table.Rows = append(table.Rows, row)
		// Line 1 is the header, matching file sources.
		table.Lines = append(table.Lines, len(table.Rows)+1)
	}

	for _, field := range it.Schema {
		table.Header = append(table.Header, field.Name)
	}
	return table, nil
}

// stringifyValue renders a BigQuery cell in a form the ingest parsers accept.
func stringifyValue(v bigquery.Value) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case *big.Rat:
		d, err := decimal.NewFromString(x.FloatString(9))
		if err != nil {
			return x.FloatString(9)
		}
		return d.String()
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case civil.Date:
		return x.String()
	case civil.DateTime:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
