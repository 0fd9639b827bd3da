package bigquery

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
)

const tableURIScheme = "bq://"

// TableRef names a BigQuery table.
type TableRef struct {
	ProjectID string
	DatasetID string
	TableID   string
}

// String returns the fully qualified "project.dataset.table" name.
func (r TableRef) String() string {
	return r.ProjectID + "." + r.DatasetID + "." + r.TableID
}

// Sibling returns a table in the same dataset.
func (r TableRef) Sibling(tableID string) TableRef {
	return TableRef{ProjectID: r.ProjectID, DatasetID: r.DatasetID, TableID: tableID}
}

// quoted returns the name wrapped in backticks for use in SQL.
func (r TableRef) quoted() string {
	return "`" + r.String() + "`"
}

// IsTableURI reports whether s uses the bq:// scheme.
func IsTableURI(s string) bool {
	return strings.HasPrefix(s, tableURIScheme)
}

// ParseTableURI parses "bq://project.dataset.table".
func ParseTableURI(uri string) (TableRef, error) {
	if !IsTableURI(uri) {
		return TableRef{}, fmt.Errorf("invalid BigQuery URI: %s", uri)
	}
	return ParseTableID(strings.TrimPrefix(uri, tableURIScheme))
}

// ParseTableID parses "project.dataset.table".
func ParseTableID(id string) (TableRef, error) {
	parts := strings.Split(id, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return TableRef{}, fmt.Errorf("invalid BigQuery table %q (want project.dataset.table)", id)
	}
	return TableRef{ProjectID: parts[0], DatasetID: parts[1], TableID: parts[2]}, nil
}

// runStatement runs a DDL or DML statement and waits for it to finish.
func runStatement(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}
