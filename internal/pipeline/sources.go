package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/rfm-segmentation/internal/domain"
	"github.com/dvloznov/rfm-segmentation/internal/gcsuploader"
	infra "github.com/dvloznov/rfm-segmentation/internal/infra/bigquery"
	"github.com/dvloznov/rfm-segmentation/internal/ingest"
)

// SourceLoader reads a transaction source into a RawTable. It understands
// local paths, gs://bucket/object and bq://project.dataset.table.
type SourceLoader struct {
	Storage   StorageService       // required for gs:// sources
	Warehouse TransactionWarehouse // required for bq:// sources
	Inputs    *Sandbox             // confines local paths when set
}

// Load reads source. Every failure to reach or read the source is an
// IOError; malformed content surfaces as the parser's FormatError.
func (l *SourceLoader) Load(ctx context.Context, source string, opts ingest.Options) (*ingest.RawTable, error) {
	switch {
	case gcsuploader.IsGCSURI(source):
		if l.Storage == nil {
			return nil, &domain.IOError{Source: source, Op: "fetch", Err: errors.New("no storage service configured")}
		}
		data, err := l.Storage.FetchFromGCS(ctx, source)
		if err != nil {
			return nil, &domain.IOError{Source: source, Op: "fetch", Err: err}
		}
		return ingest.Parse(bytes.NewReader(data), source, opts)

	case infra.IsTableURI(source):
		ref, err := infra.ParseTableURI(source)
		if err != nil {
			return nil, &domain.IOError{Source: source, Op: "resolve", Err: err}
		}
		if l.Warehouse == nil {
			return nil, &domain.IOError{Source: source, Op: "query", Err: errors.New("no warehouse configured")}
		}
		table, err := l.Warehouse.ReadTransactions(ctx, ref)
		if err != nil {
			return nil, &domain.IOError{Source: source, Op: "query", Err: err}
		}
		return table, nil

	default:
		path, err := l.Inputs.Resolve(source)
		if err != nil {
			return nil, &domain.IOError{Source: source, Op: "open", Err: err}
		}
		return ingest.ParseFile(path, opts)
	}
}

// Check reports whether source could be loaded, without reading it.
func (l *SourceLoader) Check(source string) error {
	switch {
	case gcsuploader.IsGCSURI(source):
		if l.Storage == nil {
			return fmt.Errorf("Check: no storage service configured for %s", source)
		}
		if _, _, err := gcsuploader.ParseGCSURI(source); err != nil {
			return fmt.Errorf("Check: %w", err)
		}
	case infra.IsTableURI(source):
		if l.Warehouse == nil {
			return fmt.Errorf("Check: no warehouse configured for %s", source)
		}
		if _, err := infra.ParseTableURI(source); err != nil {
			return fmt.Errorf("Check: %w", err)
		}
	default:
		if _, err := l.Inputs.Resolve(source); err != nil {
			return fmt.Errorf("Check: %w", err)
		}
	}
	return nil
}
