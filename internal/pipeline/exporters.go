package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dvloznov/rfm-segmentation/internal/gcsuploader"
	"github.com/dvloznov/rfm-segmentation/internal/report"
)

// FileExporter writes the table to the local filesystem. Path wins over
// Dir; with only Dir set the file is named rfm_<run id>.<format>.
type FileExporter struct {
	Path   string
	Dir    string
	Format report.Format
}

func (e *FileExporter) Export(ctx context.Context, state *PipelineState) (string, error) {
	data, err := report.Encode(state.Table, e.Format)
	if err != nil {
		return "", err
	}

	dest := e.Path
	if dest == "" {
		dest = filepath.Join(e.Dir, "rfm_"+state.RunID+e.Format.Extension())
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", fmt.Errorf("FileExporter: creating folder: %w", err)
	}
	if err := os.WriteFile(dest, data, 0644); err != nil {
		return "", fmt.Errorf("FileExporter: writing %s: %w", dest, err)
	}
	return dest, nil
}

// GCSExporter uploads the table to Cloud Storage. URI wins over
// Bucket/Prefix; otherwise the object is <prefix>/<run id>/customers.<format>.
type GCSExporter struct {
	Storage StorageService
	URI     string
	Bucket  string
	Prefix  string
	Format  report.Format
}

func (e *GCSExporter) Export(ctx context.Context, state *PipelineState) (string, error) {
	data, err := report.Encode(state.Table, e.Format)
	if err != nil {
		return "", err
	}

	dest := e.URI
	if dest == "" {
		if e.Bucket == "" {
			return "", fmt.Errorf("GCSExporter: no bucket or URI configured")
		}
		dest = gcsuploader.BuildGCSURI(e.Bucket, e.Prefix, state.RunID, "customers"+e.Format.Extension())
	}
	if err := e.Storage.UploadBytes(ctx, dest, data, e.Format.ContentType()); err != nil {
		return "", fmt.Errorf("GCSExporter: uploading %s: %w", dest, err)
	}
	return dest, nil
}

// BigQueryExporter streams the table into a results table.
type BigQueryExporter struct {
	Store ResultStore
	// Table is reported as the destination, e.g. "bq://project.dataset.table".
	Table string
}

func (e *BigQueryExporter) Export(ctx context.Context, state *PipelineState) (string, error) {
	if err := e.Store.SaveCustomerRFM(ctx, state.RunID, state.Table); err != nil {
		return "", fmt.Errorf("BigQueryExporter: %w", err)
	}
	return e.Table, nil
}
