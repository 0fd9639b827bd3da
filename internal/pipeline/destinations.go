package pipeline

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/dvloznov/rfm-segmentation/internal/gcsuploader"
	infra "github.com/dvloznov/rfm-segmentation/internal/infra/bigquery"
	"github.com/dvloznov/rfm-segmentation/internal/report"
)

// Destinations resolves output URIs into exporters.
type Destinations struct {
	Storage StorageService
	Results ResultStore
	// ResultsTable is the bq:// URI Results writes to. A bq:// output must
	// name this table.
	ResultsTable string
	// Outputs confines local files. Nil allows any path.
	Outputs *Sandbox
}

// ExporterFor returns the exporter for output:
//
//	gs://bucket/object.csv    upload to that object
//	gs://bucket/prefix/       upload to prefix/<run id>/customers.<format>
//	bq://project.dataset.tbl  insert into the results table
//	dir/                      write dir/rfm_<run id>.<format>
//	path.json                 write that file
//
// An empty format is inferred from the output's extension, falling back to CSV.
func (d Destinations) ExporterFor(output string, format report.Format) (Exporter, error) {
	if output == "" {
		return nil, fmt.Errorf("ExporterFor: empty output")
	}

	switch {
	case gcsuploader.IsGCSURI(output):
		if d.Storage == nil {
			return nil, fmt.Errorf("ExporterFor: no storage service configured for %s", output)
		}
		if strings.HasSuffix(output, "/") || !strings.Contains(strings.TrimPrefix(output, "gs://"), "/") {
			bucket, prefix, _ := strings.Cut(strings.TrimPrefix(output, "gs://"), "/")
			return &GCSExporter{
				Storage: d.Storage,
				Bucket:  bucket,
				Prefix:  strings.TrimSuffix(prefix, "/"),
				Format:  orDefault(format),
			}, nil
		}
		if _, _, err := gcsuploader.ParseGCSURI(output); err != nil {
			return nil, fmt.Errorf("ExporterFor: %w", err)
		}
		if format == "" {
			format = formatFromName(gcsuploader.ExtractFilenameFromGCSURI(output))
		}
		return &GCSExporter{Storage: d.Storage, URI: output, Format: format}, nil

	case infra.IsTableURI(output):
		if _, err := infra.ParseTableURI(output); err != nil {
			return nil, fmt.Errorf("ExporterFor: %w", err)
		}
		if d.Results == nil {
			return nil, fmt.Errorf("ExporterFor: no BigQuery results store configured for %s", output)
		}
		if d.ResultsTable != "" && output != d.ResultsTable {
			return nil, fmt.Errorf("ExporterFor: results are written to %s, not %s", d.ResultsTable, output)
		}
		return &BigQueryExporter{Store: d.Results, Table: output}, nil

	case strings.HasSuffix(output, "/") || strings.HasSuffix(output, string(filepath.Separator)):
		dir, err := d.Outputs.Resolve(output)
		if err != nil {
			return nil, fmt.Errorf("ExporterFor: %w", err)
		}
		return &FileExporter{Dir: dir, Format: orDefault(format)}, nil

	default:
		dest, err := d.Outputs.Resolve(output)
		if err != nil {
			return nil, fmt.Errorf("ExporterFor: %w", err)
		}
		if format == "" {
			format = formatFromName(output)
		}
		return &FileExporter{Path: dest, Format: format}, nil
	}
}

func formatFromName(name string) report.Format {
	if f, err := report.ParseFormat(strings.TrimPrefix(path.Ext(name), ".")); err == nil {
		return f
	}
	return report.FormatCSV
}

func orDefault(f report.Format) report.Format {
	if f == "" {
		return report.FormatCSV
	}
	return f
}
