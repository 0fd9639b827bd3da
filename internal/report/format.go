package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dvloznov/rfm-segmentation/internal/rfm"
)

// Format selects an output serialization.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat accepts "csv" or "json" in any case. Empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unsupported output format %q", s)
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	if f == FormatJSON {
		return "application/json"
	}
	return "text/csv; charset=utf-8"
}

// Extension returns the file extension for f, including the dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// Encode serializes table in the given format.
func Encode(table *rfm.Table, f Format) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch f {
	case FormatCSV:
		err = WriteCSV(&buf, table)
	case FormatJSON:
		err = WriteJSON(&buf, table)
	default:
		return nil, fmt.Errorf("Encode: unsupported format %q", f)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
