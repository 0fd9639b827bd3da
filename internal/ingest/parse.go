package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dvloznov/rfm-segmentation/internal/domain"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// RawTable is tokenized but untyped tabular data: one header row and the
// data rows below it. Every row has exactly len(Header) fields.
type RawTable struct {
	Source string
	Header []string
	Rows   [][]string
	// Lines holds the 1-based source line of each row, for error positions.
	Lines []int
}

// Len returns the number of data rows.
func (t *RawTable) Len() int {
	return len(t.Rows)
}

// ParseFile opens a local file and parses it with Parse.
func ParseFile(path string, opts Options) (*RawTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.IOError{Source: path, Op: "open", Err: err}
	}
	defer f.Close()

	return Parse(f, path, opts)
}

// Parse decodes r with the configured text encoding and tokenizes it as
// delimited text. The first record is the header. Short rows are padded with
// empty fields; rows longer than the header are a FormatError.
func Parse(r io.Reader, source string, opts Options) (*RawTable, error) {
	opts = opts.withDefaults()

	enc, err := resolveEncoding(opts.Encoding)
	if err != nil {
		return nil, &domain.IOError{Source: source, Op: "decode", Err: err}
	}

	// A UTF BOM wins over the configured encoding.
	decoded := transform.NewReader(r, unicode.BOMOverride(enc.NewDecoder()))

	reader := csv.NewReader(decoded)
	reader.Comma = opts.Delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &domain.FormatError{Line: 1, Err: errors.New("no header row")}
		}
		return nil, readError(source, err)
	}

	table := &RawTable{
		Source: source,
		Header: make([]string, len(header)),
	}
	for i, h := range header {
		table.Header[i] = strings.TrimSpace(h)
	}

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, readError(source, err)
		}

		line, _ := reader.FieldPos(0)
		if len(row) > len(header) {
			return nil, &domain.FormatError{
				Line: line,
				Err:  fmt.Errorf("expected %d fields, saw %d", len(header), len(row)),
			}
		}
		if len(row) < len(header) {
			padded := make([]string, len(header))
			copy(padded, row)
			row = padded
		}

		table.Rows = append(table.Rows, row)
		table.Lines = append(table.Lines, line)
	}

	return table, nil
}

func readError(source string, err error) error {
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		return &domain.FormatError{Line: parseErr.Line, Err: parseErr.Err}
	}
	return &domain.IOError{Source: source, Op: "read", Err: err}
}

func resolveEncoding(name string) (encoding.Encoding, error) {
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("unknown text encoding %q: %w", name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported text encoding %q", name)
	}
	return enc, nil
}
