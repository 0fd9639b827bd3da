package domain

import (
	"errors"
	"fmt"
	"strings"
)

// IOError reports a source that could not be reached or read.
type IOError struct {
	Source string
	Op     string // e.g. "open", "read", "fetch", "decode"
	Err    error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("io error: %s %s: %v", e.Op, e.Source, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// FormatError reports tabular data that could not be tokenized or typed.
// Line is 1-based and counts the header; zero means unknown.
type FormatError struct {
	Line   int
	Column string
	Err    error
}

func (e *FormatError) Error() string {
	var b strings.Builder
	b.WriteString("format error")
	if e.Line > 0 {
		fmt.Fprintf(&b, " at line %d", e.Line)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, ", column %q", e.Column)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *FormatError) Unwrap() error { return e.Err }

// SchemaError lists every required column absent from the source header.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return "schema error: missing required columns: " + strings.Join(e.Missing, ", ")
}

// ScoreComputationError reports a metric that could not be cut into five
// non-empty quantile bins.
type ScoreComputationError struct {
	Metric Metric
	Reason string
}

func (e *ScoreComputationError) Error() string {
	return fmt.Sprintf("score computation error: metric %s: %s", e.Metric, e.Reason)
}

// IsFatal reports whether err (or anything it wraps) belongs to the pipeline
// error taxonomy. None of these can succeed on a retry of the same input.
func IsFatal(err error) bool {
	var (
		ioErr     *IOError
		formatErr *FormatError
		schemaErr *SchemaError
		scoreErr  *ScoreComputationError
	)
	return errors.As(err, &ioErr) ||
		errors.As(err, &formatErr) ||
		errors.As(err, &schemaErr) ||
		errors.As(err, &scoreErr)
}
