package ingest

import "time"

// DefaultEncoding matches the encoding of the public online-retail exports
// this tool was first pointed at.
const DefaultEncoding = "ISO-8859-1"

// DefaultTimestampLayouts are tried in order when parsing invoice timestamps.
var DefaultTimestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
}

// Options controls how a raw source is decoded, tokenized and typed.
type Options struct {
	// Encoding is an IANA charset name. Empty means DefaultEncoding.
	Encoding string
	// Delimiter separates fields. Zero means ','.
	Delimiter rune
	// TimestampLayouts overrides DefaultTimestampLayouts when non-empty.
	TimestampLayouts []string
	// Location is used for timestamps without a zone. Nil means UTC.
	Location *time.Location
	// ColumnAliases maps extra header names to canonical column names,
	// e.g. {"Client": "customer_id"}.
	ColumnAliases map[string]string
}

// DefaultOptions returns the options used when the caller supplies none.
func DefaultOptions() Options {
	return Options{
		Encoding:         DefaultEncoding,
		Delimiter:        ',',
		TimestampLayouts: DefaultTimestampLayouts,
		Location:         time.UTC,
	}
}

func (o Options) withDefaults() Options {
	if o.Encoding == "" {
		o.Encoding = DefaultEncoding
	}
	if o.Delimiter == 0 {
		o.Delimiter = ','
	}
	if len(o.TimestampLayouts) == 0 {
		o.TimestampLayouts = DefaultTimestampLayouts
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	return o
}
