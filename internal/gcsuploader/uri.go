package gcsuploader

import (
	"fmt"
	"path"
	"strings"
)

const uriScheme = "gs://"

// IsGCSURI reports whether s uses the gs:// scheme.
func IsGCSURI(s string) bool {
	return strings.HasPrefix(s, uriScheme)
}

// ParseGCSURI splits "gs://bucket/path/to/object" into bucket and object.
func ParseGCSURI(gcsURI string) (bucket, object string, err error) {
	if !IsGCSURI(gcsURI) {
		return "", "", fmt.Errorf("invalid GCS URI: %s", gcsURI)
	}

	trimmed := strings.TrimPrefix(gcsURI, uriScheme)
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", gcsURI)
	}
	return parts[0], parts[1], nil
}

// BuildGCSURI joins a bucket and object path elements into a gs:// URI.
func BuildGCSURI(bucket string, elem ...string) string {
	return uriScheme + bucket + "/" + path.Join(elem...)
}

// ExtractFilenameFromGCSURI extracts the filename from a GCS URI.
// e.g., "gs://bucket/exports/rfm.csv" → "rfm.csv"
func ExtractFilenameFromGCSURI(uri string) string {
	trimmed := strings.TrimPrefix(uri, uriScheme)

	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return trimmed
	}
	return path.Base(parts[1])
}
