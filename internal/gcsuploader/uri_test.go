package gcsuploader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGCSURI(t *testing.T) {
	tests := []struct {
		name       string
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{"nested object", "gs://retail-data/exports/2011/online_retail.csv", "retail-data", "exports/2011/online_retail.csv", false},
		{"top-level object", "gs://bucket/file.csv", "bucket", "file.csv", false},
		{"wrong scheme", "s3://bucket/file.csv", "", "", true},
		{"bucket only", "gs://bucket", "", "", true},
		{"trailing slash", "gs://bucket/", "", "", true},
		{"no bucket", "gs:///file.csv", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, object, err := ParseGCSURI(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBucket, bucket)
			assert.Equal(t, tt.wantObject, object)
		})
	}
}

func TestBuildGCSURI(t *testing.T) {
	assert.Equal(t, "gs://results/rfm/run-1/customers.csv", BuildGCSURI("results", "rfm", "run-1", "customers.csv"))
	assert.Equal(t, "gs://results/customers.csv", BuildGCSURI("results", "", "customers.csv"))
}

func TestExtractFilenameFromGCSURI(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"gs://bucket/exports/rfm.csv", "rfm.csv"},
		{"gs://bucket/rfm.json", "rfm.json"},
		{"gs://bucket", "bucket"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractFilenameFromGCSURI(tt.uri))
	}
}

func TestIsGCSURI(t *testing.T) {
	assert.True(t, IsGCSURI("gs://bucket/object"))
	assert.False(t, IsGCSURI("/tmp/object"))
	assert.False(t, IsGCSURI("bq://project.dataset.table"))
}
