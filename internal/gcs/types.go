package gcs

import (
	"context"
)

// StorageService provides an interface for cloud storage operations.
// This interface enables mocking and testing of storage functionality.
type StorageService interface {
	// FetchFromGCS downloads the object at a gs:// URI.
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)

	// UploadBytes writes data to the object at a gs:// URI.
	UploadBytes(ctx context.Context, gcsURI string, data []byte, contentType string) error
}
