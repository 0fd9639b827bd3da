package gcsuploader

import (
	"bytes"
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"github.com/dvloznov/rfm-segmentation/internal/gcs"
)

// Re-export interface from shared package for backward compatibility
type StorageService = gcs.StorageService

// GCSStorageService is the concrete implementation of StorageService
// that interacts with Google Cloud Storage through one shared client.
type GCSStorageService struct {
	client *storage.Client
}

// NewGCSStorageService creates a storage service with its own client.
func NewGCSStorageService(ctx context.Context) (*GCSStorageService, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewGCSStorageService: creating storage client: %w", err)
	}
	return &GCSStorageService{client: client}, nil
}

// NewGCSStorageServiceWithClient wraps an existing client.
func NewGCSStorageServiceWithClient(client *storage.Client) *GCSStorageService {
	return &GCSStorageService{client: client}
}

// FetchFromGCS downloads the object at gcsURI.
func (s *GCSStorageService) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	bucketName, objectName, err := ParseGCSURI(gcsURI)
	if err != nil {
		return nil, err
	}
	return DownloadFile(ctx, s.client, bucketName, objectName)
}

// UploadBytes writes data to the object at gcsURI.
func (s *GCSStorageService) UploadBytes(ctx context.Context, gcsURI string, data []byte, contentType string) error {
	bucketName, objectName, err := ParseGCSURI(gcsURI)
	if err != nil {
		return err
	}
	return WriteObject(ctx, s.client, bucketName, objectName, contentType, bytes.NewReader(data))
}

// Close releases the underlying client.
func (s *GCSStorageService) Close() error {
	return s.client.Close()
}
