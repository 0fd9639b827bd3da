package gcsuploader

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// DownloadFile reads a whole object using client.
func DownloadFile(ctx context.Context, client *storage.Client, bucketName, objectName string) ([]byte, error) {
	r, err := client.Bucket(bucketName).Object(objectName).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("DownloadFile: opening object %s/%s: %w", bucketName, objectName, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("DownloadFile: reading object %s/%s: %w", bucketName, objectName, err)
	}
	return data, nil
}

// FetchFromGCS downloads the file bytes from the given GCS URI with a
// short-lived client. It assumes Application Default Credentials.
func FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	bucketName, objectPath, err := ParseGCSURI(gcsURI)
	if err != nil {
		return nil, err
	}

	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("FetchFromGCS: creating storage client: %w", err)
	}
	defer storageClient.Close()

	return DownloadFile(ctx, storageClient, bucketName, objectPath)
}
