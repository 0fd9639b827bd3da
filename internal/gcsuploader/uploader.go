package gcsuploader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"cloud.google.com/go/storage"
)

const uploadTimeout = 2 * time.Minute

// WriteObject streams r into bucketName/objectName using client.
func WriteObject(ctx context.Context, client *storage.Client, bucketName, objectName, contentType string, r io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("WriteObject: copying to %s/%s: %w", bucketName, objectName, err)
	}

	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return fmt.Errorf("WriteObject: finalizing %s/%s: %w", bucketName, objectName, err)
	}
	return nil
}

// UploadFile uploads a local file to a GCS bucket under the given object name.
// It assumes Application Default Credentials are configured (gcloud auth application-default login).
func UploadFile(ctx context.Context, bucketName, objectName, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("UploadFile: opening %q: %w", filePath, err)
	}
	defer f.Close()

	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("UploadFile: creating storage client: %w", err)
	}
	defer client.Close()

	return WriteObject(ctx, client, bucketName, objectName, "", f)
}

// UploadBytes writes data to the object named by gcsURI.
func UploadBytes(ctx context.Context, gcsURI string, data []byte, contentType string) error {
	bucketName, objectName, err := ParseGCSURI(gcsURI)
	if err != nil {
		return err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("UploadBytes: creating storage client: %w", err)
	}
	defer client.Close()

	return WriteObject(ctx, client, bucketName, objectName, contentType, bytes.NewReader(data))
}
