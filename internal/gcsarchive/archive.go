// Package gcsarchive keeps a copy of every uploaded CSV in Google Cloud
// Storage so a session's raw input can be re-fetched and re-analyzed later.
package gcsarchive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// Archiver writes session uploads to a GCS bucket. It assumes Application
// Default Credentials are configured (gcloud auth application-default login).
type Archiver struct {
	bucket string
}

func NewArchiver(bucket string) *Archiver {
	return &Archiver{bucket: bucket}
}

// ObjectName returns the canonical archive location for a session's upload.
func (a *Archiver) ObjectName(sessionID, filename string) string {
	return fmt.Sprintf("sessions/%s/%s", sessionID, filename)
}

// ArchiveCSV uploads the raw CSV bytes for a session and returns the
// resulting gs:// URI.
func (a *Archiver) ArchiveCSV(ctx context.Context, sessionID, filename string, data []byte) (string, error) {
	if a.bucket == "" {
		return "", fmt.Errorf("ArchiveCSV: no bucket configured")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("ArchiveCSV: create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	objectName := a.ObjectName(sessionID, filename)
	w := client.Bucket(a.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = "text/csv"

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("ArchiveCSV: copy to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("ArchiveCSV: finalize upload: %w", err)
	}

	return fmt.Sprintf("gs://%s/%s", a.bucket, objectName), nil
}

// FetchCSV downloads the archived bytes from the given GCS URI.
func FetchCSV(ctx context.Context, gcsURI string) ([]byte, error) {
	bucketName, objectPath, err := splitURI(gcsURI)
	if err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("FetchCSV: create storage client: %w", err)
	}
	defer client.Close()

	rc, err := client.Bucket(bucketName).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("FetchCSV: reading object %s/%s: %w", bucketName, objectPath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("FetchCSV: reading bytes: %w", err)
	}

	return data, nil
}

func splitURI(gcsURI string) (bucket, object string, err error) {
	if !strings.HasPrefix(gcsURI, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", gcsURI)
	}
	parts := strings.SplitN(strings.TrimPrefix(gcsURI, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", gcsURI)
	}
	return parts[0], parts[1], nil
}
