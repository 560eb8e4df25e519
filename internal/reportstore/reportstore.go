// Package reportstore archives diagnosis reports to a GCS bucket so a
// generated summary can be revisited after the session is gone.
package reportstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"

	"github.com/rcoelho/finbot/internal/domain"
)

// Report is the archived form of one diagnosis run.
type Report struct {
	UserID      string                  `json:"user_id"`
	GeneratedAt time.Time               `json:"generated_at"`
	Model       string                  `json:"model,omitempty"`
	Fallback    bool                    `json:"fallback"`
	Prompt      string                  `json:"prompt,omitempty"`
	Text        string                  `json:"text"`
	Snapshot    *domain.MetricsSnapshot `json:"snapshot"`
}

// Store writes reports as JSON objects under reports/<user>/<timestamp>.json.
type Store struct {
	client *storage.Client
	bucket string
}

// NewStore creates a Store. It assumes Application Default Credentials are
// configured (gcloud auth application-default login).
func NewStore(ctx context.Context, bucket string) (*Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("NewStore: bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewStore: create storage client: %w", err)
	}
	return &Store{client: client, bucket: bucket}, nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Save uploads the report and returns its GCS URI.
func (s *Store) Save(ctx context.Context, report *Report) (string, error) {
	if report.UserID == "" {
		return "", fmt.Errorf("Save: report user ID is required")
	}
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = time.Now()
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("Save: marshaling report: %w", err)
	}

	objectName := ObjectName(report.UserID, report.GeneratedAt)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("Save: writing object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("Save: finalize upload: %w", err)
	}

	return fmt.Sprintf("gs://%s/%s", s.bucket, objectName), nil
}

// Fetch downloads a report from the given GCS URI.
func (s *Store) Fetch(ctx context.Context, gcsURI string) (*Report, error) {
	bucket, objectPath, err := splitURI(gcsURI)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}

	rc, err := s.client.Bucket(bucket).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading object %s/%s: %w", bucket, objectPath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading bytes: %w", err)
	}

	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("Fetch: unmarshaling report: %w", err)
	}
	return &report, nil
}

// ObjectName builds the object path for a report.
func ObjectName(userID string, generatedAt time.Time) string {
	return path.Join("reports", userID, generatedAt.UTC().Format("20060102T150405Z")+".json")
}

func splitURI(gcsURI string) (bucket, object string, err error) {
	if !strings.HasPrefix(gcsURI, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", gcsURI)
	}
	trimmed := strings.TrimPrefix(gcsURI, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", gcsURI)
	}
	return parts[0], parts[1], nil
}
