package gcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yungbote/curation-backend/internal/platform/logger"
)

// ObjectWriter stores JSON documents under a key.
type ObjectWriter interface {
	WriteJSON(ctx context.Context, key string, v any) error
	Close() error
}

type bucketWriter struct {
	log    *logger.Logger
	client *storage.Client
	bucket string
}

// NewBucketWriter returns a GCS-backed writer for bucket. When
// STORAGE_EMULATOR_HOST is set the client talks to the emulator without
// authentication.
func NewBucketWriter(ctx context.Context, log *logger.Logger, bucket string) (ObjectWriter, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, fmt.Errorf("bucket name required")
	}
	var opts []option.ClientOption
	if strings.TrimSpace(os.Getenv("STORAGE_EMULATOR_HOST")) != "" {
		opts = append(opts, option.WithoutAuthentication())
	} else {
		opts = append(ClientOptionsFromEnv(), option.WithScopes(storage.ScopeReadWrite))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	log.Info("Object storage initialized", "bucket", bucket)
	return &bucketWriter{log: log.With("service", "BucketWriter"), client: client, bucket: bucket}, nil
}

func (w *bucketWriter) WriteJSON(ctx context.Context, key string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	obj := w.client.Bucket(w.bucket).Object(key).NewWriter(ctx)
	obj.ContentType = "application/json"
	if _, err := obj.Write(body); err != nil {
		_ = obj.Close()
		return fmt.Errorf("write gs://%s/%s: %w", w.bucket, key, err)
	}
	if err := obj.Close(); err != nil {
		return fmt.Errorf("close gs://%s/%s: %w", w.bucket, key, err)
	}
	return nil
}

func (w *bucketWriter) Close() error {
	return w.client.Close()
}

type nopWriter struct{}

func NewNopWriter() ObjectWriter { return nopWriter{} }

func (nopWriter) WriteJSON(context.Context, string, any) error { return nil }
func (nopWriter) Close() error                                 { return nil }
