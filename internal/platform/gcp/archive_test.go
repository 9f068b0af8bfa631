package gcp

import (
	"context"
	"os"
	"testing"

	"github.com/yungbote/curation-backend/internal/platform/logger"
)

func TestNewBucketWriterRequiresBucket(t *testing.T) {
	if _, err := NewBucketWriter(context.Background(), logger.NewNop(), "  "); err == nil {
		t.Fatalf("expected error for empty bucket")
	}
}

func TestNopWriter(t *testing.T) {
	w := NewNopWriter()
	if err := w.WriteJSON(context.Background(), "k", map[string]int{"a": 1}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestClientOptionsFromEnv(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS_JSON", "")
	t.Setenv("GCP_CREDENTIALS_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	if opts := ClientOptionsFromEnv(); opts != nil {
		t.Fatalf("expected no options, got %d", len(opts))
	}
	t.Setenv("GCP_CREDENTIALS_FILE", "/tmp/creds.json")
	if opts := ClientOptionsFromEnv(); len(opts) != 1 {
		t.Fatalf("expected file option, got %d", len(opts))
	}
}

func TestBucketWriterEmulator(t *testing.T) {
	if os.Getenv("STORAGE_EMULATOR_HOST") == "" || os.Getenv("TEST_GCS_BUCKET") == "" {
		t.Skip("STORAGE_EMULATOR_HOST and TEST_GCS_BUCKET not set")
	}
	w, err := NewBucketWriter(context.Background(), logger.NewNop(), os.Getenv("TEST_GCS_BUCKET"))
	if err != nil {
		t.Fatalf("NewBucketWriter: %v", err)
	}
	defer w.Close()
	if err := w.WriteJSON(context.Background(), "curations/test/run/batch-1-rung-1.json", map[string]any{"ok": true}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
}
