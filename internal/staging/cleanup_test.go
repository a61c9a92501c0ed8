package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"guessrank/internal/logging"
)

func writeAged(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("clip"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	stamp := time.Now().Add(-age)
	if err := os.Chtimes(path, stamp, stamp); err != nil {
		t.Fatalf("chtimes %s: %v", name, err)
	}
	return path
}

func TestCleanStaleInvalidPaths(t *testing.T) {
	for _, dir := range []string{"", "   ", "/nonexistent/path/12345"} {
		result := CleanStale(context.Background(), dir, time.Hour, logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for path %q", dir)
		}
	}
}

func TestCleanStaleRemovesOldFiles(t *testing.T) {
	dir := t.TempDir()
	old := writeAged(t, dir, "submission-old.mp4", 7*time.Hour)
	blurred := writeAged(t, dir, "submission-old-blurred.mp4", 7*time.Hour)
	recent := writeAged(t, dir, "submission-new.mp4", time.Minute)

	result := CleanStale(context.Background(), dir, 6*time.Hour, logging.NewNop())
	if len(result.Removed) != 2 {
		t.Fatalf("expected 2 removed, got %v", result.Removed)
	}
	if result.Freed != 8 {
		t.Fatalf("expected 8 bytes freed, got %d", result.Freed)
	}
	for _, path := range []string{old, blurred} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Fatalf("expected %s removed", path)
		}
	}
	if _, err := os.Stat(recent); err != nil {
		t.Fatalf("recent file should remain: %v", err)
	}
}

func TestCleanStaleSkipsHiddenFiles(t *testing.T) {
	dir := t.TempDir()
	hidden := writeAged(t, dir, ".guessrank.db.tmp", 48*time.Hour)

	result := CleanStale(context.Background(), dir, time.Hour, logging.NewNop())
	if len(result.Removed) != 0 {
		t.Fatalf("expected hidden file kept, removed %v", result.Removed)
	}
	if _, err := os.Stat(hidden); err != nil {
		t.Fatalf("hidden file missing: %v", err)
	}
}

func TestCleanStaleDisabledAge(t *testing.T) {
	dir := t.TempDir()
	writeAged(t, dir, "submission-old.mp4", 48*time.Hour)
	if result := CleanStale(context.Background(), dir, 0, logging.NewNop()); len(result.Removed) != 0 {
		t.Fatalf("zero max age should disable cleanup, removed %v", result.Removed)
	}
}

func TestListFilesOldestFirst(t *testing.T) {
	dir := t.TempDir()
	writeAged(t, dir, "b.mp4", time.Minute)
	writeAged(t, dir, "a.mp4", time.Hour)

	files, err := ListFiles(dir)
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != 2 || files[0].Name != "a.mp4" || files[1].Name != "b.mp4" {
		t.Fatalf("unexpected order: %+v", files)
	}
}
