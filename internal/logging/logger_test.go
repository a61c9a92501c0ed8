package logging_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"guessrank/internal/config"
	"guessrank/internal/logging"
	"guessrank/internal/services"
)

func TestNewFromConfigConsole(t *testing.T) {
	cfg := config.Default()
	runLog := filepath.Join(t.TempDir(), "guessrank-test.log")

	logger, err := logging.NewFromConfig(&cfg, runLog)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello from config")

	content, err := os.ReadFile(runLog)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "hello from config") {
		t.Fatalf("expected message in run log, got %q", content)
	}
}

func TestConsoleLoggerPrefixesComponentAndSubject(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithGuildID(context.Background(), "42")
	ctx = services.WithClipID(ctx, "clip-7")
	component := logging.NewComponentLogger(logger, "sweep")
	logging.WithContext(ctx, component).Info("clip expired", logging.Int("voters", 2))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	if !strings.Contains(line, "sweep [42/clip-7]: clip expired") {
		t.Fatalf("expected component prefix with subject, got %q", line)
	}
	if !strings.Contains(line, "voters=2") {
		t.Fatalf("expected attribute in output, got %q", line)
	}
	if strings.Contains(line, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", line)
	}
}

func TestJSONLoggerWritesStructuredFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{
		Format:      "json",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "announcement failed", "results_announce_failed",
		logging.Error(errors.New("missing access")),
	)

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(content))), &payload); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if payload["level"] != "warn" {
		t.Fatalf("expected lowercase level, got %v", payload["level"])
	}
	if payload[logging.FieldEventType] != "results_announce_failed" {
		t.Fatalf("expected event type, got %v", payload[logging.FieldEventType])
	}
	for _, key := range []string{"ts", logging.FieldErrorHint, logging.FieldImpact} {
		if _, ok := payload[key]; !ok {
			t.Fatalf("expected %s in payload %v", key, payload)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestPruneRunLogsRemovesExpiredRuns(t *testing.T) {
	dir := t.TempDir()
	oldLog := filepath.Join(dir, "guessrank-old.log")
	current := filepath.Join(dir, "guessrank-current.log")
	recent := filepath.Join(dir, "guessrank-recent.log")
	other := filepath.Join(dir, "notes.log")
	for _, path := range []string{oldLog, current, recent, other} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	past := time.Now().AddDate(0, 0, -30)
	if err := os.Chtimes(oldLog, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if err := os.Chtimes(current, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if err := os.Chtimes(other, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	if removed := logging.PruneRunLogs(logging.NewNop(), dir, 7, current); removed != 1 {
		t.Fatalf("expected one pruned log, got %d", removed)
	}
	if _, err := os.Stat(oldLog); !os.IsNotExist(err) {
		t.Fatalf("expected old log removed, stat err=%v", err)
	}
	for _, path := range []string{current, recent, other} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s to remain: %v", filepath.Base(path), err)
		}
	}
	if removed := logging.PruneRunLogs(logging.NewNop(), dir, 0, ""); removed != 0 {
		t.Fatalf("retention 0 must keep everything, removed %d", removed)
	}
}
