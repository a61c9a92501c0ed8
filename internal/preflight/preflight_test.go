package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"guessrank/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if result := CheckFreeSpace("space", dir, 0); !result.Passed {
		t.Fatalf("zero minimum should pass, got: %s", result.Detail)
	}
	result := CheckFreeSpace("space", dir, 1<<40)
	if result.Passed {
		t.Fatal("expected failure for an exabyte minimum")
	}
	if !strings.Contains(result.Detail, "need") {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}
	if result := CheckFreeSpace("space", filepath.Join(dir, "missing"), 0); result.Passed {
		t.Fatal("expected failure for missing path")
	}
}

func TestCheckDiscordToken(t *testing.T) {
	if CheckDiscordToken("").Passed {
		t.Fatal("empty token should fail")
	}
	if CheckDiscordToken("abc def").Passed {
		t.Fatal("token with whitespace should fail")
	}
	if !CheckDiscordToken("  abc.def.ghi ").Passed {
		t.Fatal("expected trimmed token to pass")
	}
}

func TestCheckUploadHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer srv.Close()
	if result := CheckUploadHost(context.Background(), srv.URL); !result.Passed {
		t.Fatalf("4xx should count as reachable, got: %s", result.Detail)
	}

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer down.Close()
	if result := CheckUploadHost(context.Background(), down.URL); result.Passed {
		t.Fatal("expected failure for 502")
	}
	if result := CheckUploadHost(context.Background(), ""); result.Passed {
		t.Fatal("expected failure for missing endpoint")
	}
}

func TestRunAllWithStubbedTools(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	cfg.Intake.MinFreeSpaceMB = 0
	cfg.Discord.Token = "token"
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	results := RunAll(context.Background(), cfg)
	byName := make(map[string]Result)
	for _, r := range results {
		byName[r.Name] = r
	}
	for _, name := range []string{"Staging directory", "State directory", "Staging free space", "Discord token", "FFmpeg", "FFprobe"} {
		r, ok := byName[name]
		if !ok {
			t.Fatalf("missing check %q in %+v", name, results)
		}
		if !r.Passed {
			t.Fatalf("check %q failed: %s", name, r.Detail)
		}
	}
	if _, ok := byName["Upload host"]; ok {
		t.Fatal("upload host should be skipped when not configured")
	}
}

func TestFailedIgnoresOptional(t *testing.T) {
	results := []Result{
		{Name: "a", Passed: true},
		{Name: "b", Optional: true},
		{Name: "c"},
	}
	failed := Failed(results)
	if len(failed) != 1 || failed[0].Name != "c" {
		t.Fatalf("unexpected failed set: %+v", failed)
	}
}

func TestRuntimeSummaries(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if got := UploadFromConfig(cfg).Detail; !strings.HasPrefix(got, "Disabled") {
		t.Fatalf("upload summary = %q", got)
	}
	cfg.Notifications.NtfyTopic = "https://ntfy.sh/ranks"
	cfg.Notifications.Errors = true
	cfg.Notifications.Lifecycle = false
	cfg.Notifications.Results = true
	if got := NotificationsFromConfig(cfg).Detail; got != "https://ntfy.sh/ranks [errors, results]" {
		t.Fatalf("notifications summary = %q", got)
	}
	cfg.Notifications.Errors = false
	cfg.Notifications.Results = false
	if got := NotificationsFromConfig(cfg).Detail; got != "https://ntfy.sh/ranks [none]" {
		t.Fatalf("notifications summary = %q", got)
	}
}
