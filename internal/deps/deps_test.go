package deps

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"guessrank/internal/config"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	if err := os.WriteFile(present, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank"},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" || results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected missing result %#v", results[1])
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected blank result %#v", results[2])
	}
}

func TestRequirementsFollowConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Transform.FFmpegBinary = "/opt/ffmpeg/bin/ffmpeg"
	reqs := Requirements(&cfg)
	if len(reqs) != 2 || reqs[0].Command != "/opt/ffmpeg/bin/ffmpeg" || reqs[1].Command != "ffprobe" {
		t.Fatalf("unexpected requirements %#v", reqs)
	}
}

func writeFFmpeg(t *testing.T, encoders, filters string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\ncase \"$2\" in\n-encoders) cat <<'EOF'\n" + encoders + "\nEOF\n;;\n-filters) cat <<'EOF'\n" + filters + "\nEOF\n;;\nesac\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write ffmpeg stub: %v", err)
	}
	return path
}

func TestCheckFFmpegCapabilities(t *testing.T) {
	encoders := " V....D libx264              libx264 H.264\n A....D aac                  AAC"
	filters := " ... boxblur  V->V Blur\n ... crop V->V Crop\n ... overlay VV->V Overlay\n ... split V->N Split"

	ok := CheckFFmpegCapabilities(context.Background(), writeFFmpeg(t, encoders, filters))
	if !ok.Available {
		t.Fatalf("expected capabilities to pass, got %#v", ok)
	}

	missing := CheckFFmpegCapabilities(context.Background(), writeFFmpeg(t, " A....D aac AAC", filters))
	if missing.Available || !strings.Contains(missing.Detail, "libx264") {
		t.Fatalf("expected libx264 to be reported missing, got %#v", missing)
	}
}
