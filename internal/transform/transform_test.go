package transform_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"guessrank/internal/config"
	"guessrank/internal/services"
	"guessrank/internal/testsupport"
	"guessrank/internal/transform"
)

func probeStub(width, height int, duration string) testsupport.ConfigOption {
	return testsupport.WithStubScript("ffprobe", fmt.Sprintf(`cat <<'JSON'
{"streams":[{"index":0,"codec_type":"video","width":%d,"height":%d},{"index":1,"codec_type":"audio"}],
 "format":{"duration":"%s"}}
JSON`, width, height, duration))
}

// ffmpegStub records its arguments next to the output and writes sizeBytes
// of filler to the last argument.
func ffmpegStub(sizeBytes int) testsupport.ConfigOption {
	return testsupport.WithStubScript("ffmpeg", fmt.Sprintf(`for out; do :; done
echo "$@" > "$out.args"
head -c %d /dev/zero > "$out"`, sizeBytes))
}

func stageInput(t *testing.T, cfg *config.Config) string {
	t.Helper()
	return testsupport.StageClip(t, cfg.Paths.StagingDir, "submission-1.mp4", 1)
}

func TestBitrateClamp(t *testing.T) {
	tests := []struct {
		duration float64
		want     int
	}{
		{duration: 60, want: 2730},
		{duration: 10, want: 5000},
		{duration: 600, want: 500},
		{duration: 0, want: 5000},
	}
	for _, tc := range tests {
		if got := transform.Bitrate(20, tc.duration); got != tc.want {
			t.Fatalf("Bitrate(20, %v) = %d, want %d", tc.duration, got, tc.want)
		}
	}
}

func TestSelectProfile(t *testing.T) {
	profiles := config.Default().Transform.Profiles
	profile, err := transform.SelectProfile(profiles, 2560, 1440)
	if err != nil {
		t.Fatalf("SelectProfile: %v", err)
	}
	if profile.Regions[0].Width != 534 || profile.Regions[0].Height != 267 {
		t.Fatalf("unexpected region %+v", profile.Regions[0])
	}
	if _, err := transform.SelectProfile(profiles, 640, 480); !errors.Is(err, transform.ErrUnsupportedResolution) {
		t.Fatalf("expected unsupported resolution, got %v", err)
	}
}

func TestFilterGraph(t *testing.T) {
	single := config.MaskProfile{Width: 1920, Height: 1080, Regions: []config.MaskRegion{{Width: 400, Height: 200}}}
	want := "[0:v]split=2[base][s0];[s0]crop=400:200:0:0,boxblur=10:1[b0];[base][b0]overlay=0:0[v]"
	if got := transform.FilterGraph(single, 10); got != want {
		t.Fatalf("FilterGraph single:\n got %s\nwant %s", got, want)
	}

	double := config.MaskProfile{Regions: []config.MaskRegion{
		{X: 0, Y: 0, Width: 100, Height: 50},
		{X: 10, Y: 20, Width: 30, Height: 40},
	}}
	got := transform.FilterGraph(double, 5)
	for _, part := range []string{
		"split=3[base][s0][s1]",
		"[s1]crop=30:40:10:20,boxblur=5:1[b1]",
		"[base][b0]overlay=0:0[o0]",
		"[o0][b1]overlay=10:20[v]",
	} {
		if !strings.Contains(got, part) {
			t.Fatalf("FilterGraph double missing %q in %s", part, got)
		}
	}
}

func TestTransformEncodesSupportedResolution(t *testing.T) {
	cfg := testsupport.NewConfig(t, probeStub(1920, 1080, "60.0"), ffmpegStub(4096))
	input := stageInput(t, cfg)

	result, err := transform.New(cfg, nil).Transform(context.Background(), input)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if result.Size != 4096 || result.BitrateKbps != 2730 || result.Width != 1920 {
		t.Fatalf("unexpected result %+v", result)
	}
	args, err := os.ReadFile(result.Path + ".args")
	if err != nil {
		t.Fatalf("read recorded args: %v", err)
	}
	for _, want := range []string{"-c:v libx264", "-preset medium", "-crf 22", "-maxrate 2730k", "-bufsize 5460k", "-c:a aac -b:a 128k", "-pix_fmt yuv420p", "-movflags +faststart", "boxblur=10:1"} {
		if !strings.Contains(string(args), want) {
			t.Fatalf("ffmpeg args missing %q: %s", want, args)
		}
	}
	if _, err := os.Stat(input); err != nil {
		t.Fatalf("input must be left in place: %v", err)
	}
}

func TestTransformRejectsUnsupportedResolution(t *testing.T) {
	cfg := testsupport.NewConfig(t, probeStub(640, 480, "10"), ffmpegStub(10))
	input := stageInput(t, cfg)
	tr := transform.New(cfg, nil)

	_, err := tr.Transform(context.Background(), input)
	if !errors.Is(err, services.ErrValidation) || !errors.Is(err, transform.ErrUnsupportedResolution) {
		t.Fatalf("expected unsupported resolution validation error, got %v", err)
	}
	if msg := services.UserMessage(err); !strings.Contains(msg, "640x480") {
		t.Fatalf("user message should name the resolution, got %q", msg)
	}
	testsupport.AssertMissing(t, tr.OutputPath(input))
}

func TestTransformRejectsOversizedOutput(t *testing.T) {
	cfg := testsupport.NewConfig(t, probeStub(2560, 1440, "30"), ffmpegStub(2*1024*1024))
	cfg.Transform.MaxOutputMB = 1
	input := stageInput(t, cfg)
	tr := transform.New(cfg, nil)

	_, err := tr.Transform(context.Background(), input)
	if !errors.Is(err, services.ErrValidation) || !errors.Is(err, transform.ErrTooLarge) {
		t.Fatalf("expected too-large validation error, got %v", err)
	}
	if !strings.Contains(services.UserMessage(err), "Unable to compress video enough") {
		t.Fatalf("unexpected user message %q", services.UserMessage(err))
	}
	testsupport.AssertMissing(t, tr.OutputPath(input))
}

func TestTransformEncodeFailureRemovesPartialOutput(t *testing.T) {
	cfg := testsupport.NewConfig(t, probeStub(1920, 1080, "30"),
		testsupport.WithStubScript("ffmpeg", `for out; do :; done
echo partial > "$out"
echo "encoder exploded" >&2
exit 1`))
	input := stageInput(t, cfg)
	tr := transform.New(cfg, nil)

	_, err := tr.Transform(context.Background(), input)
	if !errors.Is(err, services.ErrExternal) || !errors.Is(err, transform.ErrEncode) {
		t.Fatalf("expected encode failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "encoder exploded") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
	testsupport.AssertMissing(t, tr.OutputPath(input))
}

func TestTransformProbeFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubScript("ffprobe", "exit 1"), ffmpegStub(10))
	input := stageInput(t, cfg)

	_, err := transform.New(cfg, nil).Transform(context.Background(), input)
	if !errors.Is(err, transform.ErrProbe) || !errors.Is(err, services.ErrExternal) {
		t.Fatalf("expected probe failure, got %v", err)
	}
}

func TestTransformTimeout(t *testing.T) {
	cfg := testsupport.NewConfig(t, probeStub(1920, 1080, "30"),
		testsupport.WithStubScript("ffmpeg", `for out; do :; done
echo partial > "$out"
exec sleep 10`))
	input := stageInput(t, cfg)
	tr := transform.New(cfg, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	_, err := tr.Transform(ctx, input)
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	testsupport.AssertMissing(t, tr.OutputPath(input))
	if _, err := os.Stat(filepath.Dir(input)); err != nil {
		t.Fatalf("staging dir should remain: %v", err)
	}
}
