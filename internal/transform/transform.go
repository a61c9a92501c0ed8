package transform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"guessrank/internal/config"
	"guessrank/internal/fileutil"
	"guessrank/internal/logging"
	"guessrank/internal/media/ffprobe"
	"guessrank/internal/services"
)

// Failure sentinels. Each is joined with a services marker.
var (
	ErrProbe                 = errors.New("probe failed")
	ErrUnsupportedResolution = errors.New("unsupported resolution")
	ErrEncode                = errors.New("encode failed")
	ErrTooLarge              = errors.New("output too large")
)

// Result describes a finished transform.
type Result struct {
	Path        string
	Width       int
	Height      int
	Duration    float64
	BitrateKbps int
	Size        int64
}

// Transformer runs the blur/compress pipeline.
type Transformer struct {
	ffmpeg    string
	ffprobe   string
	targetMB  int
	maxBytes  int64
	strength  int
	profiles  []config.MaskProfile
	outputDir string
	logger    *slog.Logger
}

// New builds a Transformer from the transform section of cfg. Outputs are
// written beside staged inputs.
func New(cfg *config.Config, logger *slog.Logger) *Transformer {
	return &Transformer{
		ffmpeg:    cfg.Transform.FFmpegBinary,
		ffprobe:   cfg.Transform.FFprobeBinary,
		targetMB:  cfg.Transform.TargetSizeMB,
		maxBytes:  int64(cfg.Transform.MaxOutputMB) * 1024 * 1024,
		strength:  cfg.Transform.BlurStrength,
		profiles:  append([]config.MaskProfile(nil), cfg.Transform.Profiles...),
		outputDir: cfg.Paths.StagingDir,
		logger:    logging.NewComponentLogger(logger, "transform"),
	}
}

// OutputPath returns where the transform of input is written.
func (t *Transformer) OutputPath(input string) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(t.outputDir, base+"-blurred.mp4")
}

// Transform probes input, blurs the configured regions, and encodes to
// OutputPath(input). The output file is removed on any failure; input is
// never touched.
func (t *Transformer) Transform(ctx context.Context, input string) (Result, error) {
	logger := logging.WithContext(ctx, t.logger)
	output := t.OutputPath(input)
	result, err := t.run(ctx, input, output)
	if err != nil {
		fileutil.RemoveQuietly(logger, output)
		return Result{}, err
	}
	logger.Info("clip transformed",
		logging.String("resolution", fmt.Sprintf("%dx%d", result.Width, result.Height)),
		logging.Int("bitrate_kbps", result.BitrateKbps),
		logging.Float64("duration_seconds", result.Duration),
		logging.Int64("bytes", result.Size),
		logging.String(logging.FieldEventType, "transform_complete"),
	)
	return result, nil
}

func (t *Transformer) run(ctx context.Context, input, output string) (Result, error) {
	probe, err := ffprobe.Inspect(ctx, t.ffprobe, input)
	if err != nil {
		if cerr := contextError(ctx, "probe"); cerr != nil {
			return Result{}, cerr
		}
		return Result{}, services.Describe("That file could not be read as a video.",
			services.Wrap(services.ErrExternal, "transform", "probe", filepath.Base(input), errors.Join(ErrProbe, err)))
	}
	width, height, err := probe.Resolution()
	if err != nil {
		return Result{}, services.Describe("That file does not contain a video stream.",
			services.Wrap(services.ErrValidation, "transform", "probe", filepath.Base(input), errors.Join(ErrProbe, err)))
	}
	profile, err := SelectProfile(t.profiles, width, height)
	if err != nil {
		return Result{}, services.Describe(
			fmt.Sprintf("Unsupported resolution %dx%d. Supported: %s.", width, height, strings.Join(SupportedResolutions(t.profiles), ", ")),
			services.Wrap(services.ErrValidation, "transform", "select_profile", "no mask profile", err))
	}

	duration := probe.DurationSeconds()
	bitrate := Bitrate(t.targetMB, duration)
	args := encodeArgs(input, output, FilterGraph(profile, t.strength), bitrate, probe.HasAudio())
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return Result{}, services.Wrap(services.ErrExternal, "transform", "encode", "create output dir", err)
	}
	if err := runFFmpeg(ctx, t.ffmpeg, args); err != nil {
		if cerr := contextError(ctx, "encode"); cerr != nil {
			return Result{}, cerr
		}
		return Result{}, services.Wrap(services.ErrExternal, "transform", "encode", "ffmpeg", errors.Join(ErrEncode, err))
	}

	size, err := fileutil.Size(output)
	if err != nil {
		return Result{}, services.Wrap(services.ErrExternal, "transform", "encode", "stat output", errors.Join(ErrEncode, err))
	}
	if t.maxBytes > 0 && size > t.maxBytes {
		return Result{}, services.Describe(
			fmt.Sprintf("Unable to compress video enough (%.1fMB). Try a shorter clip, under 30 seconds.", float64(size)/(1024*1024)),
			services.Wrap(services.ErrValidation, "transform", "size_check", fmt.Sprintf("%d bytes exceeds %d", size, t.maxBytes), ErrTooLarge))
	}
	return Result{
		Path:        output,
		Width:       width,
		Height:      height,
		Duration:    duration,
		BitrateKbps: bitrate,
		Size:        size,
	}, nil
}

func runFFmpeg(ctx context.Context, binary string, args []string) error {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	cmd.WaitDelay = 5 * time.Second
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 512 {
			msg = msg[len(msg)-512:]
		}
		if msg == "" {
			return err
		}
		return fmt.Errorf("%w: %s", err, msg)
	}
	return nil
}

func contextError(ctx context.Context, operation string) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return services.Describe("Processing took too long. Try a shorter clip.",
			services.Wrap(services.ErrTimeout, "transform", operation, "deadline exceeded", ctx.Err()))
	case ctx.Err() != nil:
		return services.Wrap(services.ErrExternal, "transform", operation, "cancelled", ctx.Err())
	}
	return nil
}
