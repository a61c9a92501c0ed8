package transform

import (
	"fmt"
	"math"
)

const (
	minBitrateKbps = 500
	maxBitrateKbps = 5000
	audioBitrate   = "128k"
)

// Bitrate returns the video bitrate in kbps that lands a clip of duration
// seconds near targetMB. Unknown durations use the ceiling.
func Bitrate(targetMB int, duration float64) int {
	if duration <= 0 || math.IsNaN(duration) {
		return maxBitrateKbps
	}
	kbps := int(float64(targetMB) * 8192 / duration)
	return min(max(kbps, minBitrateKbps), maxBitrateKbps)
}

// encodeArgs builds the ffmpeg argument list.
func encodeArgs(input, output, graph string, bitrateKbps int, withAudio bool) []string {
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error", "-nostdin",
		"-i", input,
		"-filter_complex", graph,
		"-map", "[v]",
	}
	if withAudio {
		args = append(args, "-map", "0:a:0")
	}
	args = append(args,
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "22",
		"-maxrate", fmt.Sprintf("%dk", bitrateKbps),
		"-bufsize", fmt.Sprintf("%dk", bitrateKbps*2),
		"-pix_fmt", "yuv420p",
	)
	if withAudio {
		args = append(args, "-c:a", "aac", "-b:a", audioBitrate)
	} else {
		args = append(args, "-an")
	}
	return append(args, "-movflags", "+faststart", output)
}
