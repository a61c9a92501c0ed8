package deps

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Capabilities the blur pipeline needs from the ffmpeg build.
var (
	requiredEncoders = []string{"libx264", "aac"}
	requiredFilters  = []string{"boxblur", "crop", "overlay", "split"}
)

// CheckFFmpegCapabilities reports whether binary was built with the encoders
// and filters the transform uses. Distribution builds without libx264 are
// the usual failure.
func CheckFFmpegCapabilities(ctx context.Context, binary string) Status {
	result := Status{
		Name:        "FFmpeg capabilities",
		Command:     binary,
		Description: "libx264, aac, and the blur filters",
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	encoders, err := exec.CommandContext(ctx, binary, "-hide_banner", "-encoders").Output()
	if err != nil {
		result.Detail = fmt.Sprintf("list encoders: %v", err)
		return result
	}
	filters, err := exec.CommandContext(ctx, binary, "-hide_banner", "-filters").Output()
	if err != nil {
		result.Detail = fmt.Sprintf("list filters: %v", err)
		return result
	}

	var missing []string
	missing = append(missing, missingNames(string(encoders), requiredEncoders)...)
	missing = append(missing, missingNames(string(filters), requiredFilters)...)
	if len(missing) > 0 {
		result.Detail = "missing " + strings.Join(missing, ", ")
		return result
	}
	result.Available = true
	return result
}

// missingNames returns the names that do not appear as the second column of
// an ffmpeg -encoders / -filters listing.
func missingNames(listing string, names []string) []string {
	present := make(map[string]struct{})
	for _, line := range strings.Split(listing, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			present[fields[1]] = struct{}{}
		}
	}
	var missing []string
	for _, name := range names {
		if _, ok := present[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
