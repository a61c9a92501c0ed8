package transform

import (
	"fmt"
	"strings"

	"guessrank/internal/config"
)

// SelectProfile returns the mask profile for a width x height frame.
func SelectProfile(profiles []config.MaskProfile, width, height int) (config.MaskProfile, error) {
	for _, profile := range profiles {
		if profile.Width == width && profile.Height == height {
			return profile, nil
		}
	}
	return config.MaskProfile{}, fmt.Errorf("%w: %dx%d", ErrUnsupportedResolution, width, height)
}

// SupportedResolutions lists the configured frame sizes, e.g. "1920x1080".
func SupportedResolutions(profiles []config.MaskProfile) []string {
	out := make([]string, 0, len(profiles))
	for _, profile := range profiles {
		out = append(out, fmt.Sprintf("%dx%d", profile.Width, profile.Height))
	}
	return out
}

// FilterGraph builds the ffmpeg filter_complex expression that blurs every
// region of profile and labels the composited stream [v].
func FilterGraph(profile config.MaskProfile, strength int) string {
	if strength <= 0 {
		strength = 10
	}
	n := len(profile.Regions)
	if n == 0 {
		return "[0:v]null[v]"
	}

	var b strings.Builder
	b.WriteString("[0:v]split=")
	fmt.Fprintf(&b, "%d[base]", n+1)
	for i := range profile.Regions {
		fmt.Fprintf(&b, "[s%d]", i)
	}
	for i, r := range profile.Regions {
		fmt.Fprintf(&b, ";[s%d]crop=%d:%d:%d:%d,boxblur=%d:1[b%d]", i, r.Width, r.Height, r.X, r.Y, strength, i)
	}
	prev := "base"
	for i, r := range profile.Regions {
		out := fmt.Sprintf("o%d", i)
		if i == n-1 {
			out = "v"
		}
		fmt.Fprintf(&b, ";[%s][b%d]overlay=%d:%d[%s]", prev, i, r.X, r.Y, out)
		prev = out
	}
	return b.String()
}
