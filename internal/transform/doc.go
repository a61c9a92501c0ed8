// Package transform blurs the rank badge out of a gameplay clip and
// re-encodes it to fit Discord's attachment ceiling.
//
// The input is probed with ffprobe, the mask profile matching its frame size
// is selected, and ffmpeg runs a crop/boxblur/overlay filter graph with an
// average bitrate derived from the target output size. Each failure mode
// (probe, unsupported resolution, encode, timeout, oversized output) carries
// its own sentinel alongside the services marker so callers can tell them
// apart with errors.Is.
package transform
