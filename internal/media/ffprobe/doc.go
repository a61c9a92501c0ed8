// Package ffprobe runs ffprobe against a staged clip and decodes the fields
// the transform needs: the primary video stream's frame size, the container
// duration, and whether an audio track is present.
package ffprobe
