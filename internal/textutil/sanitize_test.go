package textutil

import (
	"strings"
	"testing"
)

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"  clip.mp4 ":         "clip.mp4",
		"../../etc/passwd":    "-..-etc-passwd",
		"ranked: game 1?.mov": "ranked- game 1.mov",
		"bad\x00name\n.mp4":   "badname.mp4",
		"`rm -rf`|<x>.webm":   "rm -rfx.webm",
		"":                    "",
	}
	for in, want := range cases {
		if got := SanitizeFileName(in); got != want {
			t.Fatalf("SanitizeFileName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSanitizeFileNameTruncatesKeepingExtension(t *testing.T) {
	long := strings.Repeat("é", 200) + ".mp4"
	got := SanitizeFileName(long)
	if len(got) > MaxFileNameBytes {
		t.Fatalf("len = %d, want <= %d", len(got), MaxFileNameBytes)
	}
	if !strings.HasSuffix(got, ".mp4") {
		t.Fatalf("extension lost: %q", got)
	}
	if !strings.HasPrefix(got, "éé") || strings.ContainsRune(got, '�') {
		t.Fatalf("bad truncation: %q", got)
	}
}
