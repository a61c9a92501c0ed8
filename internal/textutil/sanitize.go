package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxFileNameBytes caps sanitized names; longer names keep their extension.
const MaxFileNameBytes = 120

var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
	"`", "",
)

// SanitizeFileName makes an uploaded file name safe to log and echo back.
// Path separators and colons become dashes, quoting and shell metacharacters
// are dropped, control characters are removed, and the result is truncated
// on a rune boundary.
func SanitizeFileName(name string) string {
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(fileNameReplacer.Replace(name))
	name = strings.Trim(name, ".")
	if len(name) <= MaxFileNameBytes {
		return name
	}

	ext := ""
	if i := strings.LastIndexByte(name, '.'); i > 0 && len(name)-i <= 10 {
		ext = name[i:]
		name = name[:i]
	}
	budget := MaxFileNameBytes - len(ext)
	for len(name) > budget {
		_, size := utf8.DecodeLastRuneInString(name)
		name = name[:len(name)-size]
	}
	return strings.TrimSpace(name) + ext
}
