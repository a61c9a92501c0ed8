package intake

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"guessrank/internal/config"
	"guessrank/internal/services"
)

// Validator checks submissions against the configured limits.
type Validator struct {
	extensions map[string]struct{}
	maxBytes   int64
	patterns   []*regexp.Regexp
}

// NewValidator compiles the intake section of cfg.
func NewValidator(cfg *config.Config) (*Validator, error) {
	v := &Validator{
		extensions: make(map[string]struct{}, len(cfg.Intake.Extensions)),
		maxBytes:   int64(cfg.Intake.MaxUploadMB) * 1024 * 1024,
	}
	for _, ext := range cfg.Intake.Extensions {
		v.extensions[strings.ToLower(ext)] = struct{}{}
	}
	for _, pattern := range cfg.Intake.URLPatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile url pattern %q: %w", pattern, err)
		}
		v.patterns = append(v.patterns, re)
	}
	return v, nil
}

// MaxBytes returns the size ceiling.
func (v *Validator) MaxBytes() int64 {
	return v.maxBytes
}

// CheckFile validates a file's name, content type, and declared size. A
// non-positive size is not checked here; staging enforces the ceiling while
// downloading.
func (v *Validator) CheckFile(name, contentType string, size int64) error {
	if !v.supportedType(name, contentType) {
		return invalid("check_file", fmt.Sprintf("unsupported file type %q", name),
			"Please send a video file ("+v.extensionList()+").")
	}
	if size > v.maxBytes {
		return invalid("check_file", fmt.Sprintf("size %d exceeds %d", size, v.maxBytes),
			fmt.Sprintf("That video is too large (%s). The limit is %s.", humanSize(size), humanSize(v.maxBytes)))
	}
	return nil
}

// CheckURL validates a link against the allow-list and returns the file name
// its path implies.
func (v *Validator) CheckURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	allowed := false
	for _, re := range v.patterns {
		if re.MatchString(raw) {
			allowed = true
			break
		}
	}
	if !allowed {
		return "", invalid("check_url", "url not allow-listed", "That link is not from a supported host. Upload the video directly instead.")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", invalid("check_url", "unparseable url", "That link could not be read.")
	}
	name := path.Base(parsed.Path)
	if name == "." || name == "/" {
		name = ""
	}
	return name, nil
}

func (v *Validator) supportedType(name, contentType string) bool {
	if _, ok := v.extensions[strings.ToLower(filepath.Ext(name))]; ok {
		return true
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "video/")
}

func (v *Validator) extensionList() string {
	exts := make([]string, 0, len(v.extensions))
	for ext := range v.extensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return strings.Join(exts, ", ")
}

func invalid(operation, detail, message string) error {
	return services.Describe(message, services.Wrap(services.ErrValidation, "intake", operation, detail, nil))
}

func humanSize(bytes int64) string {
	return fmt.Sprintf("%.1fMB", float64(bytes)/(1024*1024))
}
