// Package upload posts transformed clips to an optional external file host.
// When no endpoint is configured the uploader is disabled and clips are
// attached to Discord messages directly.
package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"guessrank/internal/config"
	"guessrank/internal/services"
)

// Uploader sends a file and returns its public URL.
type Uploader struct {
	endpoint string
	field    string
	token    string
	client   *http.Client
}

// New returns nil when no endpoint is configured.
func New(cfg *config.Config) *Uploader {
	endpoint := strings.TrimSpace(cfg.Upload.Endpoint)
	if endpoint == "" {
		return nil
	}
	timeout := time.Duration(cfg.Upload.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	field := cfg.Upload.FieldName
	if field == "" {
		field = "file"
	}
	return &Uploader{
		endpoint: endpoint,
		field:    field,
		token:    strings.TrimSpace(cfg.Upload.Token),
		client:   &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether uploads go to an external host.
func (u *Uploader) Enabled() bool {
	return u != nil
}

// Upload streams path as a multipart form and returns the URL from the
// response. The host may answer with a bare URL or JSON {"url": "..."}.
func (u *Uploader) Upload(ctx context.Context, path string) (string, error) {
	if u == nil {
		return "", services.Wrap(services.ErrConfiguration, "upload", "upload", "no endpoint configured", nil)
	}
	file, err := os.Open(path)
	if err != nil {
		return "", services.Wrap(services.ErrExternal, "upload", "open", filepath.Base(path), err)
	}
	defer file.Close()

	body, writer := io.Pipe()
	form := multipart.NewWriter(writer)
	go func() {
		part, err := form.CreateFormFile(u.field, filepath.Base(path))
		if err == nil {
			_, err = io.Copy(part, file)
		}
		if err == nil {
			err = form.Close()
		}
		writer.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, body)
	if err != nil {
		body.Close()
		return "", services.Wrap(services.ErrExternal, "upload", "request", "build request", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	if u.token != "" {
		req.Header.Set("Authorization", "Bearer "+u.token)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		marker := services.ErrExternal
		if ctx.Err() != nil || isTimeout(err) {
			marker = services.ErrTimeout
		}
		return "", services.Wrap(marker, "upload", "post", u.host(), err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", services.Wrap(services.ErrExternal, "upload", "read response", u.host(), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", services.Wrap(services.ErrExternal, "upload", "post",
			fmt.Sprintf("%s returned %d: %s", u.host(), resp.StatusCode, strings.TrimSpace(string(raw))), nil)
	}
	link, err := parseLink(raw)
	if err != nil {
		return "", services.Wrap(services.ErrExternal, "upload", "parse response", u.host(), err)
	}
	return link, nil
}

func (u *Uploader) host() string {
	if parsed, err := url.Parse(u.endpoint); err == nil && parsed.Host != "" {
		return parsed.Host
	}
	return u.endpoint
}

func parseLink(raw []byte) (string, error) {
	text := strings.TrimSpace(string(raw))
	if strings.HasPrefix(text, "{") {
		var decoded struct {
			URL  string `json:"url"`
			Link string `json:"link"`
		}
		if err := json.Unmarshal([]byte(text), &decoded); err != nil {
			return "", err
		}
		text = decoded.URL
		if text == "" {
			text = decoded.Link
		}
	}
	parsed, err := url.Parse(text)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", fmt.Errorf("response is not a URL: %q", text)
	}
	return text, nil
}

func isTimeout(err error) bool {
	var timeout interface{ Timeout() bool }
	return errors.As(err, &timeout) && timeout.Timeout()
}
