package intake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"guessrank/internal/services"
	"guessrank/internal/textutil"
)

// Source is an inbound clip: a chat attachment or an allow-listed link.
type Source struct {
	URL         string
	Filename    string
	ContentType string
	// Size is the declared size; zero when unknown.
	Size int64
	// Link marks a URL pasted by the user rather than an attachment.
	Link bool
}

// Stager downloads sources into the staging directory.
type Stager struct {
	dir       string
	validator *Validator
	client    *http.Client
}

// NewStager constructs a stager writing into dir.
func NewStager(dir string, validator *Validator, timeout time.Duration) *Stager {
	return &Stager{dir: dir, validator: validator, client: &http.Client{Timeout: timeout}}
}

// Staged is a downloaded file.
type Staged struct {
	Path         string
	OriginalName string
	Size         int64
}

// Stage validates src and downloads it with a size-limited reader. The
// partial file is removed on any failure.
func (s *Stager) Stage(ctx context.Context, src Source) (Staged, error) {
	name := src.Filename
	if src.Link {
		derived, err := s.validator.CheckURL(src.URL)
		if err != nil {
			return Staged{}, err
		}
		if name == "" {
			name = derived
		}
	}
	if err := s.validator.CheckFile(name, src.ContentType, src.Size); err != nil {
		return Staged{}, err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return Staged{}, services.Wrap(services.ErrConfiguration, "intake", "stage", "create staging dir", err)
	}

	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = ".mp4"
	}
	target := filepath.Join(s.dir, "submission-"+uuid.NewString()+ext)
	size, err := s.download(ctx, src.URL, target)
	if err != nil {
		_ = os.Remove(target)
		return Staged{}, err
	}
	return Staged{Path: target, OriginalName: textutil.SanitizeFileName(name), Size: size}, nil
}

func (s *Stager) download(ctx context.Context, url, target string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, services.Wrap(services.ErrValidation, "intake", "download", "build request", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return 0, services.Wrap(services.ErrTimeout, "intake", "download", "fetch clip", err)
		}
		return 0, services.Wrap(services.ErrExternal, "intake", "download", "fetch clip", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, services.Wrap(services.ErrExternal, "intake", "download", fmt.Sprintf("unexpected status %s", resp.Status), nil)
	}
	if resp.ContentLength > s.validator.MaxBytes() {
		return 0, s.tooLarge(resp.ContentLength)
	}

	file, err := os.Create(target)
	if err != nil {
		return 0, services.Wrap(services.ErrExternal, "intake", "download", "create staged file", err)
	}
	limit := s.validator.MaxBytes()
	written, copyErr := io.Copy(file, io.LimitReader(resp.Body, limit+1))
	closeErr := file.Close()
	if copyErr != nil {
		if isTimeout(copyErr) {
			return 0, services.Wrap(services.ErrTimeout, "intake", "download", "read clip", copyErr)
		}
		return 0, services.Wrap(services.ErrExternal, "intake", "download", "read clip", copyErr)
	}
	if closeErr != nil {
		return 0, services.Wrap(services.ErrExternal, "intake", "download", "close staged file", closeErr)
	}
	if written > limit {
		return 0, s.tooLarge(written)
	}
	if written == 0 {
		return 0, invalid("download", "empty body", "That file is empty.")
	}
	return written, nil
}

func (s *Stager) tooLarge(size int64) error {
	return invalid("download", fmt.Sprintf("body exceeds %d bytes", s.validator.MaxBytes()),
		fmt.Sprintf("That video is too large. The limit is %s.", humanSize(s.validator.MaxBytes())))
}

func isTimeout(err error) bool {
	var timeout interface{ Timeout() bool }
	return errors.As(err, &timeout) && timeout.Timeout()
}
