// Package fileutil holds small filesystem helpers shared by the pipeline.
package fileutil

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// RemoveQuietly deletes each path, ignoring missing files and logging other
// failures. Empty paths are skipped.
func RemoveQuietly(logger *slog.Logger, paths ...string) {
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) && logger != nil {
			logger.Warn("failed to remove temporary file",
				slog.String("path", path),
				slog.Any("error", err),
				slog.String("event_type", "cleanup_failed"),
				slog.String("error_hint", "check staging directory permissions"),
				slog.String("impact", "file left on disk until the stale staging cleanup runs"),
			)
		}
	}
}

// Size returns the size of path in bytes.
func Size(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// WriteAtomic writes dst through a temporary sibling and renames it into
// place, so readers never observe a partial file. The temporary file is
// removed on failure.
func WriteAtomic(dst string, mode os.FileMode, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", dst, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return fmt.Errorf("rename into %s: %w", dst, err)
	}
	committed = true
	return nil
}
