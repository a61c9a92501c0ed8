package logs

import (
	"fmt"
	"os"
	"path/filepath"
)

// CurrentName is the stable name that points at the active run's log.
const CurrentName = "guessrank.log"

// CurrentPath returns the stable log path inside dir.
func CurrentPath(dir string) string {
	return filepath.Join(dir, CurrentName)
}

// PointCurrent makes CurrentPath(dir) refer to target, preferring a symlink
// and falling back to a hard link.
func PointCurrent(dir, target string) error {
	current := CurrentPath(dir)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}
