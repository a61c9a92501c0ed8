package preflight

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"guessrank/internal/config"
	"guessrank/internal/deps"
)

const bytesPerMB = 1024 * 1024

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies that the filesystem holding path has at least
// minMB megabytes available to unprivileged users. A zero minimum only
// reports the free space.
func CheckFreeSpace(name, path string, minMB uint64) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	freeMB := stat.Bavail * uint64(stat.Bsize) / bytesPerMB
	if freeMB < minMB {
		return Result{Name: name, Detail: fmt.Sprintf("%d MB free, need %d MB", freeMB, minMB)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d MB free", freeMB)}
}

// CheckDiscordToken verifies that a bot token is configured. The token is
// not validated against Discord here; the gateway handshake does that.
func CheckDiscordToken(token string) Result {
	const name = "Discord token"
	token = strings.TrimSpace(token)
	if token == "" {
		return Result{Name: name, Detail: "missing (set discord.token or DISCORD_TOKEN)"}
	}
	if strings.ContainsAny(token, " \t\n") {
		return Result{Name: name, Detail: "contains whitespace"}
	}
	return Result{Name: name, Passed: true, Detail: "configured"}
}

// CheckTools verifies the ffmpeg and ffprobe binaries and the ffmpeg
// features the blur filter graph relies on.
func CheckTools(ctx context.Context, cfg *config.Config) []Result {
	statuses := CheckSystemDeps(cfg)
	results := make([]Result, 0, len(statuses)+1)
	ffmpegPath := ""
	for _, status := range statuses {
		results = append(results, fromStatus(status))
		if status.Name == "FFmpeg" && status.Available {
			ffmpegPath = status.Command
		}
	}
	if ffmpegPath != "" {
		results = append(results, fromStatus(deps.CheckFFmpegCapabilities(ctx, ffmpegPath)))
	}
	return results
}

// CheckSystemDeps evaluates the external binaries for the given config.
// Both the daemon and the CLI status command use this to avoid duplicating
// the requirements list.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(deps.Requirements(cfg))
}

// CheckUploadHost verifies that the upload endpoint answers HTTP. Any
// response below 500 counts as reachable; hosts commonly reject bare GETs.
func CheckUploadHost(ctx context.Context, endpoint string) Result {
	const name = "Upload host"

	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return Result{Name: name, Detail: "missing endpoint"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodHead, endpoint, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("reachability check failed (%v)", err)}
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("reachability check failed (%v)", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return Result{Name: name, Detail: fmt.Sprintf("reachability check failed (%d)", resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

func fromStatus(status deps.Status) Result {
	detail := status.Detail
	if status.Available && detail == "" {
		detail = status.Command
	}
	return Result{Name: status.Name, Passed: status.Available, Optional: status.Optional, Detail: detail}
}
