package preflight

import (
	"context"

	"guessrank/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckFreeSpace("Staging free space", cfg.Paths.StagingDir, uint64(cfg.Intake.MinFreeSpaceMB)),
		CheckDiscordToken(cfg.Discord.Token),
	}
	results = append(results, CheckTools(ctx, cfg)...)

	if cfg.Upload.Endpoint != "" {
		upload := CheckUploadHost(ctx, cfg.Upload.Endpoint)
		upload.Optional = true
		results = append(results, upload)
	}
	return results
}

// Failed returns the required checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			failed = append(failed, r)
		}
	}
	return failed
}
