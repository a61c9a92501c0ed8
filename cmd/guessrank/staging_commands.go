package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"guessrank/internal/logging"
	"guessrank/internal/staging"
)

func newStagingCommand(ctx *commandContext) *cobra.Command {
	stagingCmd := &cobra.Command{
		Use:   "staging",
		Short: "Inspect and clean the staging directory",
	}

	stagingCmd.AddCommand(newStagingListCommand(ctx))
	stagingCmd.AddCommand(newStagingCleanCommand(ctx))

	return stagingCmd
}

func newStagingListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List staged submissions and transform outputs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			stagingDir := strings.TrimSpace(cfg.Paths.StagingDir)
			files, err := staging.ListFiles(stagingDir)
			if err != nil {
				return fmt.Errorf("list staging files: %w", err)
			}
			if files == nil {
				files = []staging.FileInfo{}
			}

			var totalSize int64
			for _, f := range files {
				totalSize += f.Size
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, map[string]any{
					"staging_dir":      stagingDir,
					"files":            files,
					"total_size_bytes": totalSize,
				})
			}

			out := cmd.OutOrStdout()
			if len(files) == 0 {
				fmt.Fprintln(out, "Staging directory is empty")
				return nil
			}
			fmt.Fprintf(out, "Staging directory: %s\n\n", stagingDir)
			rows := make([][]string, 0, len(files))
			for _, f := range files {
				rows = append(rows, []string{f.Name, formatDuration(time.Since(f.ModTime)), formatBytes(f.Size)})
			}
			fmt.Fprint(out, renderTable([]tableColumn{
				{"Name", alignLeft},
				{"Age", alignRight},
				{"Size", alignRight},
			}, rows))
			fmt.Fprintf(out, "\nTotal: %d entries, %s\n", len(files), formatBytes(totalSize))
			return nil
		},
	}
}

func newStagingCleanCommand(ctx *commandContext) *cobra.Command {
	var cleanAll bool
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove stale staged files",
		Long: `Remove staged submissions and transform outputs left behind by
interrupted runs.

By default only entries older than intake.stale_staging_hours are removed.
Use --all while the bot is stopped to empty the directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			maxAge := olderThan
			if maxAge <= 0 {
				maxAge = time.Duration(cfg.Intake.StaleStagingHours) * time.Hour
			}
			if cleanAll {
				maxAge = time.Nanosecond
			}
			result := staging.CleanStale(cmd.Context(), cfg.Paths.StagingDir, maxAge, logging.NewNop())
			if ctx.JSONMode() {
				errs := make([]string, 0, len(result.Errors))
				for _, e := range result.Errors {
					errs = append(errs, fmt.Sprintf("%s: %v", e.Path, e.Error))
				}
				return writeJSON(cmd, map[string]any{
					"removed":     result.Removed,
					"freed_bytes": result.Freed,
					"errors":      errs,
				})
			}

			out := cmd.OutOrStdout()
			if len(result.Removed) == 0 && len(result.Errors) == 0 {
				fmt.Fprintln(out, "Nothing to clean")
				return nil
			}
			fmt.Fprintf(out, "Removed %d entries, freed %s\n", len(result.Removed), formatBytes(result.Freed))
			for _, e := range result.Errors {
				fmt.Fprintf(out, "  Error: %s: %v\n", e.Path, e.Error)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&cleanAll, "all", false, "Remove every staged entry regardless of age")
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Override the stale age (e.g. 6h)")
	return cmd
}

func formatDuration(d time.Duration) string {
	d = d.Truncate(time.Minute)
	switch {
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
