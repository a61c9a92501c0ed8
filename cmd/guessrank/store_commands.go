package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"guessrank/internal/config"
	"guessrank/internal/logging"
	"guessrank/internal/store"
)

func newStoreCommand(ctx *commandContext) *cobra.Command {
	storeCmd := &cobra.Command{
		Use:   "store",
		Short: "Import and export bot data",
	}

	storeCmd.AddCommand(newStoreImportCommand(ctx))
	storeCmd.AddCommand(newStoreExportCommand(ctx))

	return storeCmd
}

func newStoreImportCommand(ctx *commandContext) *cobra.Command {
	var legacyGuild string

	cmd := &cobra.Command{
		Use:   "import <dir|file>",
		Short: "Merge exported or legacy JSON files into the store",
		Long: `Merge table documents into the store.

A directory is scanned for <table>.json exports and for the files written by
the original bot (channel_config.json, pending_clips.json, results_data.json,
user_scores.json). A single file is matched to its table by name.

Legacy entities that carry no guild are placed in --legacy-guild, in the only
configured guild, or held in the "unassigned" partition.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				opts := store.ImportOptions{
					LegacyGuildID: strings.TrimSpace(legacyGuild),
					Logger:        logging.NewNop(),
				}
				if opts.LegacyGuildID == "" {
					opts.LegacyGuildID = cfg.Store.LegacyGuildID
				}
				reports, err := importPath(cmd, st, args[0], opts)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, reports)
				}
				printImportReports(cmd, reports)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&legacyGuild, "legacy-guild", "", "Guild ID for legacy entities without one")
	return cmd
}

func importPath(cmd *cobra.Command, st *store.Store, path string, opts store.ImportOptions) ([]store.ImportReport, error) {
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(expanded)
	if err != nil {
		return nil, fmt.Errorf("import source: %w", err)
	}
	if info.IsDir() {
		reports, err := st.ImportDir(cmd.Context(), expanded, opts)
		if err != nil {
			return reports, err
		}
		if len(reports) == 0 {
			return nil, fmt.Errorf("no table files found in %s", expanded)
		}
		return reports, nil
	}

	table, ok := store.TableForFile(expanded)
	if !ok {
		return nil, fmt.Errorf("cannot tell which table %s holds; expected one of config.json, voting.json, results_data.json, ...", expanded)
	}
	file, err := os.Open(expanded)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	report, err := st.Import(cmd.Context(), table, file, opts)
	if err != nil {
		return nil, err
	}
	return []store.ImportReport{report}, nil
}

func printImportReports(cmd *cobra.Command, reports []store.ImportReport) {
	out := cmd.OutOrStdout()
	rows := make([][]string, 0, len(reports))
	var warnings []string
	for _, r := range reports {
		rows = append(rows, []string{
			string(r.Table),
			fmt.Sprintf("v%d", r.FromVersion),
			fmt.Sprint(r.Guilds),
			fmt.Sprint(r.Entities),
			fmt.Sprint(len(r.Warnings)),
		})
		warnings = append(warnings, r.Warnings...)
	}
	fmt.Fprint(out, renderTable([]tableColumn{
		{"Table", alignLeft},
		{"From", alignLeft},
		{"Guilds", alignRight},
		{"Entities", alignRight},
		{"Warnings", alignRight},
	}, rows))
	for _, w := range warnings {
		fmt.Fprintf(out, "  warning: %s\n", w)
	}
}

func newStoreExportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "export <dir>",
		Short: "Write every table as a versioned JSON document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				dir, err := config.ExpandPath(args[0])
				if err != nil {
					return err
				}
				written, err := st.ExportDir(cmd.Context(), dir)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]any{"files": written})
				}
				out := cmd.OutOrStdout()
				for _, path := range written {
					fmt.Fprintf(out, "Wrote %s\n", path)
				}
				return nil
			})
		},
	}
}
