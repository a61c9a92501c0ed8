package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sort"

	"guessrank/internal/fileutil"
	"guessrank/internal/logging"
)

// CurrentTableVersion is the payload version written by this build.
const CurrentTableVersion = 1

// Document is the JSON exchange format for one table.
type Document struct {
	SchemaVersion int                        `json:"schema_version"`
	Table         Table                      `json:"table"`
	Guilds        map[string]json.RawMessage `json:"guilds"`
}

// ImportOptions controls placement of legacy entities.
type ImportOptions struct {
	// LegacyGuildID receives version 0 entities that carry no guild.
	LegacyGuildID string
	Logger        *slog.Logger
}

// ImportReport summarizes one Import call.
type ImportReport struct {
	Table       Table
	FromVersion int
	Guilds      int
	Entities    int
	Warnings    []string
}

type migrateOptions struct {
	fallbackGuild string
}

// migrationFunc upgrades a guild map from version n to n+1. Version 0 input
// is the raw top-level object of an untagged file.
type migrationFunc func(table Table, guilds map[string]json.RawMessage, opts migrateOptions) (map[string]json.RawMessage, []string, error)

var migrations = map[int]migrationFunc{
	0: migrateV0ToV1,
}

func migrateGuilds(table Table, from int, guilds map[string]json.RawMessage, opts migrateOptions) (map[string]json.RawMessage, []string, error) {
	var warnings []string
	for version := from; version < CurrentTableVersion; version++ {
		migrate, ok := migrations[version]
		if !ok {
			return nil, warnings, fmt.Errorf("no migration from %s version %d", table, version)
		}
		next, warns, err := migrate(table, guilds, opts)
		if err != nil {
			return nil, warnings, fmt.Errorf("migrate %s %d→%d: %w", table, version, version+1, err)
		}
		warnings = append(warnings, warns...)
		guilds = next
	}
	return guilds, warnings, nil
}

// parseDocument reads a tagged document or treats the whole object as version 0.
func parseDocument(table Table, data []byte) (int, map[string]json.RawMessage, error) {
	var top map[string]json.RawMessage
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(&top); err != nil {
		return 0, nil, fmt.Errorf("decode %s document: %w", table, err)
	}
	tag, tagged := top["schema_version"]
	if !tagged {
		return 0, top, nil
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, nil, fmt.Errorf("decode %s document: %w", table, err)
	}
	if doc.SchemaVersion < 1 {
		return 0, nil, fmt.Errorf("%s document has invalid schema_version %s", table, tag)
	}
	if doc.SchemaVersion > CurrentTableVersion {
		return 0, nil, fmt.Errorf("%w: %s document has version %d, this build understands %d",
			ErrSchemaMismatch, table, doc.SchemaVersion, CurrentTableVersion)
	}
	if doc.Table != "" && doc.Table != table {
		return 0, nil, fmt.Errorf("document holds table %q, not %q", doc.Table, table)
	}
	if doc.Guilds == nil {
		doc.Guilds = map[string]json.RawMessage{}
	}
	return doc.SchemaVersion, doc.Guilds, nil
}

// Import merges a table document into the store. Entities with the same key
// are overwritten; other entities of the guild are kept. Version 0 input is
// migrated best-effort: entries that cannot be interpreted are skipped with a
// warning instead of failing the import. A version 0 configuration never
// replaces an existing one.
func (s *Store) Import(ctx context.Context, table Table, r io.Reader, opts ImportOptions) (ImportReport, error) {
	ctx = ensureContext(ctx)
	report := ImportReport{Table: table}
	data, err := io.ReadAll(r)
	if err != nil {
		return report, fmt.Errorf("read %s document: %w", table, err)
	}
	version, guilds, err := parseDocument(table, data)
	if err != nil {
		return report, err
	}
	report.FromVersion = version

	migrateOpts := migrateOptions{}
	if version == 0 {
		migrateOpts.fallbackGuild, err = s.legacyFallbackGuild(ctx, opts.LegacyGuildID)
		if err != nil {
			return report, err
		}
	}
	guilds, warnings, err := migrateGuilds(table, version, guilds, migrateOpts)
	report.Warnings = append(report.Warnings, warnings...)
	if err != nil {
		return report, err
	}

	guildIDs := make([]string, 0, len(guilds))
	for guildID := range guilds {
		guildIDs = append(guildIDs, guildID)
	}
	sort.Strings(guildIDs)
	for _, guildID := range guildIDs {
		count, err := s.mergePartition(ctx, table, guildID, guilds[guildID], version == 0)
		if err != nil {
			if version == 0 {
				report.Warnings = append(report.Warnings, fmt.Sprintf("guild %s: %v", guildID, err))
				continue
			}
			return report, err
		}
		report.Guilds++
		report.Entities += count
	}

	if opts.Logger != nil {
		for _, warning := range report.Warnings {
			logging.WarnWithContext(opts.Logger, "legacy import entry skipped", "store_import_warning",
				logging.String("table", string(table)),
				logging.String("detail", warning),
				logging.String(logging.FieldErrorHint, "inspect the source file; skipped entries are not imported"),
				logging.String(logging.FieldImpact, "entry not imported"),
			)
		}
		opts.Logger.Info("table imported",
			logging.String("table", string(table)),
			logging.Int("from_version", version),
			logging.Int("guilds", report.Guilds),
			logging.Int("entities", report.Entities),
			logging.String(logging.FieldEventType, "store_import"),
		)
	}
	return report, nil
}

func (s *Store) mergePartition(ctx context.Context, table Table, guildID string, payload json.RawMessage, legacy bool) (int, error) {
	count := 0
	err := s.UpdateGuild(ctx, guildID, func(state *GuildState) error {
		count = 0
		switch table {
		case TableConfig:
			var cfg GuildConfig
			if err := json.Unmarshal(payload, &cfg); err != nil {
				return fmt.Errorf("decode config: %w", err)
			}
			if legacy && state.Config != nil {
				return nil
			}
			state.Config = &cfg
			count = 1
		case TablePending:
			var pending map[string]PendingClip
			if err := json.Unmarshal(payload, &pending); err != nil {
				return fmt.Errorf("decode pending: %w", err)
			}
			maps.Copy(state.Pending, pending)
			count = len(pending)
		case TableVoting:
			var voting map[string]VotingClip
			if err := json.Unmarshal(payload, &voting); err != nil {
				return fmt.Errorf("decode voting: %w", err)
			}
			maps.Copy(state.Voting, voting)
			count = len(voting)
		case TableScores:
			var scores map[string]ScoreProfile
			if err := json.Unmarshal(payload, &scores); err != nil {
				return fmt.Errorf("decode scores: %w", err)
			}
			maps.Copy(state.Scores, scores)
			count = len(scores)
		default:
			return fmt.Errorf("unknown table %q", table)
		}
		return nil
	})
	return count, err
}

// legacyFallbackGuild picks where unpartitioned legacy entities go.
func (s *Store) legacyFallbackGuild(ctx context.Context, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	configs, err := s.LoadConfigs(ctx)
	if err != nil {
		return "", err
	}
	delete(configs, QuarantineGuildID)
	if len(configs) == 1 {
		for guildID := range configs {
			return guildID, nil
		}
	}
	return QuarantineGuildID, nil
}

// Export writes table as a tagged document.
func (s *Store) Export(ctx context.Context, table Table, w io.Writer) error {
	guilds, err := s.loadRaw(ctx, table)
	if err != nil {
		return err
	}
	doc := Document{SchemaVersion: CurrentTableVersion, Table: table, Guilds: guilds}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("encode %s document: %w", table, err)
	}
	return nil
}

// ExportDir writes one <table>.json document per table into dir.
func (s *Store) ExportDir(ctx context.Context, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	var written []string
	for _, table := range Tables() {
		path := filepath.Join(dir, string(table)+".json")
		if err := fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
			return s.Export(ctx, table, w)
		}); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

// legacyFileNames are the files written by the original bot, per table.
var legacyFileNames = map[Table]string{
	TableConfig:  "channel_config.json",
	TablePending: "pending_clips.json",
	TableVoting:  "results_data.json",
	TableScores:  "user_scores.json",
}

// TableForFile maps an export or legacy file name to its table.
func TableForFile(name string) (Table, bool) {
	base := filepath.Base(name)
	for _, table := range Tables() {
		if base == string(table)+".json" || base == legacyFileNames[table] {
			return table, true
		}
	}
	return "", false
}

// ImportDir imports every table file found in dir: tagged exports named
// <table>.json and the original bot's files. Missing files are skipped.
// Configuration is imported first so legacy entities can be placed in the
// only configured guild.
func (s *Store) ImportDir(ctx context.Context, dir string, opts ImportOptions) ([]ImportReport, error) {
	var reports []ImportReport
	for _, table := range Tables() {
		for _, name := range []string{string(table) + ".json", legacyFileNames[table]} {
			path := filepath.Join(dir, name)
			file, err := os.Open(path)
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			if err != nil {
				return reports, fmt.Errorf("open %s: %w", path, err)
			}
			report, err := s.Import(ctx, table, file, opts)
			_ = file.Close()
			if err != nil {
				return reports, fmt.Errorf("import %s: %w", path, err)
			}
			reports = append(reports, report)
		}
	}
	return reports, nil
}

// Empty reports whether no partition is stored yet.
func (s *Store) Empty(ctx context.Context) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ensureContext(ctx), "SELECT COUNT(1) FROM partitions").Scan(&count); err != nil {
		return false, fmt.Errorf("count partitions: %w", err)
	}
	return count == 0, nil
}
