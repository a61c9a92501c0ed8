package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the database layout version. Table payload versions are
// tracked separately in table_versions and migrated in place.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	err = s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (export with an older build, delete the database, then 'guessrank store import')",
			ErrSchemaMismatch, version, schemaVersion)
	}
	return s.upgradeTables(ctx)
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	for _, table := range Tables() {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO table_versions (name, version, updated_at) VALUES (?, ?, ?)",
			string(table), CurrentTableVersion, s.timestamp(),
		); err != nil {
			return fmt.Errorf("record %s table version: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// TableVersion returns the payload version recorded for table.
func (s *Store) TableVersion(ctx context.Context, table Table) (int, error) {
	var version int
	err := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT version FROM table_versions WHERE name = ?", string(table),
	).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("read %s table version: %w", table, err)
	}
	return version, nil
}

// upgradeTables migrates stored partitions whose table version is behind.
func (s *Store) upgradeTables(ctx context.Context) error {
	for _, table := range Tables() {
		version, err := s.TableVersion(ctx, table)
		if err != nil {
			return err
		}
		if version == CurrentTableVersion {
			continue
		}
		if version > CurrentTableVersion {
			return fmt.Errorf("%w: %s table has version %d, this build understands %d",
				ErrSchemaMismatch, table, version, CurrentTableVersion)
		}
		if version < 1 {
			return fmt.Errorf("%w: %s table has invalid version %d", ErrSchemaMismatch, table, version)
		}
		if err := s.migrateStoredTable(ctx, table, version); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) migrateStoredTable(ctx context.Context, table Table, from int) error {
	partitions, err := s.loadRaw(ctx, table)
	if err != nil {
		return err
	}
	migrated, _, err := migrateGuilds(table, from, partitions, migrateOptions{})
	if err != nil {
		return err
	}
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()
		if err := s.replaceTableTx(ctx, tx, table, migrated); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE table_versions SET version = ?, updated_at = ? WHERE name = ?",
			CurrentTableVersion, s.timestamp(), string(table),
		); err != nil {
			return fmt.Errorf("record %s table version: %w", table, err)
		}
		return tx.Commit()
	})
}
