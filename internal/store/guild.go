package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyGuild is returned when a guild ID is blank.
var ErrEmptyGuild = errors.New("guild id is required")

// UpdateGuild loads every partition of guildID, applies fn, and writes back
// the partitions whose encoding changed, all in one transaction. fn must not
// perform external I/O: it may run more than once when SQLite reports a busy
// database. Returning an error from fn discards the changes.
func (s *Store) UpdateGuild(ctx context.Context, guildID string, fn func(*GuildState) error) error {
	ctx = ensureContext(ctx)
	guildID = strings.TrimSpace(guildID)
	if guildID == "" {
		return ErrEmptyGuild
	}

	s.tableMu.RLock()
	defer s.tableMu.RUnlock()
	unlock := s.guilds.lock(guildID)
	defer unlock()

	var fnErr error
	err := retryOnBusy(ctx, func() error {
		fnErr = nil
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin guild tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		raw, err := loadGuildRows(ctx, tx, guildID)
		if err != nil {
			return err
		}
		state, err := decodeGuildState(guildID, raw)
		if err != nil {
			return err
		}
		if err := fn(state); err != nil {
			fnErr = err
			return nil
		}
		if err := s.writeChangedTx(ctx, tx, state, raw); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit guild tx: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return fnErr
}

// ReadGuild returns a snapshot of every partition of guildID. Missing
// partitions are returned empty.
func (s *Store) ReadGuild(ctx context.Context, guildID string) (*GuildState, error) {
	ctx = ensureContext(ctx)
	guildID = strings.TrimSpace(guildID)
	if guildID == "" {
		return nil, ErrEmptyGuild
	}
	raw, err := loadGuildRows(ctx, s.db, guildID)
	if err != nil {
		return nil, err
	}
	return decodeGuildState(guildID, raw)
}

// Guilds lists every guild with at least one stored partition, excluding the
// quarantine partition.
func (s *Store) Guilds(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		"SELECT DISTINCT guild_id FROM partitions WHERE guild_id != ? ORDER BY guild_id", QuarantineGuildID)
	if err != nil {
		return nil, fmt.Errorf("list guilds: %w", err)
	}
	defer rows.Close()
	var guilds []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan guild id: %w", err)
		}
		guilds = append(guilds, id)
	}
	return guilds, rows.Err()
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func loadGuildRows(ctx context.Context, q queryer, guildID string) (map[Table][]byte, error) {
	rows, err := q.QueryContext(ctx, "SELECT name, payload FROM partitions WHERE guild_id = ?", guildID)
	if err != nil {
		return nil, fmt.Errorf("load guild %s: %w", guildID, err)
	}
	defer rows.Close()
	raw := make(map[Table][]byte, 4)
	for rows.Next() {
		var (
			name    string
			payload string
		)
		if err := rows.Scan(&name, &payload); err != nil {
			return nil, fmt.Errorf("scan partition: %w", err)
		}
		raw[Table(name)] = []byte(payload)
	}
	return raw, rows.Err()
}

func decodeGuildState(guildID string, raw map[Table][]byte) (*GuildState, error) {
	state := newGuildState(guildID)
	if payload, ok := raw[TableConfig]; ok {
		var cfg GuildConfig
		if err := json.Unmarshal(payload, &cfg); err != nil {
			return nil, fmt.Errorf("decode %s config: %w", guildID, err)
		}
		state.Config = &cfg
	}
	if payload, ok := raw[TablePending]; ok {
		if err := json.Unmarshal(payload, &state.Pending); err != nil {
			return nil, fmt.Errorf("decode %s pending: %w", guildID, err)
		}
	}
	if payload, ok := raw[TableVoting]; ok {
		if err := json.Unmarshal(payload, &state.Voting); err != nil {
			return nil, fmt.Errorf("decode %s voting: %w", guildID, err)
		}
	}
	if payload, ok := raw[TableScores]; ok {
		if err := json.Unmarshal(payload, &state.Scores); err != nil {
			return nil, fmt.Errorf("decode %s scores: %w", guildID, err)
		}
	}
	return state, nil
}

// encodePartition returns nil when the partition should not exist.
func encodePartition(state *GuildState, table Table) ([]byte, error) {
	var value any
	switch table {
	case TableConfig:
		if state.Config == nil {
			return nil, nil
		}
		state.Config.GuildID = state.GuildID
		value = state.Config
	case TablePending:
		if len(state.Pending) == 0 {
			return nil, nil
		}
		value = state.Pending
	case TableVoting:
		if len(state.Voting) == 0 {
			return nil, nil
		}
		value = state.Voting
	case TableScores:
		if len(state.Scores) == 0 {
			return nil, nil
		}
		value = state.Scores
	default:
		return nil, fmt.Errorf("unknown table %q", table)
	}
	return json.Marshal(value)
}

func (s *Store) writeChangedTx(ctx context.Context, tx *sql.Tx, state *GuildState, before map[Table][]byte) error {
	for _, table := range Tables() {
		payload, err := encodePartition(state, table)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", state.GuildID, table, err)
		}
		previous, existed := before[table]
		switch {
		case payload == nil && !existed:
			continue
		case payload == nil:
			if err := deletePartitionTx(ctx, tx, table, state.GuildID); err != nil {
				return err
			}
		case existed && bytes.Equal(previous, payload):
			continue
		default:
			if err := s.upsertPartitionTx(ctx, tx, table, state.GuildID, payload); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Store) upsertPartitionTx(ctx context.Context, tx *sql.Tx, table Table, guildID string, payload []byte) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO partitions (name, guild_id, payload, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(name, guild_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		string(table), guildID, string(payload), s.timestamp(),
	)
	if err != nil {
		return fmt.Errorf("write %s %s: %w", guildID, table, err)
	}
	return nil
}

func deletePartitionTx(ctx context.Context, tx *sql.Tx, table Table, guildID string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM partitions WHERE name = ? AND guild_id = ?", string(table), guildID); err != nil {
		return fmt.Errorf("delete %s %s: %w", guildID, table, err)
	}
	return nil
}
