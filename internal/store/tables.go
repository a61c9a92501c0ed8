package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
)

func (s *Store) loadRaw(ctx context.Context, table Table) (map[string]json.RawMessage, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		"SELECT guild_id, payload FROM partitions WHERE name = ?", string(table))
	if err != nil {
		return nil, fmt.Errorf("load %s table: %w", table, err)
	}
	defer rows.Close()
	out := make(map[string]json.RawMessage)
	for rows.Next() {
		var guildID, payload string
		if err := rows.Scan(&guildID, &payload); err != nil {
			return nil, fmt.Errorf("scan %s partition: %w", table, err)
		}
		out[guildID] = json.RawMessage(payload)
	}
	return out, rows.Err()
}

// replaceTableTx overwrites table with partitions; guilds absent from the map
// are removed.
func (s *Store) replaceTableTx(ctx context.Context, tx *sql.Tx, table Table, partitions map[string]json.RawMessage) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM partitions WHERE name = ?", string(table)); err != nil {
		return fmt.Errorf("clear %s table: %w", table, err)
	}
	return s.putPartitionsTx(ctx, tx, table, partitions)
}

func (s *Store) putPartitionsTx(ctx context.Context, tx *sql.Tx, table Table, partitions map[string]json.RawMessage) error {
	guilds := make([]string, 0, len(partitions))
	for guildID := range partitions {
		guilds = append(guilds, guildID)
	}
	sort.Strings(guilds)
	for _, guildID := range guilds {
		if err := s.upsertPartitionTx(ctx, tx, table, guildID, partitions[guildID]); err != nil {
			return err
		}
	}
	return nil
}

// writeTable commits partitions under the exclusive table lock. With replace
// the whole table is overwritten; otherwise only the listed guilds are.
func (s *Store) writeTable(ctx context.Context, table Table, partitions map[string]json.RawMessage, replace bool) error {
	ctx = ensureContext(ctx)
	s.tableMu.Lock()
	defer s.tableMu.Unlock()
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin %s write: %w", table, err)
		}
		defer func() { _ = tx.Rollback() }()
		if replace {
			err = s.replaceTableTx(ctx, tx, table, partitions)
		} else {
			err = s.putPartitionsTx(ctx, tx, table, partitions)
		}
		if err != nil {
			return err
		}
		return tx.Commit()
	})
}

func loadTable[T any](ctx context.Context, s *Store, table Table) (map[string]T, error) {
	raw, err := s.loadRaw(ctx, table)
	if err != nil {
		return nil, err
	}
	out := make(map[string]T, len(raw))
	for guildID, payload := range raw {
		var value T
		if err := json.Unmarshal(payload, &value); err != nil {
			return nil, fmt.Errorf("decode %s %s: %w", guildID, table, err)
		}
		out[guildID] = value
	}
	return out, nil
}

func encodeTable[T any](table Table, data map[string]T) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(data))
	for guildID, value := range data {
		payload, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", guildID, table, err)
		}
		out[guildID] = payload
	}
	return out, nil
}

func saveTable[T any](ctx context.Context, s *Store, table Table, data map[string]T) error {
	raw, err := encodeTable(table, data)
	if err != nil {
		return err
	}
	return s.writeTable(ctx, table, raw, true)
}

// LoadConfigs returns every guild's channel configuration.
func (s *Store) LoadConfigs(ctx context.Context) (map[string]GuildConfig, error) {
	return loadTable[GuildConfig](ctx, s, TableConfig)
}

// SaveConfigs overwrites the configuration table.
func (s *Store) SaveConfigs(ctx context.Context, configs map[string]GuildConfig) error {
	for guildID, cfg := range configs {
		cfg.GuildID = guildID
		configs[guildID] = cfg
	}
	return saveTable(ctx, s, TableConfig, configs)
}

// LoadPending returns guild → moderation message ID → pending clip.
func (s *Store) LoadPending(ctx context.Context) (map[string]map[string]PendingClip, error) {
	return loadTable[map[string]PendingClip](ctx, s, TablePending)
}

// SavePending overwrites the pending table.
func (s *Store) SavePending(ctx context.Context, pending map[string]map[string]PendingClip) error {
	return saveTable(ctx, s, TablePending, dropEmpty(pending))
}

// LoadVoting returns guild → clip ID → voting clip.
func (s *Store) LoadVoting(ctx context.Context) (map[string]map[string]VotingClip, error) {
	return loadTable[map[string]VotingClip](ctx, s, TableVoting)
}

// SaveVoting overwrites the voting table.
func (s *Store) SaveVoting(ctx context.Context, voting map[string]map[string]VotingClip) error {
	return saveTable(ctx, s, TableVoting, dropEmpty(voting))
}

// LoadScores returns guild → user ID → score profile.
func (s *Store) LoadScores(ctx context.Context) (map[string]map[string]ScoreProfile, error) {
	return loadTable[map[string]ScoreProfile](ctx, s, TableScores)
}

// SaveScores overwrites the scores table.
func (s *Store) SaveScores(ctx context.Context, scores map[string]map[string]ScoreProfile) error {
	return saveTable(ctx, s, TableScores, dropEmpty(scores))
}

// dropEmpty mirrors UpdateGuild, which never stores an empty partition.
func dropEmpty[T any](data map[string]map[string]T) map[string]map[string]T {
	out := make(map[string]map[string]T, len(data))
	for guildID, partition := range data {
		if len(partition) > 0 {
			out[guildID] = partition
		}
	}
	return out
}
