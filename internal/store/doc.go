// Package store persists per-guild game state in SQLite.
//
// Four logical tables are kept: channel configuration, pending-moderation
// clips, voting clips, and score profiles. Each table is partitioned by guild
// ID and every partition is stored as one JSON document, so a guild's rows can
// be read and rewritten together. UpdateGuild is the only mutation path used
// by the bot: it loads every partition of one guild inside an immediate
// transaction, lets the caller mutate a GuildState, and writes back the
// partitions that changed. Calls for the same guild are serialized in-process.
//
// Nothing is cached. Callers re-read through ReadGuild or UpdateGuild after
// every suspension point.
//
// Tables carry an explicit schema version tag (table_versions). JSON
// documents exchanged through Import/Export carry the same tag; documents
// without one are treated as version 0, the layout written by the original
// Python bot, and are migrated forward by the functions in migrate.go.
package store
