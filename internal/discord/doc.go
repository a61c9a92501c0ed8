// Package discord adapts the bot's core services to Discord through
// discordgo.
//
// The adapter owns every Discord-specific concern and nothing else:
//
//   - DM intake: attachments and allow-listed links become intake sources;
//     guild and rank pickers are select menus keyed by submission ID.
//   - Moderation surface: review posts with ✅/❌ reactions, vote posts with a
//     rank select, reason prompts in the moderation channel, DMs.
//   - Sweep announcer: disables the vote select and posts the tally.
//   - Slash commands: setup, help, results, scoreboard, profile, cleanup.
//
// Channel IDs come from the stored guild config. When Discord reports a
// channel as unknown (error 10003) the adapter looks the channel up by its
// stored name once, persists the new ID, and retries.
//
// Component custom IDs are "<kind>:<id>" where kind is one of guild, rank,
// vote, results, or board.
package discord
