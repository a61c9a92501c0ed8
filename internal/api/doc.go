// Package api defines the command surface shared by the Discord adapter, the
// CLI and the HTTP status API, plus the transport-friendly DTOs they render.
//
// # Commands
//
// Service implements setup, help, results, cleanup, scoreboard and profile
// against the guild-partitioned store. Commands never talk to Discord
// directly; setup receives a ChannelResolver so the adapter can look up or
// create channels while this package owns what gets persisted.
//
// # Converters
//
// FromVotingClip: store.VotingClip -> ClipResult with its tally.
//
// FromProfile: store.ScoreProfile -> Profile with accuracy and position.
//
// FromStatusSummary: workflow.StatusSummary -> WorkflowStatus.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Ranks are exposed as their display names and
// timestamps use RFC3339 with milliseconds.
package api
