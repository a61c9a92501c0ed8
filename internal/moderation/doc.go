// Package moderation runs the review step between a transformed submission
// and the public voting channel.
//
// A clip posted for review is recorded as a PendingClip keyed by the review
// message. A moderator's approve or reject signal resolves it exactly once:
// signals for unknown or already resolved messages, and duplicates arriving
// while a decision is in flight, are ignored. Approval publishes the voting
// post first and then swaps the PendingClip for a VotingClip in a single
// store update. Everything aimed at the submitter is best-effort.
package moderation
