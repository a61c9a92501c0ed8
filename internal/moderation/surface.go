package moderation

import (
	"context"
	"errors"
	"time"

	"guessrank/internal/ranks"
	"guessrank/internal/store"
)

// Reaction emojis used on review messages.
const (
	EmojiApprove  = "✅"
	EmojiReject   = "❌"
	EmojiApproved = "🎉"
	EmojiRejected = "🗑️"
)

// ErrNoReason is returned by Surface.AskReason when the moderator did not
// answer before the deadline.
var ErrNoReason = errors.New("no rejection reason given")

// Review is what moderators see.
type Review struct {
	SubmissionID  string
	SubmitterID   string
	SubmitterName string
	ClaimedRank   ranks.Rank
	Media         store.MediaRef
	// LocalPath is attached when Media has no URL.
	LocalPath string
}

// Post identifies a chat message.
type Post struct {
	ChannelID string
	MessageID string
	// AttachmentURL is the hosted copy of a clip attached to the post.
	AttachmentURL string
	// AttachmentName is the file name the clip was attached as.
	AttachmentName string
}

// Surface is the chat platform as seen by moderation.
type Surface interface {
	PostReview(ctx context.Context, cfg store.GuildConfig, review Review) (Post, error)
	PublishVote(ctx context.Context, cfg store.GuildConfig, clip store.VotingClip) (Post, error)
	Delete(ctx context.Context, post Post) error
	React(ctx context.Context, post Post, emoji string) error
	DirectMessage(ctx context.Context, userID, text string) error
	// ReviewMedia re-reads the clip attached to a review post. Hosted
	// attachment links are signed and expire.
	ReviewMedia(ctx context.Context, review Post) (store.MediaRef, error)
	// AskReason prompts the moderator in channelID and waits up to timeout
	// for a reply. It returns ErrNoReason on timeout.
	AskReason(ctx context.Context, channelID, moderatorID string, timeout time.Duration) (string, error)
}
