package services

import "context"

type contextKey string

const (
	guildIDKey      contextKey = "guild_id"
	clipIDKey       contextKey = "clip_id"
	submissionIDKey contextKey = "submission_id"
	stageKey        contextKey = "stage"
	requestIDKey    contextKey = "request_id"
)

func withString(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key contextKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if v, ok := ctx.Value(key).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithGuildID annotates context with the Discord guild identifier.
func WithGuildID(ctx context.Context, id string) context.Context {
	return withString(ctx, guildIDKey, id)
}

// GuildIDFromContext returns the guild identifier if present.
func GuildIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, guildIDKey)
}

// WithClipID annotates context with a voting clip identifier.
func WithClipID(ctx context.Context, id string) context.Context {
	return withString(ctx, clipIDKey, id)
}

// ClipIDFromContext returns the clip identifier if present.
func ClipIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, clipIDKey)
}

// WithSubmissionID annotates context with an intake submission identifier.
func WithSubmissionID(ctx context.Context, id string) context.Context {
	return withString(ctx, submissionIDKey, id)
}

// SubmissionIDFromContext returns the submission identifier if present.
func SubmissionIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, submissionIDKey)
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	return withString(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, stageKey)
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withString(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, requestIDKey)
}
