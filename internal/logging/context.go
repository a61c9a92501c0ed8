package logging

import (
	"context"
	"log/slog"

	"guessrank/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldGuildID is the standardized key for Discord guild identifiers.
	FieldGuildID = "guild_id"
	// FieldClipID is the standardized key for voting clip identifiers.
	FieldClipID = "clip_id"
	// FieldSubmissionID is the standardized key for intake submission identifiers.
	FieldSubmissionID = "submission_id"
	// FieldUserID is the standardized key for Discord user identifiers.
	FieldUserID = "user_id"
	// FieldStage is the standardized key for pipeline stage names.
	FieldStage = "stage"
	// FieldCorrelationID is the standardized key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType names the event a log line records, for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the operator's next step for a warning or error.
	FieldErrorHint = "error_hint"
	// FieldErrorKind carries services.Kind of the logged error.
	FieldErrorKind = "error_kind"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
)

// WithContext returns logger annotated with the guild, clip, submission,
// stage and request IDs carried by ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if ctx == nil {
		return logger
	}
	var args []any
	add := func(key string, value string, ok bool) {
		if ok {
			args = append(args, slog.String(key, value))
		}
	}
	id, ok := services.GuildIDFromContext(ctx)
	add(FieldGuildID, id, ok)
	id, ok = services.ClipIDFromContext(ctx)
	add(FieldClipID, id, ok)
	id, ok = services.SubmissionIDFromContext(ctx)
	add(FieldSubmissionID, id, ok)
	id, ok = services.StageFromContext(ctx)
	add(FieldStage, id, ok)
	id, ok = services.RequestIDFromContext(ctx)
	add(FieldCorrelationID, id, ok)
	if len(args) == 0 {
		return logger
	}
	return logger.With(args...)
}
