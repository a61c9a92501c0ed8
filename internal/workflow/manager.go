package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"guessrank/internal/fileutil"
	"guessrank/internal/gateway"
	"guessrank/internal/intake"
	"guessrank/internal/logging"
	"guessrank/internal/metrics"
	"guessrank/internal/moderation"
	"guessrank/internal/notifications"
	"guessrank/internal/services"
	"guessrank/internal/stage"
	"guessrank/internal/store"
	"guessrank/internal/transform"
)

// Transformer runs a staged clip through admission control and the blur.
type Transformer interface {
	Transform(ctx context.Context, input string, notify gateway.PositionFunc) (transform.Result, error)
}

// Uploader hosts transformed clips externally.
type Uploader interface {
	Enabled() bool
	Upload(ctx context.Context, path string) (string, error)
}

// Reviewer opens a moderation review.
type Reviewer interface {
	Submit(ctx context.Context, guildID string, review moderation.Review) (store.PendingClip, error)
}

// Reporter receives progress meant for the submitter.
type Reporter interface {
	Queued(position int)
	Processing()
	Submitted(pending store.PendingClip, result transform.Result)
	Failed(err error)
}

// Deps bundles the manager's collaborators. Uploader, Notifier, Metrics, and
// Gate may be nil.
type Deps struct {
	Transformer Transformer
	Uploader    Uploader
	Reviewer    Reviewer
	Notifier    notifications.Service
	Metrics     *metrics.Metrics
	Gate        *gateway.Gate
	Checks      []stage.Checker
	Logger      *slog.Logger
}

// Manager processes submissions.
type Manager struct {
	deps   Deps
	logger *slog.Logger

	mu          sync.RWMutex
	active      int
	processed   int
	failed      int
	lastErr     error
	lastErrorAt time.Time
}

// NewManager constructs a Manager.
func NewManager(deps Deps) *Manager {
	if deps.Notifier == nil {
		deps.Notifier = nopNotifier{}
	}
	return &Manager{
		deps:   deps,
		logger: logging.NewComponentLogger(deps.Logger, "workflow"),
	}
}

// Process transforms sub and opens a review in sub.GuildID. The staged input
// and the transformed output are removed before Process returns.
func (m *Manager) Process(ctx context.Context, sub intake.Submission, rep Reporter) (store.PendingClip, error) {
	if rep == nil {
		rep = nopReporter{}
	}
	ctx = services.WithRequestID(services.WithSubmissionID(services.WithGuildID(ctx, sub.GuildID), sub.ID), uuid.NewString())
	logger := logging.WithContext(ctx, m.logger)

	m.begin()
	pending, err := m.process(ctx, logger, sub, rep)
	m.finish(err)
	if err != nil {
		m.deps.Metrics.Submission(services.Kind(err))
		rep.Failed(err)
		m.report(ctx, logger, sub, err)
		return store.PendingClip{}, err
	}
	m.deps.Metrics.Submission("submitted")
	return pending, nil
}

func (m *Manager) process(ctx context.Context, logger *slog.Logger, sub intake.Submission, rep Reporter) (store.PendingClip, error) {
	defer fileutil.RemoveQuietly(logger, sub.StagedPath)
	if !sub.Ready() {
		return store.PendingClip{}, services.Wrap(services.ErrValidation, "workflow", "process", "submission missing guild or rank", nil)
	}

	result, err := m.deps.Transformer.Transform(services.WithStage(ctx, "transform"), sub.StagedPath, func(position int) {
		if position == 0 {
			rep.Processing()
			return
		}
		rep.Queued(position)
	})
	if err != nil {
		return store.PendingClip{}, err
	}
	defer fileutil.RemoveQuietly(logger, result.Path)

	review := moderation.Review{
		SubmissionID:  sub.ID,
		SubmitterID:   sub.SubmitterID,
		SubmitterName: sub.SubmitterName,
		ClaimedRank:   sub.ClaimedRank,
		LocalPath:     result.Path,
	}
	if m.deps.Uploader != nil && m.deps.Uploader.Enabled() {
		link, err := m.deps.Uploader.Upload(services.WithStage(ctx, "upload"), result.Path)
		if err != nil {
			logging.WarnWithContext(logger, "upload failed; attaching clip directly", "upload_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check upload.endpoint"),
				logging.String(logging.FieldImpact, "clip is attached to the review instead of linked"),
			)
		} else {
			review.Media = store.MediaRef{URL: link}
		}
	}

	pending, err := m.deps.Reviewer.Submit(services.WithStage(ctx, "moderation"), sub.GuildID, review)
	if err != nil {
		return store.PendingClip{}, err
	}
	logger.Info("submission sent for review",
		logging.String("message_id", pending.MessageID),
		logging.Int64("output_bytes", result.Size),
		logging.String(logging.FieldEventType, "submission_complete"),
	)
	rep.Submitted(pending, result)
	return pending, nil
}

// report forwards non-user errors to operators.
func (m *Manager) report(ctx context.Context, logger *slog.Logger, sub intake.Submission, err error) {
	if errors.Is(err, services.ErrValidation) || errors.Is(err, services.ErrCapacity) {
		logger.Info("submission rejected",
			logging.String("reason", err.Error()),
			logging.ErrorKind(err),
			logging.String(logging.FieldEventType, "submission_rejected"),
		)
		return
	}
	logging.ErrorWithContext(logger, "submission failed", "submission_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "see the transform and moderation logs for this submission"),
		logging.String(logging.FieldImpact, "submitter must resend the clip"),
	)
	if nerr := m.deps.Notifier.Publish(ctx, notifications.EventTransformFailed, notifications.Payload{
		"submitter": sub.SubmitterName,
		"kind":      services.Kind(err),
		"error":     err,
	}); nerr != nil {
		if errors.Is(nerr, context.Canceled) {
			logger.Debug("shutting down, could not send failure notification")
		} else {
			logger.Debug("failure notification failed", logging.Error(nerr))
		}
	}
}

func (m *Manager) begin() {
	m.mu.Lock()
	m.active++
	m.mu.Unlock()
}

func (m *Manager) finish(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active--
	if err != nil {
		m.failed++
		m.lastErr = err
		m.lastErrorAt = time.Now()
		return
	}
	m.processed++
}

type nopReporter struct{}

func (nopReporter) Queued(int)                                    {}
func (nopReporter) Processing()                                   {}
func (nopReporter) Submitted(store.PendingClip, transform.Result) {}
func (nopReporter) Failed(error)                                  {}

type nopNotifier struct{}

func (nopNotifier) Publish(context.Context, notifications.Event, notifications.Payload) error {
	return nil
}
