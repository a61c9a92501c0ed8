package gateway

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"guessrank/internal/config"
	"guessrank/internal/fileutil"
	"guessrank/internal/logging"
	"guessrank/internal/metrics"
	"guessrank/internal/services"
	"guessrank/internal/transform"
)

// Transformer is the blur/compress contract.
type Transformer interface {
	Transform(ctx context.Context, input string) (transform.Result, error)
	OutputPath(input string) string
}

// Gateway admits transforms through a Gate and bounds each with a timeout.
type Gateway struct {
	gate    *Gate
	tr      Transformer
	timeout time.Duration
	wait    time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New builds a Gateway from the transform section of cfg.
func New(cfg *config.Config, tr Transformer, m *metrics.Metrics, logger *slog.Logger) *Gateway {
	interval := time.Duration(cfg.Transform.PositionUpdateSeconds) * time.Second
	gate := NewGate(cfg.Transform.Concurrency, cfg.Transform.MaxQueue, interval)
	gate.OnChange(m.SetQueue)
	return &Gateway{
		gate:    gate,
		tr:      tr,
		timeout: cfg.TransformTimeout(),
		wait:    cfg.QueueTimeout(),
		metrics: m,
		logger:  logging.NewComponentLogger(logger, "gateway"),
	}
}

// Gate exposes the admission gate.
func (g *Gateway) Gate() *Gate {
	return g.gate
}

// Transform waits for a slot, then runs the transform under the configured
// timeout. Waiting for the slot is bounded by the queue timeout. notify receives queue positions while waiting and 0 once the
// slot is acquired. On failure the
// output is removed and the error is tagged ErrTimeout or ErrExternal unless
// the transform already classified it.
func (g *Gateway) Transform(ctx context.Context, input string, notify PositionFunc) (transform.Result, error) {
	logger := logging.WithContext(ctx, g.logger)
	actx, cancel := context.WithTimeout(ctx, g.wait)
	release, err := g.gate.Acquire(actx, notify)
	cancel()
	if err != nil {
		var capErr *services.CapacityError
		if errors.As(err, &capErr) {
			logging.WarnWithContext(logger, "transform queue full", "transform_rejected",
				logging.Int("position", capErr.Position),
				logging.Int("max_queue", capErr.Limit),
				logging.String(logging.FieldErrorHint, "raise transform.max_queue or transform.concurrency"),
				logging.String(logging.FieldImpact, "submission rejected"),
			)
			g.metrics.ObserveTransform("rejected", 0)
			return transform.Result{}, err
		}
		return transform.Result{}, classifyWait(err)
	}
	defer release()
	if notify != nil {
		notify(0)
	}

	tctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	start := time.Now()
	result, err := g.tr.Transform(tctx, input)
	elapsed := time.Since(start)
	if err != nil {
		fileutil.RemoveQuietly(logger, g.tr.OutputPath(input))
		err = classify(tctx, err)
		g.metrics.ObserveTransform(services.Kind(err), elapsed)
		return transform.Result{}, err
	}
	g.metrics.ObserveTransform("ok", elapsed)
	return result, nil
}

func classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, services.ErrTimeout), errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrExternal):
		return err
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return services.Wrap(services.ErrTimeout, "gateway", "transform", "deadline exceeded", err)
	default:
		return services.Wrap(services.ErrExternal, "gateway", "transform", "transform failed", err)
	}
}

func classifyWait(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Describe("The server is too busy to process your clip right now. Please try again later.",
			services.Wrap(services.ErrTimeout, "gateway", "acquire", "gave up waiting for a slot", err))
	}
	return services.Wrap(services.ErrExternal, "gateway", "acquire", "cancelled while queued", err)
}
