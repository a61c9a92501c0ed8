package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"guessrank/internal/api"
	"guessrank/internal/config"
	"guessrank/internal/deps"
	"guessrank/internal/intake"
	"guessrank/internal/logging"
	"guessrank/internal/metrics"
	"guessrank/internal/notifications"
	"guessrank/internal/store"
	"guessrank/internal/workflow"
)

// Bot is the chat front end.
type Bot interface {
	Start(ctx context.Context) error
	Stop()
}

// Sweeper closes expired clips until its context ends.
type Sweeper interface {
	Run(ctx context.Context)
}

// Components are the services the daemon runs. Bot, Sweeper, Registry,
// Notifier, and Metrics may be nil.
type Components struct {
	Store    *store.Store
	Workflow *workflow.Manager
	Commands *api.Service
	Bot      Bot
	Sweeper  Sweeper
	Registry *intake.Registry
	// OnExpire is told about submissions the janitor dropped.
	OnExpire func(intake.Submission)
	Notifier notifications.Service
	Metrics  *metrics.Metrics
}

// Daemon coordinates background services and enforces single-instance
// execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	comp   Components

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running   atomic.Bool
	startedAt time.Time
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	StartedAt    time.Time
	StorePath    string
	LockFilePath string
	Guilds       []string
	Workflow     workflow.StatusSummary
	Dependencies []deps.Status
}

// New constructs a daemon.
func New(cfg *config.Config, comp Components, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || comp.Store == nil || comp.Workflow == nil || comp.Commands == nil {
		return nil, errors.New("daemon requires config, store, workflow manager, and command service")
	}
	if comp.Notifier == nil {
		comp.Notifier = notifications.NewService(&config.Config{})
	}
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		comp:     comp,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the lock and launches every background service.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another guessrank instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if d.comp.Bot != nil {
		if err := d.comp.Bot.Start(runCtx); err != nil {
			cancel()
			_ = d.lock.Unlock()
			return fmt.Errorf("start bot: %w", err)
		}
	}
	if err := d.api.start(runCtx); err != nil {
		cancel()
		if d.comp.Bot != nil {
			d.comp.Bot.Stop()
		}
		_ = d.lock.Unlock()
		return err
	}
	d.cancel = cancel

	if d.comp.Sweeper != nil {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.comp.Sweeper.Run(runCtx)
		}()
	}
	if d.comp.Registry != nil {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.comp.Registry.Run(runCtx, janitorInterval(d.cfg), d.comp.OnExpire)
		}()
	}

	d.startedAt = time.Now()
	d.running.Store(true)
	d.logger.Info("guessrank daemon started",
		logging.String("lock", d.lockPath),
		logging.String("store", d.comp.Store.Path()),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	guilds, err := d.comp.Store.Guilds(ctx)
	if err != nil {
		d.logger.Debug("guild list unavailable", logging.Error(err))
	}
	d.publish(ctx, notifications.EventDaemonStarted, notifications.Payload{"guilds": len(guilds)})
	return nil
}

// Stop halts background services, waits for them, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.comp.Bot != nil {
		d.comp.Bot.Stop()
	}
	d.api.stop()
	d.wg.Wait()
	if d.comp.Registry != nil {
		d.comp.Registry.Close()
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock",
			logging.Error(err),
			logging.String(logging.FieldEventType, "lock_release_failed"),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if the next start refuses"),
		)
	}
	d.running.Store(false)
	d.logger.Info("guessrank daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	d.publish(ctx, notifications.EventDaemonStopped, notifications.Payload{"uptime": time.Since(d.startedAt).Round(time.Second).String()})
}

// Close stops the daemon and closes the store.
func (d *Daemon) Close() error {
	d.Stop()
	return d.comp.Store.Close()
}

// Running reports whether Start succeeded and Stop has not run.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	guilds, err := d.comp.Store.Guilds(ctx)
	if err != nil {
		d.logger.Debug("guild list unavailable", logging.Error(err))
	}
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		StorePath:    d.comp.Store.Path(),
		LockFilePath: d.lockPath,
		Guilds:       guilds,
		Workflow:     d.comp.Workflow.Status(ctx),
		Dependencies: deps.CheckBinaries(deps.Requirements(d.cfg)),
	}
	if status.Running {
		status.StartedAt = d.startedAt
	}
	return status
}

// TestNotification sends a test event through the configured notifier.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg.Notifications.NtfyTopic == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.comp.Notifier.Publish(ctx, notifications.EventTestNotification, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

func (d *Daemon) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := d.comp.Notifier.Publish(ctx, event, payload); err != nil {
		d.logger.Debug("notification failed", logging.String("event", string(event)), logging.Error(err))
	}
}

// janitorInterval checks for stale selections a few times per timeout.
func janitorInterval(cfg *config.Config) time.Duration {
	interval := cfg.SelectionTimeout() / 4
	return max(interval, 5*time.Second)
}
