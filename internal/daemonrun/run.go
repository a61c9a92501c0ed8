package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"guessrank/internal/api"
	"guessrank/internal/config"
	"guessrank/internal/daemon"
	"guessrank/internal/deps"
	"guessrank/internal/discord"
	"guessrank/internal/gateway"
	"guessrank/internal/intake"
	"guessrank/internal/logging"
	"guessrank/internal/logs"
	"guessrank/internal/metrics"
	"guessrank/internal/moderation"
	"guessrank/internal/notifications"
	"guessrank/internal/preflight"
	"guessrank/internal/stage"
	"guessrank/internal/staging"
	"guessrank/internal/store"
	"guessrank/internal/sweep"
	"guessrank/internal/transform"
	"guessrank/internal/upload"
	"guessrank/internal/voting"
	"guessrank/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run starts the bot and blocks until SIGINT/SIGTERM or cmdCtx ends.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.ValidateForDaemon(); err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("guessrank-%s.log", runID))
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	logger, err := logging.NewFromConfig(cfg, logPath)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := logs.PointCurrent(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update guessrank.log link: %v\n", err)
	}
	logging.PruneRunLogs(logger, cfg.Paths.LogDir, cfg.Logging.RetentionDays, logPath)

	if err := runPreflight(signalCtx, cfg, logger); err != nil {
		return err
	}

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open store", logging.Error(err))
		return err
	}
	defer st.Close()
	notifier := notifications.NewService(cfg)
	importLegacy(signalCtx, cfg, st, notifier, logger)

	staging.CleanStale(signalCtx, cfg.Paths.StagingDir, time.Duration(cfg.Intake.StaleStagingHours)*time.Hour, logger)

	m := metrics.New()
	gw := gateway.New(cfg, transform.New(cfg, logger), m, logger)
	commands := api.NewService(cfg, st, logger)

	dg, err := discord.NewSession(cfg.Discord.Token)
	if err != nil {
		return err
	}
	surface := discord.NewSurface(dg, cfg, commands, notifier, logger)
	mod := moderation.NewService(cfg, st, surface, notifier, m, logger)
	intakeSvc, err := intake.NewService(cfg, st, logger)
	if err != nil {
		return fmt.Errorf("configure intake: %w", err)
	}

	manager := workflow.NewManager(workflow.Deps{
		Transformer: gw,
		Uploader:    upload.New(cfg),
		Reviewer:    mod,
		Notifier:    notifier,
		Metrics:     m,
		Gate:        gw.Gate(),
		Checks: []stage.Checker{
			discord.GatewayHealth(dg),
			storeHealth(st),
			toolHealth(cfg),
		},
		Logger: logger,
	})

	bot := discord.NewBot(dg, nil, discord.Deps{
		Config:     cfg,
		Surface:    surface,
		Intake:     intakeSvc,
		Workflow:   manager,
		Moderation: mod,
		Voting:     voting.NewService(st, logger),
		Commands:   commands,
		Metrics:    m,
		Logger:     logger,
	})

	d, err := daemon.New(cfg, daemon.Components{
		Store:    st,
		Workflow: manager,
		Commands: commands,
		Bot:      bot,
		Sweeper:  sweep.New(cfg, st, surface, notifier, m, logger),
		Registry: intakeSvc.Registry(),
		OnExpire: bot.SubmissionExpired,
		Notifier: notifier,
		Metrics:  m,
	}, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}

	pidPath := filepath.Join(cfg.Paths.StateDir, "guessrank.pid")
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the Discord token and that no other instance holds the lock"),
			logging.String(logging.FieldImpact, "the bot is offline"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("guessrank shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	d.Stop()
	return nil
}

func runPreflight(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	results := preflight.RunAll(ctx, cfg)
	results = append(results, preflight.UploadFromConfig(cfg), preflight.NotificationsFromConfig(cfg))
	for _, r := range results {
		level := slog.LevelInfo
		if !r.Passed {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "preflight",
			logging.String("check", r.Name),
			logging.Bool("passed", r.Passed),
			logging.Bool("optional", r.Optional),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldEventType, "preflight_check"),
		)
	}
	if failed := preflight.Failed(results); len(failed) > 0 {
		return fmt.Errorf("preflight failed: %s: %s", failed[0].Name, failed[0].Detail)
	}
	return nil
}

// importLegacy seeds an empty store from the configured legacy directory.
func importLegacy(ctx context.Context, cfg *config.Config, st *store.Store, notifier notifications.Service, logger *slog.Logger) {
	if cfg.Store.LegacyDir == "" {
		return
	}
	empty, err := st.Empty(ctx)
	if err != nil || !empty {
		return
	}
	reports, err := st.ImportDir(ctx, cfg.Store.LegacyDir, store.ImportOptions{LegacyGuildID: cfg.Store.LegacyGuildID, Logger: logger})
	if err != nil {
		logging.WarnWithContext(logger, "legacy import failed", "legacy_import_failed",
			logging.String("dir", cfg.Store.LegacyDir),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run `guessrank store import` to retry"),
			logging.String(logging.FieldImpact, "the bot starts with an empty store"),
		)
		return
	}
	entities, warnings := 0, 0
	for _, r := range reports {
		entities += r.Entities
		warnings += len(r.Warnings)
	}
	logger.Info("legacy data imported",
		logging.String("dir", cfg.Store.LegacyDir),
		logging.Int("tables", len(reports)),
		logging.Int("entities", entities),
		logging.Int("warnings", warnings),
		logging.String(logging.FieldEventType, "legacy_import"),
	)
	_ = notifier.Publish(ctx, notifications.EventStoreImported, notifications.Payload{"imported": entities, "warnings": warnings})
}

func storeHealth(st *store.Store) stage.Checker {
	return stage.CheckerFunc(func(ctx context.Context) stage.Health {
		if err := st.Ping(ctx); err != nil {
			return stage.Unhealthy("store", err.Error())
		}
		return stage.Healthy("store")
	})
}

func toolHealth(cfg *config.Config) stage.Checker {
	return stage.CheckerFunc(func(context.Context) stage.Health {
		for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
			if !status.Optional && !status.Available {
				return stage.Unhealthy("transform", status.Name+": "+status.Detail)
			}
		}
		return stage.Healthy("transform")
	})
}
