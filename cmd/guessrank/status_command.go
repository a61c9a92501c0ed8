package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"guessrank/internal/api"
	"guessrank/internal/apiclient"
	"guessrank/internal/config"
	"guessrank/internal/deps"
	"guessrank/internal/preflight"
)

type statusReport struct {
	ConfigPath   string                 `json:"configPath"`
	ConfigFound  bool                   `json:"configFound"`
	Daemon       *api.DaemonStatus      `json:"daemon,omitempty"`
	DaemonError  string                 `json:"daemonError,omitempty"`
	Dependencies []api.DependencyStatus `json:"dependencies"`
	Checks       []checkReport          `json:"checks"`
}

type checkReport struct {
	Name     string `json:"name"`
	Passed   bool   `json:"passed"`
	Optional bool   `json:"optional"`
	Detail   string `json:"detail,omitempty"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show bot, dependency, and configuration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			report := collectStatus(cmd.Context(), ctx, cfg)
			if ctx.JSONMode() {
				return writeJSON(cmd, report)
			}
			printStatus(cmd, report)
			return nil
		},
	}
}

func collectStatus(ctx context.Context, cc *commandContext, cfg *config.Config) statusReport {
	report := statusReport{
		ConfigPath:   cc.configPath,
		ConfigFound:  cc.configSeen,
		Dependencies: api.FromDependencies(deps.CheckBinaries(deps.Requirements(cfg))),
	}

	client, err := apiclient.New(cfg.Paths.APIBind, cfg.Paths.APIToken)
	switch {
	case err != nil:
		report.DaemonError = err.Error()
	case client == nil:
		report.DaemonError = "HTTP API disabled (paths.api_bind is empty)"
	default:
		queryCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		status, err := client.Status(queryCtx)
		cancel()
		if err != nil {
			if apiclient.IsAPIUnavailable(err) {
				report.DaemonError = "not running"
			} else {
				report.DaemonError = err.Error()
			}
		} else {
			report.Daemon = &status
		}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	results := preflight.RunAll(checkCtx, cfg)
	results = append(results, preflight.UploadFromConfig(cfg), preflight.NotificationsFromConfig(cfg))
	for _, r := range results {
		report.Checks = append(report.Checks, checkReport{Name: r.Name, Passed: r.Passed, Optional: r.Optional, Detail: r.Detail})
	}
	return report
}

func printStatus(cmd *cobra.Command, report statusReport) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	var lines []string

	lines = append(lines, renderSectionHeader("Bot", colorize)...)
	if report.Daemon == nil {
		kind := statusWarn
		if report.DaemonError != "not running" {
			kind = statusError
		}
		lines = append(lines, renderStatusLine("Daemon", kind, report.DaemonError, colorize))
	} else {
		d := report.Daemon
		lines = append(lines,
			renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d, started %s)", d.PID, formatStamp(d.StartedAt)), colorize),
			renderStatusLine("Guilds", statusInfo, fmt.Sprintf("%d configured", len(d.Guilds)), colorize),
			renderStatusLine("Queue", statusInfo, fmt.Sprintf("%d active, %d waiting (limit %d)", d.Workflow.QueueActive, d.Workflow.QueueWait, d.Workflow.QueueLimit), colorize),
			renderStatusLine("Processed", statusInfo, fmt.Sprintf("%d ok, %d failed", d.Workflow.Processed, d.Workflow.Failed), colorize),
		)
		for _, h := range d.Workflow.StageHealth {
			kind := statusOK
			if !h.Ready {
				kind = statusError
			}
			lines = append(lines, renderStatusLine(h.Name, kind, h.Detail, colorize))
		}
		if d.Workflow.LastError != "" {
			lines = append(lines, renderStatusLine("Last error", statusWarn, d.Workflow.LastError+" ("+formatStamp(d.Workflow.LastErrorAt)+")", colorize))
		}
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
	for _, dep := range report.Dependencies {
		kind, msg := statusOK, "Available"
		if !dep.Available {
			kind, msg = statusError, "Missing"
			if dep.Optional {
				kind = statusWarn
			}
			if dep.Detail != "" {
				msg += " (" + dep.Detail + ")"
			}
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, msg, colorize))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Configuration", colorize)...)
	path := report.ConfigPath
	if !report.ConfigFound {
		path += " (not found, defaults in use)"
	}
	lines = append(lines, renderStatusLine("Config file", statusInfo, path, colorize))
	for _, check := range report.Checks {
		kind := statusOK
		switch {
		case !check.Passed && check.Optional:
			kind = statusWarn
		case !check.Passed:
			kind = statusError
		}
		lines = append(lines, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}

	fmt.Fprintln(out, strings.Join(lines, "\n"))
}
