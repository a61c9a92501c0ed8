// Package logging assembles structured slog loggers and formatting helpers used
// across the bot.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code tags log lines
// with guild, clip, and submission identifiers automatically. The console
// handler lifts the component and guild/clip subject into the line prefix so
// tailing a busy guild stays readable.
package logging
