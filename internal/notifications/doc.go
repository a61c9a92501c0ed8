// Package notifications sends operator alerts to ntfy.
//
// Events are grouped into lifecycle, error, and results categories, each of
// which can be switched off in config. With no topic configured the service
// is a no-op. Publishing is best-effort: callers log a failure and move on.
package notifications
