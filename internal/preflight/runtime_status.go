package preflight

import (
	"fmt"
	"strings"

	"guessrank/internal/config"
)

// UploadFromConfig summarizes the upload host configuration without
// contacting it.
func UploadFromConfig(cfg *config.Config) Result {
	const name = "Upload host"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if cfg.Upload.Endpoint == "" {
		return Result{Name: name, Passed: true, Optional: true, Detail: "Disabled (clips attached directly)"}
	}
	detail := cfg.Upload.Endpoint
	if cfg.Upload.Token == "" {
		detail += " (no token)"
	}
	return Result{Name: name, Passed: true, Optional: true, Detail: detail}
}

// NotificationsFromConfig summarizes which ntfy categories are enabled.
func NotificationsFromConfig(cfg *config.Config) Result {
	const name = "Notifications"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		return Result{Name: name, Passed: true, Optional: true, Detail: "Disabled"}
	}
	var categories []string
	if cfg.Notifications.Errors {
		categories = append(categories, "errors")
	}
	if cfg.Notifications.Lifecycle {
		categories = append(categories, "lifecycle")
	}
	if cfg.Notifications.Results {
		categories = append(categories, "results")
	}
	if len(categories) == 0 {
		categories = append(categories, "none")
	}
	return Result{
		Name:     name,
		Passed:   true,
		Optional: true,
		Detail:   fmt.Sprintf("%s [%s]", cfg.Notifications.NtfyTopic, strings.Join(categories, ", ")),
	}
}
