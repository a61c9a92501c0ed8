package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateIntake,
		c.validateTransform,
		c.validateUpload,
		c.validateModeration,
		c.validateVoting,
		c.validateScoring,
		c.validateSweep,
		c.validateLogging,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

// ValidateForDaemon adds the checks that only matter when connecting to Discord.
func (c *Config) ValidateForDaemon() error {
	if c.Discord.Token == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/guessrank/config.toml"
		}
		return fmt.Errorf("discord.token is required. Set DISCORD_TOKEN (a .env file works) or edit %s (create with 'guessrank config init')", defaultPath)
	}
	names := map[string]string{}
	for key, name := range map[string]string{
		"moderation_channel_name": c.Discord.ModerationChannelName,
		"voting_channel_name":     c.Discord.VotingChannelName,
		"results_channel_name":    c.Discord.ResultsChannelName,
	} {
		if other, ok := names[name]; ok {
			return fmt.Errorf("discord.%s and discord.%s must differ (both %q)", key, other, name)
		}
		names[name] = key
	}
	return nil
}

func (c *Config) validateIntake() error {
	if c.Intake.MaxUploadMB <= 0 {
		return errors.New("intake.max_upload_mb must be positive")
	}
	if c.Intake.SelectionTimeoutSeconds <= 0 {
		return errors.New("intake.selection_timeout_seconds must be positive")
	}
	if c.Intake.DownloadTimeoutSeconds <= 0 {
		return errors.New("intake.download_timeout_seconds must be positive")
	}
	if c.Intake.SubmissionsPerHour < 0 || c.Intake.SubmissionBurst < 0 {
		return errors.New("intake.submissions_per_hour and intake.submission_burst must not be negative")
	}
	for _, pattern := range c.Intake.URLPatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("intake.url_patterns: invalid pattern %q: %w", pattern, err)
		}
	}
	return nil
}

func (c *Config) validateTransform() error {
	if c.Transform.Concurrency < 1 || c.Transform.Concurrency > maxTransformConcurrency {
		return fmt.Errorf("transform.concurrency must be between 1 and %d", maxTransformConcurrency)
	}
	if c.Transform.MaxQueue < 0 {
		return errors.New("transform.max_queue must not be negative")
	}
	if err := ensurePositive(map[string]int{
		"transform.timeout_seconds":         c.Transform.TimeoutSeconds,
		"transform.queue_timeout_seconds":   c.Transform.QueueTimeoutSeconds,
		"transform.position_update_seconds": c.Transform.PositionUpdateSeconds,
		"transform.target_size_mb":          c.Transform.TargetSizeMB,
		"transform.max_output_mb":           c.Transform.MaxOutputMB,
	}); err != nil {
		return err
	}
	if c.Transform.TargetSizeMB > c.Transform.MaxOutputMB {
		return errors.New("transform.target_size_mb must not exceed transform.max_output_mb")
	}
	seen := map[[2]int]struct{}{}
	for i, profile := range c.Transform.Profiles {
		if profile.Width <= 0 || profile.Height <= 0 {
			return fmt.Errorf("transform.profiles[%d]: width and height must be positive", i)
		}
		key := [2]int{profile.Width, profile.Height}
		if _, ok := seen[key]; ok {
			return fmt.Errorf("transform.profiles[%d]: duplicate resolution %dx%d", i, profile.Width, profile.Height)
		}
		seen[key] = struct{}{}
		if len(profile.Regions) == 0 {
			return fmt.Errorf("transform.profiles[%d]: at least one region is required", i)
		}
		for j, region := range profile.Regions {
			if region.Width <= 0 || region.Height <= 0 || region.X < 0 || region.Y < 0 ||
				region.X+region.Width > profile.Width || region.Y+region.Height > profile.Height {
				return fmt.Errorf("transform.profiles[%d].regions[%d]: region outside %dx%d frame", i, j, profile.Width, profile.Height)
			}
		}
	}
	return nil
}

func (c *Config) validateUpload() error {
	if c.Upload.Endpoint == "" {
		return nil
	}
	if !strings.HasPrefix(c.Upload.Endpoint, "http://") && !strings.HasPrefix(c.Upload.Endpoint, "https://") {
		return errors.New("upload.endpoint must be an http(s) URL")
	}
	if c.Upload.TimeoutSeconds <= 0 {
		return errors.New("upload.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateModeration() error {
	if c.Moderation.CollectReason && c.Moderation.ReasonTimeoutSeconds <= 0 {
		return errors.New("moderation.reason_timeout_seconds must be positive when collect_reason is enabled")
	}
	return nil
}

func (c *Config) validateVoting() error {
	if c.Voting.WindowHours <= 0 {
		return errors.New("voting.window_hours must be positive")
	}
	return nil
}

func (c *Config) validateScoring() error {
	if c.Scoring.BasePoints <= 0 {
		return errors.New("scoring.base_points must be positive")
	}
	if c.Scoring.StreakMultiplier < 0 || c.Scoring.PenaltyPerRank < 0 {
		return errors.New("scoring.streak_multiplier and scoring.penalty_per_rank must not be negative")
	}
	if c.Scoring.HistoryLimit <= 0 {
		return errors.New("scoring.history_limit must be positive")
	}
	return nil
}

func (c *Config) validateSweep() error {
	if c.Sweep.IntervalSeconds <= 0 {
		return errors.New("sweep.interval_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must not be negative")
	}
	return nil
}

func ensurePositive(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
