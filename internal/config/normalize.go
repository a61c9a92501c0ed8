package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDiscord()
	c.normalizeIntake()
	c.normalizeTransform()
	c.normalizeUpload()
	c.normalizeNotifications()
	if err := c.normalizeStore(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("GUESSRANK_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeDiscord() {
	c.Discord.Token = strings.TrimSpace(c.Discord.Token)
	if c.Discord.Token == "" {
		if value, ok := os.LookupEnv("DISCORD_TOKEN"); ok {
			c.Discord.Token = strings.TrimSpace(value)
		}
	}
	ids := c.Discord.CommandGuildIDs[:0]
	for _, id := range c.Discord.CommandGuildIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	c.Discord.CommandGuildIDs = ids
	c.Discord.ModerationChannelName = channelName(c.Discord.ModerationChannelName, defaultModerationChannelName)
	c.Discord.VotingChannelName = channelName(c.Discord.VotingChannelName, defaultVotingChannelName)
	c.Discord.ResultsChannelName = channelName(c.Discord.ResultsChannelName, defaultResultsChannelName)
}

// channelName lowercases and hyphenates the way Discord stores text channel names.
func channelName(value, fallback string) string {
	value = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(value), "#")))
	value = strings.Join(strings.Fields(value), "-")
	if value == "" {
		return fallback
	}
	return value
}

func (c *Config) normalizeIntake() {
	exts := make([]string, 0, len(c.Intake.Extensions))
	seen := make(map[string]struct{}, len(c.Intake.Extensions))
	for _, ext := range c.Intake.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		exts = append(exts, ext)
	}
	if len(exts) == 0 {
		exts = append(exts, defaultExtensions...)
	}
	c.Intake.Extensions = exts

	patterns := c.Intake.URLPatterns[:0]
	for _, pattern := range c.Intake.URLPatterns {
		if pattern = strings.TrimSpace(pattern); pattern != "" {
			patterns = append(patterns, pattern)
		}
	}
	c.Intake.URLPatterns = patterns
}

func (c *Config) normalizeTransform() {
	if strings.TrimSpace(c.Transform.FFmpegBinary) == "" {
		c.Transform.FFmpegBinary = defaultFFmpegBinary
	}
	if strings.TrimSpace(c.Transform.FFprobeBinary) == "" {
		c.Transform.FFprobeBinary = defaultFFprobeBinary
	}
	if len(c.Transform.Profiles) == 0 {
		c.Transform.Profiles = defaultProfiles()
	}
	if c.Transform.BlurStrength <= 0 {
		c.Transform.BlurStrength = defaultBlurStrength
	}
}

func (c *Config) normalizeUpload() {
	c.Upload.Endpoint = strings.TrimSpace(c.Upload.Endpoint)
	if strings.TrimSpace(c.Upload.FieldName) == "" {
		c.Upload.FieldName = defaultUploadFieldName
	}
	if c.Upload.Token == "" {
		if value, ok := os.LookupEnv("GUESSRANK_UPLOAD_TOKEN"); ok {
			c.Upload.Token = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("GUESSRANK_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeStore() error {
	c.Store.LegacyGuildID = strings.TrimSpace(c.Store.LegacyGuildID)
	if strings.TrimSpace(c.Store.LegacyDir) == "" {
		c.Store.LegacyDir = ""
		return nil
	}
	var err error
	if c.Store.LegacyDir, err = expandPath(strings.TrimSpace(c.Store.LegacyDir)); err != nil {
		return fmt.Errorf("store.legacy_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
