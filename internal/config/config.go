package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	StateDir   string `toml:"state_dir"`
	LogDir     string `toml:"log_dir"`
	APIBind    string `toml:"api_bind"`
	APIToken   string `toml:"api_token"`
}

// Discord contains bot credentials and the default channel names used by setup.
type Discord struct {
	Token                 string   `toml:"token"`
	CommandGuildIDs       []string `toml:"command_guild_ids"`
	ModerationChannelName string   `toml:"moderation_channel_name"`
	VotingChannelName     string   `toml:"voting_channel_name"`
	ResultsChannelName    string   `toml:"results_channel_name"`
	MaxAttachmentMB       int      `toml:"max_attachment_mb"`
}

// Intake contains submission validation and staging limits.
type Intake struct {
	MaxUploadMB             int      `toml:"max_upload_mb"`
	Extensions              []string `toml:"extensions"`
	URLPatterns             []string `toml:"url_patterns"`
	SelectionTimeoutSeconds int      `toml:"selection_timeout_seconds"`
	DownloadTimeoutSeconds  int      `toml:"download_timeout_seconds"`
	SubmissionsPerHour      int      `toml:"submissions_per_hour"`
	SubmissionBurst         int      `toml:"submission_burst"`
	StaleStagingHours       int      `toml:"stale_staging_hours"`
	MinFreeSpaceMB          int      `toml:"min_free_space_mb"`
}

// MaskRegion is one blurred rectangle in pixel coordinates.
type MaskRegion struct {
	X      int `toml:"x"`
	Y      int `toml:"y"`
	Width  int `toml:"width"`
	Height int `toml:"height"`
}

// MaskProfile lists the regions blurred for one source resolution.
type MaskProfile struct {
	Width   int          `toml:"width"`
	Height  int          `toml:"height"`
	Regions []MaskRegion `toml:"regions"`
}

// Transform contains the ffmpeg/ffprobe settings and the admission gate size.
type Transform struct {
	FFmpegBinary          string        `toml:"ffmpeg_binary"`
	FFprobeBinary         string        `toml:"ffprobe_binary"`
	Concurrency           int           `toml:"concurrency"`
	MaxQueue              int           `toml:"max_queue"`
	TimeoutSeconds        int           `toml:"timeout_seconds"`
	QueueTimeoutSeconds   int           `toml:"queue_timeout_seconds"`
	PositionUpdateSeconds int           `toml:"position_update_seconds"`
	TargetSizeMB          int           `toml:"target_size_mb"`
	MaxOutputMB           int           `toml:"max_output_mb"`
	BlurStrength          int           `toml:"blur_strength"`
	Profiles              []MaskProfile `toml:"profiles"`
}

// Upload contains the optional external file host used for transformed clips.
type Upload struct {
	Endpoint       string `toml:"endpoint"`
	FieldName      string `toml:"field_name"`
	Token          string `toml:"token"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Moderation contains the rejection reason prompt settings.
type Moderation struct {
	CollectReason        bool `toml:"collect_reason"`
	ReasonTimeoutSeconds int  `toml:"reason_timeout_seconds"`
}

// Voting contains the voting window and rank presentation.
type Voting struct {
	WindowHours int               `toml:"window_hours"`
	RankEmojis  map[string]string `toml:"rank_emojis"`
}

// Scoring contains the points formula constants.
type Scoring struct {
	BasePoints       float64 `toml:"base_points"`
	StreakMultiplier float64 `toml:"streak_multiplier"`
	PenaltyPerRank   float64 `toml:"penalty_per_rank"`
	HistoryLimit     int     `toml:"history_limit"`
}

// Sweep contains the expiry sweep cadence.
type Sweep struct {
	IntervalSeconds int `toml:"interval_seconds"`
}

// Store contains legacy import settings.
type Store struct {
	LegacyDir     string `toml:"legacy_dir"`
	LegacyGuildID string `toml:"legacy_guild_id"`
}

// Notifications contains configuration for ntfy operator alerts.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Errors         bool   `toml:"errors"`
	Lifecycle      bool   `toml:"lifecycle"`
	Results        bool   `toml:"results"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for the bot.
//
// Configuration sections by subsystem:
//   - Paths: directories and the status API bind address
//   - Discord: bot token and default channel names
//   - Intake: submission limits and allow-listed URL patterns
//   - Transform: ffmpeg settings, mask profiles, admission gate size
//   - Upload: optional external host for transformed clips
//   - Moderation: rejection reason prompt
//   - Voting: window length and rank emojis
//   - Scoring: points formula
//   - Sweep: expiry cadence
//   - Store: legacy JSON import
//   - Notifications: ntfy operator alerts
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Discord       Discord       `toml:"discord"`
	Intake        Intake        `toml:"intake"`
	Transform     Transform     `toml:"transform"`
	Upload        Upload        `toml:"upload"`
	Moderation    Moderation    `toml:"moderation"`
	Voting        Voting        `toml:"voting"`
	Scoring       Scoring       `toml:"scoring"`
	Sweep         Sweep         `toml:"sweep"`
	Store         Store         `toml:"store"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/guessrank/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		// Array tables append to existing slices; start empty so file profiles replace defaults.
		cfg.Transform.Profiles = nil
		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("guessrank.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// StatePath returns the SQLite database location.
func (c *Config) StatePath() string {
	return filepath.Join(c.Paths.StateDir, "state.db")
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "guessrank.lock")
}

// VotingWindow returns the configured voting window.
func (c *Config) VotingWindow() time.Duration {
	return time.Duration(c.Voting.WindowHours) * time.Hour
}

// SweepInterval returns the configured expiry sweep interval.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Sweep.IntervalSeconds) * time.Second
}

// TransformTimeout returns the per-invocation transform deadline.
func (c *Config) TransformTimeout() time.Duration {
	return time.Duration(c.Transform.TimeoutSeconds) * time.Second
}

// QueueTimeout returns how long a submission may wait for a transform slot.
func (c *Config) QueueTimeout() time.Duration {
	return time.Duration(c.Transform.QueueTimeoutSeconds) * time.Second
}

// ReasonTimeout returns how long a moderator has to type a rejection reason.
func (c *Config) ReasonTimeout() time.Duration {
	return time.Duration(c.Moderation.ReasonTimeoutSeconds) * time.Second
}

// SelectionTimeout returns how long a staged submission waits for guild and
// rank selection.
func (c *Config) SelectionTimeout() time.Duration {
	return time.Duration(c.Intake.SelectionTimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
