package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"guessrank/internal/config"
)

func TestLoadDefaultConfigUsesEnvTokenAndExpandsPaths(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "env-token")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantStaging := filepath.Join(tempHome, ".local", "share", "guessrank", "staging")
	if cfg.Paths.StagingDir != wantStaging {
		t.Fatalf("unexpected staging dir: got %q want %q", cfg.Paths.StagingDir, wantStaging)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7488" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Discord.Token != "env-token" {
		t.Fatalf("expected token from env, got %q", cfg.Discord.Token)
	}
	if cfg.StatePath() != filepath.Join(tempHome, ".local", "share", "guessrank", "state.db") {
		t.Fatalf("unexpected state path: %q", cfg.StatePath())
	}
	if cfg.Transform.Concurrency != 1 {
		t.Fatalf("expected default concurrency 1, got %d", cfg.Transform.Concurrency)
	}
	if len(cfg.Transform.Profiles) != 2 {
		t.Fatalf("expected two default mask profiles, got %d", len(cfg.Transform.Profiles))
	}
	if cfg.VotingWindow().Hours() != 24 {
		t.Fatalf("unexpected voting window: %s", cfg.VotingWindow())
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StagingDir, cfg.Paths.StateDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPathOverridesDefaults(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "env-token")
	configPath := filepath.Join(t.TempDir(), "guessrank.toml")
	contents := `
[discord]
token = "file-token"
voting_channel_name = "#Guess My Rank"

[transform]
concurrency = 2

[[transform.profiles]]
width = 1280
height = 720
regions = [{ x = 0, y = 0, width = 267, height = 133 }]

[intake]
extensions = ["MP4", "webm"]
`
	if err := os.WriteFile(configPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("unexpected resolution: exists=%v resolved=%q", exists, resolved)
	}
	if cfg.Discord.Token != "file-token" {
		t.Fatalf("expected file token to win over env, got %q", cfg.Discord.Token)
	}
	if cfg.Discord.VotingChannelName != "guess-my-rank" {
		t.Fatalf("expected canonical channel name, got %q", cfg.Discord.VotingChannelName)
	}
	if cfg.Transform.Concurrency != 2 {
		t.Fatalf("expected concurrency 2, got %d", cfg.Transform.Concurrency)
	}
	if len(cfg.Transform.Profiles) != 1 || cfg.Transform.Profiles[0].Width != 1280 {
		t.Fatalf("expected file profiles to replace defaults, got %+v", cfg.Transform.Profiles)
	}
	if strings.Join(cfg.Intake.Extensions, ",") != ".mp4,.webm" {
		t.Fatalf("unexpected extensions: %v", cfg.Intake.Extensions)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "guessrank.toml")
	if err := os.WriteFile(configPath, []byte("[voting]\nwindow = 3\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "DISCORD_TOKEN") {
		t.Fatalf("sample config missing token hint: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if !strings.Contains(cfg.Paths.StagingDir, "guessrank") {
		t.Fatalf("expected staging dir to contain guessrank, got %q", cfg.Paths.StagingDir)
	}

	loaded, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if len(loaded.Transform.Profiles) != 2 {
		t.Fatalf("expected sample profiles to load once, got %d", len(loaded.Transform.Profiles))
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"concurrency too high", func(c *config.Config) { c.Transform.Concurrency = 4 }, "transform.concurrency"},
		{"concurrency zero", func(c *config.Config) { c.Transform.Concurrency = 0 }, "transform.concurrency"},
		{"bad url pattern", func(c *config.Config) { c.Intake.URLPatterns = []string{"(["} }, "intake.url_patterns"},
		{"region outside frame", func(c *config.Config) {
			c.Transform.Profiles = []config.MaskProfile{{Width: 100, Height: 100, Regions: []config.MaskRegion{{X: 50, Y: 0, Width: 60, Height: 10}}}}
		}, "region outside"},
		{"duplicate profile", func(c *config.Config) {
			c.Transform.Profiles = append(c.Transform.Profiles, c.Transform.Profiles[0])
		}, "duplicate resolution"},
		{"negative penalty", func(c *config.Config) { c.Scoring.PenaltyPerRank = -1 }, "scoring"},
		{"target above max", func(c *config.Config) { c.Transform.TargetSizeMB = 30 }, "target_size_mb"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"upload scheme", func(c *config.Config) { c.Upload.Endpoint = "ftp://host" }, "upload.endpoint"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestValidateForDaemonRequiresToken(t *testing.T) {
	cfg := config.Default()
	if err := cfg.ValidateForDaemon(); err == nil || !strings.Contains(err.Error(), "DISCORD_TOKEN") {
		t.Fatalf("expected token error, got %v", err)
	}
	cfg.Discord.Token = "abc"
	cfg.Discord.ResultsChannelName = cfg.Discord.VotingChannelName
	if err := cfg.ValidateForDaemon(); err == nil {
		t.Fatal("expected duplicate channel names to be rejected")
	}
	cfg.Discord.ResultsChannelName = "rank-results"
	if err := cfg.ValidateForDaemon(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
