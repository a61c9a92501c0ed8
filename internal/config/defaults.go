package config

const (
	defaultStagingDir               = "~/.local/share/guessrank/staging"
	defaultStateDir                 = "~/.local/share/guessrank"
	defaultLogDir                   = "~/.local/share/guessrank/logs"
	defaultAPIBind                  = "127.0.0.1:7488"
	defaultModerationChannelName    = "check-clips"
	defaultVotingChannelName        = "guess-my-rank"
	defaultResultsChannelName       = "rank-results"
	defaultMaxAttachmentMB          = 25
	defaultMaxUploadMB              = 100
	defaultSelectionTimeoutSeconds  = 300
	defaultDownloadTimeoutSeconds   = 120
	defaultSubmissionsPerHour       = 6
	defaultSubmissionBurst          = 2
	defaultStaleStagingHours        = 6
	defaultMinFreeSpaceMB           = 1024
	defaultFFmpegBinary             = "ffmpeg"
	defaultFFprobeBinary            = "ffprobe"
	defaultTransformConcurrency     = 1
	defaultTransformMaxQueue        = 25
	defaultTransformTimeoutSeconds  = 300
	defaultPositionUpdateSeconds    = 15
	defaultQueueTimeoutSeconds      = 1800
	defaultTargetSizeMB             = 20
	defaultMaxOutputMB              = 25
	defaultBlurStrength             = 10
	defaultUploadFieldName          = "file"
	defaultUploadTimeoutSeconds     = 120
	defaultReasonTimeoutSeconds     = 300
	defaultVotingWindowHours        = 24
	defaultBasePoints               = 10
	defaultStreakMultiplier         = 0.10
	defaultPenaltyPerRank           = 2
	defaultHistoryLimit             = 10
	defaultSweepIntervalSeconds     = 60
	defaultNotifyRequestTimeout     = 10
	defaultLogFormat                = "console"
	defaultLogLevel                 = "info"
	defaultLogRetentionDays         = 30
	maxTransformConcurrency         = 3
	defaultDiscordAttachmentPattern = `^https://cdn\.discordapp\.com/attachments/\S+$`
	defaultDiscordMediaPattern      = `^https://media\.discordapp\.net/attachments/\S+$`
)

var defaultExtensions = []string{".mp4", ".avi", ".mov", ".mkv", ".wmv", ".flv", ".webm"}

// defaultProfiles blur the in-game rank badge in the top-left corner.
func defaultProfiles() []MaskProfile {
	return []MaskProfile{
		{Width: 1920, Height: 1080, Regions: []MaskRegion{{X: 0, Y: 0, Width: 400, Height: 200}}},
		{Width: 2560, Height: 1440, Regions: []MaskRegion{{X: 0, Y: 0, Width: 534, Height: 267}}},
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			StateDir:   defaultStateDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Discord: Discord{
			ModerationChannelName: defaultModerationChannelName,
			VotingChannelName:     defaultVotingChannelName,
			ResultsChannelName:    defaultResultsChannelName,
			MaxAttachmentMB:       defaultMaxAttachmentMB,
		},
		Intake: Intake{
			MaxUploadMB:             defaultMaxUploadMB,
			Extensions:              append([]string(nil), defaultExtensions...),
			URLPatterns:             []string{defaultDiscordAttachmentPattern, defaultDiscordMediaPattern},
			SelectionTimeoutSeconds: defaultSelectionTimeoutSeconds,
			DownloadTimeoutSeconds:  defaultDownloadTimeoutSeconds,
			SubmissionsPerHour:      defaultSubmissionsPerHour,
			SubmissionBurst:         defaultSubmissionBurst,
			StaleStagingHours:       defaultStaleStagingHours,
			MinFreeSpaceMB:          defaultMinFreeSpaceMB,
		},
		Transform: Transform{
			FFmpegBinary:          defaultFFmpegBinary,
			FFprobeBinary:         defaultFFprobeBinary,
			Concurrency:           defaultTransformConcurrency,
			MaxQueue:              defaultTransformMaxQueue,
			TimeoutSeconds:        defaultTransformTimeoutSeconds,
			QueueTimeoutSeconds:   defaultQueueTimeoutSeconds,
			PositionUpdateSeconds: defaultPositionUpdateSeconds,
			TargetSizeMB:          defaultTargetSizeMB,
			MaxOutputMB:           defaultMaxOutputMB,
			BlurStrength:          defaultBlurStrength,
			Profiles:              defaultProfiles(),
		},
		Upload: Upload{
			FieldName:      defaultUploadFieldName,
			TimeoutSeconds: defaultUploadTimeoutSeconds,
		},
		Moderation: Moderation{
			CollectReason:        true,
			ReasonTimeoutSeconds: defaultReasonTimeoutSeconds,
		},
		Voting: Voting{
			WindowHours: defaultVotingWindowHours,
		},
		Scoring: Scoring{
			BasePoints:       defaultBasePoints,
			StreakMultiplier: defaultStreakMultiplier,
			PenaltyPerRank:   defaultPenaltyPerRank,
			HistoryLimit:     defaultHistoryLimit,
		},
		Sweep: Sweep{
			IntervalSeconds: defaultSweepIntervalSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Errors:         true,
			Lifecycle:      true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
