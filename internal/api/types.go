package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// TallyRow is one rank's share of a clip's votes.
type TallyRow struct {
	Rank    string  `json:"rank"`
	Label   string  `json:"label"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
	Correct bool    `json:"correct"`
}

// ClipResult describes a voting clip and its tally.
type ClipResult struct {
	ID            string     `json:"id"`
	CorrectRank   string     `json:"correctRank"`
	SubmitterID   string     `json:"submitterId,omitempty"`
	SubmitterName string     `json:"submitterName,omitempty"`
	MediaURL      string     `json:"mediaUrl,omitempty"`
	CreatedAt     string     `json:"createdAt,omitempty"`
	EndTime       string     `json:"endTime,omitempty"`
	ExpiredAt     string     `json:"expiredAt,omitempty"`
	Expired       bool       `json:"expired"`
	TotalVotes    int        `json:"totalVotes"`
	CorrectVoters int        `json:"correctVoters"`
	Tally         []TallyRow `json:"tally"`
}

// ResultsResponse wraps the completed clips of a guild, newest first.
type ResultsResponse struct {
	GuildID string       `json:"guildId"`
	Clips   []ClipResult `json:"clips"`
}

// HistoryEntry is one scored guess on a profile.
type HistoryEntry struct {
	ClipID   string  `json:"clipId"`
	Guessed  string  `json:"guessed"`
	Correct  string  `json:"correct"`
	Points   float64 `json:"points"`
	Exact    bool    `json:"exact"`
	ScoredAt string  `json:"scoredAt,omitempty"`
}

// Profile is a user's stat card.
type Profile struct {
	UserID         string         `json:"userId"`
	Username       string         `json:"username,omitempty"`
	Position       int            `json:"position"`
	Players        int            `json:"players"`
	TotalScore     float64        `json:"totalScore"`
	GamesPlayed    int            `json:"gamesPlayed"`
	CorrectGuesses int            `json:"correctGuesses"`
	Accuracy       float64        `json:"accuracy"`
	CurrentStreak  int            `json:"currentStreak"`
	BestStreak     int            `json:"bestStreak"`
	History        []HistoryEntry `json:"history,omitempty"`
}

// ScoreboardRow is one leaderboard line.
type ScoreboardRow struct {
	Position       int     `json:"position"`
	UserID         string  `json:"userId"`
	Username       string  `json:"username,omitempty"`
	TotalScore     float64 `json:"totalScore"`
	GamesPlayed    int     `json:"gamesPlayed"`
	CorrectGuesses int     `json:"correctGuesses"`
	BestStreak     int     `json:"bestStreak"`
}

// ScoreboardPage is one page of the leaderboard.
type ScoreboardPage struct {
	GuildID string          `json:"guildId"`
	Page    int             `json:"page"`
	Pages   int             `json:"pages"`
	Players int             `json:"players"`
	Rows    []ScoreboardRow `json:"rows"`
}

// SetupChannel reports how one functional channel was resolved.
type SetupChannel struct {
	Role    string `json:"role"`
	Name    string `json:"name"`
	ID      string `json:"id"`
	Created bool   `json:"created"`
}

// SetupResult summarizes a setup run.
type SetupResult struct {
	GuildID      string         `json:"guildId"`
	Channels     []SetupChannel `json:"channels"`
	Reconfigured bool           `json:"reconfigured"`
}

// CleanupResult summarizes a cleanup run.
type CleanupResult struct {
	GuildID   string   `json:"guildId"`
	Removed   []string `json:"removed"`
	Remaining int      `json:"remaining"`
}

// HelpSection is one titled block of help text.
type HelpSection struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// WorkflowStatus summarizes submission pipeline state.
type WorkflowStatus struct {
	Running     bool          `json:"running"`
	Active      int           `json:"active"`
	Processed   int           `json:"processed"`
	Failed      int           `json:"failed"`
	QueueActive int           `json:"queueActive"`
	QueueWait   int           `json:"queueWaiting"`
	QueueLimit  int           `json:"queueLimit"`
	LastError   string        `json:"lastError,omitempty"`
	LastErrorAt string        `json:"lastErrorAt,omitempty"`
	StageHealth []StageHealth `json:"stageHealth"`
}

// StageHealth mirrors readiness reporting for pipeline components.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	StartedAt    string             `json:"startedAt,omitempty"`
	StorePath    string             `json:"storePath"`
	LockFilePath string             `json:"lockFilePath"`
	Guilds       []string           `json:"guilds"`
	Workflow     WorkflowStatus     `json:"workflow"`
	Dependencies []DependencyStatus `json:"dependencies"`
}
