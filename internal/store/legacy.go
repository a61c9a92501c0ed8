package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"guessrank/internal/ranks"
)

const legacyVotingWindow = 24 * time.Hour

// legacyMarkers identify an entity object of each table in untagged files.
// An object holding a marker is an entity; an object whose values are
// entities is a guild partition. Anything else is skipped.
var legacyMarkers = map[Table][]string{
	TablePending: {"claimed_rank", "rank"},
	TableVoting:  {"correct_rank"},
	TableScores:  {"total_score", "games_played"},
}

func migrateV0ToV1(table Table, top map[string]json.RawMessage, opts migrateOptions) (map[string]json.RawMessage, []string, error) {
	if table == TableConfig {
		return migrateLegacyConfig(top)
	}
	markers, ok := legacyMarkers[table]
	if !ok {
		return nil, nil, fmt.Errorf("unknown table %q", table)
	}
	fallback := opts.fallbackGuild
	if fallback == "" {
		fallback = QuarantineGuildID
	}

	partitions := make(map[string]map[string]any)
	var warnings []string
	place := func(guildID, key string, fields map[string]json.RawMessage) {
		if explicit := legacyString(fields, "guild_id"); explicit != "" {
			guildID = explicit
		}
		entity, warns := convertLegacyEntity(table, guildID, key, fields)
		warnings = append(warnings, warns...)
		if entity == nil {
			return
		}
		if partitions[guildID] == nil {
			partitions[guildID] = make(map[string]any)
		}
		partitions[guildID][key] = entity
	}

	for _, key := range sortedKeys(top) {
		fields, ok := legacyObject(top[key])
		if !ok {
			warnings = append(warnings, fmt.Sprintf("%s: entry %q is not an object", table, key))
			continue
		}
		if hasAny(fields, markers) {
			place(fallback, key, fields)
			continue
		}
		nested := 0
		for _, childKey := range sortedKeys(fields) {
			child, ok := legacyObject(fields[childKey])
			if !ok || !hasAny(child, markers) {
				warnings = append(warnings, fmt.Sprintf("%s: entry %q/%q not recognised", table, key, childKey))
				continue
			}
			place(key, childKey, child)
			nested++
		}
		if nested == 0 && len(fields) == 0 {
			warnings = append(warnings, fmt.Sprintf("%s: entry %q is empty", table, key))
		}
	}

	out := make(map[string]json.RawMessage, len(partitions))
	for guildID, entities := range partitions {
		payload, err := json.Marshal(entities)
		if err != nil {
			return nil, warnings, err
		}
		out[guildID] = payload
	}
	return out, warnings, nil
}

// migrateLegacyConfig maps {"<guild>": {"check_channel": ..., "guess_channel": ...}}.
// The original file was always keyed by guild.
func migrateLegacyConfig(top map[string]json.RawMessage) (map[string]json.RawMessage, []string, error) {
	out := make(map[string]json.RawMessage, len(top))
	var warnings []string
	for _, guildID := range sortedKeys(top) {
		fields, ok := legacyObject(top[guildID])
		if !ok {
			warnings = append(warnings, fmt.Sprintf("config: entry %q is not an object", guildID))
			continue
		}
		cfg := GuildConfig{
			GuildID:    guildID,
			Moderation: ChannelRef{Name: firstNonEmpty(legacyString(fields, "check_channel"), legacyString(fields, "moderation_channel"), "check-clips")},
			Voting:     ChannelRef{Name: firstNonEmpty(legacyString(fields, "guess_channel"), legacyString(fields, "voting_channel"), "guess-my-rank")},
			Results:    ChannelRef{Name: firstNonEmpty(legacyString(fields, "results_channel"), "rank-results")},
		}
		payload, err := json.Marshal(cfg)
		if err != nil {
			return nil, warnings, err
		}
		out[guildID] = payload
	}
	return out, warnings, nil
}

func convertLegacyEntity(table Table, guildID, key string, fields map[string]json.RawMessage) (any, []string) {
	switch table {
	case TablePending:
		return convertLegacyPending(guildID, key, fields)
	case TableVoting:
		return convertLegacyClip(guildID, key, fields)
	case TableScores:
		return convertLegacyScore(key, fields), nil
	default:
		return nil, []string{fmt.Sprintf("%s: unsupported table", table)}
	}
}

func convertLegacyPending(guildID, key string, fields map[string]json.RawMessage) (any, []string) {
	rank, warn := legacyRank(firstNonEmpty(legacyString(fields, "claimed_rank"), legacyString(fields, "rank")))
	var warnings []string
	if warn != "" {
		warnings = append(warnings, fmt.Sprintf("pending %s: %s", key, warn))
	}
	submitter := firstNonEmpty(legacyString(fields, "submitter_id"), legacyString(fields, "user_id"))
	if submitter == "" {
		return nil, append(warnings, fmt.Sprintf("pending %s: no submitter", key))
	}
	return PendingClip{
		MessageID:     firstNonEmpty(legacyString(fields, "message_id"), key),
		ChannelID:     legacyString(fields, "channel_id"),
		GuildID:       guildID,
		SubmitterID:   submitter,
		SubmitterName: firstNonEmpty(legacyString(fields, "submitter_name"), legacyString(fields, "username")),
		ClaimedRank:   rank,
		Media:         legacyMedia(fields),
		SubmittedAt:   legacyTime(firstNonEmpty(legacyString(fields, "submitted_at"), legacyString(fields, "timestamp"))),
	}, warnings
}

func convertLegacyClip(guildID, key string, fields map[string]json.RawMessage) (any, []string) {
	var warnings []string
	rank, warn := legacyRank(legacyString(fields, "correct_rank"))
	if warn != "" {
		warnings = append(warnings, fmt.Sprintf("clip %s: %s", key, warn))
	}
	end := legacyTime(legacyString(fields, "end_time"))
	created := legacyTime(legacyString(fields, "created_at"))
	if created.IsZero() && !end.IsZero() {
		created = end.Add(-legacyVotingWindow)
	}
	if end.IsZero() {
		warnings = append(warnings, fmt.Sprintf("clip %s: missing end_time, treated as already ended", key))
	}

	clip := VotingClip{
		ID:            key,
		GuildID:       guildID,
		CorrectRank:   rank,
		SubmitterID:   firstNonEmpty(legacyString(fields, "submitter_id"), legacyString(fields, "user_id")),
		SubmitterName: legacyString(fields, "submitter_name"),
		Media:         legacyMedia(fields),
		ChannelID:     legacyString(fields, "channel_id"),
		MessageID:     legacyString(fields, "message_id"),
		CreatedAt:     created,
		EndTime:       end,
		Expired:       legacyBool(fields, "expired"),
	}
	ballots, warns := legacyBallots(key, fields["votes"])
	warnings = append(warnings, warns...)
	clip.Ballots = ballots
	clip.Recount()
	if declared, ok := legacyInt(fields, "total_votes"); ok && declared != clip.TotalVotes {
		warnings = append(warnings, fmt.Sprintf("clip %s: total_votes %d recomputed as %d", key, declared, clip.TotalVotes))
	}
	if clip.Expired {
		clip.ExpiredAt = end
	}
	return clip, warnings
}

// legacyBallots accepts both vote layouts: rank → [voter IDs] and voter → rank.
func legacyBallots(clipID string, raw json.RawMessage) (map[string]Ballot, []string) {
	ballots := make(map[string]Ballot)
	fields, ok := legacyObject(raw)
	if !ok {
		return ballots, nil
	}
	var warnings []string
	add := func(voter, rankValue string) {
		rank, warn := legacyRank(rankValue)
		if warn != "" {
			warnings = append(warnings, fmt.Sprintf("clip %s voter %s: %s", clipID, voter, warn))
		}
		if _, dup := ballots[voter]; dup {
			warnings = append(warnings, fmt.Sprintf("clip %s: duplicate vote by %s ignored", clipID, voter))
			return
		}
		ballots[voter] = Ballot{Rank: rank}
	}
	for _, key := range sortedKeys(fields) {
		value := bytes.TrimSpace(fields[key])
		switch {
		case len(value) > 0 && value[0] == '[':
			var voters []json.RawMessage
			if err := json.Unmarshal(value, &voters); err != nil {
				warnings = append(warnings, fmt.Sprintf("clip %s: votes for %s unreadable", clipID, key))
				continue
			}
			for _, voter := range voters {
				if id := rawString(voter); id != "" {
					add(id, key)
				}
			}
		case len(value) > 0 && value[0] == '{':
			ballot, _ := legacyObject(value)
			add(key, legacyString(ballot, "rank"))
		default:
			add(key, rawString(value))
		}
	}
	return ballots, warnings
}

func convertLegacyScore(userID string, fields map[string]json.RawMessage) any {
	profile := ScoreProfile{
		UserID:   userID,
		Username: legacyString(fields, "username"),
	}
	profile.TotalScore, _ = legacyFloat(fields, "total_score")
	profile.GamesPlayed, _ = legacyInt(fields, "games_played")
	profile.CorrectGuesses, _ = legacyInt(fields, "correct_guesses")
	profile.CurrentStreak, _ = legacyInt(fields, "current_streak")
	profile.BestStreak, _ = legacyInt(fields, "best_streak")
	var history []json.RawMessage
	if raw, ok := fields["history"]; ok && json.Unmarshal(raw, &history) == nil {
		for _, item := range history {
			entry, ok := legacyObject(item)
			if !ok {
				continue
			}
			guessed, _ := legacyRank(firstNonEmpty(legacyString(entry, "guessed_rank"), legacyString(entry, "guess")))
			correct, _ := legacyRank(legacyString(entry, "correct_rank"))
			points, _ := legacyFloat(entry, "points")
			profile.History = append(profile.History, HistoryEntry{
				ClipID:   legacyString(entry, "clip_id"),
				Guessed:  guessed,
				Correct:  correct,
				Points:   points,
				Exact:    guessed != "" && guessed == correct,
				ScoredAt: legacyTime(firstNonEmpty(legacyString(entry, "timestamp"), legacyString(entry, "scored_at"))),
			})
		}
	}
	return profile
}

func legacyObject(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, false
	}
	return fields, true
}

func hasAny(fields map[string]json.RawMessage, keys []string) bool {
	for _, key := range keys {
		if _, ok := fields[key]; ok {
			return true
		}
	}
	return false
}

// rawString returns a JSON string or the literal digits of a JSON number, so
// 64-bit snowflake IDs keep their precision.
func rawString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return strings.TrimSpace(s)
	}
	if raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9') {
		return string(raw)
	}
	return ""
}

func legacyString(fields map[string]json.RawMessage, key string) string {
	if fields == nil {
		return ""
	}
	return rawString(fields[key])
}

func legacyInt(fields map[string]json.RawMessage, key string) (int, bool) {
	value := legacyString(fields, key)
	if value == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(value); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return int(f), true
	}
	return 0, false
}

func legacyFloat(fields map[string]json.RawMessage, key string) (float64, bool) {
	value := legacyString(fields, key)
	if value == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(value, 64)
	return f, err == nil
}

func legacyBool(fields map[string]json.RawMessage, key string) bool {
	var b bool
	if raw, ok := fields[key]; ok && json.Unmarshal(raw, &b) == nil {
		return b
	}
	return false
}

func legacyRank(value string) (ranks.Rank, string) {
	if value == "" {
		return "", "missing rank"
	}
	rank, err := ranks.Parse(value)
	if err != nil {
		return ranks.Rank(value), err.Error()
	}
	return rank, ""
}

func legacyMedia(fields map[string]json.RawMessage) MediaRef {
	return MediaRef{
		URL:            firstNonEmpty(legacyString(fields, "video_url"), legacyString(fields, "media_url"), legacyString(fields, "url")),
		AttachmentName: firstNonEmpty(legacyString(fields, "attachment_name"), legacyString(fields, "filename")),
	}
}

// legacyTime parses RFC 3339 or the naive local ISO timestamps Python's
// datetime.isoformat produced.
func legacyTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC()
	}
	for _, layout := range []string{"2006-01-02T15:04:05.999999", "2006-01-02 15:04:05.999999", "2006-01-02T15:04:05"} {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
