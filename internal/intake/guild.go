package intake

import (
	"sort"

	"guessrank/internal/services"
	"guessrank/internal/store"
)

// Selection is the outcome of guild resolution.
type Selection struct {
	// GuildID is set when exactly one guild qualifies or choice picked one.
	GuildID string
	// Candidates lists qualifying guilds when the submitter must choose.
	Candidates []store.GuildConfig
}

// NeedsChoice reports whether the submitter must pick a guild.
func (s Selection) NeedsChoice() bool {
	return s.GuildID == "" && len(s.Candidates) > 1
}

// SelectGuild resolves the target guild among configs with complete
// channel configuration. With more than one candidate and no choice the
// candidates are returned; a choice must name a candidate.
func SelectGuild(configs map[string]store.GuildConfig, choice string) (Selection, error) {
	candidates := make([]store.GuildConfig, 0, len(configs))
	for guildID, cfg := range configs {
		if guildID == store.QuarantineGuildID || !cfg.Complete() {
			continue
		}
		cfg.GuildID = guildID
		candidates = append(candidates, cfg)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].GuildID < candidates[j].GuildID })

	if len(candidates) == 0 {
		return Selection{}, services.Describe("No server has finished setup yet. Ask an admin to run /setup.",
			services.Wrap(services.ErrConfiguration, "intake", "select_guild", "no configured guild", nil))
	}
	if choice != "" {
		for _, cfg := range candidates {
			if cfg.GuildID == choice {
				return Selection{GuildID: choice}, nil
			}
		}
		return Selection{}, services.Describe("That server is not available for submissions.",
			services.Wrap(services.ErrNotFound, "intake", "select_guild", "guild "+choice, nil))
	}
	if len(candidates) == 1 {
		return Selection{GuildID: candidates[0].GuildID}, nil
	}
	return Selection{Candidates: candidates}, nil
}
