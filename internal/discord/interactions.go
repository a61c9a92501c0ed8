package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/bwmarrin/discordgo"

	"guessrank/internal/api"
	"guessrank/internal/logging"
	"guessrank/internal/ranks"
	"guessrank/internal/services"
	"guessrank/internal/voting"
)

func commandDefinitions() []*discordgo.ApplicationCommand {
	manageChannels := int64(discordgo.PermissionManageChannels)
	administrator := int64(discordgo.PermissionAdministrator)
	guildOnly := false
	minOne := 1.0
	return []*discordgo.ApplicationCommand{
		{
			Name:                     "setup",
			Description:              "Create or re-link the moderation, voting, and results channels",
			DefaultMemberPermissions: &manageChannels,
			DMPermission:             &guildOnly,
		},
		{Name: "help", Description: "How Guess My Rank works"},
		{Name: "results", Description: "Browse results of finished clips", DMPermission: &guildOnly},
		{
			Name:         "scoreboard",
			Description:  "Show the guild leaderboard",
			DMPermission: &guildOnly,
			Options: []*discordgo.ApplicationCommandOption{{
				Type: discordgo.ApplicationCommandOptionInteger, Name: "page", Description: "Page number", MinValue: &minOne,
			}},
		},
		{
			Name:         "profile",
			Description:  "Show guessing stats",
			DMPermission: &guildOnly,
			Options: []*discordgo.ApplicationCommandOption{{
				Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "Whose stats to show",
			}},
		},
		{
			Name:                     "cleanup",
			Description:              "Remove finished clips, oldest first",
			DefaultMemberPermissions: &administrator,
			DMPermission:             &guildOnly,
			Options: []*discordgo.ApplicationCommandOption{{
				Type: discordgo.ApplicationCommandOptionInteger, Name: "count", Description: "How many clips to remove (default: all)", MinValue: &minOne,
			}},
		},
	}
}

func (b *Bot) onInteraction(i *discordgo.Interaction) {
	ctx := services.WithRequestID(b.context(), i.ID)
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleCommand(ctx, i)
	case discordgo.InteractionMessageComponent:
		b.handleComponent(ctx, i)
	}
}

// callerOf identifies the invoking user. perm is the permission bit that
// grants admin rights for the command.
func callerOf(i *discordgo.Interaction, perm int64) api.Caller {
	if i.Member != nil && i.Member.User != nil {
		return api.Caller{
			UserID:   i.Member.User.ID,
			Username: i.Member.User.Username,
			Admin:    i.Member.Permissions&perm != 0 || i.Member.Permissions&discordgo.PermissionAdministrator != 0,
		}
	}
	if i.User != nil {
		return api.Caller{UserID: i.User.ID, Username: i.User.Username}
	}
	return api.Caller{}
}

func (b *Bot) handleCommand(ctx context.Context, i *discordgo.Interaction) {
	data := i.ApplicationCommandData()
	if data.Name != "help" && i.GuildID == "" {
		b.ephemeral(ctx, i, "This command only works in a server.")
		return
	}
	ctx = services.WithGuildID(ctx, i.GuildID)
	options := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(data.Options))
	for _, opt := range data.Options {
		options[opt.Name] = opt
	}

	switch data.Name {
	case "help":
		b.respond(ctx, i, &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{helpEmbed(b.deps.Commands.Help())},
			Flags:  discordgo.MessageFlagsEphemeral,
		})
	case "setup":
		b.deferReply(ctx, i)
		result, err := b.deps.Commands.Setup(ctx, i.GuildID, callerOf(i, discordgo.PermissionManageChannels), b.deps.Surface)
		if err != nil {
			b.editReply(ctx, i, "❌ "+services.UserMessage(err), err)
			return
		}
		b.editReply(ctx, i, setupMessage(result), nil)
	case "results":
		results, err := b.deps.Commands.Results(ctx, i.GuildID)
		if err != nil {
			b.fail(ctx, i, err)
			return
		}
		if len(results.Clips) == 0 {
			b.respond(ctx, i, &discordgo.InteractionResponseData{
				Embeds: []*discordgo.MessageEmbed{{
					Title:       "📊 No Results Available",
					Description: "No clips have finished voting yet.",
					Color:       colorWarn,
				}},
				Flags: discordgo.MessageFlagsEphemeral,
			})
			return
		}
		b.respond(ctx, i, &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{{
				Title:       "📊 Browse Clip Results",
				Description: fmt.Sprintf("%d finished clips. Pick one to see its vote breakdown.", len(results.Clips)),
				Color:       colorInfo,
			}},
			Components: resultsPicker(results.Clips),
			Flags:      discordgo.MessageFlagsEphemeral,
		})
	case "scoreboard":
		page := 1
		if opt := options["page"]; opt != nil {
			page = int(opt.IntValue())
		}
		board, err := b.deps.Commands.Scoreboard(ctx, i.GuildID, page)
		if err != nil {
			b.fail(ctx, i, err)
			return
		}
		b.respond(ctx, i, &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{scoreboardEmbed(board)},
			Components: scoreboardButtons(board),
		})
	case "profile":
		userID := callerOf(i, 0).UserID
		if opt := options["user"]; opt != nil {
			if u := opt.UserValue(nil); u != nil {
				userID = u.ID
			}
		}
		profile, err := b.deps.Commands.Profile(ctx, i.GuildID, userID)
		if err != nil {
			b.fail(ctx, i, err)
			return
		}
		b.respond(ctx, i, &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{profileEmbed(profile)}})
	case "cleanup":
		count := 0
		if opt := options["count"]; opt != nil {
			count = int(opt.IntValue())
		}
		b.deferReply(ctx, i)
		result, err := b.deps.Commands.Cleanup(ctx, i.GuildID, count, callerOf(i, discordgo.PermissionAdministrator))
		if err != nil {
			b.editReply(ctx, i, "❌ "+services.UserMessage(err), err)
			return
		}
		b.editReply(ctx, i, fmt.Sprintf("🧹 Removed %d finished clips (%d clips remain).", len(result.Removed), result.Remaining), nil)
	default:
		b.ephemeral(ctx, i, "Unknown command.")
	}
}

func (b *Bot) handleComponent(ctx context.Context, i *discordgo.Interaction) {
	data := i.MessageComponentData()
	kind, id, ok := parseCustomID(data.CustomID)
	if !ok {
		return
	}
	value := ""
	if len(data.Values) > 0 {
		value = data.Values[0]
	}

	switch kind {
	case kindGuild:
		sub, err := b.deps.Intake.ChooseGuild(ctx, id, value)
		if err != nil {
			b.fail(ctx, i, err)
			return
		}
		b.update(ctx, i, &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{rankSelectionEmbed(b.deps.Config.Discord.VotingChannelName)},
			Components: rankPicker(sub.ID, b.deps.Config.Voting.RankEmojis),
		})
	case kindRank:
		rank, err := ranks.Parse(value)
		if err != nil {
			b.fail(ctx, i, services.Describe("Pick one of the listed ranks.",
				services.Wrap(services.ErrValidation, "discord", "rank_select", err.Error(), nil)))
			return
		}
		sub, err := b.deps.Intake.ChooseRank(id, rank)
		if err != nil {
			b.fail(ctx, i, err)
			return
		}
		b.update(ctx, i, &discordgo.InteractionResponseData{
			Content:    fmt.Sprintf("🎮 Rank **%s** selected. Your clip is on its way to the moderators.", rank),
			Embeds:     []*discordgo.MessageEmbed{},
			Components: []discordgo.MessageComponent{},
		})
		b.process(sub)
	case kindVote:
		b.vote(ctx, i, id, value)
	case kindResults:
		result, err := b.deps.Commands.ResultDetail(services.WithGuildID(ctx, i.GuildID), i.GuildID, value)
		if err != nil {
			b.fail(ctx, i, err)
			return
		}
		b.respond(ctx, i, &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{resultsEmbed(result)},
			Flags:  discordgo.MessageFlagsEphemeral,
		})
	case kindBoard:
		page, err := strconv.Atoi(id)
		if err != nil {
			return
		}
		board, err := b.deps.Commands.Scoreboard(ctx, i.GuildID, page)
		if err != nil {
			b.fail(ctx, i, err)
			return
		}
		b.update(ctx, i, &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{scoreboardEmbed(board)},
			Components: scoreboardButtons(board),
		})
	}
}

func (b *Bot) vote(ctx context.Context, i *discordgo.Interaction, clipID, value string) {
	voter := callerOf(i, 0)
	rank, err := ranks.Parse(value)
	if err != nil {
		b.ephemeral(ctx, i, "Pick one of the listed ranks.")
		return
	}
	result, err := b.deps.Voting.Cast(services.WithClipID(services.WithGuildID(ctx, i.GuildID), clipID), i.GuildID, clipID, voter.UserID, voter.Username, rank)
	b.deps.Metrics.Vote(voteOutcome(result, err))
	if err != nil {
		b.fail(ctx, i, err)
		return
	}
	outcome := "recorded"
	if result.Outcome == voting.Changed {
		outcome = "changed"
	}
	b.ephemeral(ctx, i, voteReply(outcome, rank, result.Previous))
}

func voteOutcome(result voting.Result, err error) string {
	switch {
	case errors.Is(err, voting.ErrVotingEnded):
		return "ended"
	case errors.Is(err, voting.ErrChangeLimit):
		return "limit"
	case errors.Is(err, voting.ErrSameVote):
		return "same"
	case err != nil:
		return services.Kind(err)
	case result.Outcome == voting.Changed:
		return "changed"
	default:
		return "recorded"
	}
}

func (b *Bot) respond(ctx context.Context, i *discordgo.Interaction, data *discordgo.InteractionResponseData) {
	b.send(ctx, i, &discordgo.InteractionResponse{Type: discordgo.InteractionResponseChannelMessageWithSource, Data: data})
}

func (b *Bot) update(ctx context.Context, i *discordgo.Interaction, data *discordgo.InteractionResponseData) {
	b.send(ctx, i, &discordgo.InteractionResponse{Type: discordgo.InteractionResponseUpdateMessage, Data: data})
}

func (b *Bot) ephemeral(ctx context.Context, i *discordgo.Interaction, content string) {
	b.respond(ctx, i, &discordgo.InteractionResponseData{Content: content, Flags: discordgo.MessageFlagsEphemeral})
}

func (b *Bot) deferReply(ctx context.Context, i *discordgo.Interaction) {
	b.send(ctx, i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
}

func (b *Bot) editReply(ctx context.Context, i *discordgo.Interaction, content string, cause error) {
	if cause != nil {
		b.logFailure(ctx, i, cause)
	}
	if _, err := b.session.InteractionResponseEdit(i, &discordgo.WebhookEdit{Content: &content}, discordgo.WithContext(ctx)); err != nil {
		b.logger.Debug("interaction edit failed", logging.Error(err))
	}
}

// fail answers i with the user-facing rendering of err.
func (b *Bot) fail(ctx context.Context, i *discordgo.Interaction, err error) {
	b.logFailure(ctx, i, err)
	b.ephemeral(ctx, i, "❌ "+services.UserMessage(err))
}

func (b *Bot) logFailure(ctx context.Context, i *discordgo.Interaction, err error) {
	logger := logging.WithContext(ctx, b.logger)
	attrs := []logging.Attr{
		logging.String("interaction", interactionName(i)),
		logging.Error(err),
		logging.ErrorKind(err),
	}
	switch services.Kind(err) {
	case "validation", "not_found", "permission":
		logger.LogAttrs(ctx, slog.LevelDebug, "interaction refused", attrs...)
	default:
		logging.ErrorWithContext(logger, "interaction failed", "interaction_failed",
			append(attrs, logging.String(logging.FieldErrorHint, "check the guild configuration and bot permissions"))...)
	}
}

func interactionName(i *discordgo.Interaction) string {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		return "/" + i.ApplicationCommandData().Name
	case discordgo.InteractionMessageComponent:
		kind, _, _ := parseCustomID(i.MessageComponentData().CustomID)
		return kind
	default:
		return fmt.Sprint(i.Type)
	}
}

func (b *Bot) send(ctx context.Context, i *discordgo.Interaction, resp *discordgo.InteractionResponse) {
	if err := b.session.InteractionRespond(i, resp, discordgo.WithContext(ctx)); err != nil {
		logging.WarnWithContext(b.logger, "interaction response failed", "interaction_response_failed",
			logging.String("interaction", interactionName(i)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "interactions must be answered within three seconds"),
		)
	}
}
