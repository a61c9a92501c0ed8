package discord

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"guessrank/internal/api"
	"guessrank/internal/moderation"
	"guessrank/internal/ranks"
	"guessrank/internal/store"
	"guessrank/internal/sweep"
)

const (
	colorInfo    = 0x0099ff
	colorSuccess = 0x00ff00
	colorWarn    = 0xff9900

	// voteFileName is the name clips are re-attached under in vote posts.
	voteFileName = "guess_my_rank.mp4"
)

// Custom ID kinds.
const (
	kindGuild   = "guild"
	kindRank    = "rank"
	kindVote    = "vote"
	kindResults = "results"
	kindBoard   = "board"
)

func customID(kind, id string) string {
	return kind + ":" + id
}

// parseCustomID splits "<kind>:<id>". ok is false for foreign IDs.
func parseCustomID(value string) (kind, id string, ok bool) {
	kind, id, ok = strings.Cut(value, ":")
	if !ok || kind == "" || id == "" {
		return "", "", false
	}
	return kind, id, true
}

func rankOptions(emojis map[string]string) []discordgo.SelectMenuOption {
	options := make([]discordgo.SelectMenuOption, 0, len(ranks.All()))
	for _, rank := range ranks.All() {
		option := discordgo.SelectMenuOption{Label: string(rank), Value: string(rank)}
		if emoji := strings.TrimSpace(emojis[string(rank)]); emoji != "" {
			option.Emoji = &discordgo.ComponentEmoji{Name: emoji}
		}
		options = append(options, option)
	}
	return options
}

func selectRow(id, placeholder string, options []discordgo.SelectMenuOption) discordgo.ActionsRow {
	one := 1
	return discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		discordgo.SelectMenu{
			MenuType:    discordgo.StringSelectMenu,
			CustomID:    id,
			Placeholder: placeholder,
			MinValues:   &one,
			MaxValues:   1,
			Options:     options,
		},
	}}
}

func rankPicker(submissionID string, emojis map[string]string) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{selectRow(customID(kindRank, submissionID), "Select your rank...", rankOptions(emojis))}
}

// guildPicker lists candidate guilds by name. names maps guild ID to name.
func guildPicker(submissionID string, candidates []string, names map[string]string) []discordgo.MessageComponent {
	options := make([]discordgo.SelectMenuOption, 0, len(candidates))
	for _, id := range candidates {
		label := names[id]
		if label == "" {
			label = id
		}
		options = append(options, discordgo.SelectMenuOption{Label: label, Value: id})
	}
	return []discordgo.MessageComponent{selectRow(customID(kindGuild, submissionID), "Select a server...", options)}
}

func rankSelectionEmbed(votingChannel string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "🎮 Rank Selection",
		Description: "Choose your rank from the dropdown menu below.\n" +
			fmt.Sprintf("Your video will be submitted for moderation before appearing in #%s.", votingChannel),
		Color: colorSuccess,
	}
}

func guildSelectionEmbed() *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "🌐 Server Selection",
		Description: "You share several servers with me. Pick the one this clip is for.",
		Color:       colorInfo,
	}
}

func reviewContent(review moderation.Review) string {
	var b strings.Builder
	b.WriteString("🎮 **Clip Submission for Review**\n\n")
	fmt.Fprintf(&b, "Submitted by: <@%s>\n", review.SubmitterID)
	fmt.Fprintf(&b, "Claimed rank: **%s**\n\n", review.ClaimedRank)
	fmt.Fprintf(&b, "React with %s to approve or %s to reject this clip.", moderation.EmojiApprove, moderation.EmojiReject)
	if review.Media.URL != "" {
		b.WriteString("\n" + review.Media.URL)
	}
	return b.String()
}

func voteContent(clip store.VotingClip) string {
	var b strings.Builder
	b.WriteString("🎮 **New Challenge - Guess My Rank!**\n\n")
	b.WriteString("Watch this video and guess the player's rank!\n")
	fmt.Fprintf(&b, "Voting ends %s. You can change your vote once.\n", relative(clip.EndTime))
	fmt.Fprintf(&b, "Answer: ||%s||", clip.CorrectRank)
	if clip.Media.AttachmentName == "" && clip.Media.URL != "" {
		b.WriteString("\n" + clip.Media.URL)
	}
	return b.String()
}

func voteComponents(clipID string, emojis map[string]string) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{selectRow(customID(kindVote, clipID), "Guess the rank...", rankOptions(emojis))}
}

func tallyLines(rows []api.TallyRow) string {
	var b strings.Builder
	for _, row := range rows {
		if row.Correct {
			fmt.Fprintf(&b, "**%s**: %d votes (%.1f%%) ✅\n", row.Label, row.Count, row.Percent)
			continue
		}
		fmt.Fprintf(&b, "%s: %d votes (%.1f%%)\n", row.Label, row.Count, row.Percent)
	}
	return strings.TrimRight(b.String(), "\n")
}

func resultsEmbed(result api.ClipResult) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "🎯 Results - Guess My Rank",
		Description: fmt.Sprintf("**Correct Rank:** %s\n**Total Votes:** %d", result.CorrectRank, result.TotalVotes),
		Color:       colorSuccess,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "📊 Vote Distribution", Value: tallyLines(result.Tally)},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "Clip " + result.ID},
	}
	if result.SubmitterID != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "🎬 Submitted by", Value: "<@" + result.SubmitterID + ">", Inline: true})
	}
	return embed
}

// announcementEmbed adds the top scorers of a closed clip.
func announcementEmbed(result sweep.Expired, emojis map[string]string) *discordgo.MessageEmbed {
	embed := resultsEmbed(api.FromVotingClip(result.Clip, emojis))
	if len(result.Awards) == 0 {
		return embed
	}
	var b strings.Builder
	shown := 0
	for _, award := range result.Awards {
		if !award.Exact {
			continue
		}
		fmt.Fprintf(&b, "<@%s> +%.1f (streak %d)\n", award.UserID, award.Points, award.StreakAfter)
		shown++
		if shown == 10 {
			break
		}
	}
	if shown > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "🏆 Correct guesses", Value: strings.TrimRight(b.String(), "\n")})
	}
	return embed
}

func resultsPicker(clips []api.ClipResult) []discordgo.MessageComponent {
	options := make([]discordgo.SelectMenuOption, 0, min(len(clips), 25))
	for _, clip := range clips {
		if len(options) == 25 {
			break
		}
		label := "Clip " + clip.ID
		if len(clip.ID) > 8 {
			label = "Clip " + clip.ID[:8]
		}
		if clip.SubmitterName != "" {
			label += " by " + clip.SubmitterName
		}
		options = append(options, discordgo.SelectMenuOption{
			Label:       truncate(label, 100),
			Value:       clip.ID,
			Description: fmt.Sprintf("%d votes • %s rank", clip.TotalVotes, clip.CorrectRank),
		})
	}
	return []discordgo.MessageComponent{selectRow(customID(kindResults, "pick"), "Select a clip...", options)}
}

func scoreboardEmbed(page api.ScoreboardPage) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:  "🏆 Scoreboard",
		Color:  colorInfo,
		Footer: &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Page %d/%d • %d players", page.Page, page.Pages, page.Players)},
	}
	if len(page.Rows) == 0 {
		embed.Description = "No scores yet. Guess the rank on a clip to get on the board!"
		return embed
	}
	var b strings.Builder
	for _, row := range page.Rows {
		fmt.Fprintf(&b, "%s <@%s> • **%.1f** pts • %d/%d correct\n", medal(row.Position), row.UserID, row.TotalScore, row.CorrectGuesses, row.GamesPlayed)
	}
	embed.Description = strings.TrimRight(b.String(), "\n")
	return embed
}

func scoreboardButtons(page api.ScoreboardPage) []discordgo.MessageComponent {
	if page.Pages <= 1 {
		return nil
	}
	return []discordgo.MessageComponent{discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		discordgo.Button{Label: "◀", Style: discordgo.SecondaryButton, CustomID: customID(kindBoard, fmt.Sprint(page.Page-1)), Disabled: page.Page <= 1},
		discordgo.Button{Label: "▶", Style: discordgo.SecondaryButton, CustomID: customID(kindBoard, fmt.Sprint(page.Page+1)), Disabled: page.Page >= page.Pages},
	}}}
}

func medal(position int) string {
	switch position {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	default:
		return fmt.Sprintf("`#%d`", position)
	}
}

func profileEmbed(profile api.Profile) *discordgo.MessageEmbed {
	name := profile.Username
	if name == "" {
		name = "<@" + profile.UserID + ">"
	}
	embed := &discordgo.MessageEmbed{
		Title:       "📇 " + name,
		Description: fmt.Sprintf("Rank **#%d** of %d players", profile.Position, profile.Players),
		Color:       colorInfo,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Score", Value: fmt.Sprintf("%.1f", profile.TotalScore), Inline: true},
			{Name: "Accuracy", Value: fmt.Sprintf("%.1f%% (%d/%d)", profile.Accuracy, profile.CorrectGuesses, profile.GamesPlayed), Inline: true},
			{Name: "Streak", Value: fmt.Sprintf("%d (best %d)", profile.CurrentStreak, profile.BestStreak), Inline: true},
		},
	}
	if len(profile.History) > 0 {
		var b strings.Builder
		for _, entry := range profile.History[:min(5, len(profile.History))] {
			mark := "❌"
			if entry.Exact {
				mark = "✅"
			}
			fmt.Fprintf(&b, "%s %s → %s (+%.1f)\n", mark, entry.Guessed, entry.Correct, entry.Points)
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Recent guesses", Value: strings.TrimRight(b.String(), "\n")})
	}
	return embed
}

func helpEmbed(sections []api.HelpSection) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "🤖 Guess My Rank Bot - Help",
		Description: "This bot allows you to create rank guessing challenges!",
		Color:       colorInfo,
	}
	for _, section := range sections {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: section.Title, Value: section.Body})
	}
	return embed
}

func setupMessage(result api.SetupResult) string {
	var b strings.Builder
	var created []string
	for _, ch := range result.Channels {
		fmt.Fprintf(&b, "• %s: <#%s>\n", ch.Role, ch.ID)
		if ch.Created {
			created = append(created, "#"+ch.Name)
		}
	}
	switch {
	case len(created) > 0:
		return "✅ Created channels: " + strings.Join(created, ", ") + "\n" + b.String()
	case result.Reconfigured:
		return "🔁 Channels re-linked.\n" + b.String()
	default:
		return "ℹ️ All required channels already exist!\n" + b.String()
	}
}

func voteReply(outcome string, rank, previous ranks.Rank) string {
	if outcome == "changed" {
		return fmt.Sprintf("🔄 Your guess changed from **%s** to **%s**. This was your only change.", previous, rank)
	}
	return fmt.Sprintf("✅ Your guess: **%s** has been recorded! You can change it once before voting ends.", rank)
}

func channelTopic(role store.ChannelRole) string {
	switch role {
	case store.RoleModeration:
		return "🔍 Moderation channel for clip submissions"
	case store.RoleVoting:
		return "🎮 Guess the rank of players from their videos!"
	default:
		return "🎯 Results of finished Guess My Rank challenges"
	}
}

func welcomeEmbed(role store.ChannelRole, votingChannel string) *discordgo.MessageEmbed {
	switch role {
	case store.RoleModeration:
		return &discordgo.MessageEmbed{
			Title: "🔍 Clip Moderation",
			Description: "This channel is for moderating clip submissions.\n" +
				fmt.Sprintf("React with %s to approve clips or %s to reject them.\n", moderation.EmojiApprove, moderation.EmojiReject) +
				fmt.Sprintf("Approved clips will be automatically posted to #%s.", votingChannel),
			Color: colorWarn,
		}
	case store.RoleVoting:
		return &discordgo.MessageEmbed{
			Title: "🎮 Welcome to Guess My Rank!",
			Description: "In this channel, you'll see gameplay videos with the player's rank hidden.\n" +
				"Try to guess the rank before revealing the answer!",
			Color: colorSuccess,
		}
	default:
		return &discordgo.MessageEmbed{
			Title:       "🎯 Results",
			Description: "When a clip's voting window closes, the correct rank and the vote distribution are posted here.",
			Color:       colorInfo,
		}
	}
}

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}

func relative(t time.Time) string {
	return fmt.Sprintf("<t:%d:R>", t.Unix())
}
