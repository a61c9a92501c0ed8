package discord

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"

	"guessrank/internal/intake"
	"guessrank/internal/logging"
	"guessrank/internal/services"
	"guessrank/internal/store"
	"guessrank/internal/transform"
)

const emojiWorking = "⏳"

// sourceOf picks the clip in a DM: the first attachment, else the first
// link in the message text.
func sourceOf(m *discordgo.Message) (intake.Source, bool) {
	if len(m.Attachments) > 0 {
		a := m.Attachments[0]
		return intake.Source{URL: a.URL, Filename: a.Filename, ContentType: a.ContentType, Size: int64(a.Size)}, true
	}
	for _, field := range strings.Fields(m.Content) {
		field = strings.Trim(field, "<>")
		if strings.HasPrefix(field, "https://") || strings.HasPrefix(field, "http://") {
			return intake.Source{URL: field, Link: true}, true
		}
	}
	return intake.Source{}, false
}

func (b *Bot) handleDirectMessage(ctx context.Context, m *discordgo.Message) {
	src, ok := sourceOf(m)
	if !ok {
		b.reply(ctx, m, &discordgo.MessageSend{Content: "📹 Please send a video (.mp4, .avi, .mov, etc.) or a link to one to use the bot!"})
		return
	}
	if err := b.session.MessageReactionAdd(m.ChannelID, m.ID, emojiWorking, discordgo.WithContext(ctx)); err != nil {
		b.logger.Debug("working reaction failed", logging.Error(err))
	}
	sub, err := b.deps.Intake.Begin(ctx, intake.Submitter{
		ID:          m.Author.ID,
		Name:        m.Author.Username,
		DMChannelID: m.ChannelID,
		DMMessageID: m.ID,
	}, src)
	if rerr := b.session.MessageReactionRemove(m.ChannelID, m.ID, emojiWorking, "@me", discordgo.WithContext(ctx)); rerr != nil {
		b.logger.Debug("working reaction not removed", logging.Error(rerr))
	}
	if err != nil {
		b.deps.Metrics.Submission(services.Kind(err))
		logging.WarnWithContext(b.logger, "submission refused", "submission_refused",
			logging.String(logging.FieldUserID, m.Author.ID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the submitter was told why"),
		)
		b.reply(ctx, m, &discordgo.MessageSend{Content: "❌ " + services.UserMessage(err)})
		return
	}

	if sub.Phase == intake.PhaseSelectGuild {
		b.reply(ctx, m, &discordgo.MessageSend{
			Embeds:     []*discordgo.MessageEmbed{guildSelectionEmbed()},
			Components: guildPicker(sub.ID, sub.Candidates, b.guildNames(ctx, sub.Candidates)),
		})
		return
	}
	b.reply(ctx, m, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{rankSelectionEmbed(b.deps.Config.Discord.VotingChannelName)},
		Components: rankPicker(sub.ID, b.deps.Config.Voting.RankEmojis),
	})
}

func (b *Bot) guildNames(ctx context.Context, ids []string) map[string]string {
	names := make(map[string]string, len(ids))
	for _, id := range ids {
		g, err := b.session.Guild(id, discordgo.WithContext(ctx))
		if err != nil || g == nil {
			continue
		}
		names[id] = g.Name
	}
	return names
}

func (b *Bot) reply(ctx context.Context, m *discordgo.Message, data *discordgo.MessageSend) {
	data.Reference = m.Reference()
	if _, err := b.session.ChannelMessageSendComplex(m.ChannelID, data, discordgo.WithContext(ctx)); err != nil {
		logging.WarnWithContext(b.logger, "dm reply failed", "dm_failed",
			logging.String(logging.FieldUserID, m.Author.ID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the user may have DMs disabled"),
		)
	}
}

// process runs a ready submission in the background, reporting to the
// submitter's DM channel.
func (b *Bot) process(sub intake.Submission) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx := b.context()
		rep := &dmReporter{ctx: ctx, session: b.session, sub: sub, bot: b}
		_, _ = b.deps.Workflow.Process(ctx, sub, rep)
	}()
}

// SubmissionExpired tells the submitter their selection timed out.
func (b *Bot) SubmissionExpired(sub intake.Submission) {
	if sub.DMChannelID == "" {
		return
	}
	ctx := b.context()
	text := "⌛ Your submission timed out before a selection was made. Send the clip again to start over."
	if _, err := b.session.ChannelMessageSendComplex(sub.DMChannelID, &discordgo.MessageSend{Content: text}, discordgo.WithContext(ctx)); err != nil {
		b.logger.Debug("expiry dm failed", logging.String(logging.FieldSubmissionID, sub.ID), logging.Error(err))
	}
}

// dmReporter keeps one status message in the DM up to date.
type dmReporter struct {
	ctx     context.Context
	session Session
	sub     intake.Submission
	bot     *Bot

	mu        sync.Mutex
	messageID string
}

func (r *dmReporter) Queued(position int) {
	if position <= 0 {
		return
	}
	r.status(fmt.Sprintf("%s Your clip is #%d in the processing queue.", emojiWorking, position))
}

func (r *dmReporter) Processing() {
	r.status(fmt.Sprintf("%s Processing your clip as **%s**...", emojiWorking, r.sub.ClaimedRank))
}

func (r *dmReporter) Submitted(store.PendingClip, transform.Result) {
	r.status("✅ Your clip was submitted for moderation! You'll get a DM when a moderator reviews it.")
	if r.sub.DMMessageID != "" {
		_ = r.session.MessageReactionAdd(r.sub.DMChannelID, r.sub.DMMessageID, "✅", discordgo.WithContext(r.ctx))
	}
}

func (r *dmReporter) Failed(err error) {
	r.status("❌ " + services.UserMessage(err))
}

func (r *dmReporter) status(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.messageID != "" {
		_, err := r.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
			ID:      r.messageID,
			Channel: r.sub.DMChannelID,
			Content: &text,
		}, discordgo.WithContext(r.ctx))
		if err == nil {
			return
		}
	}
	msg, err := r.session.ChannelMessageSendComplex(r.sub.DMChannelID, &discordgo.MessageSend{Content: text}, discordgo.WithContext(r.ctx))
	if err != nil {
		r.bot.logger.Debug("status dm failed", logging.String(logging.FieldSubmissionID, r.sub.ID), logging.Error(err))
		return
	}
	r.messageID = msg.ID
}
