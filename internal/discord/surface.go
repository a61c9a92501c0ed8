package discord

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/bwmarrin/discordgo"

	"guessrank/internal/config"
	"guessrank/internal/logging"
	"guessrank/internal/moderation"
	"guessrank/internal/notifications"
	"guessrank/internal/services"
	"guessrank/internal/store"
	"guessrank/internal/sweep"
)

// Rebinder persists a re-resolved channel ID.
type Rebinder interface {
	Rebind(ctx context.Context, guildID string, role store.ChannelRole, channelID string) error
}

// Surface posts reviews, votes, and results to Discord. It implements
// moderation.Surface, sweep.Announcer, and api.ChannelResolver.
type Surface struct {
	session  Session
	cfg      *config.Config
	rebinder Rebinder
	notifier notifications.Service
	client   *http.Client
	reasons  *reasonWaiters
	logger   *slog.Logger
}

var (
	_ moderation.Surface = (*Surface)(nil)
	_ sweep.Announcer    = (*Surface)(nil)
)

// NewSurface wires a Surface. notifier may be nil.
func NewSurface(session Session, cfg *config.Config, rebinder Rebinder, notifier notifications.Service, logger *slog.Logger) *Surface {
	if notifier == nil {
		notifier = notifications.NewService(&config.Config{})
	}
	return &Surface{
		session:  session,
		cfg:      cfg,
		rebinder: rebinder,
		notifier: notifier,
		client:   &http.Client{Timeout: cfg.TransformTimeout()},
		reasons:  newReasonWaiters(),
		logger:   logging.NewComponentLogger(logger, "discord"),
	}
}

// buildFunc produces a fresh message for each send attempt. done releases
// any readers the message holds.
type buildFunc func(ctx context.Context) (data *discordgo.MessageSend, done func(), err error)

func staticMessage(data *discordgo.MessageSend) buildFunc {
	return func(context.Context) (*discordgo.MessageSend, func(), error) {
		return data, func() {}, nil
	}
}

// PostReview sends review to the moderation channel and adds the ✅/❌
// controls.
func (s *Surface) PostReview(ctx context.Context, cfg store.GuildConfig, review moderation.Review) (moderation.Post, error) {
	build := func(context.Context) (*discordgo.MessageSend, func(), error) {
		data := &discordgo.MessageSend{Content: reviewContent(review)}
		if review.Media.URL != "" || review.LocalPath == "" {
			return data, func() {}, nil
		}
		f, err := os.Open(review.LocalPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open transformed clip: %w", err)
		}
		data.Files = []*discordgo.File{{Name: voteFileName, ContentType: "video/mp4", Reader: f}}
		return data, func() { _ = f.Close() }, nil
	}
	msg, err := s.sendTo(ctx, cfg, store.RoleModeration, build)
	if err != nil {
		return moderation.Post{}, err
	}
	post := postOf(msg)
	for _, emoji := range []string{moderation.EmojiApprove, moderation.EmojiReject} {
		if err := s.React(ctx, post, emoji); err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, s.logger), "could not add moderation reaction", "reaction_failed",
				logging.String("emoji", emoji),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the bot's Add Reactions permission"),
				logging.String(logging.FieldImpact, "moderators must add the reaction themselves"),
			)
		}
	}
	return post, nil
}

// PublishVote posts clip to the voting channel with the rank select. Clips
// hosted as Discord attachments are downloaded and re-attached; external
// links are posted as-is.
func (s *Surface) PublishVote(ctx context.Context, cfg store.GuildConfig, clip store.VotingClip) (moderation.Post, error) {
	build := func(ctx context.Context) (*discordgo.MessageSend, func(), error) {
		data := &discordgo.MessageSend{
			Content:    voteContent(clip),
			Components: voteComponents(clip.ID, s.cfg.Voting.RankEmojis),
		}
		if clip.Media.AttachmentName == "" || clip.Media.URL == "" {
			return data, func() {}, nil
		}
		body, err := s.download(ctx, clip.Media.URL)
		if err != nil {
			return nil, nil, err
		}
		data.Files = []*discordgo.File{{Name: voteFileName, ContentType: "video/mp4", Reader: body}}
		return data, func() { _ = body.Close() }, nil
	}
	msg, err := s.sendTo(ctx, cfg, store.RoleVoting, build)
	if err != nil {
		return moderation.Post{}, err
	}
	return postOf(msg), nil
}

// ReviewMedia returns the current link of the clip attached to review.
func (s *Surface) ReviewMedia(ctx context.Context, review moderation.Post) (store.MediaRef, error) {
	msg, err := s.session.ChannelMessage(review.ChannelID, review.MessageID, discordgo.WithContext(ctx))
	if err != nil {
		return store.MediaRef{}, fmt.Errorf("fetch review message: %w", err)
	}
	if len(msg.Attachments) == 0 {
		return store.MediaRef{}, fmt.Errorf("review message %s has no attachment", review.MessageID)
	}
	return store.MediaRef{URL: msg.Attachments[0].URL, AttachmentName: msg.Attachments[0].Filename}, nil
}

// download streams a hosted attachment, bounded by the attachment limit.
func (s *Surface) download(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download clip: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("download clip: status %d", resp.StatusCode)
	}
	limit := int64(s.cfg.Discord.MaxAttachmentMB) * 1024 * 1024
	return struct {
		io.Reader
		io.Closer
	}{io.LimitReader(resp.Body, limit), resp.Body}, nil
}

// Delete removes a posted message.
func (s *Surface) Delete(ctx context.Context, post moderation.Post) error {
	return s.session.ChannelMessageDelete(post.ChannelID, post.MessageID, discordgo.WithContext(ctx))
}

// React adds emoji to a posted message.
func (s *Surface) React(ctx context.Context, post moderation.Post, emoji string) error {
	return s.session.MessageReactionAdd(post.ChannelID, post.MessageID, emoji, discordgo.WithContext(ctx))
}

// DirectMessage sends text to userID's DM channel.
func (s *Surface) DirectMessage(ctx context.Context, userID, text string) error {
	ch, err := s.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("open dm channel: %w", err)
	}
	_, err = s.session.ChannelMessageSendComplex(ch.ID, &discordgo.MessageSend{Content: text}, discordgo.WithContext(ctx))
	return err
}

// DisableVoting strips the rank select from clip's vote post.
func (s *Surface) DisableVoting(ctx context.Context, clip store.VotingClip) error {
	if clip.ChannelID == "" || clip.MessageID == "" {
		return nil
	}
	content := voteContent(clip) + "\n\n⏰ Voting has ended. Results are in the results channel."
	components := []discordgo.MessageComponent{}
	_, err := s.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:         clip.MessageID,
		Channel:    clip.ChannelID,
		Content:    &content,
		Components: &components,
	}, discordgo.WithContext(ctx))
	return err
}

// AnnounceResults posts the tally of a closed clip to the results channel.
func (s *Surface) AnnounceResults(ctx context.Context, cfg store.GuildConfig, result sweep.Expired) error {
	data := &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{announcementEmbed(result, s.cfg.Voting.RankEmojis)}}
	_, err := s.sendTo(ctx, cfg, store.RoleResults, staticMessage(data))
	return err
}

// EnsureChannel finds a text channel called name in guildID or creates it
// with the role's topic and welcome message.
func (s *Surface) EnsureChannel(ctx context.Context, guildID string, role store.ChannelRole, name string) (string, bool, error) {
	if id, err := s.findChannel(ctx, guildID, name); err != nil {
		return "", false, err
	} else if id != "" {
		return id, false, nil
	}
	ch, err := s.session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:  name,
		Type:  discordgo.ChannelTypeGuildText,
		Topic: channelTopic(role),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", false, fmt.Errorf("create channel #%s: %w", name, err)
	}
	welcome := &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{welcomeEmbed(role, s.cfg.Discord.VotingChannelName)}}
	if _, err := s.session.ChannelMessageSendComplex(ch.ID, welcome, discordgo.WithContext(ctx)); err != nil {
		s.logger.Debug("welcome message not sent", logging.String("channel", name), logging.Error(err))
	}
	return ch.ID, true, nil
}

func (s *Surface) findChannel(ctx context.Context, guildID, name string) (string, error) {
	channels, err := s.session.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("list channels: %w", err)
	}
	for _, ch := range channels {
		if ch.Type == discordgo.ChannelTypeGuildText && strings.EqualFold(ch.Name, name) {
			return ch.ID, nil
		}
	}
	return "", nil
}

// sendTo posts to cfg's channel for role. An unknown-channel response
// triggers one lookup by stored name, a persisted rebind, and a retry.
func (s *Surface) sendTo(ctx context.Context, cfg store.GuildConfig, role store.ChannelRole, build buildFunc) (*discordgo.Message, error) {
	ref := cfg.Channel(role)
	if ref == nil || (ref.ID == "" && ref.Name == "") {
		return nil, services.Wrap(services.ErrConfiguration, "discord", "send", fmt.Sprintf("guild %s has no %s channel", cfg.GuildID, role), nil)
	}
	channelID := ref.ID
	if channelID != "" {
		msg, err := s.sendOnce(ctx, channelID, build)
		if !isUnknownChannel(err) {
			return msg, err
		}
	}
	channelID, err := s.reresolve(ctx, cfg.GuildID, role, ref.Name)
	if err != nil {
		return nil, err
	}
	return s.sendOnce(ctx, channelID, build)
}

func (s *Surface) sendOnce(ctx context.Context, channelID string, build buildFunc) (*discordgo.Message, error) {
	data, done, err := build(ctx)
	if err != nil {
		return nil, err
	}
	defer done()
	return s.session.ChannelMessageSendComplex(channelID, data, discordgo.WithContext(ctx))
}

func (s *Surface) reresolve(ctx context.Context, guildID string, role store.ChannelRole, name string) (string, error) {
	logger := logging.WithContext(services.WithGuildID(ctx, guildID), s.logger)
	id, err := s.findChannel(ctx, guildID, name)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", services.Describe(fmt.Sprintf("The #%s channel is missing. Ask an admin to run /setup.", name),
			services.Wrap(services.ErrConfiguration, "discord", "reresolve", fmt.Sprintf("no channel named %s", name), nil))
	}
	if s.rebinder != nil {
		if err := s.rebinder.Rebind(ctx, guildID, role, id); err != nil {
			logging.WarnWithContext(logger, "re-resolved channel not persisted", "channel_rebind_failed",
				logging.String("role", string(role)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "run /setup in the guild"),
				logging.String(logging.FieldImpact, "the next send repeats the lookup"),
			)
		}
	}
	logger.Info("channel re-resolved by name",
		logging.String("role", string(role)),
		logging.String("channel", name),
		logging.String("channel_id", id),
		logging.String(logging.FieldEventType, "channel_reresolved"),
	)
	if err := s.notifier.Publish(ctx, notifications.EventChannelReresolved, notifications.Payload{
		"role":  string(role),
		"guild": guildID,
		"name":  name,
	}); err != nil {
		logger.Debug("re-resolve notification failed", logging.Error(err))
	}
	return id, nil
}

func isUnknownChannel(err error) bool {
	var restErr *discordgo.RESTError
	return errors.As(err, &restErr) && restErr.Message != nil && restErr.Message.Code == discordgo.ErrCodeUnknownChannel
}

func postOf(msg *discordgo.Message) moderation.Post {
	post := moderation.Post{ChannelID: msg.ChannelID, MessageID: msg.ID}
	if len(msg.Attachments) > 0 {
		post.AttachmentURL = msg.Attachments[0].URL
		post.AttachmentName = msg.Attachments[0].Filename
	}
	return post
}
