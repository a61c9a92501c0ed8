package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"guessrank/internal/api"
	"guessrank/internal/config"
	"guessrank/internal/intake"
	"guessrank/internal/logging"
	"guessrank/internal/metrics"
	"guessrank/internal/moderation"
	"guessrank/internal/stage"
	"guessrank/internal/voting"
	"guessrank/internal/workflow"
)

// Intents the bot identifies with.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsGuildMessageReactions |
	discordgo.IntentsDirectMessages |
	discordgo.IntentsMessageContent

// NewSession creates a gateway session authenticated with token.
func NewSession(token string) (*discordgo.Session, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	dg.Identify.Intents = Intents
	return dg, nil
}

// Deps bundles the services the bot routes events to.
type Deps struct {
	Config     *config.Config
	Surface    *Surface
	Intake     *intake.Service
	Workflow   *workflow.Manager
	Moderation *moderation.Service
	Voting     *voting.Service
	Commands   *api.Service
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// Bot translates gateway events into service calls.
type Bot struct {
	deps    Deps
	dg      *discordgo.Session
	session Session
	logger  *slog.Logger

	mu     sync.RWMutex
	selfID string
	ctx    context.Context

	wg       sync.WaitGroup
	removers []func()
}

// NewBot wires a bot. dg may be nil when only the handlers are exercised.
func NewBot(dg *discordgo.Session, session Session, deps Deps) *Bot {
	if session == nil && dg != nil {
		session = dg
	}
	return &Bot{
		deps:    deps,
		dg:      dg,
		session: session,
		logger:  logging.NewComponentLogger(deps.Logger, "discord-bot"),
		ctx:     context.Background(),
	}
}

// Start registers handlers, opens the gateway, and installs slash commands.
// Work started by events is bound to ctx.
func (b *Bot) Start(ctx context.Context) error {
	if b.dg == nil {
		return fmt.Errorf("discord session not configured")
	}
	b.mu.Lock()
	b.ctx = ctx
	b.mu.Unlock()

	b.removers = append(b.removers,
		b.dg.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) { b.onReady(r) }),
		b.dg.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) { b.onMessage(m.Message) }),
		b.dg.AddHandler(func(_ *discordgo.Session, r *discordgo.MessageReactionAdd) { b.onReaction(r) }),
		b.dg.AddHandler(func(_ *discordgo.Session, i *discordgo.InteractionCreate) { b.onInteraction(i.Interaction) }),
	)
	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	if err := b.registerCommands(ctx); err != nil {
		_ = b.dg.Close()
		return err
	}
	return nil
}

// Stop closes the gateway and waits for in-flight submissions.
func (b *Bot) Stop() {
	for _, remove := range b.removers {
		remove()
	}
	b.removers = nil
	if b.dg != nil {
		if err := b.dg.Close(); err != nil {
			b.logger.Warn("discord gateway close failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "discord_close_failed"),
				logging.String(logging.FieldErrorHint, "none; the process is exiting"),
			)
		}
	}
	b.wg.Wait()
}

// GatewayHealth reports whether dg has an established gateway session.
func GatewayHealth(dg *discordgo.Session) stage.Checker {
	return stage.CheckerFunc(func(context.Context) stage.Health {
		if dg == nil || !dg.DataReady {
			return stage.Unhealthy("discord", "gateway not connected")
		}
		return stage.Healthy("discord")
	})
}

func (b *Bot) registerCommands(ctx context.Context) error {
	if b.dg.State == nil || b.dg.State.User == nil {
		return fmt.Errorf("register slash commands: application user unknown")
	}
	appID := b.dg.State.User.ID
	guilds := b.deps.Config.Discord.CommandGuildIDs
	if len(guilds) == 0 {
		guilds = []string{""}
	}
	for _, guildID := range guilds {
		if _, err := b.dg.ApplicationCommandBulkOverwrite(appID, guildID, commandDefinitions(), discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("register slash commands (guild %q): %w", guildID, err)
		}
	}
	b.logger.Info("slash commands registered",
		logging.Int("scopes", len(guilds)),
		logging.Int("commands", len(commandDefinitions())),
		logging.String(logging.FieldEventType, "commands_registered"),
	)
	return nil
}

func (b *Bot) onReady(r *discordgo.Ready) {
	b.mu.Lock()
	b.selfID = r.User.ID
	b.mu.Unlock()
	b.logger.Info("discord gateway ready",
		logging.String("user", r.User.Username),
		logging.Int("guilds", len(r.Guilds)),
		logging.String(logging.FieldEventType, "discord_ready"),
	)
}

func (b *Bot) self() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.selfID
}

func (b *Bot) context() context.Context {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ctx
}

// onMessage routes DMs to intake and guild messages to pending reason
// prompts.
func (b *Bot) onMessage(m *discordgo.Message) {
	if m == nil || m.Author == nil || m.Author.Bot || m.Author.ID == b.self() {
		return
	}
	if m.GuildID != "" {
		if b.deps.Surface != nil {
			b.deps.Surface.DeliverReason(m.ChannelID, m.Author.ID, m.Content)
		}
		return
	}
	b.handleDirectMessage(b.context(), m)
}

// onReaction turns moderator ✅/❌ reactions into decisions. Reactions on
// messages that are not pending reviews are ignored by moderation.
func (b *Bot) onReaction(r *discordgo.MessageReactionAdd) {
	if r.GuildID == "" || r.UserID == b.self() {
		return
	}
	if r.Member != nil && r.Member.User != nil && r.Member.User.Bot {
		return
	}
	var decide func(context.Context, string, string, string) (moderation.Decision, error)
	switch r.Emoji.Name {
	case moderation.EmojiApprove:
		decide = b.deps.Moderation.Approve
	case moderation.EmojiReject:
		decide = b.deps.Moderation.Reject
	default:
		return
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx := b.context()
		if _, err := decide(ctx, r.GuildID, r.MessageID, r.UserID); err != nil {
			logging.WarnWithContext(b.logger, "moderation decision failed", "moderation_failed",
				logging.String("guild_id", r.GuildID),
				logging.String("message_id", r.MessageID),
				logging.String("moderator_id", r.UserID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "remove and re-add the reaction to retry"),
				logging.String(logging.FieldImpact, "the clip stays pending"),
			)
		}
	}()
}
