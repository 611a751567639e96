// Package discord wires the snapshot pipeline to the Discord gateway:
// session setup, slash-command sync, and interaction dispatch.
package discord

import (
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/sgtesuark/discord-role-snapshot-bot/internal/config"
	"github.com/sgtesuark/discord-role-snapshot-bot/internal/i18n"
)

// Bot manages the Discord session lifecycle and command dispatch.
type Bot struct {
	session *discordgo.Session
	cfg     *config.Config
	cat     *i18n.Catalog
	snap    *Snapshotter
	log     *slog.Logger
}

// NewBot creates and configures the bot. The members intent is privileged
// and must be enabled for the application.
func NewBot(cfg *config.Config, cat *i18n.Catalog, log *slog.Logger) (*Bot, error) {
	s, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, err
	}

	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers

	b := &Bot{
		session: s,
		cfg:     cfg,
		cat:     cat,
		snap:    NewSnapshotter(cfg, cat, log),
		log:     log,
	}

	s.AddHandler(b.onReady)
	s.AddHandler(b.onInteractionCreate)

	return b, nil
}

// Start opens the Discord gateway connection.
func (b *Bot) Start() error {
	return b.session.Open()
}

// Stop closes the gateway connection.
func (b *Bot) Stop() {
	if err := b.session.Close(); err != nil {
		b.log.Warn("gateway close failed", "error", err)
	}
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	if err := b.registerCommands(s); err != nil {
		b.log.Error("slash command sync failed", "error", err)
	}
	b.log.Info("logged in",
		"user", r.User.Username,
		"tz", b.cfg.Timezone,
		"tz_valid", b.cfg.TZValid,
		"using", b.cfg.Location.String())
	if !b.cfg.TZValid {
		b.log.Warn("invalid SNAPBOT_TZ in use, falling back to UTC", "tz", b.cfg.Timezone)
	}
}

func (b *Bot) registerCommands(s *discordgo.Session) error {
	cmd := &discordgo.ApplicationCommand{
		Name:        commandName,
		Description: b.cat.T("en", "cmd.description", nil),
		DescriptionLocalizations: &map[discordgo.Locale]string{
			discordgo.German: b.cat.T("de", "cmd.description", nil),
		},
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionRole,
				Name:        "role",
				Description: b.cat.T("en", "arg.role", nil),
				DescriptionLocalizations: map[discordgo.Locale]string{
					discordgo.German: b.cat.T("de", "arg.role", nil),
				},
				Required: true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionChannel,
				Name:        "channel",
				Description: b.cat.T("en", "arg.channel", nil),
				DescriptionLocalizations: map[discordgo.Locale]string{
					discordgo.German: b.cat.T("de", "arg.channel", nil),
				},
				ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
			},
		},
	}
	_, err := s.ApplicationCommandCreate(s.State.User.ID, "", cmd)
	return err
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	if i.ApplicationCommandData().Name != commandName {
		return
	}
	b.snap.Handle(&liveSession{s}, i)
}

// liveSession adapts *discordgo.Session to the pipeline's transport
// interface; the session already provides the REST methods directly.
type liveSession struct {
	*discordgo.Session
}

func (l *liveSession) BotUserID() string {
	if l.State != nil && l.State.User != nil {
		return l.State.User.ID
	}
	return ""
}

// GuildChannel looks a channel up in the state cache first, then over
// REST, and rejects channels belonging to another guild.
func (l *liveSession) GuildChannel(guildID, channelID string) (*discordgo.Channel, error) {
	if ch, err := l.State.Channel(channelID); err == nil && ch.GuildID == guildID {
		return ch, nil
	}
	ch, err := l.Session.Channel(channelID)
	if err != nil {
		return nil, err
	}
	if ch.GuildID != guildID {
		return nil, fmt.Errorf("channel %s not in guild %s", channelID, guildID)
	}
	return ch, nil
}
