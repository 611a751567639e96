package discord

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/sgtesuark/discord-role-snapshot-bot/internal/config"
	"github.com/sgtesuark/discord-role-snapshot-bot/internal/i18n"
	"github.com/sgtesuark/discord-role-snapshot-bot/internal/snapshot"
)

const commandName = "snapshot"

const restPageSize = 1000

// transport is the slice of the Discord session the pipeline talks to.
// *liveSession implements it in production; tests substitute a fake.
type transport interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	UserChannelPermissions(userID, channelID string, fetchOptions ...discordgo.RequestOption) (int64, error)
	GuildMembers(guildID, after string, limit int, options ...discordgo.RequestOption) ([]*discordgo.Member, error)
	RequestGuildMembers(guildID, query string, limit int, nonce string, presences bool) error
	BotUserID() string
	GuildChannel(guildID, channelID string) (*discordgo.Channel, error)
}

// Snapshotter runs the /snapshot delivery pipeline. Catalog and config are
// read-only, so concurrent invocations share it without locking.
type Snapshotter struct {
	cfg *config.Config
	cat *i18n.Catalog
	log *slog.Logger
	now func() time.Time
}

func NewSnapshotter(cfg *config.Config, cat *i18n.Catalog, log *slog.Logger) *Snapshotter {
	return &Snapshotter{cfg: cfg, cat: cat, log: log, now: time.Now}
}

// failure maps a pipeline stage's error path to one localized reply.
type failure struct {
	key    string
	params i18n.Params
}

// abortSilently stops the pipeline without a user-facing reply. Only used
// for malformed interactions that command registration rules out.
var abortSilently = &failure{}

// invocation is the per-command state threaded through the stages. Each
// invocation runs to completion on its own; nothing here is shared.
type invocation struct {
	ts    transport
	i     *discordgo.InteractionCreate
	lang  string
	acked bool

	role     *discordgo.Role
	explicit *discordgo.Channel
	target   *discordgo.Channel
	members  []*discordgo.Member
	stamp    string
	artifact []byte
	filename string
}

// Handle executes the pipeline as an explicit stage sequence. The first
// failing stage produces exactly one ephemeral reply and stops; nothing
// after the deferred ack reaches the public channel except the final
// message+file send itself.
func (sn *Snapshotter) Handle(ts transport, i *discordgo.InteractionCreate) {
	inv := &invocation{ts: ts, i: i}
	inv.lang = sn.cat.Resolve(sn.cfg.ForcedLang, interactionLocales(i)...)

	sn.log.Debug("snapshot requested", "guild", i.GuildID, "lang", inv.lang)

	if !sn.cfg.TZValid {
		inv.reply(sn.t(inv, "warn.invalid_tz", i18n.Params{"tz": sn.cfg.Timezone}))
	}

	steps := []func(*invocation) *failure{
		sn.checkInvoker,
		sn.acknowledge,
		sn.requireGuild,
		sn.parseOptions,
		sn.resolveTarget,
		sn.gatherMembers,
		sn.buildArtifact,
		sn.checkBotPermissions,
		sn.send,
	}
	for _, step := range steps {
		if f := step(inv); f != nil {
			if f != abortSilently {
				inv.reply(sn.t(inv, f.key, f.params))
			}
			return
		}
	}

	sn.log.Info("snapshot posted", "guild", i.GuildID, "role", inv.role.ID,
		"channel", inv.target.ID, "members", len(inv.members))
	inv.reply(sn.t(inv, "ok.posted", i18n.Params{"channel": channelMention(inv.target)}))
}

// checkInvoker requires the Manage Server flag before anything else runs;
// a denied invocation has no side effects at all.
func (sn *Snapshotter) checkInvoker(inv *invocation) *failure {
	m := inv.i.Member
	if m == nil || m.Permissions&discordgo.PermissionManageServer == 0 {
		return &failure{key: "err.need_manage_guild"}
	}
	return nil
}

// acknowledge defers the response before any slow work so the interaction
// cannot time out. The tz warning may already have acked.
func (sn *Snapshotter) acknowledge(inv *invocation) *failure {
	inv.ack()
	return nil
}

func (sn *Snapshotter) requireGuild(inv *invocation) *failure {
	if inv.i.GuildID == "" {
		return &failure{key: "err.guild_only"}
	}
	return nil
}

// parseOptions pulls the role and the optional channel out of the command
// data, preferring the resolved entities delivered with the interaction.
func (sn *Snapshotter) parseOptions(inv *invocation) *failure {
	data := inv.i.ApplicationCommandData()
	for _, opt := range data.Options {
		id, _ := opt.Value.(string)
		if id == "" {
			continue
		}
		switch opt.Name {
		case "role":
			inv.role = &discordgo.Role{ID: id}
			if data.Resolved != nil {
				if r, ok := data.Resolved.Roles[id]; ok {
					inv.role = r
				}
			}
		case "channel":
			inv.explicit = &discordgo.Channel{ID: id}
			if data.Resolved != nil {
				if ch, ok := data.Resolved.Channels[id]; ok {
					inv.explicit = ch
				}
			}
		}
	}
	if inv.role == nil {
		sn.log.Warn("snapshot interaction without role option", "guild", inv.i.GuildID)
		return abortSilently
	}
	return nil
}

func (sn *Snapshotter) resolveTarget(inv *invocation) *failure {
	inv.target = ResolveTarget(inv.explicit, sn.cfg.DefaultChannelID,
		inv.i.GuildID, inv.i.ChannelID, inv.ts.GuildChannel)
	if inv.target == nil {
		return &failure{key: "err.no_target_channel"}
	}
	return nil
}

// gatherMembers populates the member list best-effort: a gateway chunk
// request is fired, then the REST list is paged. Both can fail without
// failing the snapshot; a partial list is acceptable.
func (sn *Snapshotter) gatherMembers(inv *invocation) *failure {
	guildID := inv.i.GuildID
	if err := inv.ts.RequestGuildMembers(guildID, "", 0, "", false); err != nil {
		sn.log.Debug("guild chunk request failed", "guild", guildID, "error", err)
	}

	var all []*discordgo.Member
	after := ""
	for {
		page, err := inv.ts.GuildMembers(guildID, after, restPageSize)
		if err != nil {
			sn.log.Warn("member fetch incomplete", "guild", guildID, "error", err)
			break
		}
		if len(page) == 0 {
			break
		}
		all = append(all, page...)
		if len(page) < restPageSize {
			break
		}
		after = page[len(page)-1].User.ID
	}

	for _, m := range all {
		if m.User == nil {
			continue
		}
		if slices.Contains(m.Roles, inv.role.ID) {
			inv.members = append(inv.members, m)
		}
	}
	return nil
}

// buildArtifact captures the instant once, formats it, and renders the
// CSV plus its filename. The artifact lives only until the send stage.
func (sn *Snapshotter) buildArtifact(inv *invocation) *failure {
	when := sn.now()
	inv.stamp = snapshot.FormatTimestamp(when, inv.lang, sn.cfg.Location, sn.cfg.DateFormat)

	rows := make([]snapshot.Row, 0, len(inv.members))
	for _, m := range inv.members {
		rows = append(rows, snapshot.Row{
			Timestamp: inv.stamp,
			Name:      displayName(m),
			ID:        m.User.ID,
		})
	}
	headers := [3]string{
		sn.t(inv, "csv.header.timestamp", nil),
		sn.t(inv, "csv.header.username", nil),
		sn.t(inv, "csv.header.discord_id", nil),
	}
	inv.artifact = snapshot.RenderCSV(headers, rows)
	inv.filename = snapshot.Filename(inv.role.Name, when)
	return nil
}

// checkBotPermissions verifies view/send/attach on the target before any
// send is attempted. A failed permission lookup is not fatal; the send
// stage will surface a real denial.
func (sn *Snapshotter) checkBotPermissions(inv *invocation) *failure {
	perms, err := inv.ts.UserChannelPermissions(inv.ts.BotUserID(), inv.target.ID)
	if err != nil {
		return nil
	}
	need := int64(discordgo.PermissionViewChannel | discordgo.PermissionSendMessages | discordgo.PermissionAttachFiles)
	if perms&need != need {
		return &failure{key: "err.missing_perms", params: i18n.Params{"channel": channelMention(inv.target)}}
	}
	return nil
}

// send posts message and file as one call, with all implicit mentions
// suppressed, so no partial public state can be left behind.
func (sn *Snapshotter) send(inv *invocation) *failure {
	content := sn.t(inv, "post.header", i18n.Params{
		"role_id": inv.role.ID,
		"count":   strconv.Itoa(len(inv.members)),
	}) + "\n" + sn.t(inv, "post.timestamp", i18n.Params{"timestamp": inv.stamp})

	_, err := inv.ts.ChannelMessageSendComplex(inv.target.ID, &discordgo.MessageSend{
		Content: content,
		Files: []*discordgo.File{{
			Name:        inv.filename,
			ContentType: "text/csv",
			Reader:      bytes.NewReader(inv.artifact),
		}},
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	})
	if err != nil {
		if isForbidden(err) {
			return &failure{key: "err.send_forbidden", params: i18n.Params{"channel": channelMention(inv.target)}}
		}
		return &failure{key: "err.unexpected_send", params: i18n.Params{"error": err.Error()}}
	}
	return nil
}

func (sn *Snapshotter) t(inv *invocation, key string, params i18n.Params) string {
	return sn.cat.T(inv.lang, key, params)
}

// reply sends an ephemeral message to the invoker, as the interaction
// response when nothing has been sent yet, as a followup otherwise.
func (inv *invocation) reply(content string) {
	if !inv.acked {
		err := inv.ts.InteractionRespond(inv.i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: content,
				Flags:   discordgo.MessageFlagsEphemeral,
			},
		})
		if err == nil {
			inv.acked = true
			return
		}
	}
	_, _ = inv.ts.FollowupMessageCreate(inv.i.Interaction, true, &discordgo.WebhookParams{
		Content: content,
		Flags:   discordgo.MessageFlagsEphemeral,
	})
}

// ack defers the interaction response ephemerally.
func (inv *invocation) ack() {
	if inv.acked {
		return
	}
	err := inv.ts.InteractionRespond(inv.i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err == nil {
		inv.acked = true
	}
}

func interactionLocales(i *discordgo.InteractionCreate) []string {
	hints := []string{string(i.Locale)}
	if i.GuildLocale != nil {
		hints = append(hints, string(*i.GuildLocale))
	}
	return hints
}

func displayName(m *discordgo.Member) string {
	if m.Nick != "" {
		return m.Nick
	}
	if m.User.GlobalName != "" {
		return m.User.GlobalName
	}
	return m.User.Username
}

func channelMention(ch *discordgo.Channel) string {
	return "<#" + ch.ID + ">"
}

func isForbidden(err error) bool {
	var rerr *discordgo.RESTError
	return errors.As(err, &rerr) && rerr.Response != nil && rerr.Response.StatusCode == http.StatusForbidden
}
