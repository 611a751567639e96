package discord

import "github.com/bwmarrin/discordgo"

// ChannelLookup resolves a channel id within a guild. Implementations may
// consult the state cache or the REST API.
type ChannelLookup func(guildID, channelID string) (*discordgo.Channel, error)

// ResolveTarget picks the delivery channel. Priority: the explicit command
// option wins unconditionally; then the configured default id when it
// resolves inside the invoking guild (lookup failures are skipped, not
// surfaced); then the channel the command was invoked from. Returns nil
// only when all three are absent.
func ResolveTarget(explicit *discordgo.Channel, defaultID, guildID, invokedChannelID string, lookup ChannelLookup) *discordgo.Channel {
	if explicit != nil {
		return explicit
	}
	if defaultID != "" && lookup != nil {
		if ch, err := lookup(guildID, defaultID); err == nil && ch != nil {
			return ch
		}
	}
	if invokedChannelID != "" {
		return &discordgo.Channel{ID: invokedChannelID, GuildID: guildID}
	}
	return nil
}
