package discordrpc

import (
	"context"
	"encoding/json"
	"time"
)

// Guild is a guild as returned by GET_GUILD and GET_GUILDS.
type Guild struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	IconURL string        `json:"icon_url,omitempty"`
	Members []GuildMember `json:"members,omitempty"`
}

// GuildMember is a member listed in a GET_GUILD response.
type GuildMember struct {
	User   User   `json:"user"`
	Status string `json:"status,omitempty"`
}

// Channel is a channel as returned by GET_CHANNEL and GET_CHANNELS.
type Channel struct {
	ID          string            `json:"id"`
	GuildID     string            `json:"guild_id,omitempty"`
	Name        string            `json:"name"`
	Type        int               `json:"type"`
	Topic       string            `json:"topic,omitempty"`
	Bitrate     int               `json:"bitrate,omitempty"`
	UserLimit   int               `json:"user_limit,omitempty"`
	Position    int               `json:"position,omitempty"`
	VoiceStates []json.RawMessage `json:"voice_states,omitempty"`
	Messages    []json.RawMessage `json:"messages,omitempty"`
}

// Relationship is an entry of GET_RELATIONSHIPS with its type resolved to a name.
type Relationship struct {
	Type     string          `json:"type"`
	User     User            `json:"user"`
	Presence json.RawMessage `json:"presence,omitempty"`
}

type guildArgs struct {
	GuildID string `json:"guild_id,omitempty"`
	Timeout int    `json:"timeout,omitempty"`
}

type channelArgs struct {
	ChannelID string `json:"channel_id"`
	Timeout   int    `json:"timeout,omitempty"`
	Force     bool   `json:"force,omitempty"`
}

// seconds converts a request timeout to the whole seconds Discord expects.
func seconds(d time.Duration) int {
	return int(d / time.Second)
}

// GetGuild fetches a guild. A zero timeout leaves the server default.
func (c *Client) GetGuild(ctx context.Context, id string, timeout time.Duration) (*Guild, error) {
	var g Guild
	if err := c.request(ctx, CmdGetGuild, guildArgs{GuildID: id, Timeout: seconds(timeout)}, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// GetGuilds lists the guilds of the user.
func (c *Client) GetGuilds(ctx context.Context, timeout time.Duration) ([]Guild, error) {
	var resp struct {
		Guilds []Guild `json:"guilds"`
	}
	if err := c.request(ctx, CmdGetGuilds, guildArgs{Timeout: seconds(timeout)}, &resp); err != nil {
		return nil, err
	}
	return resp.Guilds, nil
}

// GetChannel fetches a channel.
func (c *Client) GetChannel(ctx context.Context, id string, timeout time.Duration) (*Channel, error) {
	var ch Channel
	if err := c.request(ctx, CmdGetChannel, channelArgs{ChannelID: id, Timeout: seconds(timeout)}, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// GetChannels lists the channels of a guild.
func (c *Client) GetChannels(ctx context.Context, guildID string, timeout time.Duration) ([]Channel, error) {
	var resp struct {
		Channels []Channel `json:"channels"`
	}
	if err := c.request(ctx, CmdGetChannels, guildArgs{GuildID: guildID, Timeout: seconds(timeout)}, &resp); err != nil {
		return nil, err
	}
	return resp.Channels, nil
}

// SelectVoiceChannel moves the user to a voice channel. force switches even
// when the user is already in another voice channel.
func (c *Client) SelectVoiceChannel(ctx context.Context, id string, timeout time.Duration, force bool) (*Channel, error) {
	var ch Channel
	if err := c.request(ctx, CmdSelectVoiceChannel, channelArgs{ChannelID: id, Timeout: seconds(timeout), Force: force}, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// SelectTextChannel opens a text channel in the Discord client.
func (c *Client) SelectTextChannel(ctx context.Context, id string, timeout time.Duration) (*Channel, error) {
	var ch Channel
	if err := c.request(ctx, CmdSelectTextChannel, channelArgs{ChannelID: id, Timeout: seconds(timeout)}, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// GetRelationships lists the relationships of the user.
func (c *Client) GetRelationships(ctx context.Context) ([]Relationship, error) {
	var resp struct {
		Relationships []struct {
			Type     int             `json:"type"`
			User     User            `json:"user"`
			Presence json.RawMessage `json:"presence,omitempty"`
		} `json:"relationships"`
	}
	if err := c.request(ctx, CmdGetRelationships, nil, &resp); err != nil {
		return nil, err
	}

	out := make([]Relationship, 0, len(resp.Relationships))
	for _, r := range resp.Relationships {
		out = append(out, Relationship{
			Type:     relationshipType(r.Type),
			User:     r.User,
			Presence: r.Presence,
		})
	}
	return out, nil
}

func relationshipType(t int) string {
	if t < 0 || t >= len(relationshipTypes) {
		return "UNKNOWN"
	}
	return relationshipTypes[t]
}
