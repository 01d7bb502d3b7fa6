package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
)

type Discord struct {
	S *discordgo.Session
}

// NewDiscord creates a bot session with the intents needed to see joins and
// reactions. The session isn't opened here.
func NewDiscord(token string) (*Discord, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session, %w", err)
	}

	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessageReactions

	return &Discord{S: s}, nil
}

func (d *Discord) SendDirectMessage(ctx context.Context, userID, content string) error {
	ch, err := d.S.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to open DM channel, %w", err)
	}

	if _, err := d.S.ChannelMessageSend(ch.ID, content, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to send DM, %w", err)
	}

	return nil
}

func (d *Discord) Member(ctx context.Context, realmID, userID string) (*Member, error) {
	m, err := d.S.GuildMember(realmID, userID, discordgo.WithContext(ctx))
	if err != nil {
		if isUnknownMember(err) {
			return nil, ErrNotMember
		}

		return nil, err
	}

	return FromDiscordMember(m), nil
}

// AddRole is idempotent on Discord's side, adding a role twice is a no-op.
func (d *Discord) AddRole(ctx context.Context, realmID, userID, roleID string) error {
	err := d.S.GuildMemberRoleAdd(realmID, userID, roleID, discordgo.WithContext(ctx))
	if err != nil && isUnknownMember(err) {
		return ErrNotMember
	}

	return err
}

func (d *Discord) PostNotice(ctx context.Context, channelID string, n Notice) error {
	embed := &discordgo.MessageEmbed{Title: n.Title}
	for _, f := range n.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Inline,
		})
	}

	_, err := d.S.ChannelMessageSendEmbed(channelID, embed, discordgo.WithContext(ctx))
	return err
}

// FromDiscordMember converts API and event payload members
func FromDiscordMember(m *discordgo.Member) *Member {
	out := &Member{Roles: m.Roles}
	if m.User != nil {
		out.ID = m.User.ID
		out.DisplayName = m.User.Username
		out.Bot = m.User.Bot
	}

	return out
}

func isUnknownMember(err error) bool {
	var rest *discordgo.RESTError
	if !errors.As(err, &rest) {
		return false
	}

	if rest.Message != nil && (rest.Message.Code == discordgo.ErrCodeUnknownMember || rest.Message.Code == discordgo.ErrCodeUnknownUser) {
		return true
	}

	return rest.Response != nil && rest.Response.StatusCode == http.StatusNotFound
}
