// Package bot turns gateway events into token issuance
package bot

import (
	"context"
	"ocf/verifybot/internal/platform"
	"ocf/verifybot/internal/service"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Register attaches the event handlers. It has to be called before the
// session is opened.
func Register(s *discordgo.Session, i *service.Issuer) {
	s.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		zap.L().Info("Connected to Discord",
			zap.String("user", r.User.Username),
			zap.Int("guilds", len(r.Guilds)))
	})

	s.AddHandler(func(_ *discordgo.Session, m *discordgo.GuildMemberAdd) {
		ev, ok := joinEvent(m)
		if !ok {
			return
		}

		// Errors are logged by the issuer, the member just doesn't get a link
		_ = i.MemberJoined(context.Background(), ev)
	})

	s.AddHandler(func(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
		self := ""
		if s.State != nil && s.State.User != nil {
			self = s.State.User.ID
		}

		ev, ok := reactionEvent(r, self)
		if !ok {
			return
		}

		_ = i.ReactionAdded(context.Background(), ev)
	})
}

func joinEvent(m *discordgo.GuildMemberAdd) (service.JoinEvent, bool) {
	if m.Member == nil || m.User == nil || m.User.Bot {
		return service.JoinEvent{}, false
	}

	return service.JoinEvent{
		RealmID: m.GuildID,
		Member:  platform.FromDiscordMember(m.Member),
	}, true
}

func reactionEvent(r *discordgo.MessageReactionAdd, self string) (service.ReactionEvent, bool) {
	if r.MessageReaction == nil || r.UserID == self {
		return service.ReactionEvent{}, false
	}

	if r.Member != nil && r.Member.User != nil && r.Member.User.Bot {
		return service.ReactionEvent{}, false
	}

	return service.ReactionEvent{
		RealmID:   r.GuildID,
		MessageID: r.MessageID,
		UserID:    r.UserID,
		Emoji:     r.Emoji.APIName(),
	}, true
}
