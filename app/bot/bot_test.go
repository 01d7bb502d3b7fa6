package bot

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinEvent(t *testing.T) {
	ev, ok := joinEvent(&discordgo.GuildMemberAdd{Member: &discordgo.Member{
		GuildID: "R",
		User:    &discordgo.User{ID: "1001", Username: "alice#1"},
		Roles:   []string{"a"},
	}})
	require.True(t, ok)

	assert.Equal(t, "R", ev.RealmID)
	assert.Equal(t, "1001", ev.Member.ID)
	assert.Equal(t, "alice#1", ev.Member.DisplayName)

	_, ok = joinEvent(&discordgo.GuildMemberAdd{Member: &discordgo.Member{
		GuildID: "R",
		User:    &discordgo.User{ID: "2", Bot: true},
	}})
	assert.False(t, ok)

	_, ok = joinEvent(&discordgo.GuildMemberAdd{})
	assert.False(t, ok)
}

func TestReactionEvent(t *testing.T) {
	r := &discordgo.MessageReactionAdd{MessageReaction: &discordgo.MessageReaction{
		UserID:    "1001",
		MessageID: "msg-1",
		GuildID:   "R",
		Emoji:     discordgo.Emoji{Name: "✅"},
	}}

	ev, ok := reactionEvent(r, "bot")
	require.True(t, ok)
	assert.Equal(t, "R", ev.RealmID)
	assert.Equal(t, "msg-1", ev.MessageID)
	assert.Equal(t, "1001", ev.UserID)
	assert.Equal(t, "✅", ev.Emoji)

	custom := &discordgo.MessageReactionAdd{MessageReaction: &discordgo.MessageReaction{
		UserID: "1001",
		Emoji:  discordgo.Emoji{ID: "42", Name: "ocf"},
	}}
	ev, ok = reactionEvent(custom, "bot")
	require.True(t, ok)
	assert.Equal(t, "ocf:42", ev.Emoji)

	_, ok = reactionEvent(r, "1001")
	assert.False(t, ok, "own reactions are ignored")

	r.Member = &discordgo.Member{User: &discordgo.User{ID: "1001", Bot: true}}
	_, ok = reactionEvent(r, "bot")
	assert.False(t, ok)
}
