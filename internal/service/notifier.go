package service

import (
	"context"
	"fmt"
	"ocf/verifybot/internal/platform"
	"time"
)

// LinkNotice describes a completed link for auditors
type LinkNotice struct {
	TokenID          uint      `json:"token_id"`
	SubjectID        string    `json:"subject_id"`
	SubjectName      string    `json:"subject_name"`
	RealmID          string    `json:"realm_id"`
	ExternalIdentity string    `json:"external_identity"`
	CompletedAt      time.Time `json:"completed_at"`
}

// Notifier delivers a notice to one audit destination.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, n LinkNotice) error
}

// Sink accepts notices on a best-effort basis. An error only means the
// notice was dropped.
type Sink interface {
	Announce(ctx context.Context, n LinkNotice) error
}

// ChannelNotifier posts an embed to the audit channel
type ChannelNotifier struct {
	client    platform.Client
	channelID string
	service   string
}

func NewChannelNotifier(c platform.Client, channelID, service string) *ChannelNotifier {
	return &ChannelNotifier{client: c, channelID: channelID, service: service}
}

func (n *ChannelNotifier) Name() string { return "channel" }

func (n *ChannelNotifier) Notify(ctx context.Context, l LinkNotice) error {
	return n.client.PostNotice(ctx, n.channelID, platform.Notice{
		Title: "New user verified!",
		Fields: []platform.Field{
			{Name: "Name", Value: l.SubjectName, Inline: true},
			{Name: n.service + " account", Value: l.ExternalIdentity, Inline: true},
			{Name: "Verification", Value: fmt.Sprintf("#%d", l.TokenID), Inline: true},
		},
	})
}
