package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"ocf/verifybot/internal/apperr"
	"ocf/verifybot/internal/metrics"
	"ocf/verifybot/internal/model"
	"ocf/verifybot/internal/platform"
	"time"

	"go.uber.org/zap"
)

// TokenCreator is the part of the token store the issuer needs
type TokenCreator interface {
	CreateToken(ctx context.Context, subjectID, subjectName, realmID string) (*model.VerificationToken, error)
}

type IssuerConfig struct {
	BaseURL        string
	RealmID        string
	RoleID         string
	MessageID      string
	ReactionEmoji  string // Empty accepts any reaction on MessageID
	WelcomeMessage string
	Timeout        time.Duration
}

type JoinEvent struct {
	RealmID string
	Member  *platform.Member
}

type ReactionEvent struct {
	RealmID   string
	MessageID string
	UserID    string
	Emoji     string
}

// Issuer creates tokens in response to platform events and delivers them
// to the subject by direct message
type Issuer struct {
	store  TokenCreator
	client platform.Client
	cfg    IssuerConfig
}

func NewIssuer(s TokenCreator, c platform.Client, cfg IssuerConfig) *Issuer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Issuer{store: s, client: c, cfg: cfg}
}

// MemberJoined always issues a token, even when the member already holds
// the role from an earlier membership.
func (i *Issuer) MemberJoined(ctx context.Context, ev JoinEvent) error {
	if ev.RealmID != i.cfg.RealmID || ev.Member == nil {
		return nil
	}

	return i.issue(ctx, "join", ev.Member.ID, ev.Member.DisplayName, ev.RealmID)
}

// ReactionAdded issues a token when the designated reaction lands on the
// designated message and the member doesn't hold the role yet.
func (i *Issuer) ReactionAdded(ctx context.Context, ev ReactionEvent) error {
	if ev.RealmID == "" || ev.RealmID != i.cfg.RealmID {
		return nil
	}

	if ev.MessageID != i.cfg.MessageID {
		return nil
	}

	if i.cfg.ReactionEmoji != "" && ev.Emoji != i.cfg.ReactionEmoji {
		return nil
	}

	lctx, cancel := context.WithTimeout(ctx, i.cfg.Timeout)
	defer cancel()

	member, err := i.client.Member(lctx, ev.RealmID, ev.UserID)
	if err != nil {
		metrics.IssuanceFailures.WithLabelValues("member_lookup").Inc()
		zap.L().Error("Failed to get member who reacted",
			zap.String("subject_id", ev.UserID),
			zap.String("realm_id", ev.RealmID),
			zap.Error(err))

		if errors.Is(err, platform.ErrNotMember) {
			return apperr.ErrMemberGone
		}

		return apperr.External("get member", err)
	}

	if member.HasRole(i.cfg.RoleID) {
		zap.L().Debug("Member already verified, not issuing a token", zap.String("subject_id", member.ID))
		return nil
	}

	return i.issue(ctx, "reaction", member.ID, member.DisplayName, ev.RealmID)
}

func (i *Issuer) issue(ctx context.Context, trigger, subjectID, name, realmID string) error {
	t, err := i.store.CreateToken(ctx, subjectID, name, realmID)
	if err != nil {
		metrics.IssuanceFailures.WithLabelValues("store").Inc()
		zap.L().Error("Failed to create verification token",
			zap.String("subject_id", subjectID),
			zap.String("realm_id", realmID),
			zap.Error(err))
		return err
	}

	metrics.TokensIssued.WithLabelValues(trigger).Inc()

	link, err := VerifyLink(i.cfg.BaseURL, t.Token)
	if err != nil {
		return err
	}

	dctx, cancel := context.WithTimeout(ctx, i.cfg.Timeout)
	defer cancel()

	msg := fmt.Sprintf("%s\n%s", i.cfg.WelcomeMessage, link)
	if err := i.client.SendDirectMessage(dctx, subjectID, msg); err != nil {
		// The token stays pending and undelivered, the subject has to re-trigger
		metrics.IssuanceFailures.WithLabelValues("dm").Inc()
		zap.L().Warn("Error DMing verification link",
			zap.String("subject_id", subjectID),
			zap.Uint("token_id", t.ID),
			zap.Error(err))
		return apperr.External("send dm", err)
	}

	zap.L().Info("Sent verification link via DM",
		zap.String("trigger", trigger),
		zap.String("subject_id", subjectID),
		zap.String("realm_id", realmID),
		zap.Uint("token_id", t.ID))

	return nil
}

// VerifyLink builds the deep link a subject follows to confirm.
func VerifyLink(baseURL, token string) (string, error) {
	link, err := url.JoinPath(baseURL, "verify", token)
	if err != nil {
		return "", fmt.Errorf("failed to build verification link, %w", err)
	}

	return link, nil
}
