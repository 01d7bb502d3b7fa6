package service

import (
	"context"
	"errors"
	"ocf/verifybot/internal/apperr"
	"ocf/verifybot/internal/metrics"
	"ocf/verifybot/internal/model"
	"ocf/verifybot/internal/platform"
	"ocf/verifybot/pkg/validators"
	"time"

	"go.uber.org/zap"
)

// TokenConsumer is the part of the token store the verifier needs
type TokenConsumer interface {
	LookupPendingToken(ctx context.Context, token string) (*model.VerificationToken, error)
	CompleteToken(ctx context.Context, token string) (int64, error)
}

type VerifierConfig struct {
	RoleID  string
	Timeout time.Duration
}

// View is what the display step shows before the user confirms
type View struct {
	Token            string
	SubjectName      string
	ExternalIdentity string
}

type Result struct {
	SubjectName string
	// Owned is false when a concurrent confirmation completed the token first
	Owned bool
}

// Verifier implements the display and confirm steps of a link
type Verifier struct {
	store  TokenConsumer
	client platform.Client
	sink   Sink
	cfg    VerifierConfig
}

func NewVerifier(s TokenConsumer, c platform.Client, sink Sink, cfg VerifierConfig) *Verifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Verifier{store: s, client: c, sink: sink, cfg: cfg}
}

// Display never mutates state.
func (v *Verifier) Display(ctx context.Context, token, identity string) (*View, error) {
	t, err := v.pending(ctx, token)
	if err != nil {
		return nil, err
	}

	if validators.IdentityValidator(identity) != nil {
		return nil, apperr.ErrMissingIdentity
	}

	return &View{
		Token:            t.Token,
		SubjectName:      t.SubjectName,
		ExternalIdentity: identity,
	}, nil
}

// Confirm grants the role and consumes the token. A failure before the
// token is completed leaves it pending so the same link can be retried.
func (v *Verifier) Confirm(ctx context.Context, token, identity string) (*Result, error) {
	t, err := v.pending(ctx, token)
	if err != nil {
		metrics.Confirmations.WithLabelValues("not_found").Inc()
		return nil, err
	}

	if validators.IdentityValidator(identity) != nil {
		return nil, apperr.ErrMissingIdentity
	}

	log := zap.L().With(
		zap.Uint("token_id", t.ID),
		zap.String("subject_id", t.SubjectID),
		zap.String("realm_id", t.RealmID))

	member, err := v.member(ctx, t.RealmID, t.SubjectID)
	if err != nil {
		metrics.Confirmations.WithLabelValues("member_failed").Inc()
		log.Warn("Failed to resolve member", zap.Error(err))
		return nil, err
	}

	if err := v.grant(ctx, t.RealmID, member.ID); err != nil {
		metrics.Confirmations.WithLabelValues("grant_failed").Inc()
		log.Error("Failed to add role", zap.Error(err))
		return nil, err
	}

	n, err := v.store.CompleteToken(ctx, t.Token)
	if err != nil {
		// The role is already granted, a retry grants again (no-op) and completes
		metrics.Confirmations.WithLabelValues("storage_failed").Inc()
		log.Error("Failed to complete token after granting role", zap.Error(err))
		return nil, err
	}

	if n == 0 {
		metrics.Confirmations.WithLabelValues("race_lost").Inc()
		log.Info("Token was completed by a concurrent confirmation")
		return &Result{SubjectName: t.SubjectName, Owned: false}, nil
	}

	metrics.Confirmations.WithLabelValues("completed").Inc()
	log.Info("Linked accounts", zap.String("external_identity", identity))

	err = v.sink.Announce(ctx, LinkNotice{
		TokenID:          t.ID,
		SubjectID:        t.SubjectID,
		SubjectName:      t.SubjectName,
		RealmID:          t.RealmID,
		ExternalIdentity: identity,
		CompletedAt:      time.Now().UTC(),
	})
	if err != nil {
		metrics.NotificationFailures.WithLabelValues("queue").Inc()
		log.Warn("Failed to announce completed link", zap.Error(&apperr.NotificationError{Sink: "queue", Err: err}))
	}

	return &Result{SubjectName: t.SubjectName, Owned: true}, nil
}

func (v *Verifier) pending(ctx context.Context, token string) (*model.VerificationToken, error) {
	// Malformed tokens can't exist in the store, don't bother asking it
	if validators.TokenValidator(token) != nil {
		return nil, apperr.ErrNotFound
	}

	return v.store.LookupPendingToken(ctx, token)
}

func (v *Verifier) member(ctx context.Context, realmID, subjectID string) (*platform.Member, error) {
	ctx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	defer cancel()

	m, err := v.client.Member(ctx, realmID, subjectID)
	if err != nil {
		if errors.Is(err, platform.ErrNotMember) {
			return nil, apperr.ErrMemberGone
		}

		return nil, apperr.External("get member", err)
	}

	return m, nil
}

func (v *Verifier) grant(ctx context.Context, realmID, subjectID string) error {
	ctx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	defer cancel()

	err := v.client.AddRole(ctx, realmID, subjectID, v.cfg.RoleID)
	if err != nil {
		if errors.Is(err, platform.ErrNotMember) {
			return apperr.ErrMemberGone
		}

		return apperr.External("add role", err)
	}

	return nil
}
