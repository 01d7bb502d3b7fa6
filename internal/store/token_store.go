// Package store persists verification tokens
package store

import (
	"context"
	"errors"
	"ocf/verifybot/internal/apperr"
	"ocf/verifybot/internal/model"
	"ocf/verifybot/pkg/security"
	"time"

	"gorm.io/gorm"
)

const defaultTimeout = 5 * time.Second

// TokenStore is the only writer of verification tokens. Every call is
// bounded by its timeout on top of whatever deadline ctx already carries.
type TokenStore struct {
	db      *gorm.DB
	timeout time.Duration
}

type Stats struct {
	Pending   int64 `json:"pending"`
	Completed int64 `json:"completed"`
}

func NewTokenStore(db *gorm.DB, timeout time.Duration) *TokenStore {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &TokenStore{db: db, timeout: timeout}
}

// CreateToken issues a new pending token for the subject. No check is made
// for other pending or completed tokens of the same subject.
func (s *TokenStore) CreateToken(ctx context.Context, subjectID, subjectName, realmID string) (*model.VerificationToken, error) {
	t, err := security.MakeVerificationToken(&security.VerificationTokenOpts{
		SubjectID:   subjectID,
		SubjectName: subjectName,
		RealmID:     realmID,
	})
	if err != nil {
		return nil, apperr.Storage("create token", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return nil, apperr.Storage("create token", err)
	}

	return t, nil
}

// LookupPendingToken returns apperr.ErrNotFound for both unknown and
// completed tokens.
func (s *TokenStore) LookupPendingToken(ctx context.Context, token string) (*model.VerificationToken, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var t model.VerificationToken

	err := s.db.WithContext(ctx).
		Where("token = ? AND completed = ?", token, false).
		First(&t).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}

		return nil, apperr.Storage("lookup token", err)
	}

	return &t, nil
}

// CompleteToken flips completed with a single conditional UPDATE and reports
// the affected row count. Exactly one caller ever sees 1 for a given token.
func (s *TokenStore) CompleteToken(ctx context.Context, token string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	r := s.db.WithContext(ctx).
		Model(&model.VerificationToken{}).
		Where("token = ? AND completed = ?", token, false).
		Updates(map[string]any{
			"completed":    true,
			"completed_at": time.Now().UTC(),
		})
	if r.Error != nil {
		return 0, apperr.Storage("complete token", r.Error)
	}

	return r.RowsAffected, nil
}

func (s *TokenStore) Stats(ctx context.Context) (*Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var rows []struct {
		Completed bool
		Count     int64
	}

	err := s.db.WithContext(ctx).
		Model(&model.VerificationToken{}).
		Select("completed, count(*) as count").
		Group("completed").
		Scan(&rows).
		Error
	if err != nil {
		return nil, apperr.Storage("token stats", err)
	}

	var st Stats
	for _, r := range rows {
		if r.Completed {
			st.Completed = r.Count
		} else {
			st.Pending = r.Count
		}
	}

	return &st, nil
}

// CountStalePending counts pending tokens issued before cutoff.
func (s *TokenStore) CountStalePending(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var n int64

	err := s.db.WithContext(ctx).
		Model(&model.VerificationToken{}).
		Where("completed = ? AND created_at < ?", false, cutoff).
		Count(&n).
		Error
	if err != nil {
		return 0, apperr.Storage("count stale tokens", err)
	}

	return n, nil
}
