package security

import (
	"errors"
	"ocf/verifybot/internal/model"
	"ocf/verifybot/pkg/util"
	"time"
)

const (
	// 24 random bytes, 192 bits, hex encoded to 48 characters
	tokenSize = 24

	TokenLength = tokenSize * 2
)

type VerificationTokenOpts struct {
	SubjectID   string
	SubjectName string
	RealmID     string
}

func MakeVerificationToken(o *VerificationTokenOpts) (*model.VerificationToken, error) {
	if o == nil {
		return nil, errors.New("no token options provided")
	}

	if o.SubjectID == "" {
		return nil, errors.New("no subject ID provided")
	}

	if o.RealmID == "" {
		return nil, errors.New("no realm ID provided")
	}

	token, err := util.GenerateToken(tokenSize)
	if err != nil {
		return nil, err
	}

	return &model.VerificationToken{
		Token:       token,
		SubjectID:   o.SubjectID,
		SubjectName: o.SubjectName,
		RealmID:     o.RealmID,
		CreatedAt:   time.Now().UTC(),
		Completed:   false,
	}, nil
}
