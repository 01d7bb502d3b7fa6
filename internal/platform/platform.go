// Package platform wraps the chat platform API calls the link flow depends on
package platform

import (
	"context"
	"errors"
	"slices"
)

// ErrNotMember is returned by Member when the user isn't in the realm.
var ErrNotMember = errors.New("user is not a member of the realm")

type Member struct {
	ID          string
	DisplayName string
	Roles       []string
	Bot         bool
}

func (m *Member) HasRole(roleID string) bool {
	return slices.Contains(m.Roles, roleID)
}

// Field is a single name/value pair of a channel notice.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

type Notice struct {
	Title  string
	Fields []Field
}

// Client is implemented by Discord and by test doubles.
type Client interface {
	SendDirectMessage(ctx context.Context, userID, content string) error
	Member(ctx context.Context, realmID, userID string) (*Member, error)
	AddRole(ctx context.Context, realmID, userID, roleID string) error
	PostNotice(ctx context.Context, channelID string, n Notice) error
}
