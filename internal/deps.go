package internal

import (
	"ocf/verifybot/internal/service"
	"ocf/verifybot/internal/store"
)

// Deps is handed to every handler
type Deps struct {
	Store    *store.TokenStore
	Verifier *service.Verifier
	Notify   *service.NotifyQueue

	ServiceName      string
	TurnstileSiteKey string
}
