package service

import (
	"context"
	"ocf/verifybot/internal/metrics"
	"time"

	"go.uber.org/zap"
)

type StaleCounter interface {
	CountStalePending(ctx context.Context, cutoff time.Time) (int64, error)
}

// StaleTokenReport periodically logs how many tokens were issued but never
// completed. Tokens are kept forever, so nothing is deleted here.
func StaleTokenReport(ctx context.Context, t, staleAfter time.Duration, s StaleCounter) {
	if t <= 0 {
		zap.L().Warn("Stale token report disabled, interval must be bigger than 0", zap.Duration("tick_every", t))
		return
	}

	ticker := time.NewTicker(t)

	zap.L().Debug("Stale token report attached", zap.Duration("tick_every", t))

	go func() {
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				reportStale(ctx, staleAfter, s)
			}
		}
	}()
}

func reportStale(ctx context.Context, staleAfter time.Duration, s StaleCounter) (int64, error) {
	n, err := s.CountStalePending(ctx, time.Now().UTC().Add(-staleAfter))
	if err != nil {
		zap.L().Error("Failed to query db for stale tokens", zap.Error(err))
		return 0, err
	}

	metrics.StalePendingTokens.Set(float64(n))

	if n > 0 {
		zap.L().Info("Pending verification tokens were never completed",
			zap.Int64("count", n),
			zap.Duration("older_than", staleAfter))
	}

	return n, nil
}
