// Package metrics holds the prometheus collectors of the service
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TokensIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "verifybot",
		Name:      "tokens_issued_total",
		Help:      "Verification tokens created, by trigger.",
	}, []string{"trigger"})

	IssuanceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "verifybot",
		Name:      "issuance_failures_total",
		Help:      "Token issuance attempts that failed, by stage.",
	}, []string{"stage"})

	Confirmations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "verifybot",
		Name:      "confirmations_total",
		Help:      "Confirm step outcomes.",
	}, []string{"outcome"})

	NotificationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "verifybot",
		Name:      "notification_failures_total",
		Help:      "Failed link announcements, by sink.",
	}, []string{"sink"})

	StalePendingTokens = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "verifybot",
		Name:      "stale_pending_tokens",
		Help:      "Pending tokens older than the configured threshold at the last report.",
	})
)
