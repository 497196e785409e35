// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "courtcal",
		Name:      "actions_total",
		Help:      "State transitions applied by the calendar core, by action.",
	}, []string{"action"})

	EffectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "courtcal",
		Name:      "effects_total",
		Help:      "Remote mutations issued, by effect.",
	}, []string{"effect"})

	EffectFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "courtcal",
		Name:      "effect_failures_total",
		Help:      "Remote mutations that failed, by effect.",
	}, []string{"effect"})

	FeedPushesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "courtcal",
		Name:      "feed_pushes_total",
		Help:      "Full event-list replacements received from the remote feed.",
	})

	PendingEdits = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "courtcal",
		Name:      "pending_edits",
		Help:      "Optimistic edits not yet confirmed by the feed.",
	})

	SnapshotSaveFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "courtcal",
		Name:      "snapshot_save_failures_total",
		Help:      "Local snapshot writes that failed.",
	})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "courtcal",
		Name:      "http_requests_total",
		Help:      "API requests served, by method and status.",
	}, []string{"method", "status"})

	BotCommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "courtcal",
		Name:      "bot_commands_total",
		Help:      "Telegram commands handled, by command.",
	}, []string{"command"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
