package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	engineReportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "transitwatch",
			Subsystem: "engine",
			Name:      "reports_total",
			Help:      "Total number of report submissions by outcome",
		},
		[]string{"outcome"}, // outcome: accepted, rate_limited, cooldown, duplicate, error
	)

	enginePublishesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "transitwatch",
			Subsystem: "engine",
			Name:      "publishes_total",
			Help:      "Total number of incident publications by trigger",
		},
		[]string{"trigger"}, // trigger: auto, moderator
	)

	engineModerationQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "transitwatch",
			Subsystem: "engine",
			Name:      "moderation_queue_depth",
			Help:      "Current number of candidates awaiting moderation",
		},
	)

	engineTrustRecomputeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "transitwatch",
			Subsystem: "engine",
			Name:      "trust_recompute_duration_seconds",
			Help:      "Duration of full trust score recompute passes",
			Buckets:   prometheus.DefBuckets,
		},
	)

	engineTrustScoresUpdated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "transitwatch",
			Subsystem: "engine",
			Name:      "trust_scores_updated_total",
			Help:      "Total number of trust scores written by the recompute job",
		},
	)

	engineRewardsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "transitwatch",
			Subsystem: "engine",
			Name:      "rewards_total",
			Help:      "Total reward/penalty applications by status",
		},
		[]string{"status"}, // status: applied, retried
	)
)

// EngineMetrics provides methods to update verification engine metrics
type EngineMetrics struct{}

func NewEngineMetrics() *EngineMetrics {
	return &EngineMetrics{}
}

// Register registers all engine metrics with the provided registry
func (em *EngineMetrics) Register(registry *Registry) {
	registry.MustRegister(
		engineReportsTotal,
		enginePublishesTotal,
		engineModerationQueueDepth,
		engineTrustRecomputeDuration,
		engineTrustScoresUpdated,
		engineRewardsTotal,
	)
}

func (em *EngineMetrics) RecordReport(outcome string) {
	engineReportsTotal.WithLabelValues(outcome).Inc()
}

func (em *EngineMetrics) RecordPublish(trigger string) {
	enginePublishesTotal.WithLabelValues(trigger).Inc()
}

func (em *EngineMetrics) SetModerationQueueDepth(depth int) {
	engineModerationQueueDepth.Set(float64(depth))
}

func (em *EngineMetrics) RecordTrustRecompute(duration float64, updated int) {
	engineTrustRecomputeDuration.Observe(duration)
	engineTrustScoresUpdated.Add(float64(updated))
}

func (em *EngineMetrics) RecordReward(status string) {
	engineRewardsTotal.WithLabelValues(status).Inc()
}
