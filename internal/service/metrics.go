package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// sessionResolutions counts SessionCache answers.
	// Labels: source (cache, upstream, stale, fallback, not_found)
	sessionResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "property_insight",
		Subsystem: "session_cache",
		Name:      "resolutions_total",
		Help:      "Session lookups by the source that answered them",
	}, []string{"source"})

	// upstreamFetches counts engine fetches that actually ran.
	// Labels: outcome (ok, error)
	upstreamFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "property_insight",
		Subsystem: "session_cache",
		Name:      "upstream_fetches_total",
		Help:      "Session fetches sent to the analysis engine",
	}, []string{"outcome"})

	upstreamFetchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "property_insight",
		Subsystem: "session_cache",
		Name:      "upstream_fetch_seconds",
		Help:      "Analysis engine session fetch latency",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	sweptEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "property_insight",
		Subsystem: "maintenance",
		Name:      "swept_total",
		Help:      "Entries removed by scheduled sweeps",
	}, []string{"target"})

	// feedbackEvents counts accepted feedback.
	// Labels: kind (section, rating)
	feedbackEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "property_insight",
		Subsystem: "feedback",
		Name:      "events_total",
		Help:      "Feedback events recorded",
	}, []string{"kind"})

	// triggerOutcomes counts trigger evaluations that crossed a threshold.
	// Labels: outcome (activated, cooldown, rate_limited, engine_failed, error)
	triggerOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "property_insight",
		Subsystem: "trigger",
		Name:      "outcomes_total",
		Help:      "Re-analysis trigger outcomes",
	}, []string{"outcome"})
)
