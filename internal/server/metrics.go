package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "groundcheck",
		Name:      "decisions_total",
		Help:      "Query outcomes by decision gate result.",
	}, []string{"decision"})

	fallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "groundcheck",
		Name:      "fallbacks_total",
		Help:      "Fallback activations by outcome.",
	}, []string{"outcome"})

	queryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "groundcheck",
		Name:      "query_duration_seconds",
		Help:      "End-to-end query latency.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	rqScoreObserved = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "groundcheck",
		Name:      "rq_score",
		Help:      "Retrieval quality score distribution.",
		Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
	})

	confidenceObserved = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "groundcheck",
		Name:      "confidence",
		Help:      "Final confidence distribution.",
		Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
	})

	ingestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "groundcheck",
		Name:      "ingests_total",
		Help:      "File ingestions by status.",
	}, []string{"status"})
)
