package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reviewMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reviews_mutations_total",
		Help: "Total number of committed review mutations by operation",
	}, []string{"operation"})

	votesToggled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reviews_helpful_votes_toggled_total",
		Help: "Total number of committed helpful-vote toggles",
	})

	statsRebuilds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rating_stats_rebuilds_total",
		Help: "Total number of rating statistics rebuilds",
	})

	statsDriftDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rating_stats_drift_detected_total",
		Help: "Total number of rebuilds that found the maintained statistics out of sync",
	})
)
