// Package metrics exposes Prometheus collectors for the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TrainingRuns counts training runs by outcome (ok, rejected, error).
	TrainingRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "colorpref",
		Name:      "training_runs_total",
		Help:      "Training runs by outcome.",
	}, []string{"outcome"})

	// TrainingDuration observes wall-clock training time in seconds.
	TrainingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "colorpref",
		Name:      "training_duration_seconds",
		Help:      "Wall-clock duration of training runs.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	// TrainingEpochs observes how many epochs each run actually used.
	TrainingEpochs = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "colorpref",
		Name:      "training_epochs",
		Help:      "Epochs run per training call, after early stopping.",
		Buckets:   prometheus.LinearBuckets(5, 5, 10),
	})

	// Predictions counts predictions by resulting label.
	Predictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "colorpref",
		Name:      "predictions_total",
		Help:      "Predictions served by label.",
	}, []string{"label"})
)

// Handler returns the /metrics endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
