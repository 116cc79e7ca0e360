package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boxaug_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "boxaug_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Augmentation metrics
	augmentRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boxaug_augment_requests_total",
			Help: "Total number of augmentation requests",
		},
		[]string{"status"}, // success, invalid, error
	)

	augmentDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "boxaug_augment_duration_seconds",
			Help:    "Time spent running the augmentation pipeline",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	augmentStepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boxaug_augment_steps_total",
			Help: "Number of times each augmentation step was applied",
		},
		[]string{"step"},
	)

	augmentStepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "boxaug_augment_step_duration_seconds",
			Help:    "Time spent in each augmentation step",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"step"},
	)

	augmentBoxes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "boxaug_augment_boxes",
			Help:    "Number of boxes carried through an augmentation",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
	)

	// Rate limiting metrics
	rateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boxaug_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"type"}, // minute, hour, requests, data
	)

	// File upload metrics
	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "boxaug_upload_size_bytes",
			Help:    "Size of uploaded images in bytes",
			Buckets: []float64{1024, 10 * 1024, 100 * 1024, 1024 * 1024, 10 * 1024 * 1024, 50 * 1024 * 1024},
		},
	)
)

// observeStep records one applied pipeline step.
func observeStep(step string, d time.Duration) {
	augmentStepsTotal.WithLabelValues(step).Inc()
	augmentStepDuration.WithLabelValues(step).Observe(d.Seconds())
}
