// Package server exposes the augmentation pipeline over HTTP.
package server

import (
	"fmt"
	"net/http"

	"github.com/MeKo-Tech/boxaug/internal/overlay"
	"github.com/MeKo-Tech/boxaug/internal/policy"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	policy      policy.Policy
	corsOrigin  string
	maxUploadMB int64
	overlay     overlay.Style
	rateLimiter *RateLimiter
}

// RateLimitConfig holds per-client rate limiting settings.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
	MaxRequestsPerDay int
	MaxDataPerDay     int64
}

// Config holds server configuration.
type Config struct {
	CORSOrigin  string
	MaxUploadMB int64
	Policy      policy.Policy
	Overlay     overlay.Style
	RateLimit   RateLimitConfig
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// AugmentResult describes one augmented image.
type AugmentResult struct {
	Width  int         `json:"width"`
	Height int         `json:"height"`
	Format string      `json:"format"`
	Seed   uint64      `json:"seed"`
	Boxes  [][]float64 `json:"boxes"`
	Steps  []string    `json:"steps"`
	Image  string      `json:"image,omitempty"` // base64 encoded
}

// AugmentResponse is the JSON envelope of POST /augment.
type AugmentResponse struct {
	Success bool           `json:"success"`
	Result  *AugmentResult `json:"result,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// NewServer creates a server that augments with cfg.Policy.
func NewServer(cfg Config) (*Server, error) {
	if err := cfg.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server policy: %w", err)
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 50
	}
	if cfg.Overlay.BoxColor == nil && cfg.Overlay.CornerColor == nil {
		cfg.Overlay = overlay.DefaultStyle()
	}

	s := &Server{
		policy:      cfg.Policy,
		corsOrigin:  cfg.CORSOrigin,
		maxUploadMB: cfg.MaxUploadMB,
		overlay:     cfg.Overlay,
	}
	if rl := cfg.RateLimit; rl.Enabled {
		s.rateLimiter = NewRateLimiter(Limits{
			PerMinute:   rl.RequestsPerMinute,
			PerHour:     rl.RequestsPerHour,
			PerDay:      rl.MaxRequestsPerDay,
			BytesPerDay: rl.MaxDataPerDay,
		})
	}
	return s, nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/policy", s.corsMiddleware(s.policyHandler))
	mux.HandleFunc("/augment", s.corsMiddleware(s.rateLimitMiddleware(s.augmentHandler)))
	mux.Handle("/metrics", promhttp.Handler())
}
