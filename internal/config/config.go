package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MeKo-Tech/boxaug/internal/imageio"
	"github.com/MeKo-Tech/boxaug/internal/policy"
)

// Config represents the complete configuration for the boxaug application.
// It includes settings for all commands (augment, batch, serve) and supports
// loading from configuration files, environment variables, and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`
	Seed     uint64 `mapstructure:"seed" yaml:"seed" json:"seed"`

	// Augmentation policy
	Policy PolicyConfig `mapstructure:"policy" yaml:"policy" json:"policy"`

	// Output configuration
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	// Batch processing configuration
	Batch BatchConfig `mapstructure:"batch" yaml:"batch" json:"batch"`
}

// PolicyConfig points at the augmentation policy to use.
type PolicyConfig struct {
	// File is a JSON or YAML policy. Empty selects the built-in default.
	File string `mapstructure:"file" yaml:"file" json:"file"`
}

// OutputConfig contains output settings.
type OutputConfig struct {
	Format             string `mapstructure:"format" yaml:"format" json:"format"`
	Quality            int    `mapstructure:"quality" yaml:"quality" json:"quality"`
	ClampBoxes         bool   `mapstructure:"clamp_boxes" yaml:"clamp_boxes" json:"clamp_boxes"`
	OverlayDir         string `mapstructure:"overlay_dir" yaml:"overlay_dir" json:"overlay_dir"`
	OverlayBoxColor    string `mapstructure:"overlay_box_color" yaml:"overlay_box_color" json:"overlay_box_color"`
	OverlayCornerColor string `mapstructure:"overlay_corner_color" yaml:"overlay_corner_color" json:"overlay_corner_color"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`

	// Per-client rate limiting
	RateLimitEnabled  bool  `mapstructure:"rate_limit_enabled" yaml:"rate_limit_enabled" json:"rate_limit_enabled"`
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int   `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxRequestsPerDay int   `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDay     int64 `mapstructure:"max_data_per_day" yaml:"max_data_per_day" json:"max_data_per_day"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Workers          int      `mapstructure:"workers" yaml:"workers" json:"workers"`
	Variants         int      `mapstructure:"variants" yaml:"variants" json:"variants"`
	OutputDir        string   `mapstructure:"output_dir" yaml:"output_dir" json:"output_dir"`
	Recursive        bool     `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
	IncludePatterns  []string `mapstructure:"include" yaml:"include" json:"include"`
	ExcludePatterns  []string `mapstructure:"exclude" yaml:"exclude" json:"exclude"`
	ContinueOnError  bool     `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
	// LogProgressEvery logs batch progress every n images; 0 disables it.
	LogProgressEvery int      `mapstructure:"log_progress_every" yaml:"log_progress_every" json:"log_progress_every"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Verbose:  false,
		Seed:     0,
		Output: OutputConfig{
			Format:             "png",
			Quality:            95,
			ClampBoxes:         false,
			OverlayBoxColor:    "#FF0000",
			OverlayCornerColor: "#0000FF",
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      30,
			ShutdownTimeout: 10,

			RateLimitEnabled:  false,
			RequestsPerMinute: 60,
			RequestsPerHour:   1000,
			MaxRequestsPerDay: 5000,
			MaxDataPerDay:     100 * 1024 * 1024,
		},
		Batch: BatchConfig{
			Workers:         4,
			Variants:        1,
			OutputDir:       "augmented",
			ContinueOnError: false,
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	validFormats := imageio.OutputFormats()
	if c.Output.Format != "" && !contains(validFormats, strings.ToLower(c.Output.Format)) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}
	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("invalid output quality: %d (must be between 1 and 100)", c.Output.Quality)
	}
	if err := validateColor(c.Output.OverlayBoxColor, "output.overlay_box_color"); err != nil {
		return err
	}
	if err := validateColor(c.Output.OverlayCornerColor, "output.overlay_corner_color"); err != nil {
		return err
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.RequestsPerMinute < 0 || c.Server.RequestsPerHour < 0 ||
		c.Server.MaxRequestsPerDay < 0 || c.Server.MaxDataPerDay < 0 {
		return errors.New("invalid rate limits: values must not be negative")
	}
	if c.Batch.LogProgressEvery < 0 {
		return fmt.Errorf("invalid batch log_progress_every: %d (must not be negative)", c.Batch.LogProgressEvery)
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}
	if c.Batch.Variants <= 0 {
		return fmt.Errorf("invalid batch variants: %d (must be positive)", c.Batch.Variants)
	}
	return nil
}

// LoadPolicy returns the configured policy, or the default one when no
// policy file is set.
func (c *Config) LoadPolicy() (policy.Policy, error) {
	if c.Policy.File == "" {
		return policy.Default(), nil
	}
	p, err := policy.Load(c.Policy.File)
	if err != nil {
		return policy.Policy{}, fmt.Errorf("failed to load policy: %w", err)
	}
	return p, nil
}

// validateColor accepts empty values and #RRGGBB hex colors.
func validateColor(value, fieldName string) error {
	if value == "" {
		return nil
	}
	s := strings.TrimPrefix(value, "#")
	if len(s) != 6 {
		return fmt.Errorf("invalid %s: %q (expected #RRGGBB)", fieldName, value)
	}
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return fmt.Errorf("invalid %s: %q (expected #RRGGBB)", fieldName, value)
		}
	}
	return nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
