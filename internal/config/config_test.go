package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/boxaug/internal/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	infoLevel  = "info"
	debugLevel = "debug"
)

// TestDefaultConfig tests that the default configuration is valid.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.LogLevel != infoLevel {
		t.Errorf("Expected default log level '%s', got %s", infoLevel, cfg.LogLevel)
	}
	if cfg.Output.Format != "png" {
		t.Errorf("Expected default output format 'png', got %s", cfg.Output.Format)
	}
	if cfg.Batch.Variants != 1 {
		t.Errorf("Expected 1 variant by default, got %d", cfg.Batch.Variants)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

// TestValidate tests configuration validation.
func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(c *Config)
		wantError bool
	}{
		{"defaults", func(*Config) {}, false},
		{"debug level", func(c *Config) { c.LogLevel = debugLevel }, false},
		{"invalid log level", func(c *Config) { c.LogLevel = "verbose" }, true},
		{"webp output", func(c *Config) { c.Output.Format = "webp" }, false},
		{"uppercase output", func(c *Config) { c.Output.Format = "JPEG" }, false},
		{"invalid output format", func(c *Config) { c.Output.Format = "gif" }, true},
		{"quality zero", func(c *Config) { c.Output.Quality = 0 }, true},
		{"quality too high", func(c *Config) { c.Output.Quality = 101 }, true},
		{"invalid box color", func(c *Config) { c.Output.OverlayBoxColor = "red" }, true},
		{"short corner color", func(c *Config) { c.Output.OverlayCornerColor = "#FFF" }, true},
		{"empty color", func(c *Config) { c.Output.OverlayBoxColor = "" }, false},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, true},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, true},
		{"upload zero", func(c *Config) { c.Server.MaxUploadMB = 0 }, true},
		{"timeout zero", func(c *Config) { c.Server.TimeoutSec = 0 }, true},
		{"workers zero", func(c *Config) { c.Batch.Workers = 0 }, true},
		{"variants zero", func(c *Config) { c.Batch.Variants = 0 }, true},
		{"negative log progress", func(c *Config) { c.Batch.LogProgressEvery = -1 }, true},
		{"log progress every image", func(c *Config) { c.Batch.LogProgressEvery = 1 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantError {
				t.Errorf("Validate() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

// TestContains tests the contains helper.
func TestContains(t *testing.T) {
	slice := []string{"foo", "bar", "baz"}

	if !contains(slice, "foo") {
		t.Error("Expected 'foo' to be in slice")
	}
	if contains(slice, "qux") {
		t.Error("Did not expect 'qux' to be in slice")
	}
	if contains([]string{}, "foo") {
		t.Error("Did not expect 'foo' in empty slice")
	}
}

func TestLoadPolicy(t *testing.T) {
	cfg := DefaultConfig()

	p, err := cfg.LoadPolicy()
	require.NoError(t, err)
	assert.Equal(t, policy.Default(), p)

	custom := policy.Policy{FlipProb: 1}
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, custom.Save(path))
	cfg.Policy.File = path

	p, err = cfg.LoadPolicy()
	require.NoError(t, err)
	assert.Equal(t, 1.0, p.FlipProb)

	cfg.Policy.File = filepath.Join(t.TempDir(), "missing.json")
	_, err = cfg.LoadPolicy()
	assert.ErrorIs(t, err, os.ErrNotExist)
}
