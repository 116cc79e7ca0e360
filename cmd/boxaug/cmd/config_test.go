package cmd

import (
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/boxaug/internal/config"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boxaug.yaml")

	output, err := executeCommand(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, output, path)

	cfg, err := config.NewLoaderWithViper(viper.New()).LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "png", cfg.Output.Format)

	_, err = executeCommand(t, "config", "init", path)
	require.Error(t, err)
}

func TestConfigShow(t *testing.T) {
	output, err := executeCommand(t, "config", "show", "--seed", "5")
	require.NoError(t, err)
	assert.Contains(t, output, "seed: 5")
	assert.Contains(t, output, "log_level: info")
	assert.Contains(t, output, "max_upload_mb: 50")
}

func TestConfigPaths(t *testing.T) {
	output, err := executeCommand(t, "config", "paths")
	require.NoError(t, err)
	assert.Contains(t, output, "/etc/boxaug")
}
