package cmd

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeCommand_ShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := executeCommandContext(t, ctx, "serve", "--host", "127.0.0.1", "--port", "0", "--shutdown-timeout", "1")
	require.NoError(t, err)
}

func TestServeCommand_BadPolicy(t *testing.T) {
	_, err := executeCommand(t, "serve", "--policy", "/does/not/exist.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load policy")
}

func TestServeCommand_Flags(t *testing.T) {
	for _, name := range []string{"host", "port", "cors-origin", "max-upload-size", "timeout",
		"shutdown-timeout", "rate-limit-enabled", "requests-per-minute", "max-data-per-day"} {
		assert.NotNil(t, serveCmd.Flags().Lookup(name), name)
	}
}
