package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.Equal(t, "tshark", cfg.Capture.Binary)
	assert.Equal(t, 60, cfg.Capture.WindowSeconds)
	assert.Equal(t, 50000, cfg.Capture.WindowMaxPackets)
	assert.Equal(t, 200, cfg.Capture.FlowPublishIntervalMS)
	assert.Equal(t, 600, cfg.ML.DeadlineMS)
	assert.Equal(t, 400, cfg.Reputation.DeadlineMS)
	assert.Equal(t, 300000, cfg.Reputation.TTLMS)
	assert.Equal(t, 25, cfg.Reputation.AbuseScoreThreshold)
	assert.Equal(t, 256, cfg.Fabric.SubscriberQueueCap)
	assert.Equal(t, 100, cfg.Fabric.HeartbeatIntervalMS)
}

func TestLoadFileAndEnvExpansion(t *testing.T) {
	t.Setenv("TEST_REP_KEY", "secret-key")

	raw := `
server:
  listen_addr: ":9090"
capture:
  binary: /usr/bin/tshark
  window_seconds: 30
reputation:
  key: ${TEST_REP_KEY}
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.ListenAddr)
	assert.Equal(t, "/usr/bin/tshark", cfg.Capture.Binary)
	assert.Equal(t, 30, cfg.Capture.WindowSeconds)
	assert.Equal(t, "secret-key", cfg.Reputation.Key)
	// untouched fields still get defaults
	assert.Equal(t, 50000, cfg.Capture.WindowMaxPackets)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ML_ENDPOINT", "http://ml.internal:8000/predict")
	t.Setenv("ABUSE_SCORE_THRESHOLD", "40")
	t.Setenv("LISTEN_ADDR", "127.0.0.1:9999")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://ml.internal:8000/predict", cfg.ML.Endpoint)
	assert.Equal(t, 40, cfg.Reputation.AbuseScoreThreshold)
	assert.Equal(t, "127.0.0.1:9999", cfg.Server.ListenAddr)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}
