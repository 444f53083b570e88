package redis

import (
	"sleepdx.com/sdp/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"testing"
	"time"
)

var _ pipeline.Store = (*Client)(nil)

func TestConfig(t *testing.T) {
	t.Run("Defaults", testConfigDefaults)
	t.Run("Host required", testConfigHostRequired)
	t.Run("Lock key", testLockKey)
}

func testConfigDefaults(t *testing.T) {
	t.Setenv("SDP_REDIS_HOST", "localhost")
	cfg, err := readEnvironment()
	require.NoError(t, err)
	assert.Equal(t, "6379", cfg.Port)
	assert.Equal(t, 120, cfg.LockExpirationSeconds)
	assert.False(t, cfg.HAMode)

	client, err := NewClient(0)
	require.NoError(t, err)
	defer client.Close()
	assert.Equal(t, 120*time.Second, client.lockExpiration)
	assert.Equal(t, time.Duration(0), client.snapshotTTL)
}

func testConfigHostRequired(t *testing.T) {
	t.Setenv("SDP_REDIS_HOST", "")
	require.NoError(t, os.Unsetenv("SDP_REDIS_HOST"))
	_, err := readEnvironment()
	assert.Error(t, err)
}

func testLockKey(t *testing.T) {
	assert.Equal(t, "lock:sdp:pipeline:00ff:0001", LockKey("sdp:pipeline:00ff:0001"))
}
