package redis

import (
	"sleepdx.com/sdp/pipeline"
	"context"
	"errors"
	"github.com/alicebob/miniredis/v2"
	"github.com/bsm/redislock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func newTestClient(t *testing.T, ttlHours, lockRetries string) (*Client, *miniredis.Miniredis) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)
	t.Setenv("SDP_REDIS_HOST", server.Host())
	t.Setenv("SDP_REDIS_PORT", server.Port())
	t.Setenv("SDP_REDIS_SNAPSHOT_TTL_HOURS", ttlHours)
	t.Setenv("SDP_REDIS_LOCK_RETRIES", lockRetries)
	client, err := NewClient(0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, server
}

func TestStore(t *testing.T) {
	t.Run("Missing snapshot", testLoadMissing)
	t.Run("Save and load", testSaveLoad)
	t.Run("Snapshot TTL", testSnapshotTTL)
	t.Run("Lock and release", testLockRelease)
}

func testLoadMissing(t *testing.T) {
	client, _ := newTestClient(t, "0", "0")
	_, err := client.Load(context.Background(), "sdp:pipeline:00ff:0001")
	assert.True(t, errors.Is(err, pipeline.ErrSnapshotNotFound))
}

func testSaveLoad(t *testing.T) {
	client, server := newTestClient(t, "0", "0")
	key := "sdp:pipeline:00ff:0001"
	require.NoError(t, client.Save(context.Background(), key, []byte{0x81, 0xa1, 0x76, 0x01}))
	buf, err := client.Load(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x81, 0xa1, 0x76, 0x01}, buf)
	assert.Equal(t, time.Duration(0), server.TTL(key))
}

func testSnapshotTTL(t *testing.T) {
	client, server := newTestClient(t, "6", "0")
	key := "sdp:pipeline:00ff:0002"
	require.NoError(t, client.Save(context.Background(), key, []byte("snapshot")))
	assert.Equal(t, 6*time.Hour, server.TTL(key))

	server.FastForward(7 * time.Hour)
	_, err := client.Load(context.Background(), key)
	assert.True(t, errors.Is(err, pipeline.ErrSnapshotNotFound))
}

func testLockRelease(t *testing.T) {
	client, server := newTestClient(t, "0", "0")
	key := "sdp:pipeline:00ff:0003"
	release, err := client.Lock(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, server.Exists(LockKey(key)))

	// held by another trainer: no retries left
	_, err = client.Lock(context.Background(), key)
	assert.True(t, errors.Is(err, redislock.ErrNotObtained))

	require.NoError(t, release())
	assert.False(t, server.Exists(LockKey(key)))

	release, err = client.Lock(context.Background(), key)
	require.NoError(t, err)
	require.NoError(t, release())
}
