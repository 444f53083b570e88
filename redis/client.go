package redis

import (
	"sleepdx.com/sdp/pipeline"
	"context"
	"errors"
	"fmt"
	"github.com/bsm/redislock"
	"github.com/go-redis/redis/v8"
	"github.com/kelseyhightower/envconfig"
	"time"
)

type DB int

// Client stores pipeline snapshots and guards retraining with a distributed lock.
type Client struct {
	client         redis.UniversalClient
	lockExpiration time.Duration
	lockRetries    int
	snapshotTTL    time.Duration
}

type Config struct {
	LockExpirationSeconds   int     `envconfig:"SDP_REDIS_LOCK_EXPIRATION" default:"120"`
	LockRetries             int     `envconfig:"SDP_REDIS_LOCK_RETRIES" default:"120"`
	SnapshotTTLHours        int     `envconfig:"SDP_REDIS_SNAPSHOT_TTL_HOURS" default:"0"`
	Host                    string  `envconfig:"SDP_REDIS_HOST" required:"true"`
	Port                    string  `envconfig:"SDP_REDIS_PORT" default:"6379"`
	HASentinelPort          string  `envconfig:"SDP_REDIS_HA_SENTINEL_PORT" default:"26379"`
	HASentinelMasterName    string  `envconfig:"SDP_REDIS_HA_MASTER_NAME" default:"mymaster"`
	Password                string  `envconfig:"SDP_REDIS_AUTH_PASSWORD" default:""`
	AuthRequired            bool    `envconfig:"SDP_REDIS_AUTH_REQUIRED" default:"false"`
	HAMode                  bool    `envconfig:"SDP_REDIS_HA_MODE" default:"false"`
	HASentinelSocketTimeout float32 `envconfig:"SDP_REDIS_SOCKET_TIMEOUT" default:"0.5"`
}

func NewClient(db DB) (*Client, error) {
	cfg, err := readEnvironment()
	if err != nil {
		return nil, err
	}
	var client redis.UniversalClient
	if cfg.HAMode {
		client = CreateClusterClient(cfg, db)
	} else {
		client = CreateClient(cfg, db)
	}
	return &Client{
		client:         client,
		lockExpiration: time.Duration(cfg.LockExpirationSeconds) * time.Second,
		lockRetries:    cfg.LockRetries,
		snapshotTTL:    time.Duration(cfg.SnapshotTTLHours) * time.Hour,
	}, nil
}

func CreateClusterClient(cfg *Config, db DB) *redis.ClusterClient {
	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.HASentinelPort)
	timeout := time.Duration(float64(cfg.HASentinelSocketTimeout) * float64(time.Second))
	options := redis.FailoverOptions{
		SentinelAddrs: []string{addr},
		ReadTimeout:   timeout,
		WriteTimeout:  timeout,
		MaxRetries:    6,
		DB:            int(db),
		MasterName:    cfg.HASentinelMasterName,
	}
	if cfg.AuthRequired {
		options.Password = cfg.Password
	}
	return redis.NewFailoverClusterClient(&options)
}

func CreateClient(cfg *Config, db DB) *redis.Client {
	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
	options := redis.Options{
		Addr:       addr,
		MaxRetries: 6,
		DB:         int(db),
	}
	if cfg.AuthRequired {
		options.Password = cfg.Password
	}
	return redis.NewClient(&options)
}

// Load returns the snapshot stored under key, pipeline.ErrSnapshotNotFound if absent.
func (client *Client) Load(ctx context.Context, key string) ([]byte, error) {
	buf, err := client.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, pipeline.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot %s: %w", key, err)
	}
	return buf, nil
}

func (client *Client) Save(ctx context.Context, key string, snapshot []byte) error {
	if err := client.client.Set(ctx, key, snapshot, client.snapshotTTL).Err(); err != nil {
		return fmt.Errorf("failed to save snapshot %s: %w", key, err)
	}
	return nil
}

// Lock blocks until the training lock for key is obtained or retries run out.
// Retries are a constant second apart, so a waiter gives up after about
// lockRetries seconds.
func (client *Client) Lock(ctx context.Context, key string) (pipeline.ReleaseLock, error) {
	lockCl := redislock.New(client.client)
	str := redislock.LimitRetry(redislock.LinearBackoff(time.Second), client.lockRetries)
	lock, err := lockCl.Obtain(ctx, LockKey(key), client.lockExpiration, &redislock.Options{RetryStrategy: str})
	if err != nil {
		return nil, fmt.Errorf("failed to obtain lock for %s: %w", key, err)
	}
	return func() error {
		return lock.Release(context.Background())
	}, nil
}

func LockKey(key string) string {
	return fmt.Sprintf("lock:%s", key)
}

func (client *Client) Ping(ctx context.Context) error {
	return client.client.Ping(ctx).Err()
}

func (client *Client) Close() error {
	return client.client.Close()
}

func readEnvironment() (*Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}
