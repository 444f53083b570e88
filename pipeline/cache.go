package pipeline

import (
	"sleepdx.com/sdp/logger"
	"sleepdx.com/sdp/types"
	"context"
	"errors"
	"fmt"
	"sync"
)

var cacheLogger = logger.NewLogger("PipelineCache")

var ErrSnapshotNotFound = errors.New("snapshot not found")

type ReleaseLock func() error

// Store keeps encoded snapshots shared between processes. Load returns
// ErrSnapshotNotFound for an absent key.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, snapshot []byte) error
	Lock(ctx context.Context, key string) (ReleaseLock, error)
}

// Cache memoizes the fitted pipeline of the latest dataset by content and
// training configuration. Filling a new key drops the previous entry. Misses
// are trained one at a time.
type Cache struct {
	cfg     types.TrainingConfig
	store   Store
	mu      sync.Mutex
	entries map[string]*FittedPipeline
}

// NewCache returns a cache. store may be nil.
func NewCache(cfg types.TrainingConfig, store Store) *Cache {
	return &Cache{cfg: cfg, store: store, entries: make(map[string]*FittedPipeline)}
}

// Key identifies the pipeline trained from ds under the cache's configuration.
func (c *Cache) Key(ds *types.LabeledDataset) string {
	return fmt.Sprintf("sdp:pipeline:%s:%s", hashKey(ds.GetHashCode()), hashKey(ConfigHash(c.cfg)))
}

// Get returns the pipeline for ds. Lookups go to memory, then the store, and
// only then train; a freshly trained pipeline is written back to the store.
func (c *Cache) Get(ctx context.Context, ds *types.LabeledDataset) (*FittedPipeline, error) {
	key := c.Key(ds)
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.entries[key]; ok {
		return p, nil
	}
	p, err := c.fill(ctx, key, ds)
	if err != nil {
		return nil, err
	}
	c.entries = map[string]*FittedPipeline{key: p}
	return p, nil
}

func (c *Cache) fill(ctx context.Context, key string, ds *types.LabeledDataset) (*FittedPipeline, error) {
	log := cacheLogger.With().Str("key", key).Logger()
	if c.store == nil {
		return Train(ds, c.cfg)
	}
	if p := c.loadSnapshot(ctx, key, ds); p != nil {
		return p, nil
	}

	release, err := c.store.Lock(ctx, key)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to obtain training lock, training without it")
	} else {
		defer func() {
			if rErr := release(); rErr != nil {
				log.Warn().Err(rErr).Msg("Failed to release training lock")
			}
		}()
		// another process may have finished while we waited for the lock
		if p := c.loadSnapshot(ctx, key, ds); p != nil {
			return p, nil
		}
	}

	p, err := Train(ds, c.cfg)
	if err != nil {
		return nil, err
	}
	buf, err := EncodeSnapshot(p)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to encode snapshot")
		return p, nil
	}
	if err := c.store.Save(ctx, key, buf); err != nil {
		log.Warn().Err(err).Msg("Failed to save snapshot")
	}
	return p, nil
}

func (c *Cache) loadSnapshot(ctx context.Context, key string, ds *types.LabeledDataset) *FittedPipeline {
	log := cacheLogger.With().Str("key", key).Logger()
	buf, err := c.store.Load(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrSnapshotNotFound) {
			log.Warn().Err(err).Msg("Failed to load snapshot")
		}
		return nil
	}
	p, err := DecodeSnapshot(buf)
	if err != nil {
		log.Warn().Err(err).Msg("Discarding unreadable snapshot")
		return nil
	}
	if p.datasetHash != ds.GetHashCode() || !p.schema.Equal(ds.Schema) {
		log.Warn().Msg("Discarding snapshot of another dataset")
		return nil
	}
	log.Info().Msg("Pipeline loaded from snapshot store")
	return p
}

// Len reports the number of memoized pipelines.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
