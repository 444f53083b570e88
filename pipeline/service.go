package pipeline

import (
	"sleepdx.com/sdp/logger"
	"sleepdx.com/sdp/types"
	"context"
	"sync"
	"sync/atomic"
)

var serviceLogger = logger.NewLogger("PipelineService")

// Loader yields the dataset to train from.
type Loader interface {
	Load(ctx context.Context) (*types.LabeledDataset, error)
}

// Service owns the current pipeline. Readers never block; reloads are
// serialized and publish by pointer swap, so a reader sees the old or the
// complete new pipeline.
type Service struct {
	loader   Loader
	cache    *Cache
	reloadMu sync.Mutex
	current  atomic.Pointer[FittedPipeline]
}

func NewService(loader Loader, cache *Cache) *Service {
	return &Service{loader: loader, cache: cache}
}

// Pipeline returns the published pipeline or types.ErrNotTrained.
func (s *Service) Pipeline() (*FittedPipeline, error) {
	p := s.current.Load()
	if p == nil {
		return nil, types.ErrNotTrained
	}
	return p, nil
}

// Reload loads the dataset and publishes its pipeline. changed is false when
// the content matches the published pipeline. On error the previous pipeline
// stays in place.
func (s *Service) Reload(ctx context.Context) (changed bool, err error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	ds, err := s.loader.Load(ctx)
	if err != nil {
		return false, err
	}
	key := s.cache.Key(ds)
	if prev := s.current.Load(); prev != nil && prev.DatasetHash() == ds.GetHashCode() && prev.ConfigHash() == ConfigHash(s.cache.cfg) {
		serviceLogger.Info().Str("key", key).Msg("Dataset unchanged, keeping pipeline")
		return false, nil
	}
	p, err := s.cache.Get(ctx, ds)
	if err != nil {
		serviceLogger.Error().Err(err).Str("key", key).Msg("Failed to build pipeline")
		return false, err
	}
	s.current.Store(p)
	serviceLogger.Info().Str("key", key).Str("source", ds.Source).Msg("Pipeline published")
	return true, nil
}

// Predict runs one inference call against the published pipeline.
func (s *Service) Predict(values map[string]interface{}) (Prediction, error) {
	p, err := s.Pipeline()
	if err != nil {
		return Prediction{}, err
	}
	return p.Predict(values)
}
