package dataset

import (
	"sleepdx.com/sdp/types"
	"context"
)

// Provider tries its sources in order and falls back to synthetic data when
// none of them is available.
type Provider struct {
	sources  []Source
	fallback *Synthesizer
}

func NewProvider(cfg types.SyntheticConfig, sources ...Source) *Provider {
	return &Provider{sources: sources, fallback: NewSynthesizer(cfg)}
}

// Load returns the first dataset a source yields. Unavailable sources are
// logged and skipped; the synthetic fallback is used last.
func (p *Provider) Load(ctx context.Context) (*types.LabeledDataset, error) {
	for _, src := range p.sources {
		ds, err := src.Load(ctx)
		if err != nil {
			datasetLogger.Warn().Err(err).Str("source", src.Name()).Msg("Dataset source unavailable")
			continue
		}
		logSchema(ds)
		return ds, nil
	}
	ds, err := p.fallback.Load(ctx)
	if err != nil {
		return nil, err
	}
	logSchema(ds)
	return ds, nil
}

func logSchema(ds *types.LabeledDataset) {
	declared := types.CanonicalNames()
	datasetLogger.Info().
		Str("source", ds.Source).
		Int("rows", ds.Len()).
		Strs("declared", declared).
		Strs("used", ds.Schema.Features).
		Strs("absent", ds.Schema.Missing()).
		Interface("class_counts", ds.ClassCounts()).
		Msg("Dataset loaded")
}
