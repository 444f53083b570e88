package pipeline

import (
	"sleepdx.com/sdp/balance"
	"sleepdx.com/sdp/features"
	"sleepdx.com/sdp/forest"
	"sleepdx.com/sdp/logger"
	"sleepdx.com/sdp/types"
	"sleepdx.com/sdp/utils"
	"errors"
	"fmt"
	"sort"
)

var trainLogger = logger.NewLogger("Training")

// Train runs weighting, stratified split, balancing of the training split,
// scaling and forest training over ds, then scores the held-out split.
func Train(ds *types.LabeledDataset, cfg types.TrainingConfig) (p *FittedPipeline, err error) {
	defer utils.RecoverWithError(&err)
	errLogger := trainLogger.With().Caller().Logger()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if ds == nil || ds.Len() == 0 {
		return nil, errors.New("cannot train on an empty dataset")
	}
	if ds.Schema.Len() == 0 {
		return nil, errors.New("dataset declares no features")
	}

	weighting := features.NewWeighting(ds.Schema, cfg.Weights)
	weighted := weighting.Apply(ds.Rows)

	trainIdx, testIdx := StratifiedSplit(ds.Labels, cfg.TestRatio, cfg.Seed)
	trainX, trainY := subset(weighted, ds.Labels, trainIdx)
	testX, testY := subset(weighted, ds.Labels, testIdx)

	balanced := balance.New(
		balance.WithNeighbors(cfg.Balancer.Neighbors),
		balance.WithRandomState(cfg.Seed),
	).Balance(trainX, trainY)
	for _, skipped := range balanced.Skipped {
		trainLogger.Warn().Err(skipped).Str("class", skipped.Class).Int("count", skipped.Count).Msg("Class left unbalanced")
	}

	scaler, degenerate := features.FitScaler(balanced.X)
	for _, j := range degenerate {
		trainLogger.Debug().Str("feature", ds.Schema.Features[j]).Msg("Zero variance feature scaled with unit std")
	}

	model := forest.New(
		forest.WithNEstimators(cfg.Forest.Trees),
		forest.WithMaxDepth(cfg.Forest.MaxDepth),
		forest.WithMinSamplesSplit(cfg.Forest.MinSamplesSplit),
		forest.WithMinSamplesLeaf(cfg.Forest.MinSamplesLeaf),
		forest.WithMaxFeatures(cfg.Forest.MaxFeatures),
		forest.WithRandomState(cfg.Seed),
		forest.WithWorkers(cfg.Forest.Workers),
	)
	if err := model.Fit(scaler.Transform(balanced.X), balanced.Y); err != nil {
		errLogger.Err(err).Msg("Failed to train forest")
		return nil, fmt.Errorf("failed to train forest: %w", err)
	}

	p = &FittedPipeline{
		schema:      ds.Schema,
		weights:     cfg.Weights.Clone(),
		weighting:   weighting,
		scaler:      scaler,
		model:       model,
		codebook:    ds.Codebook,
		source:      ds.Source,
		rows:        ds.Len(),
		classCounts: ds.ClassCounts(),
		datasetHash: ds.GetHashCode(),
		configHash:  ConfigHash(cfg),
	}
	if len(testIdx) > 0 {
		predicted, err := model.PredictBatch(scaler.Transform(testX))
		if err != nil {
			return nil, fmt.Errorf("failed to score held-out split: %w", err)
		}
		p.evaluation = Evaluate(model.Classes, testY, predicted)
	}

	trainLogger.Info().
		Str("source", ds.Source).
		Str("dataset_hash", hashKey(p.datasetHash)).
		Int("train_rows", len(trainIdx)).
		Int("balanced_rows", len(balanced.Y)).
		Int("test_rows", len(testIdx)).
		Strs("classes", model.Classes).
		Float64("accuracy", accuracy(p.evaluation)).
		Msg("Pipeline trained")
	return p, nil
}

func subset(X features.Weighted, y []string, idx []int) (features.Weighted, []string) {
	outX := make(features.Weighted, len(idx))
	outY := make([]string, len(idx))
	for n, i := range idx {
		outX[n] = X[i]
		outY[n] = y[i]
	}
	return outX, outY
}

func accuracy(ev *Evaluation) float64 {
	if ev == nil {
		return 0
	}
	return ev.Accuracy
}

// ConfigHash digests the parts of cfg that change the trained result.
func ConfigHash(cfg types.TrainingConfig) uint64 {
	h := utils.NewHasher()
	names := make([]string, 0, len(cfg.Weights))
	for name := range cfg.Weights {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		h.String(name)
		h.Float64(cfg.Weights[name])
	}
	h.Float64(cfg.TestRatio)
	h.Uint64(uint64(cfg.Seed))
	h.Uint64(uint64(cfg.Balancer.Neighbors))
	h.Uint64(uint64(cfg.Forest.Trees))
	h.Uint64(uint64(cfg.Forest.MaxDepth))
	h.Uint64(uint64(cfg.Forest.MinSamplesSplit))
	h.Uint64(uint64(cfg.Forest.MinSamplesLeaf))
	h.Uint64(uint64(cfg.Forest.MaxFeatures))
	return h.Sum64()
}

func hashKey(h uint64) string {
	return fmt.Sprintf("%016x", h)
}
