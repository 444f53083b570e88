package dataset

import (
	"sleepdx.com/sdp/types"
	"sleepdx.com/sdp/utils"
	"context"
	"fmt"
	"math/rand"
)

const SyntheticSourceName = "synthetic"

// maxSeedAttempts bounds the seed+1 retries made to get every label at least once.
const maxSeedAttempts = 16

// Synthesizer deterministically fabricates a labeled dataset.
type Synthesizer struct {
	Samples int
	Seed    int64
}

func NewSynthesizer(cfg types.SyntheticConfig) *Synthesizer {
	return &Synthesizer{Samples: cfg.Samples, Seed: cfg.Seed}
}

func (s *Synthesizer) Name() string {
	return SyntheticSourceName
}

// Load never fails for a positive sample count.
func (s *Synthesizer) Load(_ context.Context) (*types.LabeledDataset, error) {
	if s.Samples < 1 {
		return nil, fmt.Errorf("%w: synthetic generator needs at least one sample", types.ErrConfig)
	}
	var ds *types.LabeledDataset
	for attempt := 0; attempt < maxSeedAttempts; attempt++ {
		seed := s.Seed + int64(attempt)
		ds = s.Generate(seed)
		if len(ds.Classes()) == len(allLabels) {
			if attempt > 0 {
				datasetLogger.Info().Int64("seed", seed).Msg("Synthetic seed advanced to cover every label")
			}
			return ds, nil
		}
	}
	datasetLogger.Warn().
		Int("samples", s.Samples).
		Strs("labels", ds.Classes()).
		Msg("Synthetic data does not cover every label")
	return ds, nil
}

var allLabels = []string{types.LabelInsomnia, types.LabelNone, types.LabelSleepApnea}

// Generate draws every feature column for all samples, then one label per
// row from the label table. Identical seeds give identical datasets.
func (s *Synthesizer) Generate(seed int64) *types.LabeledDataset {
	rnd := rand.New(rand.NewSource(seed))
	n := s.Samples
	schema := types.FullSchema()
	columns := map[string][]float64{}
	intn := func(lo, hi int) func() float64 {
		return func() float64 { return float64(lo + rnd.Intn(hi-lo)) }
	}
	draws := []struct {
		name string
		draw func() float64
	}{
		{types.Gender, intn(0, 2)},
		{types.Age, intn(18, 65)},
		{types.AcademicLevel, intn(0, 4)},
		{types.SleepDuration, func() float64 { return utils.Clamp(7+1.5*rnd.NormFloat64(), 3, 12) }},
		{types.SleepQuality, intn(1, 11)},
		{types.PhysicalActivity, intn(15, 120)},
		{types.StressLevel, intn(1, 11)},
		{types.BMICategory, intn(0, 3)},
		{types.HeartRate, intn(55, 110)},
		{types.DailySteps, intn(2000, 15000)},
		{types.SystolicBP, intn(100, 160)},
		{types.DiastolicBP, intn(60, 100)},
	}
	for _, d := range draws {
		col := make([]float64, n)
		for i := range col {
			col[i] = d.draw()
		}
		columns[d.name] = col
	}

	ds := &types.LabeledDataset{
		Source:   SyntheticSourceName,
		Schema:   schema,
		Rows:     make([][]float64, n),
		Labels:   make([]string, n),
		Codebook: types.DefaultCodebook(),
	}
	for i := 0; i < n; i++ {
		row := make([]float64, schema.Len())
		for j, name := range schema.Features {
			row[j] = columns[name][i]
		}
		ds.Rows[i] = row
		rec := ds.Record(i)
		ds.Labels[i] = LabelDistribution(TierOf(rec), rec).Draw(rnd.Float64())
	}
	return ds
}
