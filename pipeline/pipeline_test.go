package pipeline

import (
	"sleepdx.com/sdp/dataset"
	"sleepdx.com/sdp/features"
	"sleepdx.com/sdp/types"
	"context"
	"errors"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sync"
	"testing"
)

func testConfig() types.TrainingConfig {
	cfg := types.DefaultTrainingConfig()
	cfg.Forest.Trees = 40
	return cfg
}

func syntheticDataset(t *testing.T, samples int) *types.LabeledDataset {
	ds, err := dataset.NewSynthesizer(types.SyntheticConfig{Samples: samples, Seed: 42}).Load(context.Background())
	require.NoError(t, err)
	return ds
}

var trained struct {
	once sync.Once
	ds   *types.LabeledDataset
	p    *FittedPipeline
	err  error
}

// sharedPipeline trains once with the production defaults.
func sharedPipeline(t *testing.T) (*types.LabeledDataset, *FittedPipeline) {
	trained.once.Do(func() {
		trained.ds, trained.err = dataset.NewSynthesizer(types.SyntheticConfig{Samples: 500, Seed: 42}).Load(context.Background())
		if trained.err == nil {
			trained.p, trained.err = Train(trained.ds, types.DefaultTrainingConfig())
		}
	})
	require.NoError(t, trained.err)
	return trained.ds, trained.p
}

func highRiskRecord() types.FeatureRecord {
	return types.FeatureRecord{
		types.Gender:           0,
		types.Age:              30,
		types.AcademicLevel:    3,
		types.SleepDuration:    5.0,
		types.SleepQuality:     2,
		types.PhysicalActivity: 10,
		types.StressLevel:      9,
		types.BMICategory:      1,
		types.HeartRate:        75,
		types.DailySteps:       8000,
		types.SystolicBP:       120,
		types.DiastolicBP:      80,
	}
}

func TestPredictOne(t *testing.T) {
	t.Run("Probabilities normalized", testProbabilitiesNormalized)
	t.Run("Key order irrelevant", testKeyOrder)
	t.Run("Missing feature rejected", testMissingFeature)
	t.Run("Unknown feature rejected", testUnknownFeature)
	t.Run("Invalid values rejected", testInvalidValues)
	t.Run("High risk record", testHighRisk)
	t.Run("Inference transform matches training", testTransformMatchesTraining)
	t.Run("Text categories resolved through codebook", testCodebookInput)
}

func TestTrain(t *testing.T) {
	t.Run("Held-out split untouched by balancing", testEvalSplitUntouched)
	t.Run("Deterministic", testTrainDeterministic)
	t.Run("Importances", testImportances)
	t.Run("Identity weights", testIdentityWeights)
	t.Run("Degenerate class", testDegenerateClass)
	t.Run("Invalid config", testInvalidConfig)
}

func TestSnapshot(t *testing.T) {
	t.Run("Round trip", testSnapshotRoundTrip)
	t.Run("Rejects bad input", testSnapshotRejects)
}

func testProbabilitiesNormalized(t *testing.T) {
	ds, p := sharedPipeline(t)
	for i := 0; i < ds.Len(); i += 7 {
		pred, err := p.PredictOne(ds.Record(i))
		require.NoError(t, err)
		require.Len(t, pred.Probabilities, 3)
		sum := 0.0
		for _, v := range pred.Probabilities {
			require.GreaterOrEqual(t, v, 0.0)
			require.LessOrEqual(t, v, 1.0)
			sum += v
		}
		require.InDelta(t, 1.0, sum, 1e-6)
		require.Equal(t, pred.Ranked()[0], pred.Label)
	}
}

func testKeyOrder(t *testing.T) {
	_, p := sharedPipeline(t)
	forward := types.FeatureRecord{}
	backward := types.FeatureRecord{}
	rec := highRiskRecord()
	names := types.CanonicalNames()
	for _, n := range names {
		forward[n] = rec[n]
	}
	for i := len(names) - 1; i >= 0; i-- {
		backward[names[i]] = rec[names[i]]
	}
	a, err := p.PredictOne(forward)
	require.NoError(t, err)
	b, err := p.PredictOne(backward)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func testMissingFeature(t *testing.T) {
	_, p := sharedPipeline(t)
	rec := highRiskRecord()
	delete(rec, types.StressLevel)
	_, err := p.PredictOne(rec)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrSchema))
	var schemaErr *types.SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, []string{types.StressLevel}, schemaErr.Missing)
}

func testUnknownFeature(t *testing.T) {
	_, p := sharedPipeline(t)
	rec := highRiskRecord()
	rec["caffeine_intake"] = 3
	_, err := p.PredictOne(rec)
	var schemaErr *types.SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, []string{"caffeine_intake"}, schemaErr.Unknown)
	assert.Empty(t, schemaErr.Missing)
}

func testInvalidValues(t *testing.T) {
	_, p := sharedPipeline(t)
	values := map[string]interface{}{}
	for k, v := range highRiskRecord() {
		values[k] = v
	}
	values[types.StressLevel] = "very high"
	values[types.HeartRate] = "NaN"
	_, err := p.Predict(values)
	var schemaErr *types.SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, []string{types.HeartRate, types.StressLevel}, schemaErr.Invalid)
}

func testHighRisk(t *testing.T) {
	_, p := sharedPipeline(t)
	pred, err := p.PredictOne(highRiskRecord())
	require.NoError(t, err)
	assert.Contains(t, []string{types.LabelInsomnia, types.LabelSleepApnea}, pred.Label)
	ranked := pred.Ranked()
	assert.Equal(t, types.LabelNone, ranked[len(ranked)-1])
}

func testTransformMatchesTraining(t *testing.T) {
	ds, p := sharedPipeline(t)
	weighted := features.NewWeighting(ds.Schema, types.DefaultWeights()).Apply(ds.Rows)
	scaled := p.scaler.Transform(weighted)
	for _, i := range []int{0, 13, 250, ds.Len() - 1} {
		x, err := p.vectorize(ds.Record(i))
		require.NoError(t, err)
		if diff := cmp.Diff([]float64(scaled[i]), x); diff != "" {
			t.Fatalf("row %d differs from its training-time vector:\n%s", i, diff)
		}
		// weighting a second time would move the vector
		twice := p.scaler.TransformRow(p.weighting.ApplyRow(weighted[i]))
		assert.NotEqual(t, x, twice)
	}
}

func testCodebookInput(t *testing.T) {
	_, p := sharedPipeline(t)
	numeric := map[string]interface{}{}
	text := map[string]interface{}{}
	for k, v := range highRiskRecord() {
		numeric[k] = v
		text[k] = v
	}
	text[types.Gender] = "Female"
	text[types.AcademicLevel] = "Level 4"
	text[types.BMICategory] = "Overweight"
	text[types.SleepDuration] = "5.0"
	a, err := p.Predict(numeric)
	require.NoError(t, err)
	b, err := p.Predict(text)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func testEvalSplitUntouched(t *testing.T) {
	ds, p := sharedPipeline(t)
	cfg := types.DefaultTrainingConfig()
	_, testIdx := StratifiedSplit(ds.Labels, cfg.TestRatio, cfg.Seed)
	ev := p.Evaluation()
	require.NotNil(t, ev)
	assert.Equal(t, len(testIdx), ev.Rows)

	want := map[string]int{}
	for _, i := range testIdx {
		want[ds.Labels[i]]++
	}
	got := map[string]int{}
	for _, r := range ev.PerClass {
		got[r.Class] = r.Support
	}
	assert.Equal(t, want, got)
}

func testTrainDeterministic(t *testing.T) {
	ds := syntheticDataset(t, 300)
	cfg := testConfig()
	a, err := Train(ds, cfg)
	require.NoError(t, err)
	cfg.Forest.Workers = 1
	b, err := Train(ds, cfg)
	require.NoError(t, err)
	bufA, err := EncodeSnapshot(a)
	require.NoError(t, err)
	bufB, err := EncodeSnapshot(b)
	require.NoError(t, err)
	assert.Equal(t, bufA, bufB)
}

func testImportances(t *testing.T) {
	_, p := sharedPipeline(t)
	imp := p.Importances()
	require.Len(t, imp, len(types.CanonicalNames()))
	sum := 0.0
	for _, v := range imp {
		require.GreaterOrEqual(t, v, 0.0)
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
}

func testIdentityWeights(t *testing.T) {
	ds := syntheticDataset(t, 200)
	cfg := testConfig()
	cfg.Weights = types.WeightTable{}
	p, err := Train(ds, cfg)
	require.NoError(t, err)
	for _, f := range p.weighting.Factors() {
		assert.Equal(t, 1.0, f)
	}
	assert.Equal(t, ds.Rows[3], p.weighting.ApplyRow(ds.Rows[3]))
}

func testDegenerateClass(t *testing.T) {
	ds := syntheticDataset(t, 120)
	// a single-member class is kept in training and left unbalanced
	ds.Labels[5] = "Narcolepsy"
	p, err := Train(ds, testConfig())
	require.NoError(t, err)
	assert.Contains(t, p.Classes(), "Narcolepsy")
	pred, err := p.PredictOne(ds.Record(0))
	require.NoError(t, err)
	assert.Len(t, pred.Probabilities, 4)
}

func testInvalidConfig(t *testing.T) {
	ds := syntheticDataset(t, 50)
	cfg := testConfig()
	cfg.Weights = types.WeightTable{"shoe_size": 2}
	_, err := Train(ds, cfg)
	assert.True(t, errors.Is(err, types.ErrConfig))

	_, err = Train(&types.LabeledDataset{}, testConfig())
	assert.Error(t, err)
}

func testSnapshotRoundTrip(t *testing.T) {
	ds, p := sharedPipeline(t)
	buf, err := EncodeSnapshot(p)
	require.NoError(t, err)
	q, err := DecodeSnapshot(buf)
	require.NoError(t, err)

	assert.Equal(t, p.Summary(), q.Summary())
	for i := 0; i < ds.Len(); i += 50 {
		a, err := p.PredictOne(ds.Record(i))
		require.NoError(t, err)
		b, err := q.PredictOne(ds.Record(i))
		require.NoError(t, err)
		assert.Equal(t, a, b)
	}
}

func testSnapshotRejects(t *testing.T) {
	_, err := DecodeSnapshot([]byte("not msgpack"))
	assert.Error(t, err)

	_, p := sharedPipeline(t)
	p2 := *p
	p2.schema = types.Schema{Version: types.SchemaVersion + 1, Features: p.schema.Features}
	buf, err := EncodeSnapshot(&p2)
	require.NoError(t, err)
	_, err = DecodeSnapshot(buf)
	assert.Error(t, err)
}

func TestStratifiedSplit(t *testing.T) {
	labels := []string{}
	for i := 0; i < 50; i++ {
		labels = append(labels, "None")
	}
	for i := 0; i < 20; i++ {
		labels = append(labels, "Insomnia")
	}
	labels = append(labels, "Rare")

	train, test := StratifiedSplit(labels, 0.2, 42)
	assert.Len(t, test, 14)
	assert.Len(t, train, 57)
	seen := map[int]bool{}
	for _, i := range append(append([]int{}, train...), test...) {
		require.False(t, seen[i])
		seen[i] = true
	}
	assert.Len(t, seen, len(labels))
	assert.Contains(t, train, 70)

	again, _ := StratifiedSplit(labels, 0.2, 42)
	assert.Equal(t, train, again)
}

func TestEvaluate(t *testing.T) {
	classes := []string{"a", "b"}
	ev := Evaluate(classes, []string{"a", "a", "b", "b"}, []string{"a", "b", "b", "b"})
	assert.Equal(t, [][]int{{1, 1}, {0, 2}}, ev.Confusion)
	assert.Equal(t, 0.75, ev.Accuracy)
	assert.Equal(t, ClassReport{Class: "a", Precision: 1, Recall: 0.5, F1: 2.0 / 3.0, Support: 2}, ev.PerClass[0])
	assert.InDelta(t, 2.0/3.0, ev.PerClass[1].Precision, 1e-12)
	assert.Equal(t, 1.0, ev.PerClass[1].Recall)
}
