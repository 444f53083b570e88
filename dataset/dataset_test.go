package dataset

import (
	"sleepdx.com/sdp/types"
	"context"
	"errors"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSynthesizer(t *testing.T) {
	t.Run("Deterministic", testSyntheticDeterministic)
	t.Run("Every label present", testSyntheticLabels)
	t.Run("Ranges", testSyntheticRanges)
	t.Run("Seed changes data", testSyntheticSeed)
}

func TestLabelTable(t *testing.T) {
	t.Run("Cells sum to one", testCellsSumToOne)
	t.Run("Tiers", testTiers)
	t.Run("Conditioned cells", testConditionedCells)
	t.Run("Draw", testDraw)
}

func TestCSV(t *testing.T) {
	t.Run("Display headers and text categories", testCSVDisplayHeaders)
	t.Run("Canonical headers", testCSVCanonical)
	t.Run("Missing label column", testCSVNoLabel)
	t.Run("Non numeric value", testCSVNonNumeric)
}

func TestProvider(t *testing.T) {
	t.Run("Falls back to synthetic", testProviderFallback)
	t.Run("Reads file source", testProviderFile)
	t.Run("Reads S3 source", testProviderS3)
}

func testSyntheticDeterministic(t *testing.T) {
	cfg := types.SyntheticConfig{Samples: 200, Seed: 42}
	a, err := NewSynthesizer(cfg).Load(context.Background())
	require.NoError(t, err)
	b, err := NewSynthesizer(cfg).Load(context.Background())
	require.NoError(t, err)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("synthetic datasets differ:\n%s", diff)
	}
	assert.Equal(t, a.GetHashCode(), b.GetHashCode())
}

func testSyntheticLabels(t *testing.T) {
	ds, err := NewSynthesizer(types.SyntheticConfig{Samples: 500, Seed: 42}).Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 500, ds.Len())
	assert.Equal(t, []string{types.LabelInsomnia, types.LabelNone, types.LabelSleepApnea}, ds.Classes())
	assert.Equal(t, SyntheticSourceName, ds.Source)
	assert.True(t, ds.Schema.Equal(types.FullSchema()))
}

func testSyntheticRanges(t *testing.T) {
	ds := (&Synthesizer{Samples: 300}).Generate(7)
	bounds := map[string][2]float64{
		types.Gender:           {0, 1},
		types.Age:              {18, 64},
		types.AcademicLevel:    {0, 3},
		types.SleepDuration:    {3, 12},
		types.SleepQuality:     {1, 10},
		types.PhysicalActivity: {15, 119},
		types.StressLevel:      {1, 10},
		types.BMICategory:      {0, 2},
		types.HeartRate:        {55, 109},
		types.DailySteps:       {2000, 14999},
		types.SystolicBP:       {100, 159},
		types.DiastolicBP:      {60, 99},
	}
	for i := 0; i < ds.Len(); i++ {
		for name, v := range ds.Record(i) {
			b := bounds[name]
			require.GreaterOrEqual(t, v, b[0], name)
			require.LessOrEqual(t, v, b[1], name)
		}
	}
}

func testSyntheticSeed(t *testing.T) {
	s := &Synthesizer{Samples: 50}
	assert.NotEqual(t, s.Generate(1).GetHashCode(), s.Generate(2).GetHashCode())
}

func record(level, stress float64) types.FeatureRecord {
	return types.FeatureRecord{
		types.Gender:           0,
		types.Age:              30,
		types.AcademicLevel:    level,
		types.SleepDuration:    8,
		types.SleepQuality:     8,
		types.PhysicalActivity: 60,
		types.StressLevel:      stress,
		types.BMICategory:      0,
		types.HeartRate:        70,
		types.DailySteps:       9000,
		types.SystolicBP:       115,
		types.DiastolicBP:      75,
	}
}

func testCellsSumToOne(t *testing.T) {
	for _, tier := range []Tier{TierLow, TierMedium, TierHigh} {
		for level := 0.0; level <= 3; level++ {
			for _, stress := range []float64{1, 5, 6, 8, 10} {
				for _, hr := range []float64{70, 95} {
					rec := record(level, stress)
					rec[types.HeartRate] = hr
					d := LabelDistribution(tier, rec)
					total := 0.0
					for _, o := range d {
						require.Greater(t, o.P, 0.0)
						total += o.P
					}
					require.InDelta(t, 1.0, total, 1e-9, "%s L%v stress %v", tier, level, stress)
				}
			}
		}
	}
}

func testTiers(t *testing.T) {
	// stress 5*1 + quality 3*3 = 14, level 0 multiplier 0.5
	low := record(0, 1)
	assert.InDelta(t, 7.0, RiskScore(low), 1e-9)
	assert.Equal(t, TierLow, TierOf(low))

	high := record(3, 9)
	high[types.SleepQuality] = 2
	high[types.PhysicalActivity] = 10
	assert.Equal(t, TierHigh, TierOf(high))

	// score clears the high threshold but stress is below 7 - level
	medium := record(0, 6)
	medium[types.SleepQuality] = 1
	medium[types.PhysicalActivity] = 15
	assert.Greater(t, RiskScore(medium), 25.0)
	assert.Equal(t, TierMedium, TierOf(medium))
}

func testConditionedCells(t *testing.T) {
	rec := record(1, 9)
	assert.Equal(t, 1.0, LabelDistribution(TierHigh, rec).Probability(types.LabelInsomnia))
	rec[types.SystolicBP] = 150
	assert.Equal(t, 0.6, LabelDistribution(TierHigh, rec).Probability(types.LabelSleepApnea))

	rec = record(0, 9)
	assert.Equal(t, 1.0, LabelDistribution(TierHigh, rec).Probability(types.LabelNone))
	rec[types.HeartRate] = 95
	assert.Equal(t, 1.0, LabelDistribution(TierHigh, rec).Probability(types.LabelSleepApnea))

	assert.Equal(t, 1.0, LabelDistribution(TierLow, record(1, 10)).Probability(types.LabelNone))
	assert.Equal(t, 0.25, LabelDistribution(TierLow, record(3, 5)).Probability(types.LabelInsomnia))
	assert.Equal(t, 1.0, LabelDistribution(TierLow, record(3, 4)).Probability(types.LabelNone))
	assert.InDelta(t, 0.09, LabelDistribution(TierMedium, record(1, 3)).Probability(types.LabelSleepApnea), 1e-12)
}

func testDraw(t *testing.T) {
	d := Distribution{{types.LabelInsomnia, 0.25}, {types.LabelNone, 0.75}}
	assert.Equal(t, types.LabelInsomnia, d.Draw(0))
	assert.Equal(t, types.LabelInsomnia, d.Draw(0.2499))
	assert.Equal(t, types.LabelNone, d.Draw(0.25))
	assert.Equal(t, types.LabelNone, d.Draw(0.9999999))
}

const displayCSV = `Person ID,Gender,Age,Academic Level,Sleep Duration,Quality of Sleep,Physical Activity Level,Stress Level,BMI Category,Heart Rate (bpm),Daily Steps,Systolic BP,Diastolic BP,Sleep Disorder
1,Male,27,Level 2,6.1,6,42,6,Overweight,77,4200,126,83,None
2,Female,28,Level 1,6.2,6,60,8,Normal,75,10000,125,80,Insomnia
3,Male,44,Level 4,5.9,4,30,8,Obese,85,3000,140,90,Sleep Apnea
4,Female,52,Level 3,7.8,8,75,3,Normal,68,8000,118,76,
`

func testCSVDisplayHeaders(t *testing.T) {
	ds, err := ParseCSV("test", strings.NewReader(displayCSV))
	require.NoError(t, err)
	require.Equal(t, 4, ds.Len())
	assert.True(t, ds.Schema.Equal(types.FullSchema()))
	assert.Equal(t, []string{"None", "Insomnia", "Sleep Apnea", "None"}, ds.Labels)

	want := types.Codebook{
		types.Gender:        {"Female": 0, "Male": 1},
		types.AcademicLevel: {"Level 1": 0, "Level 2": 1, "Level 3": 2, "Level 4": 3},
		types.BMICategory:   {"Normal": 0, "Obese": 1, "Overweight": 2},
	}
	if diff := cmp.Diff(want, ds.Codebook); diff != "" {
		t.Fatalf("codebook mismatch (-want +got):\n%s", diff)
	}
	rec := ds.Record(0)
	assert.Equal(t, 1.0, rec[types.Gender])
	assert.Equal(t, 1.0, rec[types.AcademicLevel])
	assert.Equal(t, 2.0, rec[types.BMICategory])
	assert.Equal(t, 6.1, rec[types.SleepDuration])
	assert.Equal(t, 77.0, rec[types.HeartRate])
}

func testCSVCanonical(t *testing.T) {
	in := "stress_level,sleep_quality,sleep_disorder\n7,3,Insomnia\n2,9,None\n"
	ds, err := ParseCSV("test", strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{types.SleepQuality, types.StressLevel}, ds.Schema.Features)
	assert.Equal(t, [][]float64{{3, 7}, {9, 2}}, ds.Rows)
	assert.Empty(t, ds.Codebook)
}

func testCSVNoLabel(t *testing.T) {
	_, err := ParseCSV("test", strings.NewReader("stress_level\n3\n"))
	assert.Error(t, err)
	_, err = ParseCSV("test", strings.NewReader(""))
	assert.Error(t, err)
}

func testCSVNonNumeric(t *testing.T) {
	_, err := ParseCSV("test", strings.NewReader("stress_level,sleep_disorder\nhigh,None\n"))
	assert.Error(t, err)
}

func testProviderFallback(t *testing.T) {
	cfg := types.SyntheticConfig{Samples: 100, Seed: 3}
	p := NewProvider(cfg, NewFileSource(filepath.Join(t.TempDir(), "absent.csv")))
	ds, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SyntheticSourceName, ds.Source)

	want, err := NewSynthesizer(cfg).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want.GetHashCode(), ds.GetHashCode())

	_, err = NewFileSource(filepath.Join(t.TempDir(), "absent.csv")).Load(context.Background())
	assert.True(t, errors.Is(err, types.ErrDataUnavailable))
}

func testProviderFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scoring_sleep.csv")
	require.NoError(t, os.WriteFile(path, []byte(displayCSV), 0o600))
	ds, err := NewProvider(types.SyntheticConfig{Samples: 10, Seed: 1}, NewFileSource(path)).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "file:"+path, ds.Source)
	assert.Equal(t, 4, ds.Len())
}

type mockDownloader struct {
	keys []string
	body []byte
	err  error
}

func (m *mockDownloader) Download(key string) ([]byte, error) {
	m.keys = append(m.keys, key)
	return m.body, m.err
}

func testProviderS3(t *testing.T) {
	failing := &mockDownloader{err: errors.New("no such key")}
	working := &mockDownloader{body: []byte(displayCSV)}
	p := NewProvider(types.SyntheticConfig{Samples: 10, Seed: 1},
		NewS3Source(failing, "a.csv"),
		NewS3Source(working, "b.csv"))
	ds, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "s3:b.csv", ds.Source)
	assert.Equal(t, []string{"a.csv"}, failing.keys)
	assert.Equal(t, []string{"b.csv"}, working.keys)
}
