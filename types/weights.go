package types

import (
	"fmt"
	"sort"
)

// WeightTable maps feature name onto a positive importance weight. Features
// absent from the table weigh 1.
type WeightTable map[string]float64

func DefaultWeights() WeightTable {
	return WeightTable{
		StressLevel:      4.5,
		SleepQuality:     3.5,
		PhysicalActivity: 2.5,
		AcademicLevel:    2.0,
		SleepDuration:    1.0,
		SystolicBP:       0.5,
		BMICategory:      0.5,
		HeartRate:        0.3,
		DiastolicBP:      0.2,
		DailySteps:       0.2,
		Age:              0.2,
		Gender:           0.1,
	}
}

func (w WeightTable) Get(feature string) float64 {
	if v, ok := w[feature]; ok {
		return v
	}
	return 1
}

// Validate checks every weighted feature is known and every weight positive.
func (w WeightTable) Validate() error {
	names := make([]string, 0, len(w))
	for name := range w {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, ok := LookupFeature(name); !ok {
			return fmt.Errorf("%w: weight for unknown feature %q", ErrConfig, name)
		}
		if !(w[name] > 0) {
			return fmt.Errorf("%w: weight for %q must be positive, got %v", ErrConfig, name, w[name])
		}
	}
	return nil
}

func (w WeightTable) Clone() WeightTable {
	out := make(WeightTable, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}
