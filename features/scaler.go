package features

import (
	"math"
)

// ScalerParams hold per-feature mean and population standard deviation.
type ScalerParams struct {
	Mean []float64 `msgpack:"mean" json:"mean"`
	Std  []float64 `msgpack:"std" json:"std"`
}

// FitScaler computes standardization parameters over X. Columns with zero
// variance get a unit std; their indices are returned so callers can log them.
func FitScaler(X Weighted) (ScalerParams, []int) {
	if len(X) == 0 {
		return ScalerParams{}, nil
	}
	r, c := len(X), len(X[0])
	params := ScalerParams{
		Mean: make([]float64, c),
		Std:  make([]float64, c),
	}
	var degenerate []int
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			params.Mean[j] += X[i][j]
		}
		params.Mean[j] /= float64(r)
		v := 0.0
		for i := 0; i < r; i++ {
			d := X[i][j] - params.Mean[j]
			v += d * d
		}
		v /= float64(r)
		params.Std[j] = math.Sqrt(v)
		if params.Std[j] == 0 {
			params.Std[j] = 1
			degenerate = append(degenerate, j)
		}
	}
	return params, degenerate
}

// TransformRow standardizes one weighted row without touching the input.
func (p ScalerParams) TransformRow(row []float64) []float64 {
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - p.Mean[j]) / p.Std[j]
	}
	return out
}

func (p ScalerParams) Transform(X Weighted) Scaled {
	out := make(Scaled, len(X))
	for i, row := range X {
		out[i] = p.TransformRow(row)
	}
	return out
}
