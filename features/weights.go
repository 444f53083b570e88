package features

import (
	"sleepdx.com/sdp/types"
	"math"
)

// Weighted rows have had the sqrt(weight) multiplier applied exactly once.
type Weighted [][]float64

// Scaled rows are standardized weighted rows.
type Scaled [][]float64

// Weighting multiplies every column f by sqrt(w_f). Features missing from the
// weight table keep a factor of 1.
type Weighting struct {
	schema  types.Schema
	factors []float64
}

func NewWeighting(schema types.Schema, weights types.WeightTable) *Weighting {
	factors := make([]float64, schema.Len())
	for i, name := range schema.Features {
		factors[i] = math.Sqrt(weights.Get(name))
	}
	return &Weighting{schema: schema, factors: factors}
}

func (w *Weighting) Factors() []float64 {
	out := make([]float64, len(w.factors))
	copy(out, w.factors)
	return out
}

// ApplyRow returns a weighted copy of a raw row in schema order.
func (w *Weighting) ApplyRow(row []float64) []float64 {
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = v * w.factors[j]
	}
	return out
}

func (w *Weighting) Apply(rows [][]float64) Weighted {
	out := make(Weighted, len(rows))
	for i, row := range rows {
		out[i] = w.ApplyRow(row)
	}
	return out
}

// ApplyRecord weights a record by name. Keys outside the table are copied as is.
func ApplyRecord(rec types.FeatureRecord, weights types.WeightTable) types.FeatureRecord {
	out := make(types.FeatureRecord, len(rec))
	for name, v := range rec {
		out[name] = v * math.Sqrt(weights.Get(name))
	}
	return out
}
