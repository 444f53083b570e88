package pipeline

import (
	"sleepdx.com/sdp/types"
	"sleepdx.com/sdp/utils"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Prediction is the structured result of one inference call.
type Prediction struct {
	Label         string             `json:"label"`
	Probabilities map[string]float64 `json:"probabilities"`
	Importances   map[string]float64 `json:"importances"`
}

// Ranked returns the classes ordered by descending probability, ties by name.
func (p Prediction) Ranked() []string {
	out := make([]string, 0, len(p.Probabilities))
	for c := range p.Probabilities {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := p.Probabilities[out[i]], p.Probabilities[out[j]]
		if pi != pj {
			return pi > pj
		}
		return out[i] < out[j]
	})
	return out
}

// PredictOne lays raw out in schema order, applies the fitted weighting and
// scaler and queries the forest. Nothing is refitted. A panic is contained to
// the call and returned as an error.
func (p *FittedPipeline) PredictOne(raw types.FeatureRecord) (pred Prediction, err error) {
	defer utils.RecoverWithError(&err)

	x, err := p.vectorize(raw)
	if err != nil {
		return Prediction{}, err
	}
	proba, err := p.model.PredictProba(x)
	if err != nil {
		return Prediction{}, fmt.Errorf("failed to predict: %w", err)
	}
	pred = Prediction{
		Probabilities: make(map[string]float64, len(proba)),
		Importances:   p.Importances(),
	}
	best := 0
	for i, c := range p.model.Classes {
		pred.Probabilities[c] = proba[i]
		if proba[i] > proba[best] {
			best = i
		}
	}
	pred.Label = p.model.Classes[best]
	return pred, nil
}

// vectorize produces the scaled model input for raw, the same transform the
// training rows went through.
func (p *FittedPipeline) vectorize(raw types.FeatureRecord) ([]float64, error) {
	vec, err := raw.Vector(p.schema)
	if err != nil {
		return nil, err
	}
	var invalid []string
	for i, v := range vec {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			invalid = append(invalid, p.schema.Features[i])
		}
	}
	if len(invalid) > 0 {
		return nil, &types.SchemaError{Invalid: invalid}
	}
	return p.scaler.TransformRow(p.weighting.ApplyRow(vec)), nil
}

// ResolveInput converts loosely typed input values into a FeatureRecord.
// Strings for a text-coded feature must be one of its training categories.
// Numbers for a text-coded feature are taken as codes and must be one the
// codebook recorded. Other features take numbers or numeric strings.
// Unresolvable values are reported as invalid. Names are not checked against
// the schema here.
func (p *FittedPipeline) ResolveInput(values map[string]interface{}) (types.FeatureRecord, error) {
	rec := make(types.FeatureRecord, len(values))
	var invalid []string
	for name, raw := range values {
		v, ok := p.resolveValue(name, raw)
		if !ok {
			invalid = append(invalid, name)
			continue
		}
		rec[name] = v
	}
	if len(invalid) > 0 {
		sort.Strings(invalid)
		return nil, &types.SchemaError{Invalid: invalid}
	}
	return rec, nil
}

func (p *FittedPipeline) resolveValue(name string, raw interface{}) (float64, bool) {
	codes, coded := p.codebook[name]
	var v float64
	switch val := raw.(type) {
	case float64:
		v = val
	case float32:
		v = float64(val)
	case int:
		v = float64(val)
	case int64:
		v = float64(val)
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return 0, false
		}
		v = f
	case string:
		s := strings.TrimSpace(val)
		if coded {
			code, ok := codes[s]
			return float64(code), ok
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		v = f
	default:
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	if coded {
		if _, ok := p.codebook.Decode(name, v); !ok {
			return 0, false
		}
	}
	return v, true
}

// Predict resolves loosely typed input and runs PredictOne.
func (p *FittedPipeline) Predict(values map[string]interface{}) (Prediction, error) {
	rec, err := p.ResolveInput(values)
	if err != nil {
		return Prediction{}, err
	}
	return p.PredictOne(rec)
}
