package pipeline

import (
	"sleepdx.com/sdp/features"
	"sleepdx.com/sdp/forest"
	"sleepdx.com/sdp/types"
)

// FittedPipeline is the immutable result of one train cycle. It is safe for
// concurrent use; nothing mutates it after Train or DecodeSnapshot returns.
type FittedPipeline struct {
	schema      types.Schema
	weights     types.WeightTable
	weighting   *features.Weighting
	scaler      features.ScalerParams
	model       *forest.RandomForest
	codebook    types.Codebook
	source      string
	rows        int
	classCounts map[string]int
	datasetHash uint64
	configHash  uint64
	evaluation  *Evaluation
}

func (p *FittedPipeline) Schema() types.Schema {
	return types.Schema{Version: p.schema.Version, Features: append([]string(nil), p.schema.Features...)}
}

func (p *FittedPipeline) Weights() types.WeightTable {
	return p.weights.Clone()
}

func (p *FittedPipeline) Classes() []string {
	return append([]string(nil), p.model.Classes...)
}

func (p *FittedPipeline) DatasetHash() uint64 {
	return p.datasetHash
}

func (p *FittedPipeline) ConfigHash() uint64 {
	return p.configHash
}

func (p *FittedPipeline) Evaluation() *Evaluation {
	return p.evaluation
}

// Importances maps feature name onto the forest's normalized importance.
func (p *FittedPipeline) Importances() map[string]float64 {
	out := make(map[string]float64, p.schema.Len())
	for i, name := range p.schema.Features {
		out[name] = p.model.Importances[i]
	}
	return out
}

// Summary is the diagnostic view of a pipeline.
type Summary struct {
	Source      string             `json:"source"`
	DatasetHash string             `json:"dataset_hash"`
	Rows        int                `json:"rows"`
	ClassCounts map[string]int     `json:"class_counts"`
	Schema      types.Schema       `json:"schema"`
	Weights     types.WeightTable  `json:"weights"`
	Classes     []string           `json:"classes"`
	Codebook    types.Codebook     `json:"codebook"`
	Importances map[string]float64 `json:"importances"`
	Evaluation  *Evaluation        `json:"evaluation,omitempty"`
	Forest      ForestSummary      `json:"forest"`
}

type ForestSummary struct {
	Trees    int `json:"trees"`
	MaxDepth int `json:"max_depth"`
	Features int `json:"max_features"`
}

func (p *FittedPipeline) Summary() Summary {
	counts := make(map[string]int, len(p.classCounts))
	for k, v := range p.classCounts {
		counts[k] = v
	}
	return Summary{
		Source:      p.source,
		DatasetHash: hashKey(p.datasetHash),
		Rows:        p.rows,
		ClassCounts: counts,
		Schema:      p.Schema(),
		Weights:     p.Weights(),
		Classes:     p.Classes(),
		Codebook:    p.codebook,
		Importances: p.Importances(),
		Evaluation:  p.evaluation,
		Forest: ForestSummary{
			Trees:    len(p.model.Trees),
			MaxDepth: p.model.MaxDepth,
			Features: p.model.MaxFeatures,
		},
	}
}
