package pipeline

import (
	"sleepdx.com/sdp/features"
	"sleepdx.com/sdp/forest"
	"sleepdx.com/sdp/types"
	"bytes"
	"fmt"
	"github.com/vmihailenco/msgpack/v5"
)

const snapshotVersion = 1

type snapshot struct {
	Version     int                   `msgpack:"version"`
	Schema      types.Schema          `msgpack:"schema"`
	Weights     types.WeightTable     `msgpack:"weights"`
	Scaler      features.ScalerParams `msgpack:"scaler"`
	Forest      *forest.RandomForest  `msgpack:"forest"`
	Codebook    types.Codebook        `msgpack:"codebook"`
	Source      string                `msgpack:"source"`
	Rows        int                   `msgpack:"rows"`
	ClassCounts map[string]int        `msgpack:"class_counts"`
	DatasetHash uint64                `msgpack:"dataset_hash"`
	ConfigHash  uint64                `msgpack:"config_hash"`
	Evaluation  *Evaluation           `msgpack:"evaluation"`
}

// EncodeSnapshot serializes a fitted pipeline with msgpack. Map keys are
// sorted so equal pipelines encode to equal bytes.
func EncodeSnapshot(p *FittedPipeline) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	err := enc.Encode(&snapshot{
		Version:     snapshotVersion,
		Schema:      p.schema,
		Weights:     p.weights,
		Scaler:      p.scaler,
		Forest:      p.model,
		Codebook:    p.codebook,
		Source:      p.source,
		Rows:        p.rows,
		ClassCounts: p.classCounts,
		DatasetHash: p.datasetHash,
		ConfigHash:  p.configHash,
		Evaluation:  p.evaluation,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeSnapshot rebuilds a pipeline. Snapshots of another snapshot or schema
// version are rejected.
func DecodeSnapshot(buf []byte) (*FittedPipeline, error) {
	var s snapshot
	if err := msgpack.Unmarshal(buf, &s); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if s.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", s.Version)
	}
	if s.Schema.Version != types.SchemaVersion {
		return nil, fmt.Errorf("snapshot schema version %d, expected %d", s.Schema.Version, types.SchemaVersion)
	}
	if s.Forest == nil || len(s.Forest.Trees) == 0 {
		return nil, fmt.Errorf("snapshot carries no trained forest")
	}
	n := s.Schema.Len()
	if len(s.Scaler.Mean) != n || len(s.Scaler.Std) != n || s.Forest.NFeatures != n || len(s.Forest.Importances) != n {
		return nil, fmt.Errorf("snapshot artifacts disagree with its %d feature schema", n)
	}
	if s.Weights == nil {
		s.Weights = types.WeightTable{}
	}
	return &FittedPipeline{
		schema:      s.Schema,
		weights:     s.Weights,
		weighting:   features.NewWeighting(s.Schema, s.Weights),
		scaler:      s.Scaler,
		model:       s.Forest,
		codebook:    s.Codebook,
		source:      s.Source,
		rows:        s.Rows,
		classCounts: s.ClassCounts,
		datasetHash: s.DatasetHash,
		configHash:  s.ConfigHash,
		evaluation:  s.Evaluation,
	}, nil
}
