package types

import (
	"sleepdx.com/sdp/utils"
	"sort"
)

// FeatureRecord maps feature names onto numeric values.
type FeatureRecord map[string]float64

// Vector lays the record out in schema order. Missing features and features
// outside the schema are reported through a SchemaError.
func (r FeatureRecord) Vector(schema Schema) ([]float64, error) {
	schemaErr := &SchemaError{}
	out := make([]float64, schema.Len())
	for i, name := range schema.Features {
		v, ok := r[name]
		if !ok {
			schemaErr.Missing = append(schemaErr.Missing, name)
			continue
		}
		out[i] = v
	}
	for name := range r {
		if _, ok := schema.Index(name); !ok {
			schemaErr.Unknown = append(schemaErr.Unknown, name)
		}
	}
	if !schemaErr.Empty() {
		sort.Strings(schemaErr.Unknown)
		return nil, schemaErr
	}
	return out, nil
}

// LabeledDataset holds rows in schema order plus one label per row.
type LabeledDataset struct {
	Source   string
	Schema   Schema
	Rows     [][]float64
	Labels   []string
	Codebook Codebook
}

func (d *LabeledDataset) Len() int {
	return len(d.Rows)
}

func (d *LabeledDataset) Record(i int) FeatureRecord {
	rec := make(FeatureRecord, d.Schema.Len())
	for j, name := range d.Schema.Features {
		rec[name] = d.Rows[i][j]
	}
	return rec
}

// Classes returns the label set discovered from the data, sorted.
func (d *LabeledDataset) Classes() []string {
	return UniqueLabels(d.Labels)
}

func (d *LabeledDataset) ClassCounts() map[string]int {
	counts := make(map[string]int)
	for _, l := range d.Labels {
		counts[l]++
	}
	return counts
}

// GetHashCode digests the dataset content: schema, rows, labels and codebook.
// The source name is not part of the identity.
func (d *LabeledDataset) GetHashCode() uint64 {
	h := utils.NewHasher()
	h.Uint64(uint64(d.Schema.Version))
	for _, name := range d.Schema.Features {
		h.String(name)
	}
	h.Uint64(uint64(len(d.Rows)))
	for i, row := range d.Rows {
		for _, v := range row {
			h.Float64(v)
		}
		h.String(d.Labels[i])
	}
	d.Codebook.hashInto(h)
	return h.Sum64()
}

func UniqueLabels(labels []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	sort.Strings(out)
	return out
}

// Codebook records text category -> integer code per categorical feature.
// Inference resolves string inputs through the same codebook as training.
type Codebook map[string]map[string]int

// DefaultCodebook is the encoding used by synthesized data.
func DefaultCodebook() Codebook {
	return Codebook{
		Gender:        {"Female": 0, "Male": 1},
		AcademicLevel: {"Level 1": 0, "Level 2": 1, "Level 3": 2, "Level 4": 3},
		BMICategory:   {"Normal": 0, "Overweight": 1, "Obese": 2},
	}
}

// FitCodebook label-encodes text values by sorted unique value.
func FitCodebook(values []string) map[string]int {
	uniq := UniqueLabels(values)
	codes := make(map[string]int, len(uniq))
	for i, v := range uniq {
		codes[v] = i
	}
	return codes
}

func (c Codebook) Encode(feature, text string) (float64, bool) {
	codes, ok := c[feature]
	if !ok {
		return 0, false
	}
	code, ok := codes[text]
	return float64(code), ok
}

func (c Codebook) Decode(feature string, code float64) (string, bool) {
	for text, v := range c[feature] {
		if float64(v) == code {
			return text, true
		}
	}
	return "", false
}

func (c Codebook) hashInto(h *utils.Hasher) {
	features := make([]string, 0, len(c))
	for f := range c {
		features = append(features, f)
	}
	sort.Strings(features)
	for _, f := range features {
		h.String(f)
		texts := make([]string, 0, len(c[f]))
		for t := range c[f] {
			texts = append(texts, t)
		}
		sort.Strings(texts)
		for _, t := range texts {
			h.String(t)
			h.Uint64(uint64(c[f][t]))
		}
	}
}
