package forest

import (
	"errors"
	"fmt"
	"golang.org/x/sync/errgroup"
	"math"
	"math/rand"
	"runtime"
	"sort"
)

type ClassWeight string

const (
	ClassWeightNone     ClassWeight = "none"
	ClassWeightBalanced ClassWeight = "balanced"
)

// RandomForest is a bagged ensemble of CART trees with a random feature subset
// drawn at every split. Training is deterministic for a fixed RandomState and
// input order regardless of Workers.
type RandomForest struct {
	NEstimators     int         `msgpack:"n_estimators" json:"n_estimators"`
	MaxDepth        int         `msgpack:"max_depth" json:"max_depth"`
	MinSamplesSplit int         `msgpack:"min_samples_split" json:"min_samples_split"`
	MinSamplesLeaf  int         `msgpack:"min_samples_leaf" json:"min_samples_leaf"`
	MaxFeatures     int         `msgpack:"max_features" json:"max_features"`
	Bootstrap       bool        `msgpack:"bootstrap" json:"bootstrap"`
	ClassWeight     ClassWeight `msgpack:"class_weight" json:"class_weight"`
	RandomState     int64       `msgpack:"random_state" json:"random_state"`
	Workers         int         `msgpack:"-" json:"-"`

	Classes     []string  `msgpack:"classes" json:"classes"`
	NFeatures   int       `msgpack:"n_features" json:"n_features"`
	Trees       []*Tree   `msgpack:"trees" json:"-"`
	Importances []float64 `msgpack:"importances" json:"importances"`
}

type Option func(*RandomForest)

func WithNEstimators(n int) Option          { return func(rf *RandomForest) { rf.NEstimators = n } }
func WithMaxDepth(d int) Option             { return func(rf *RandomForest) { rf.MaxDepth = d } }
func WithMinSamplesSplit(n int) Option      { return func(rf *RandomForest) { rf.MinSamplesSplit = n } }
func WithMinSamplesLeaf(n int) Option       { return func(rf *RandomForest) { rf.MinSamplesLeaf = n } }
func WithMaxFeatures(k int) Option          { return func(rf *RandomForest) { rf.MaxFeatures = k } }
func WithBootstrap(b bool) Option           { return func(rf *RandomForest) { rf.Bootstrap = b } }
func WithClassWeight(cw ClassWeight) Option { return func(rf *RandomForest) { rf.ClassWeight = cw } }
func WithRandomState(seed int64) Option     { return func(rf *RandomForest) { rf.RandomState = seed } }
func WithWorkers(n int) Option              { return func(rf *RandomForest) { rf.Workers = n } }

func New(opts ...Option) *RandomForest {
	rf := &RandomForest{
		NEstimators:     100,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Bootstrap:       true,
		ClassWeight:     ClassWeightBalanced,
		RandomState:     42,
	}
	for _, o := range opts {
		o(rf)
	}
	return rf
}

// Fit trains the forest. Classes are discovered from y and sorted.
func (rf *RandomForest) Fit(X [][]float64, y []string) error {
	if len(X) == 0 {
		return errors.New("randomforest: empty X")
	}
	n := len(X)
	if len(y) != n {
		return errors.New("randomforest: X and y length mismatch")
	}
	p := len(X[0])
	for i := range X {
		if len(X[i]) != p {
			return fmt.Errorf("randomforest: row %d has %d features, expected %d", i, len(X[i]), p)
		}
	}
	if rf.NEstimators < 1 {
		return errors.New("randomforest: at least one estimator required")
	}

	rf.Classes = uniqueSorted(y)
	rf.NFeatures = p
	classIdx := make(map[string]int, len(rf.Classes))
	for i, c := range rf.Classes {
		classIdx[c] = i
	}
	yIDs := make([]int, n)
	for i, label := range y {
		yIDs[i] = classIdx[label]
	}
	classWeights := rf.classWeights(yIDs)

	maxFeatures := rf.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = int(math.Max(1, math.Floor(math.Sqrt(float64(p)))))
	}
	params := treeParams{
		maxDepth:        rf.MaxDepth,
		minSamplesSplit: rf.MinSamplesSplit,
		minSamplesLeaf:  rf.MinSamplesLeaf,
		maxFeatures:     maxFeatures,
		nClasses:        len(rf.Classes),
	}

	workers := rf.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	trees := make([]*Tree, rf.NEstimators)
	var g errgroup.Group
	g.SetLimit(workers)
	for t := 0; t < rf.NEstimators; t++ {
		t := t
		g.Go(func() error {
			// every tree owns its source so the result does not depend on scheduling
			treeRand := rand.New(rand.NewSource(rf.RandomState + int64(t)))
			weights := make([]float64, n)
			var idx []int
			if rf.Bootstrap {
				multiplicity := make([]int, n)
				for j := 0; j < n; j++ {
					multiplicity[treeRand.Intn(n)]++
				}
				for i, m := range multiplicity {
					if m > 0 {
						idx = append(idx, i)
						weights[i] = float64(m) * classWeights[yIDs[i]]
					}
				}
			} else {
				idx = make([]int, n)
				for i := range idx {
					idx[i] = i
					weights[i] = classWeights[yIDs[i]]
				}
			}
			trees[t] = growTree(params, X, yIDs, weights, idx, treeRand)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	rf.Trees = trees
	rf.Importances = aggregateImportances(trees, p)
	return nil
}

// classWeights follows n_samples / (n_classes * count(c)) for the balanced mode.
func (rf *RandomForest) classWeights(yIDs []int) []float64 {
	weights := make([]float64, len(rf.Classes))
	if rf.ClassWeight != ClassWeightBalanced {
		for i := range weights {
			weights[i] = 1
		}
		return weights
	}
	counts := make([]int, len(rf.Classes))
	for _, c := range yIDs {
		counts[c]++
	}
	for i, c := range counts {
		weights[i] = float64(len(yIDs)) / (float64(len(rf.Classes)) * float64(c))
	}
	return weights
}

func aggregateImportances(trees []*Tree, p int) []float64 {
	total := make([]float64, p)
	used := 0
	for _, t := range trees {
		s := sum(t.importances)
		if s <= 0 {
			continue
		}
		used++
		for j, v := range t.importances {
			total[j] += v / s
		}
	}
	if used == 0 {
		for j := range total {
			total[j] = 1 / float64(p)
		}
		return total
	}
	s := sum(total)
	for j := range total {
		total[j] /= s
	}
	return total
}

// PredictProba averages the leaf distributions of all trees. The result is
// aligned with Classes and sums to 1.
func (rf *RandomForest) PredictProba(x []float64) ([]float64, error) {
	if len(rf.Trees) == 0 {
		return nil, errors.New("randomforest: not trained")
	}
	if len(x) != rf.NFeatures {
		return nil, fmt.Errorf("randomforest: got %d features, expected %d", len(x), rf.NFeatures)
	}
	out := make([]float64, len(rf.Classes))
	for _, t := range rf.Trees {
		for c, p := range t.PredictProba(x) {
			out[c] += p
		}
	}
	return normalize(out), nil
}

// Predict returns the class with the highest averaged probability. Ties go to
// the class that sorts first.
func (rf *RandomForest) Predict(x []float64) (string, error) {
	proba, err := rf.PredictProba(x)
	if err != nil {
		return "", err
	}
	return rf.Classes[argmax(proba)], nil
}

func (rf *RandomForest) PredictBatch(X [][]float64) ([]string, error) {
	out := make([]string, len(X))
	for i, x := range X {
		label, err := rf.Predict(x)
		if err != nil {
			return nil, err
		}
		out[i] = label
	}
	return out, nil
}

func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

func uniqueSorted(labels []string) []string {
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
