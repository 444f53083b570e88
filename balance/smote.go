package balance

import (
	"sleepdx.com/sdp/features"
	"sleepdx.com/sdp/logger"
	"sleepdx.com/sdp/types"
	"math/rand"
	"sort"
)

var balanceLogger = logger.NewLogger("Balancer")

// Balancer oversamples minority classes by interpolating between a sample and
// one of its same-class nearest neighbours until every class matches the
// majority count.
type Balancer struct {
	Neighbors   int
	RandomState int64
}

type Option func(*Balancer)

func WithNeighbors(k int) Option        { return func(b *Balancer) { b.Neighbors = k } }
func WithRandomState(seed int64) Option { return func(b *Balancer) { b.RandomState = seed } }

func New(opts ...Option) *Balancer {
	b := &Balancer{Neighbors: 3, RandomState: 42}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Result carries the balanced training rows. Skipped lists classes that were
// too small to interpolate and were left as they are.
type Result struct {
	X       features.Weighted
	Y       []string
	Skipped []*types.DegenerateClassError
}

// Balance returns new slices; X and y are not modified. Original rows come
// first, in input order, followed by synthetic rows grouped by class.
func (b *Balancer) Balance(X features.Weighted, y []string) Result {
	res := Result{
		X: make(features.Weighted, 0, len(X)),
		Y: make([]string, 0, len(y)),
	}
	for i := range X {
		res.X = append(res.X, append([]float64(nil), X[i]...))
		res.Y = append(res.Y, y[i])
	}

	members := make(map[string][]int)
	for i, label := range y {
		members[label] = append(members[label], i)
	}
	classes := types.UniqueLabels(y)
	majority := 0
	for _, c := range classes {
		if len(members[c]) > majority {
			majority = len(members[c])
		}
	}

	rnd := rand.New(rand.NewSource(b.RandomState))
	for _, class := range classes {
		idx := members[class]
		need := majority - len(idx)
		if need == 0 {
			continue
		}
		if len(idx) <= 1 {
			skipped := &types.DegenerateClassError{Class: class, Count: len(idx)}
			balanceLogger.Warn().Err(skipped).Msg("Skipping oversampling for class")
			res.Skipped = append(res.Skipped, skipped)
			continue
		}
		k := b.Neighbors
		if k > len(idx)-1 {
			k = len(idx) - 1
			balanceLogger.Debug().
				Str("class", class).
				Int("neighbors", k).
				Msg("Reduced neighbour count for small class")
		}
		nn := nearestNeighbors(X, idx, k)
		for s := 0; s < need; s++ {
			i := rnd.Intn(len(idx))
			j := nn[i][rnd.Intn(k)]
			gap := rnd.Float64()
			base, other := X[idx[i]], X[j]
			row := make([]float64, len(base))
			for f := range base {
				row[f] = base[f] + gap*(other[f]-base[f])
			}
			res.X = append(res.X, row)
			res.Y = append(res.Y, class)
		}
	}
	return res
}

// nearestNeighbors returns, for every member position, the row indices of its
// k closest same-class rows. Ties keep the lower row index first.
func nearestNeighbors(X features.Weighted, idx []int, k int) [][]int {
	type pair struct {
		d float64
		i int
	}
	out := make([][]int, len(idx))
	for a, ia := range idx {
		cand := make([]pair, 0, len(idx)-1)
		for _, ib := range idx {
			if ib == ia {
				continue
			}
			cand = append(cand, pair{d: euclidSquared(X[ia], X[ib]), i: ib})
		}
		sort.SliceStable(cand, func(p, q int) bool { return cand[p].d < cand[q].d })
		out[a] = make([]int, k)
		for n := 0; n < k; n++ {
			out[a][n] = cand[n].i
		}
	}
	return out
}

func euclidSquared(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
