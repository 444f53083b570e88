package forest

import (
	"math/rand"
	"sort"
)

const leaf = -1

// Node is one entry of a tree stored as a flat slice. Internal nodes send
// x[Feature] <= Threshold to Left. Leaves have Left == Right == -1 and carry
// the weighted class distribution in Proba.
type Node struct {
	Feature   int       `msgpack:"f" json:"feature"`
	Threshold float64   `msgpack:"t" json:"threshold"`
	Left      int       `msgpack:"l" json:"left"`
	Right     int       `msgpack:"r" json:"right"`
	Samples   int       `msgpack:"n" json:"samples"`
	Proba     []float64 `msgpack:"p,omitempty" json:"proba,omitempty"`
}

func (n *Node) IsLeaf() bool {
	return n.Left == leaf
}

// Tree is a CART classifier grown on gini impurity over weighted samples.
type Tree struct {
	Nodes []Node `msgpack:"nodes" json:"nodes"`

	importances []float64
}

type treeParams struct {
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int
	nClasses        int
}

type grower struct {
	params  treeParams
	X       [][]float64
	y       []int
	weights []float64
	rnd     *rand.Rand
	tree    *Tree
}

// growTree builds a tree over the rows in idx. weights[i] is the total weight
// of row i (class weight times bootstrap multiplicity).
func growTree(params treeParams, X [][]float64, y []int, weights []float64, idx []int, rnd *rand.Rand) *Tree {
	t := &Tree{importances: make([]float64, len(X[0]))}
	g := &grower{params: params, X: X, y: y, weights: weights, rnd: rnd, tree: t}
	g.build(idx, 0)
	return t
}

func (g *grower) build(idx []int, depth int) int {
	counts := g.counts(idx)
	total := sum(counts)
	pos := len(g.tree.Nodes)
	g.tree.Nodes = append(g.tree.Nodes, Node{Left: leaf, Right: leaf, Samples: len(idx)})

	if len(idx) < g.params.minSamplesSplit ||
		(g.params.maxDepth > 0 && depth >= g.params.maxDepth) ||
		isPure(counts) {
		g.tree.Nodes[pos].Proba = normalize(counts)
		return pos
	}

	parentImpurity := gini(counts, total)
	best := g.bestSplit(idx, parentImpurity, total)
	if best.feature < 0 {
		g.tree.Nodes[pos].Proba = normalize(counts)
		return pos
	}

	g.tree.importances[best.feature] += total*parentImpurity - best.weightedChildImpurity
	left := g.build(best.left, depth+1)
	right := g.build(best.right, depth+1)
	g.tree.Nodes[pos].Feature = best.feature
	g.tree.Nodes[pos].Threshold = best.threshold
	g.tree.Nodes[pos].Left = left
	g.tree.Nodes[pos].Right = right
	return pos
}

type split struct {
	feature               int
	threshold             float64
	gain                  float64
	weightedChildImpurity float64
	left, right           []int
}

// pair is a feature value and its row index.
type pair struct {
	v float64
	i int
}

func (g *grower) bestSplit(idx []int, parentImpurity, total float64) split {
	p := len(g.X[0])
	featIndices := make([]int, p)
	for j := range featIndices {
		featIndices[j] = j
	}
	k := g.params.maxFeatures
	if k <= 0 || k > p {
		k = p
	}
	for i := 0; i < k; i++ {
		j := i + g.rnd.Intn(p-i)
		featIndices[i], featIndices[j] = featIndices[j], featIndices[i]
	}
	featIndices = featIndices[:k]

	best := split{feature: -1}
	minLeaf := g.params.minSamplesLeaf
	vals := make([]pair, len(idx))
	leftCounts := make([]float64, g.params.nClasses)
	rightCounts := make([]float64, g.params.nClasses)
	parentCounts := g.counts(idx)

	for _, f := range featIndices {
		for n, i := range idx {
			vals[n] = pair{v: g.X[i][f], i: i}
		}
		sort.SliceStable(vals, func(a, b int) bool { return vals[a].v < vals[b].v })
		for c := range leftCounts {
			leftCounts[c] = 0
			rightCounts[c] = parentCounts[c]
		}
		leftWeight := 0.0
		for s := 1; s < len(vals); s++ {
			prev := vals[s-1]
			w := g.weights[prev.i]
			leftCounts[g.y[prev.i]] += w
			rightCounts[g.y[prev.i]] -= w
			leftWeight += w
			if vals[s].v == prev.v || s < minLeaf || len(vals)-s < minLeaf {
				continue
			}
			rightWeight := total - leftWeight
			child := leftWeight*gini(leftCounts, leftWeight) + rightWeight*gini(rightCounts, rightWeight)
			gain := parentImpurity - child/total
			if gain > best.gain+1e-12 {
				best = split{
					feature:               f,
					threshold:             (prev.v + vals[s].v) / 2,
					gain:                  gain,
					weightedChildImpurity: child,
				}
			}
		}
	}
	if best.feature < 0 {
		return best
	}
	for _, i := range idx {
		if g.X[i][best.feature] <= best.threshold {
			best.left = append(best.left, i)
		} else {
			best.right = append(best.right, i)
		}
	}
	return best
}

func (g *grower) counts(idx []int) []float64 {
	counts := make([]float64, g.params.nClasses)
	for _, i := range idx {
		counts[g.y[i]] += g.weights[i]
	}
	return counts
}

// PredictProba walks x down to a leaf and returns its class distribution.
func (t *Tree) PredictProba(x []float64) []float64 {
	n := &t.Nodes[0]
	for !n.IsLeaf() {
		if x[n.Feature] <= n.Threshold {
			n = &t.Nodes[n.Left]
		} else {
			n = &t.Nodes[n.Right]
		}
	}
	return n.Proba
}

func (t *Tree) Depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		n := t.Nodes[i]
		if n.IsLeaf() {
			return 0
		}
		l, r := walk(n.Left), walk(n.Right)
		if l > r {
			return l + 1
		}
		return r + 1
	}
	return walk(0)
}

func gini(counts []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	res := 1.0
	for _, c := range counts {
		p := c / total
		res -= p * p
	}
	return res
}

func isPure(counts []float64) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func normalize(counts []float64) []float64 {
	total := sum(counts)
	p := make([]float64, len(counts))
	if total == 0 {
		for i := range p {
			p[i] = 1 / float64(len(p))
		}
		return p
	}
	for i, c := range counts {
		p[i] = c / total
	}
	return p
}

func sum(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x
	}
	return s
}
