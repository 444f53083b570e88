package pipeline

import (
	"math"
	"math/rand"
	"sort"
)

// StratifiedSplit partitions row indices into train and test keeping the class
// proportions of labels. Every class keeps at least one training row. Both
// index lists are returned in ascending order.
func StratifiedSplit(labels []string, testRatio float64, seed int64) ([]int, []int) {
	members := make(map[string][]int)
	var classes []string
	for i, l := range labels {
		if _, ok := members[l]; !ok {
			classes = append(classes, l)
		}
		members[l] = append(members[l], i)
	}
	sort.Strings(classes)

	rnd := rand.New(rand.NewSource(seed))
	var train, test []int
	for _, c := range classes {
		idx := append([]int(nil), members[c]...)
		rnd.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		nTest := int(math.Round(testRatio * float64(len(idx))))
		if nTest >= len(idx) {
			nTest = len(idx) - 1
		}
		test = append(test, idx[:nTest]...)
		train = append(train, idx[nTest:]...)
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test
}
