package pipeline

// ClassReport holds held-out metrics for one class.
type ClassReport struct {
	Class     string  `msgpack:"class" json:"class"`
	Precision float64 `msgpack:"precision" json:"precision"`
	Recall    float64 `msgpack:"recall" json:"recall"`
	F1        float64 `msgpack:"f1" json:"f1"`
	Support   int     `msgpack:"support" json:"support"`
}

// Evaluation summarizes predictions on the held-out split. Confusion[i][j]
// counts rows of Classes[i] predicted as Classes[j].
type Evaluation struct {
	Classes   []string      `msgpack:"classes" json:"classes"`
	Rows      int           `msgpack:"rows" json:"rows"`
	Accuracy  float64       `msgpack:"accuracy" json:"accuracy"`
	Confusion [][]int       `msgpack:"confusion" json:"confusion_matrix"`
	PerClass  []ClassReport `msgpack:"per_class" json:"per_class"`
}

func Evaluate(classes, truth, predicted []string) *Evaluation {
	pos := make(map[string]int, len(classes))
	for i, c := range classes {
		pos[c] = i
	}
	ev := &Evaluation{
		Classes:   append([]string(nil), classes...),
		Rows:      len(truth),
		Confusion: make([][]int, len(classes)),
	}
	for i := range ev.Confusion {
		ev.Confusion[i] = make([]int, len(classes))
	}
	correct := 0
	for i := range truth {
		t, okT := pos[truth[i]]
		p, okP := pos[predicted[i]]
		if truth[i] == predicted[i] {
			correct++
		}
		if okT && okP {
			ev.Confusion[t][p]++
		}
	}
	if len(truth) > 0 {
		ev.Accuracy = float64(correct) / float64(len(truth))
	}
	for i, c := range classes {
		tp := ev.Confusion[i][i]
		support, predictedCount := 0, 0
		for j := range classes {
			support += ev.Confusion[i][j]
			predictedCount += ev.Confusion[j][i]
		}
		r := ClassReport{Class: c, Support: support}
		if predictedCount > 0 {
			r.Precision = float64(tp) / float64(predictedCount)
		}
		if support > 0 {
			r.Recall = float64(tp) / float64(support)
		}
		if r.Precision+r.Recall > 0 {
			r.F1 = 2 * r.Precision * r.Recall / (r.Precision + r.Recall)
		}
		ev.PerClass = append(ev.PerClass, r)
	}
	return ev
}
