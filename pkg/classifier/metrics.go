package classifier

import (
	"sort"
)

// Accuracy scores predictions at a 0.5 threshold.
func Accuracy(m Model, X [][]float64, y []int) float64 {
	correct, total := 0, 0
	for i, row := range X {
		p, err := m.PredictProba(row)
		if err != nil {
			continue
		}
		predicted := 0
		if p >= 0.5 {
			predicted = 1
		}
		if predicted == y[i] {
			correct++
		}
		total++
	}
	if total == 0 {
		return 0
	}
	return float64(correct) / float64(total)
}

// AUC computes the area under the ROC curve by rank statistics. Tied
// scores share their average rank. Returns 0.5 when only one class is
// present.
func AUC(m Model, X [][]float64, y []int) float64 {
	type scored struct {
		p     float64
		label int
	}

	items := make([]scored, 0, len(X))
	positives, negatives := 0, 0
	for i, row := range X {
		p, err := m.PredictProba(row)
		if err != nil {
			continue
		}
		items = append(items, scored{p: p, label: y[i]})
		if y[i] != 0 {
			positives++
		} else {
			negatives++
		}
	}
	if positives == 0 || negatives == 0 {
		return 0.5
	}

	sort.Slice(items, func(i, j int) bool { return items[i].p < items[j].p })

	ranks := make([]float64, len(items))
	for i := 0; i < len(items); {
		j := i
		for j < len(items) && items[j].p == items[i].p {
			j++
		}
		avgRank := float64(i+j+1) / 2.0
		for k := i; k < j; k++ {
			ranks[k] = avgRank
		}
		i = j
	}

	rankSum := 0.0
	for i, item := range items {
		if item.label != 0 {
			rankSum += ranks[i]
		}
	}

	nPos, nNeg := float64(positives), float64(negatives)
	return (rankSum - nPos*(nPos+1)/2) / (nPos * nNeg)
}

// ConfusionMatrix returns [[tn, fp], [fn, tp]] at a 0.5 threshold.
func ConfusionMatrix(m Model, X [][]float64, y []int) [][]int {
	matrix := [][]int{{0, 0}, {0, 0}}
	for i, row := range X {
		p, err := m.PredictProba(row)
		if err != nil {
			continue
		}
		predicted := 0
		if p >= 0.5 {
			predicted = 1
		}
		actual := 0
		if y[i] != 0 {
			actual = 1
		}
		matrix[actual][predicted]++
	}
	return matrix
}
