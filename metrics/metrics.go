// Package metrics provides the evaluation metrics used for few-shot
// classification runs: accuracy, macro-averaged precision and recall,
// and Cohen's kappa. All metrics are pure functions over ground-truth
// and predicted class ids; Argmax adapts per-class score tensors to
// discrete predictions first.
package metrics

import (
	"fmt"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
)

// Argmax reduces an [N, C] float32 score tensor to N predicted class
// ids, the first maximum winning ties.
func Argmax(scores *tensors.Tensor) ([]int, error) {
	dims := scores.Shape().Dimensions
	if len(dims) != 2 {
		return nil, errors.Errorf("scores must be [N, C], got shape %v", dims)
	}
	n, c := dims[0], dims[1]
	if c == 0 {
		return nil, errors.Errorf("scores need at least one class column")
	}
	pred := make([]int, n)
	err := tensors.ConstFlatData(scores, func(flat []float32) {
		for i := range n {
			row := flat[i*c : (i+1)*c]
			best := 0
			for j, v := range row {
				if v > row[best] {
					best = j
				}
			}
			pred[i] = best
		}
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "scores tensor")
	}
	return pred, nil
}

// Accuracy returns the fraction of predictions equal to the truth.
func Accuracy(truth, pred []int) float64 {
	checkLengths(truth, pred)
	if len(truth) == 0 {
		return 0
	}
	hits := 0
	for i, t := range truth {
		if pred[i] == t {
			hits++
		}
	}
	return float64(hits) / float64(len(truth))
}

// MacroPrecision averages per-class precision over all numClasses
// classes. A class that was never predicted contributes zero.
func MacroPrecision(truth, pred []int, numClasses int) float64 {
	if numClasses <= 0 {
		return 0
	}
	m := confusion(truth, pred, numClasses)
	total := 0.0
	for c := range numClasses {
		predicted := 0
		for t := range numClasses {
			predicted += m[t*numClasses+c]
		}
		if predicted > 0 {
			total += float64(m[c*numClasses+c]) / float64(predicted)
		}
	}
	return total / float64(numClasses)
}

// MacroRecall averages per-class recall over all numClasses classes. A
// class absent from the truth contributes zero.
func MacroRecall(truth, pred []int, numClasses int) float64 {
	if numClasses <= 0 {
		return 0
	}
	m := confusion(truth, pred, numClasses)
	total := 0.0
	for c := range numClasses {
		actual := 0
		for p := range numClasses {
			actual += m[c*numClasses+p]
		}
		if actual > 0 {
			total += float64(m[c*numClasses+c]) / float64(actual)
		}
	}
	return total / float64(numClasses)
}

// CohenKappa measures agreement between truth and prediction corrected
// for chance agreement. The degenerate case where both sides always
// name the same single class returns 0.
func CohenKappa(truth, pred []int, numClasses int) float64 {
	if numClasses <= 0 || len(truth) == 0 {
		return 0
	}
	m := confusion(truth, pred, numClasses)
	n := float64(len(truth))
	agree := 0
	expected := 0.0
	for c := range numClasses {
		agree += m[c*numClasses+c]
		rowSum, colSum := 0, 0
		for j := range numClasses {
			rowSum += m[c*numClasses+j]
			colSum += m[j*numClasses+c]
		}
		expected += float64(rowSum) * float64(colSum)
	}
	po := float64(agree) / n
	pe := expected / (n * n)
	if pe == 1 {
		return 0
	}
	return (po - pe) / (1 - pe)
}

// confusion fills the numClasses x numClasses count matrix, rows truth
// and columns prediction. Ids outside [0, numClasses) panic: they point
// at a caller bug, not at bad data.
func confusion(truth, pred []int, numClasses int) []int {
	checkLengths(truth, pred)
	m := make([]int, numClasses*numClasses)
	for i, t := range truth {
		p := pred[i]
		if t < 0 || t >= numClasses || p < 0 || p >= numClasses {
			panic(fmt.Sprintf("class id out of range [0, %d): truth %d, prediction %d", numClasses, t, p))
		}
		m[t*numClasses+p]++
	}
	return m
}

func checkLengths(truth, pred []int) {
	if len(truth) != len(pred) {
		panic(fmt.Sprintf("ground truth has %d entries, predictions have %d", len(truth), len(pred)))
	}
}

// Metric is the signature shared by the registry entries: ground truth,
// discretized predictions and the class count, producing one scalar.
type Metric func(truth, pred []int, numClasses int) float64

// Named maps the metric names used in experiment configurations to
// their implementations. Predictions are discrete class ids; reduce
// score tensors with Argmax first.
var Named = map[string]Metric{
	"categorical_accuracy": func(truth, pred []int, _ int) float64 { return Accuracy(truth, pred) },
	"mean_precision":       MacroPrecision,
	"mean_recall":          MacroRecall,
	"cohen_kappa":          CohenKappa,
}
