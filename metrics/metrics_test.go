package metrics

import (
	"math"
	"reflect"
	"testing"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-12
}

// The worked example shared by several tests below: four samples over
// two classes with one mistake.
//
//	truth [0 0 1 1], pred [0 0 1 0]
//
// Confusion is [[2 0] [1 1]], so accuracy 3/4, precision (2/3 + 1)/2,
// recall (1 + 1/2)/2 and kappa (0.75 - 0.5)/(1 - 0.5).
var (
	workedTruth = []int{0, 0, 1, 1}
	workedPred  = []int{0, 0, 1, 0}
)

func TestAccuracy(t *testing.T) {
	if got := Accuracy(workedTruth, workedPred); !almostEqual(got, 0.75) {
		t.Fatalf("Accuracy = %v, want 0.75", got)
	}
	if got := Accuracy([]int{1, 2}, []int{1, 2}); got != 1 {
		t.Fatalf("Accuracy on perfect agreement = %v, want 1", got)
	}
	if got := Accuracy(nil, nil); got != 0 {
		t.Fatalf("Accuracy on empty input = %v, want 0", got)
	}
}

func TestMacroPrecision(t *testing.T) {
	if got, want := MacroPrecision(workedTruth, workedPred, 2), (2.0/3.0+1.0)/2.0; !almostEqual(got, want) {
		t.Fatalf("MacroPrecision = %v, want %v", got, want)
	}
	// A class never predicted contributes zero to the average.
	got := MacroPrecision([]int{0, 1, 2}, []int{0, 1, 1}, 3)
	if want := (1.0 + 0.5 + 0.0) / 3.0; !almostEqual(got, want) {
		t.Fatalf("MacroPrecision with an unpredicted class = %v, want %v", got, want)
	}
}

func TestMacroRecall(t *testing.T) {
	if got := MacroRecall(workedTruth, workedPred, 2); !almostEqual(got, 0.75) {
		t.Fatalf("MacroRecall = %v, want 0.75", got)
	}
	// The average runs over all classes, including ones absent from the
	// truth.
	if got := MacroRecall([]int{0, 0}, []int{0, 0}, 2); !almostEqual(got, 0.5) {
		t.Fatalf("MacroRecall with an absent class = %v, want 0.5", got)
	}
}

func TestCohenKappa(t *testing.T) {
	if got := CohenKappa(workedTruth, workedPred, 2); !almostEqual(got, 0.5) {
		t.Fatalf("CohenKappa = %v, want 0.5", got)
	}
	if got := CohenKappa([]int{0, 1, 2, 1}, []int{0, 1, 2, 1}, 3); !almostEqual(got, 1) {
		t.Fatalf("CohenKappa on perfect agreement = %v, want 1", got)
	}
	// Both sides always naming the same class makes chance agreement 1;
	// the convention here is 0 rather than 0/0.
	if got := CohenKappa([]int{1, 1}, []int{1, 1}, 2); got != 0 {
		t.Fatalf("CohenKappa on a degenerate run = %v, want 0", got)
	}
	if got := CohenKappa(nil, nil, 2); got != 0 {
		t.Fatalf("CohenKappa on empty input = %v, want 0", got)
	}
}

func TestArgmax(t *testing.T) {
	scores := tensors.FromFlatDataAndDimensions([]float32{
		0.1, 0.9, 0.3,
		0.8, 0.2, 0.1,
	}, 2, 3)
	pred, err := Argmax(scores)
	if err != nil {
		t.Fatalf("Argmax failed: %v", err)
	}
	if want := []int{1, 0}; !reflect.DeepEqual(pred, want) {
		t.Fatalf("Argmax = %v, want %v", pred, want)
	}

	ties := tensors.FromFlatDataAndDimensions([]float32{0.5, 0.5}, 1, 2)
	pred, err = Argmax(ties)
	if err != nil {
		t.Fatalf("Argmax on ties failed: %v", err)
	}
	if pred[0] != 0 {
		t.Fatalf("Argmax tie = %d, want the first maximum 0", pred[0])
	}

	if _, err := Argmax(tensors.FromFlatDataAndDimensions([]float32{1, 2, 3}, 3)); err == nil {
		t.Fatalf("Argmax accepted a rank-1 tensor")
	}
}

func TestNamed(t *testing.T) {
	for _, name := range []string{"categorical_accuracy", "mean_precision", "mean_recall", "cohen_kappa"} {
		if Named[name] == nil {
			t.Fatalf("Named[%q] missing", name)
		}
	}
	if got := Named["categorical_accuracy"](workedTruth, workedPred, 2); !almostEqual(got, 0.75) {
		t.Fatalf("Named accuracy = %v, want 0.75", got)
	}
	if got := Named["cohen_kappa"](workedTruth, workedPred, 2); !almostEqual(got, 0.5) {
		t.Fatalf("Named kappa = %v, want 0.5", got)
	}
}

func TestLengthMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("mismatched lengths did not panic")
		}
	}()
	Accuracy([]int{0, 1}, []int{0})
}

func TestOutOfRangeClassPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("out-of-range class id did not panic")
		}
	}()
	MacroPrecision([]int{0, 5}, []int{0, 1}, 2)
}
