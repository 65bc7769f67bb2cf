package main

// Example program that walks the synthetic corpus end to end: a few
// samples, one epoch of the sequential cursor, and the evaluation
// metrics over a deliberately imperfect set of predictions.
//
// Usage:
//
//	go run ./example
//
// Pass -root to also open the handwritten-characters corpus from a real
// data directory and stack a small batch from it; without the flag the
// example sticks to the synthetic corpus and touches no files.

import (
	"flag"
	"fmt"
	"io"
	"log"

	"github.com/Noofbiz/fewshot/datasets"
	"github.com/Noofbiz/fewshot/metrics"
)

func main() {
	root := flag.String("root", "", "data root holding the Omniglot layout (optional)")
	flag.Parse()

	d, err := datasets.NewDummy(4, 3, 5)
	if err != nil {
		log.Fatalf("failed to build the synthetic corpus: %v", err)
	}
	fmt.Printf("Synthetic corpus: %d samples over %d classes\n", d.Len(), d.NumClasses())
	for i := range min(3, d.Len()) {
		tens, label, err := d.Example(i)
		if err != nil {
			log.Fatalf("failed to read sample %d: %v", i, err)
		}
		fmt.Printf("  sample %d: %v -> class %d\n", i, tens.Value(), label)
	}

	// One epoch through the train.Dataset surface.
	epoch := 0
	for {
		_, _, _, err := d.Yield()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("failed to yield: %v", err)
		}
		epoch++
	}
	d.Reset()
	fmt.Printf("  one epoch yields %d examples\n", epoch)

	// Score the true labels against a prediction run with one mistake.
	truth := make([]int, d.Len())
	pred := make([]int, d.Len())
	for i := range truth {
		label, err := d.Label(i)
		if err != nil {
			log.Fatalf("failed to read label %d: %v", i, err)
		}
		truth[i] = label
		pred[i] = label
	}
	pred[0] = (truth[0] + 1) % d.NumClasses()
	for _, name := range []string{"categorical_accuracy", "mean_precision", "mean_recall", "cohen_kappa"} {
		fmt.Printf("  %s: %.4f\n", name, metrics.Named[name](truth, pred, d.NumClasses()))
	}

	if *root == "" {
		return
	}

	ds, err := datasets.NewOmniglot(datasets.Config{Root: *root, Subset: datasets.Background})
	if err != nil {
		log.Fatalf("failed to open the handwritten-characters corpus: %v", err)
	}
	fmt.Printf("Omniglot background: %d samples over %d classes\n", ds.Len(), ds.NumClasses())

	n := min(4, ds.Len())
	if n == 0 {
		return
	}
	indices := make([]int, n)
	for i := range n {
		indices[i] = i
	}
	inputs, labels, err := ds.Batch(indices)
	if err != nil {
		log.Fatalf("failed to stack a batch: %v", err)
	}
	fmt.Printf("  batch inputs %v, labels %v\n", inputs.Shape().Dimensions, labels.Shape().Dimensions)
}
