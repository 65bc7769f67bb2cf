package datasets

import (
	"fmt"
	"io"
	"sync"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
)

// Dummy is the synthetic corpus for debugging training plumbing without
// touching any files. Sample i is the float32 vector [i, c, c, ...] with
// 1+features values, where c = i % classes is also the label.
type Dummy struct {
	samplesPerClass int
	classes         int
	features        int

	mu   sync.Mutex
	next int
}

// NewDummy builds a synthetic corpus holding samplesPerClass*classes
// examples of 1+features values each.
func NewDummy(samplesPerClass, classes, features int) (*Dummy, error) {
	if samplesPerClass <= 0 || classes <= 0 || features < 0 {
		return nil, errors.Wrapf(ErrConfiguration,
			"dummy corpus needs positive samples per class (got %d) and classes (got %d) and non-negative features (got %d)",
			samplesPerClass, classes, features)
	}
	return &Dummy{samplesPerClass: samplesPerClass, classes: classes, features: features}, nil
}

// Len returns samplesPerClass * classes.
func (d *Dummy) Len() int { return d.samplesPerClass * d.classes }

// NumClasses returns the number of distinct classes.
func (d *Dummy) NumClasses() int { return d.classes }

// Label returns the class of sample i without building its tensor.
func (d *Dummy) Label(i int) (int, error) {
	if i < 0 || i >= d.Len() {
		return 0, fmt.Errorf("index %d out of range [0, %d)", i, d.Len())
	}
	return i % d.classes, nil
}

// Example synthesizes the sample at index i.
func (d *Dummy) Example(i int) (*tensors.Tensor, int, error) {
	if i < 0 || i >= d.Len() {
		return nil, 0, fmt.Errorf("index %d out of range [0, %d)", i, d.Len())
	}
	class := i % d.classes
	flat := make([]float32, 1+d.features)
	flat[0] = float32(i)
	for j := 1; j < len(flat); j++ {
		flat[j] = float32(class)
	}
	return tensors.FromFlatDataAndDimensions(flat, len(flat)), class, nil
}

// Name implements train.Dataset.
func (d *Dummy) Name() string { return "dummy" }

// Reset implements train.Dataset.
func (d *Dummy) Reset() {
	d.mu.Lock()
	d.next = 0
	d.mu.Unlock()
}

// Yield implements train.Dataset, stepping through the samples in index
// order and returning io.EOF at the end of the epoch.
func (d *Dummy) Yield() (spec any, inputs, labels []*tensors.Tensor, err error) {
	d.mu.Lock()
	i := d.next
	if i < d.Len() {
		d.next++
	}
	d.mu.Unlock()
	if i >= d.Len() {
		return nil, nil, nil, io.EOF
	}
	t, class, err := d.Example(i)
	if err != nil {
		return nil, nil, nil, err
	}
	return d, []*tensors.Tensor{t}, []*tensors.Tensor{tensors.FromScalarAndDimensions(int32(class))}, nil
}
