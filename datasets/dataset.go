package datasets

import (
	"fmt"
	"io"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/pkg/errors"
)

// The corpora and the synthetic dataset both plug into gomlx training
// loops directly.
var (
	_ train.Dataset = (*Dataset)(nil)
	_ train.Dataset = (*Dummy)(nil)
)

// sample is one indexed example with its integer class id resolved.
type sample struct {
	entry   Entry
	classID int
}

// Dataset is the generic random-access facade shared by every corpus. It
// owns its index and class mapping exclusively; two instances never
// share state, even when built over the same corpus and root, so the
// background and evaluation partitions always carry independently
// computed class tables.
//
// Example is safe for concurrent use: loaders open their own handles and
// the index is immutable after construction. The sequential Yield/Reset
// pair implements gomlx's train.Dataset over a mutex-guarded cursor.
type Dataset struct {
	name       string
	samples    []sample
	classNames []string
	numClasses int
	loader     Loader
	pipeline   Pipeline

	mu   sync.Mutex
	next int
}

// New builds a dataset whose class ids come from the label encoder: the
// distinct raw class names observed by the indexer are sorted and their
// ranks become the dense ids in [0, NumClasses()).
func New(name string, ix Indexer, ld Loader, p Pipeline) (*Dataset, error) {
	return newDataset(name, ix, ld, p, false)
}

// NewTrusted builds a dataset whose raw class identifiers are trusted as
// already-dense integer ids and carried through without re-encoding, the
// lifecycle of the manifest- and blob-backed corpora. A class identifier
// that does not parse as an integer fails construction.
func NewTrusted(name string, ix Indexer, ld Loader, p Pipeline) (*Dataset, error) {
	return newDataset(name, ix, ld, p, true)
}

func newDataset(name string, ix Indexer, ld Loader, p Pipeline, trusted bool) (*Dataset, error) {
	entries, err := ix.Index()
	if err != nil {
		return nil, err
	}
	ds := &Dataset{
		name:     name,
		samples:  make([]sample, len(entries)),
		loader:   ld,
		pipeline: p,
	}
	if trusted {
		distinct := make(map[int]struct{})
		for i, e := range entries {
			id, err := strconv.Atoi(strings.TrimSpace(e.Class))
			if err != nil {
				return nil, errors.Wrapf(ErrConfiguration, "class id %q of sample %d is not an integer", e.Class, i)
			}
			ds.samples[i] = sample{entry: e, classID: id}
			distinct[id] = struct{}{}
		}
		ids := make([]int, 0, len(distinct))
		for id := range distinct {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		ds.classNames = make([]string, len(ids))
		for i, id := range ids {
			ds.classNames[i] = strconv.Itoa(id)
		}
		ds.numClasses = len(ids)
		return ds, nil
	}

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Class
	}
	table := NewClassTable(names)
	for i, e := range entries {
		id, ok := table.ID(e.Class)
		if !ok {
			return nil, errors.Errorf("class %q of sample %d missing from the class table", e.Class, i)
		}
		ds.samples[i] = sample{entry: e, classID: id}
	}
	ds.classNames = table.Names()
	ds.numClasses = table.Len()
	return ds, nil
}

// Len returns the number of indexed samples.
func (ds *Dataset) Len() int { return len(ds.samples) }

// NumClasses returns the number of distinct classes observed during
// indexing. Encoder-backed datasets emit dense ids in [0, NumClasses());
// trusted datasets pass their stored ids through unchanged.
func (ds *Dataset) NumClasses() int { return ds.numClasses }

// ClassNames returns the distinct raw class identifiers in id order. The
// slice is shared; callers must not modify it.
func (ds *Dataset) ClassNames() []string { return ds.classNames }

// Label returns the class id of sample i without decoding it.
func (ds *Dataset) Label(i int) (int, error) {
	if i < 0 || i >= len(ds.samples) {
		return 0, fmt.Errorf("index %d out of range [0, %d)", i, len(ds.samples))
	}
	return ds.samples[i].classID, nil
}

// Example decodes and transforms the sample at index i, returning the
// transformed tensor and the sample's integer class id. Every call
// re-decodes from the backing store; nothing is cached between calls.
func (ds *Dataset) Example(i int) (*tensors.Tensor, int, error) {
	if i < 0 || i >= len(ds.samples) {
		return nil, 0, fmt.Errorf("index %d out of range [0, %d)", i, len(ds.samples))
	}
	s := ds.samples[i]
	img, err := ds.loader.Load(s.entry)
	if err != nil {
		return nil, 0, err
	}
	t, err := ds.pipeline.Apply(img)
	if err != nil {
		return nil, 0, err
	}
	return t, s.classID, nil
}

// Batch stacks the given examples into a [B, ...] inputs tensor and a
// [B] int32 labels tensor. All examples in a batch must transform to the
// same shape, which holds whenever the pipeline pins the output size.
func (ds *Dataset) Batch(indices []int) (inputs, labels *tensors.Tensor, err error) {
	if len(indices) == 0 {
		return nil, nil, errors.New("empty batch")
	}
	var flat []float32
	var exampleDims []int
	labelData := make([]int32, len(indices))
	for bi, idx := range indices {
		t, classID, err := ds.Example(idx)
		if err != nil {
			return nil, nil, err
		}
		dims := t.Shape().Dimensions
		if exampleDims == nil {
			exampleDims = append([]int(nil), dims...)
			flat = make([]float32, 0, len(indices)*t.Shape().Size())
		} else if !slices.Equal(dims, exampleDims) {
			return nil, nil, errors.Errorf("example %d has shape %v, want %v within one batch", idx, dims, exampleDims)
		}
		tensors.MustConstFlatData(t, func(data []float32) {
			flat = append(flat, data...)
		})
		labelData[bi] = int32(classID)
	}
	batchDims := append([]int{len(indices)}, exampleDims...)
	inputs = tensors.FromFlatDataAndDimensions(flat, batchDims...)
	labels = tensors.FromFlatDataAndDimensions(labelData, len(indices))
	return inputs, labels, nil
}

// Name implements train.Dataset.
func (ds *Dataset) Name() string { return ds.name }

// Reset implements train.Dataset, restarting the sequential cursor at
// the first sample.
func (ds *Dataset) Reset() {
	ds.mu.Lock()
	ds.next = 0
	ds.mu.Unlock()
}

// Yield implements train.Dataset. It steps through the samples in index
// order, one example per call, returning io.EOF at the end of the
// epoch. Inputs hold the transformed sample; labels hold the class id as
// a scalar int32.
func (ds *Dataset) Yield() (spec any, inputs, labels []*tensors.Tensor, err error) {
	ds.mu.Lock()
	i := ds.next
	if i < len(ds.samples) {
		ds.next++
	}
	ds.mu.Unlock()
	if i >= len(ds.samples) {
		return nil, nil, nil, io.EOF
	}
	t, classID, err := ds.Example(i)
	if err != nil {
		return nil, nil, nil, err
	}
	return ds, []*tensors.Tensor{t}, []*tensors.Tensor{tensors.FromScalarAndDimensions(int32(classID))}, nil
}
