// Package datasets provides indexed, random-access loaders for the image
// corpora used in few-shot classification experiments, plus a synthetic
// corpus for debugging pipelines end to end.
//
// Every corpus is assembled from the same three pieces:
//
//   - an Indexer, which scans the backing store once at construction and
//     produces one Entry per sample,
//   - a Loader, which decodes a single entry into an in-memory image at
//     access time,
//   - a Pipeline, the corpus' fixed transform chain from image to float32
//     tensor.
//
// New composes them into a *Dataset with dense integer class ids.
// Construction is eager and synchronous: any indexing error aborts and no
// partial dataset is returned. Access is lazy: Example re-decodes from the
// source on every call and caches nothing, so concurrent readers share
// only immutable index state.
package datasets

import (
	"image"

	"github.com/pkg/errors"
)

// Subset selects one of the two fixed partitions of a corpus.
type Subset string

const (
	// Background is the partition used for meta-training.
	Background Subset = "background"
	// Evaluation is the held-out partition.
	Evaluation Subset = "evaluation"
)

// Validate returns an error wrapping ErrConfiguration unless s is one of
// (background, evaluation). Constructors call this before touching the
// filesystem, so a bad subset never triggers any I/O.
func (s Subset) Validate() error {
	switch s {
	case Background, Evaluation:
		return nil
	}
	return errors.Wrapf(ErrConfiguration, "subset must be one of (background, evaluation), got %q", s)
}

// Config carries the explicit construction parameters shared by the
// file-backed corpora. Root is the data directory the corpus expects its
// layout under; nothing is read from environment variables or other
// process-wide state.
type Config struct {
	Root   string
	Subset Subset
}

func (c Config) validate() error {
	if err := c.Subset.Validate(); err != nil {
		return err
	}
	if c.Root == "" {
		return errors.Wrap(ErrConfiguration, "empty data root")
	}
	return nil
}

// Sentinel errors for the failure classes this package produces. Returned
// errors wrap these with context; test with errors.Is.
var (
	// ErrConfiguration marks an invalid subset, root, or option.
	ErrConfiguration = errors.New("invalid dataset configuration")
	// ErrNotFound marks a missing walk root, manifest, or blob file.
	ErrNotFound = errors.New("dataset resource not found")
	// ErrDecode marks a sample that could not be read or decoded.
	ErrDecode = errors.New("sample decode failed")
)

// Entry is one indexed sample: where to find it plus its raw class
// identifier. File-backed corpora fill Location with a path; blob-backed
// corpora fill Record with the position inside the container instead.
type Entry struct {
	Location string
	Record   int
	Class    string
}

// Indexer scans a backing store and returns one Entry per sample. It runs
// exactly once, at construction time, and must return entries in a
// deterministic order for unchanged source data.
type Indexer interface {
	Index() ([]Entry, error)
}

// Loader decodes one indexed entry into an image at access time.
// Implementations open their own read handles per call so that concurrent
// Example calls never share mutable state.
type Loader interface {
	Load(e Entry) (image.Image, error)
}
