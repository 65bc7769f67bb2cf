package datasets

import (
	"path/filepath"

	timage "github.com/gomlx/gomlx/pkg/core/tensors/images"
)

// Manifest locations under the data root, one pair per corpus
// generation.
const (
	kamonTrainManifest = "configs/input_files/training_input_charge_classification_v1.csv"
	kamonEvalManifest  = "configs/input_files/eval_input_charge_classification_v1.csv"

	kamonExtendedTrainManifest = "configs/input_files/training_input_classification_extended_v6.csv"
	kamonExtendedEvalManifest  = "configs/input_files/eval_input_classification_extended_v6.csv"
)

// kamonPipeline is the 86x86 three-channel grayscale chain shared by the
// manifest corpora and the logo corpus: [3, 86, 86] float32 on the
// [0, 1] scale.
func kamonPipeline() Pipeline {
	return Pipeline{
		ResizeWidth:  86,
		ResizeHeight: 86,
		Grayscale:    true,
		Layout:       timage.ChannelsFirst,
	}
}

// NewKamon opens the charge-classification corpus: one manifest per
// subset under <root>/configs/input_files, rows trusted verbatim with
// their stored class ids.
func NewKamon(cfg Config) (*Dataset, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	manifest := kamonTrainManifest
	if cfg.Subset == Evaluation {
		manifest = kamonEvalManifest
	}
	ix := &ManifestIndexer{Path: filepath.Join(cfg.Root, filepath.FromSlash(manifest))}
	return NewTrusted("kamon-"+string(cfg.Subset), ix, fileLoader{}, kamonPipeline())
}

// NewKamonExtended opens the extended-classification corpus over the v6
// manifest pair, otherwise identical to NewKamon.
func NewKamonExtended(cfg Config) (*Dataset, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	manifest := kamonExtendedTrainManifest
	if cfg.Subset == Evaluation {
		manifest = kamonExtendedEvalManifest
	}
	ix := &ManifestIndexer{Path: filepath.Join(cfg.Root, filepath.FromSlash(manifest))}
	return NewTrusted("kamon-extended-"+string(cfg.Subset), ix, fileLoader{}, kamonPipeline())
}

// NewImageNetKamon builds the hybrid corpus: meta-training runs over the
// miniImageNet directory layout with its crop/normalize chain and
// encoded classes, while evaluation reads the charge-classification
// manifest with the 86x86 grayscale chain and trusted ids.
func NewImageNetKamon(cfg Config) (*Dataset, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	name := "imagenet-kamon-" + string(cfg.Subset)
	if cfg.Subset == Background {
		return New(name, miniImageNetIndexer(cfg), fileLoader{}, miniImageNetPipeline())
	}
	ix := &ManifestIndexer{Path: filepath.Join(cfg.Root, filepath.FromSlash(kamonEvalManifest))}
	return NewTrusted(name, ix, fileLoader{}, kamonPipeline())
}
