package datasets

import (
	"path/filepath"

	timage "github.com/gomlx/gomlx/pkg/core/tensors/images"
)

// NewMiniImageNet opens the miniImageNet corpus rooted at
// <root>/miniImageNet/images_<subset>, with the class taken from the
// parent directory. Samples are center-cropped to 224, resized to 84x84
// and normalized with the ImageNet channel statistics, channels first:
// [3, 84, 84] float32.
//
// The preflight count looks for ".png" files while the corpus ships
// JPEGs; the indexer warning surfaces that mismatch instead of hiding
// it.
func NewMiniImageNet(cfg Config) (*Dataset, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return New("miniimagenet-"+string(cfg.Subset), miniImageNetIndexer(cfg), fileLoader{}, miniImageNetPipeline())
}

func miniImageNetIndexer(cfg Config) *DirIndexer {
	return &DirIndexer{
		Root:     filepath.Join(cfg.Root, "miniImageNet", "images_"+string(cfg.Subset)),
		Naming:   ClassFromParent,
		CountExt: ".png",
	}
}

func miniImageNetPipeline() Pipeline {
	return Pipeline{
		CropSize:     224,
		ResizeWidth:  84,
		ResizeHeight: 84,
		Normalize:    NormMeanStd,
		Mean:         ImageNetMean,
		Std:          ImageNetStd,
		Layout:       timage.ChannelsFirst,
	}
}
