package datasets

import (
	"path/filepath"

	timage "github.com/gomlx/gomlx/pkg/core/tensors/images"
)

// NewOmniglot opens the Omniglot handwritten-characters corpus rooted at
// <root>/Omniglot/images_<subset>. Classes are "<alphabet>.<character>"
// names encoded to dense ids. Samples come out as a single channel with
// per-sample min-max normalization, channels first: [1, H, W] float32.
func NewOmniglot(cfg Config) (*Dataset, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	ix := &DirIndexer{
		Root:     filepath.Join(cfg.Root, "Omniglot", "images_"+string(cfg.Subset)),
		Naming:   ClassFromAlphabet,
		CountExt: ".png",
	}
	p := Pipeline{
		SingleChannel: true,
		Normalize:     NormMinMax,
		Layout:        timage.ChannelsFirst,
	}
	return New("omniglot-"+string(cfg.Subset), ix, fileLoader{}, p)
}
