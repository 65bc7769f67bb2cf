package datasets

import "path/filepath"

// Logo corpus constants: the LLD logo set repacked as an uncompressed
// NPZ container. Records [0, 20000) form the meta-training slice and
// [20000, 30000) the held-out slice.
const (
	logoBlobPath    = "logo/lld-logo.npz"
	logoLabelScheme = "labels/resnet/rc_32"

	logoBackgroundStart = 0
	logoBackgroundEnd   = 20000
	logoEvaluationStart = 20000
	logoEvaluationEnd   = 30000
)

// NewLogo opens the logo corpus backed by the blob container at
// <root>/logo/lld-logo.npz. Labels come from the "labels/resnet/rc_32"
// scheme and are trusted as stored. The record range clamps to the
// container size, so a smaller repack still loads. Samples share the
// 86x86 grayscale chain of the manifest corpora.
func NewLogo(cfg Config) (*Dataset, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	store, err := OpenBlob(filepath.Join(cfg.Root, filepath.FromSlash(logoBlobPath)), logoLabelScheme)
	if err != nil {
		return nil, err
	}
	start, end := logoBackgroundStart, logoBackgroundEnd
	if cfg.Subset == Evaluation {
		start, end = logoEvaluationStart, logoEvaluationEnd
	}
	ix := &BlobIndexer{Store: store, Start: start, End: end}
	return NewTrusted("logo-"+string(cfg.Subset), ix, blobLoader{store: store}, kamonPipeline())
}
