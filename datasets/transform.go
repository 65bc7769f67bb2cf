package datasets

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/disintegration/imaging"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	timage "github.com/gomlx/gomlx/pkg/core/tensors/images"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// NormMode selects the normalization applied after the image has been
// converted to float32 on the [0, 1] scale.
type NormMode int

const (
	// NormNone keeps the [0, 1] scale as-is.
	NormNone NormMode = iota
	// NormMinMax rescales each sample to exactly [0, 1] using its own
	// minimum and maximum.
	NormMinMax
	// NormMeanStd subtracts Mean and divides by Std per channel.
	NormMeanStd
)

// ImageNet channel statistics, used by the three-channel corpora that
// normalize with fixed constants.
var (
	ImageNetMean = [3]float32{0.485, 0.456, 0.406}
	ImageNetStd  = [3]float32{0.229, 0.224, 0.225}
)

// Pipeline is the fixed transform chain from decoded image to float32
// tensor. It is configured once at construction and never mutated
// afterwards, so repeated applications to the same input produce
// bit-identical output.
//
// Steps run in order:
//
//   - center crop to CropSize x CropSize when CropSize > 0
//   - exact resize to ResizeWidth x ResizeHeight when both are > 0
//   - grayscale conversion when Grayscale or SingleChannel is set
//   - float32 conversion on the [0, 1] scale, three channels, or one
//     when SingleChannel is set
//   - normalization per Normalize
//   - layout conversion; the zero value of Layout is channels-first,
//     so tensors come out [C, H, W] unless ChannelsLast is requested
type Pipeline struct {
	CropSize      int
	ResizeWidth   int
	ResizeHeight  int
	Grayscale     bool
	SingleChannel bool
	Normalize     NormMode
	Mean          [3]float32
	Std           [3]float32
	Layout        timage.ChannelsAxisConfig
}

// Apply runs the pipeline on one decoded image.
func (p Pipeline) Apply(img image.Image) (*tensors.Tensor, error) {
	if p.CropSize > 0 {
		img = imaging.CropCenter(img, p.CropSize, p.CropSize)
	}
	if p.ResizeWidth > 0 && p.ResizeHeight > 0 {
		img = imaging.Resize(img, p.ResizeWidth, p.ResizeHeight, imaging.Linear)
	}
	if p.Grayscale || p.SingleChannel {
		img = imaging.Grayscale(img)
	}

	var t *tensors.Tensor
	if p.SingleChannel {
		t = grayTensor(img)
	} else {
		t = timage.ToTensor(dtypes.Float32).Single(img)
	}

	switch p.Normalize {
	case NormNone:
	case NormMinMax:
		minMaxNormalize(t)
	case NormMeanStd:
		meanStdNormalize(t, p.Mean, p.Std)
	default:
		return nil, errors.Wrapf(ErrConfiguration, "unknown normalization mode %d", p.Normalize)
	}

	if p.Layout == timage.ChannelsFirst {
		t = toChannelsFirst(t)
	}
	return t, nil
}

// grayTensor extracts the luminance channel as an [H, W, 1] float32
// tensor on the [0, 1] scale. The stock image converter always emits at
// least three channels, so the single-channel corpora fill their own.
func grayTensor(img image.Image) *tensors.Tensor {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	flat := make([]float32, h*w)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, _, _, _ := img.At(x, y).RGBA()
			flat[i] = float32(r) / 0xFFFF
			i++
		}
	}
	return tensors.FromFlatDataAndDimensions(flat, h, w, 1)
}

// minMaxNormalize rescales the tensor in place to [0, 1] with its own
// extrema. A constant sample maps to zero instead of dividing by zero.
func minMaxNormalize(t *tensors.Tensor) {
	tensors.MustMutableFlatData(t, func(flat []float32) {
		if len(flat) == 0 {
			return
		}
		lo, hi := flat[0], flat[0]
		for _, v := range flat {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		span := hi - lo
		if span == 0 {
			for i := range flat {
				flat[i] = 0
			}
			return
		}
		for i := range flat {
			flat[i] = (flat[i] - lo) / span
		}
	})
}

// meanStdNormalize applies fixed per-channel statistics in place. The
// tensor must still be channels-last.
func meanStdNormalize(t *tensors.Tensor, mean, std [3]float32) {
	dims := t.Shape().Dimensions
	c := dims[len(dims)-1]
	tensors.MustMutableFlatData(t, func(flat []float32) {
		for i, v := range flat {
			ch := i % c
			flat[i] = (v - mean[ch]) / std[ch]
		}
	})
}

// toChannelsFirst transposes an [H, W, C] tensor to [C, H, W].
func toChannelsFirst(t *tensors.Tensor) *tensors.Tensor {
	dims := t.Shape().Dimensions
	h, w, c := dims[0], dims[1], dims[2]
	var out []float32
	tensors.MustConstFlatData(t, func(flat []float32) {
		out = make([]float32, len(flat))
		for y := range h {
			for x := range w {
				for ch := range c {
					out[ch*h*w+y*w+x] = flat[(y*w+x)*c+ch]
				}
			}
		}
	})
	return tensors.FromFlatDataAndDimensions(out, c, h, w)
}

// fileLoader opens and decodes an image file per access. PNG and JPEG
// decoders are registered; any other format registered by the importing
// program works as well.
type fileLoader struct{}

func (fileLoader) Load(e Entry) (image.Image, error) {
	f, err := os.Open(e.Location)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNotFound, "sample %s", e.Location)
		}
		return nil, errors.Wrapf(err, "failed to open sample %s", e.Location)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(ErrDecode, "sample %s: %v", e.Location, err)
	}
	return img, nil
}
