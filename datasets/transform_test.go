package datasets

import (
	"errors"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	timage "github.com/gomlx/gomlx/pkg/core/tensors/images"
)

// gradientImage returns a w x h color image with distinct channel values
// per pixel.
func gradientImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 7), G: uint8(y * 11), B: uint8((x + y) * 3), A: 255,
			})
		}
	}
	return img
}

// flatData copies a tensor's float32 contents out for inspection.
func flatData(t *testing.T, tens *tensors.Tensor) []float32 {
	t.Helper()
	var out []float32
	tensors.MustConstFlatData(tens, func(flat []float32) {
		out = append([]float32(nil), flat...)
	})
	return out
}

// TestPipeline_GrayResizeShape verifies the grayscale pipeline emits a
// channels-first tensor whose three planes agree.
func TestPipeline_GrayResizeShape(t *testing.T) {
	p := Pipeline{ResizeWidth: 86, ResizeHeight: 86, Grayscale: true}
	tens, err := p.Apply(gradientImage(40, 20))
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if dims := tens.Shape().Dimensions; !reflect.DeepEqual(dims, []int{3, 86, 86}) {
		t.Fatalf("output shape %v, want [3 86 86]", dims)
	}
	flat := flatData(t, tens)
	plane := 86 * 86
	for i := range plane {
		if flat[i] != flat[plane+i] || flat[i] != flat[2*plane+i] {
			t.Fatalf("grayscale planes differ at offset %d: %v %v %v", i, flat[i], flat[plane+i], flat[2*plane+i])
		}
	}
}

// TestPipeline_SingleChannelMinMax verifies the one-channel path scales
// each sample to exactly [0, 1] with its own extrema.
func TestPipeline_SingleChannelMinMax(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 6, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 6; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(x*10 + y)})
		}
	}

	p := Pipeline{SingleChannel: true, Normalize: NormMinMax}
	tens, err := p.Apply(img)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if dims := tens.Shape().Dimensions; !reflect.DeepEqual(dims, []int{1, 4, 6}) {
		t.Fatalf("output shape %v, want [1 4 6]", dims)
	}
	flat := flatData(t, tens)
	lo, hi := flat[0], flat[0]
	for _, v := range flat {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if lo != 0 || hi != 1 {
		t.Fatalf("normalized range [%v, %v], want [0, 1]", lo, hi)
	}
}

// TestPipeline_MinMaxConstantSample verifies a constant sample maps to
// zeros rather than dividing by a zero span.
func TestPipeline_MinMaxConstantSample(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 3, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			img.SetGray(x, y, color.Gray{Y: 120})
		}
	}
	p := Pipeline{SingleChannel: true, Normalize: NormMinMax}
	tens, err := p.Apply(img)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	for i, v := range flatData(t, tens) {
		if v != 0 {
			t.Fatalf("offset %d = %v, want 0 for a constant sample", i, v)
		}
	}
}

// TestPipeline_MeanStdNormalization verifies the fixed-statistics mode
// against hand-computed channel values.
func TestPipeline_MeanStdNormalization(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 100, G: 100, B: 100, A: 255})
		}
	}

	p := Pipeline{Normalize: NormMeanStd, Mean: ImageNetMean, Std: ImageNetStd}
	tens, err := p.Apply(img)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if dims := tens.Shape().Dimensions; !reflect.DeepEqual(dims, []int{3, 4, 4}) {
		t.Fatalf("output shape %v, want [3 4 4]", dims)
	}
	flat := flatData(t, tens)
	v := float32(100.0 / 255.0)
	plane := 4 * 4
	for ch := range 3 {
		want := (v - ImageNetMean[ch]) / ImageNetStd[ch]
		for i := range plane {
			got := flat[ch*plane+i]
			if math.Abs(float64(got-want)) > 1e-4 {
				t.Fatalf("channel %d offset %d = %v, want %v", ch, i, got, want)
			}
		}
	}
}

// TestPipeline_CropResizeLayout verifies the crop and resize geometry in
// both layouts.
func TestPipeline_CropResizeLayout(t *testing.T) {
	img := gradientImage(10, 10)

	first := Pipeline{CropSize: 6, ResizeWidth: 4, ResizeHeight: 2}
	tens, err := first.Apply(img)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if dims := tens.Shape().Dimensions; !reflect.DeepEqual(dims, []int{3, 2, 4}) {
		t.Fatalf("channels-first shape %v, want [3 2 4]", dims)
	}

	last := Pipeline{CropSize: 6, ResizeWidth: 4, ResizeHeight: 2, Layout: timage.ChannelsLast}
	tens, err = last.Apply(img)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if dims := tens.Shape().Dimensions; !reflect.DeepEqual(dims, []int{2, 4, 3}) {
		t.Fatalf("channels-last shape %v, want [2 4 3]", dims)
	}
}

// TestPipeline_RepeatApplyBitIdentical verifies two applications of the
// same pipeline to the same input agree bit for bit.
func TestPipeline_RepeatApplyBitIdentical(t *testing.T) {
	img := gradientImage(16, 12)
	p := Pipeline{ResizeWidth: 8, ResizeHeight: 8, Normalize: NormMeanStd, Mean: ImageNetMean, Std: ImageNetStd}

	t1, err := p.Apply(img)
	if err != nil {
		t.Fatalf("first Apply failed: %v", err)
	}
	t2, err := p.Apply(img)
	if err != nil {
		t.Fatalf("second Apply failed: %v", err)
	}
	if !t1.Equal(t2) {
		t.Fatalf("repeated applications disagree")
	}
}

// TestPipeline_UnknownNormMode verifies an unrecognized mode is a
// configuration error.
func TestPipeline_UnknownNormMode(t *testing.T) {
	p := Pipeline{Normalize: NormMode(42)}
	if _, err := p.Apply(gradientImage(2, 2)); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("Apply error = %v, want ErrConfiguration", err)
	}
}

// TestToChannelsFirst verifies the transpose against a tiny known tensor.
func TestToChannelsFirst(t *testing.T) {
	in := tensors.FromFlatDataAndDimensions([]float32{1, 2, 3, 4, 5, 6}, 1, 2, 3)
	out := toChannelsFirst(in)
	if dims := out.Shape().Dimensions; !reflect.DeepEqual(dims, []int{3, 1, 2}) {
		t.Fatalf("output shape %v, want [3 1 2]", dims)
	}
	want := []float32{1, 4, 2, 5, 3, 6}
	if got := flatData(t, out); !reflect.DeepEqual(got, want) {
		t.Fatalf("transposed data %v, want %v", got, want)
	}
}

// TestFileLoader verifies decoding, the not-found mapping and the decode
// error mapping.
func TestFileLoader(t *testing.T) {
	tmp := t.TempDir()
	good := filepath.Join(tmp, "good.png")
	writePNG(t, good, 33)

	img, err := fileLoader{}.Load(Entry{Location: good})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 4 {
		t.Fatalf("decoded image is %dx%d, want 4x4", b.Dx(), b.Dy())
	}

	if _, err := (fileLoader{}).Load(Entry{Location: filepath.Join(tmp, "absent.png")}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing sample error = %v, want ErrNotFound", err)
	}

	bad := filepath.Join(tmp, "bad.png")
	if err := os.WriteFile(bad, []byte("not an image"), 0o644); err != nil {
		t.Fatalf("failed to write corrupt sample: %v", err)
	}
	if _, err := (fileLoader{}).Load(Entry{Location: bad}); !errors.Is(err, ErrDecode) {
		t.Fatalf("corrupt sample error = %v, want ErrDecode", err)
	}
}
