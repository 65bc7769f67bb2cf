package main

// inspect opens one corpus and reports what a training run would see:
// sample and class counts, the shape and size of one transformed
// example, and optionally a per-class histogram plot, a PNG dump of a
// single sample, or a timed pass over every example.
//
// Usage:
//
//	go run ./cmd/inspect -dataset omniglot -root /data/input -subset background
//	go run ./cmd/inspect -dataset logo -root /data/input -index 3 -dump sample.png
//	go run ./cmd/inspect -dataset kamon -root /data/input -plot classes.png

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/schollz/progressbar/v3"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/Noofbiz/fewshot/datasets"
)

// corpus is the facade surface shared by the file-backed datasets and
// the synthetic one.
type corpus interface {
	Len() int
	NumClasses() int
	Label(i int) (int, error)
	Example(i int) (*tensors.Tensor, int, error)
}

func main() {
	name := flag.String("dataset", "dummy", "corpus to open: omniglot, mini, kamon, kamon-extended, imagenet-kamon, logo or dummy")
	root := flag.String("root", "/data/input", "data root directory")
	subsetFlag := flag.String("subset", "background", "partition: background or evaluation")
	index := flag.Int("index", 0, "sample index for the shape report and -dump")
	dump := flag.String("dump", "", "write sample -index as a PNG to this path")
	plotFile := flag.String("plot", "", "write a per-class sample-count bar chart to this path")
	reencode := flag.Bool("reencode", false, "run one full epoch through Yield and report throughput")
	dummySamples := flag.Int("dummy-samples", 10, "samples per class for the synthetic corpus")
	dummyClasses := flag.Int("dummy-classes", 5, "classes for the synthetic corpus")
	dummyFeatures := flag.Int("dummy-features", 9, "feature values per synthetic sample")
	flag.Parse()

	cfg := datasets.Config{Root: *root, Subset: datasets.Subset(*subsetFlag)}
	var (
		ds  corpus
		err error
	)
	switch *name {
	case "omniglot":
		ds, err = datasets.NewOmniglot(cfg)
	case "mini":
		ds, err = datasets.NewMiniImageNet(cfg)
	case "kamon":
		ds, err = datasets.NewKamon(cfg)
	case "kamon-extended":
		ds, err = datasets.NewKamonExtended(cfg)
	case "imagenet-kamon":
		ds, err = datasets.NewImageNetKamon(cfg)
	case "logo":
		ds, err = datasets.NewLogo(cfg)
	case "dummy":
		ds, err = datasets.NewDummy(*dummySamples, *dummyClasses, *dummyFeatures)
	default:
		log.Fatalf("unknown dataset %q", *name)
	}
	if err != nil {
		log.Fatalf("failed to open dataset %s: %v", *name, err)
	}

	fmt.Printf("Dataset: %s (%s)\n", *name, *subsetFlag)
	fmt.Printf("Samples: %s\n", humanize.Comma(int64(ds.Len())))
	fmt.Printf("Classes: %d\n", ds.NumClasses())
	if named, ok := ds.(*datasets.Dataset); ok && named.NumClasses() <= 20 {
		fmt.Printf("Class names: %v\n", named.ClassNames())
	}
	if ds.NumClasses() <= 20 && ds.Len() > 0 {
		counts, err := classCounts(ds)
		if err != nil {
			log.Fatalf("failed to count classes: %v", err)
		}
		fmt.Printf("Per-class counts: %v\n", counts)
	}

	if ds.Len() > 0 {
		tens, label, err := ds.Example(*index)
		if err != nil {
			log.Fatalf("failed to read sample %d: %v", *index, err)
		}
		size := humanize.Bytes(uint64(tens.Shape().Size() * 4))
		fmt.Printf("Sample %d: shape %v, %s float32, class %d\n", *index, tens.Shape().Dimensions, size, label)
		if *dump != "" {
			if err := dumpPNG(tens, *dump); err != nil {
				log.Fatalf("failed to dump sample %d: %v", *index, err)
			}
			fmt.Printf("Wrote sample %d to %s\n", *index, *dump)
		}
	}

	if *plotFile != "" {
		if err := plotClassCounts(ds, *name, *plotFile); err != nil {
			log.Fatalf("failed to plot class counts: %v", err)
		}
		fmt.Printf("Wrote class histogram to %s\n", *plotFile)
	}

	if *reencode {
		td, ok := ds.(train.Dataset)
		if !ok {
			log.Fatalf("dataset %s does not support sequential iteration", *name)
		}
		bar := progressbar.Default(int64(ds.Len()), "reencoding")
		start := time.Now()
		n := 0
		for {
			_, _, _, err := td.Yield()
			if err == io.EOF {
				break
			}
			if err != nil {
				log.Fatalf("failed to yield example %d: %v", n, err)
			}
			n++
			_ = bar.Add(1)
		}
		_ = bar.Finish()
		td.Reset()
		elapsed := time.Since(start)
		fmt.Printf("Reencoded %d examples in %s (%.1f examples/s)\n",
			n, elapsed.Round(time.Millisecond), float64(n)/elapsed.Seconds())
	}
}

// classCounts tallies samples per class id. Labels come from the index
// alone, so this never decodes a sample.
func classCounts(ds corpus) (map[int]int, error) {
	counts := make(map[int]int)
	for i := 0; i < ds.Len(); i++ {
		label, err := ds.Label(i)
		if err != nil {
			return nil, err
		}
		counts[label]++
	}
	return counts, nil
}

// plotClassCounts draws one bar per distinct class id, in id order.
func plotClassCounts(ds corpus, title, path string) error {
	counts, err := classCounts(ds)
	if err != nil {
		return err
	}
	ids := make([]int, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	vals := make(plotter.Values, len(ids))
	names := make([]string, len(ids))
	for j, id := range ids {
		vals[j] = float64(counts[id])
		names[j] = strconv.Itoa(id)
	}

	p := plot.New()
	p.Title.Text = title + " samples per class"
	p.Y.Label.Text = "samples"
	bars, err := plotter.NewBarChart(vals, vg.Points(12))
	if err != nil {
		return err
	}
	bars.Color = color.RGBA{R: 70, G: 130, B: 180, A: 255}
	p.Add(bars)
	if len(names) <= 40 {
		p.NominalX(names...)
	}
	return p.Save(8*vg.Inch, 4*vg.Inch, path)
}

// dumpPNG renders a [C, H, W] sample tensor as an 8-bit PNG, rescaling
// the values to the full range so normalized samples stay viewable.
func dumpPNG(t *tensors.Tensor, path string) error {
	dims := t.Shape().Dimensions
	if len(dims) != 3 {
		return fmt.Errorf("sample tensor has shape %v, want [C, H, W]", dims)
	}
	c, h, w := dims[0], dims[1], dims[2]
	var flat []float32
	if err := tensors.ConstFlatData(t, func(data []float32) {
		flat = append([]float32(nil), data...)
	}); err != nil {
		return err
	}
	if len(flat) == 0 || c < 1 {
		return fmt.Errorf("sample tensor is empty")
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
		span = 1
	}
	at := func(ch, y, x int) uint8 {
		v := (flat[ch*h*w+y*w+x] - lo) / span
		return uint8(v*255 + 0.5)
	}

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var r, g, b uint8
			if c >= 3 {
				r, g, b = at(0, y, x), at(1, y, x), at(2, y, x)
			} else {
				r = at(0, y, x)
				g, b = r, r
			}
			img.SetNRGBA(x, y, color.NRGBA{R: r, G: g, B: b, A: 255})
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
