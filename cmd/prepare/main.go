package main

// prepare rescales a directory of cropped corpus images into the
// scaled_<factor> layout the manifest generation step points at: each
// input image is center-cropped at every requested factor and resized to
// a fixed square.
//
// Usage:
//
//	go run ./cmd/prepare -in /data/cropping/training/200018823

import (
	"flag"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/disintegration/imaging"
	"github.com/schollz/progressbar/v3"
)

func main() {
	in := flag.String("in", ".", "directory of cropped images to rescale")
	out := flag.String("out", "", "output root for the scaled_<factor> directories; defaults to the input directory")
	size := flag.Int("size", 100, "output side length in pixels")
	factorsFlag := flag.String("factors", "0.9,0.8", "comma-separated center-crop factors")
	workersFlag := flag.Int("workers", 0, "number of workers (0 = NumCPU)")
	flag.Parse()

	outRoot := *out
	if outRoot == "" {
		outRoot = *in
	}
	factors, err := parseFactors(*factorsFlag)
	if err != nil {
		log.Fatalf("failed to parse factors: %v", err)
	}
	if *size <= 0 {
		log.Fatalf("size must be positive, got %d", *size)
	}

	entries, err := os.ReadDir(*in)
	if err != nil {
		log.Fatalf("failed to read input directory %s: %v", *in, err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		log.Fatalf("no regular files under %s", *in)
	}
	log.Printf("Rescaling %d images at factors %v into %s", len(names), factors, outRoot)

	for _, f := range factors {
		dir := filepath.Join(outRoot, "scaled_"+formatFactor(f))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("failed to create output directory %s: %v", dir, err)
		}
	}

	workers := *workersFlag
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(names) {
		workers = len(names)
	}

	jobs := make(chan string, len(names))
	for _, n := range names {
		jobs <- n
	}
	close(jobs)

	bar := progressbar.Default(int64(len(names)), "rescaling")
	var failed int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for name := range jobs {
				if err := process(*in, outRoot, name, factors, *size); err != nil {
					log.Printf("warning: %s: %v", name, err)
					atomic.AddInt64(&failed, 1)
				}
				_ = bar.Add(1)
			}
		}()
	}
	wg.Wait()
	_ = bar.Finish()

	if failed > 0 {
		log.Printf("Done with %d of %d images failed", failed, len(names))
		os.Exit(1)
	}
	log.Printf("Done: %d images, %d outputs each", len(names), len(factors))
}

// process rescales one image at every factor. The crop trims
// int((dim - factor*dim)/2) pixels from each side, so the kept region can
// run a pixel over factor*dim when the difference is odd, matching the
// layout the manifests were generated against.
func process(inDir, outRoot, name string, factors []float64, size int) error {
	img, err := imaging.Open(filepath.Join(inDir, name))
	if err != nil {
		return fmt.Errorf("failed to open: %w", err)
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	for _, f := range factors {
		halfX := int((float64(w) - f*float64(w)) / 2)
		halfY := int((float64(h) - f*float64(h)) / 2)
		cropped := imaging.Crop(img, image.Rect(halfX, halfY, w-halfX, h-halfY))
		resized := imaging.Resize(cropped, size, size, imaging.Lanczos)
		dst := filepath.Join(outRoot, "scaled_"+formatFactor(f), name)
		if err := imaging.Save(resized, dst); err != nil {
			return fmt.Errorf("failed to save %s: %w", dst, err)
		}
	}
	return nil
}

func parseFactors(s string) ([]float64, error) {
	var factors []float64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		f, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, err
		}
		if f <= 0 || f > 1 {
			return nil, fmt.Errorf("factor %v outside (0, 1]", f)
		}
		factors = append(factors, f)
	}
	if len(factors) == 0 {
		return nil, fmt.Errorf("no factors given")
	}
	return factors, nil
}

func formatFactor(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
