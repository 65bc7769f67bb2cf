package datasets

import (
	"archive/zip"
	"encoding/binary"
	"fmt"
	"image"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/core/tensors/numpy"
	"github.com/pkg/errors"
)

// Blob container member names. The container is an uncompressed NPZ
// archive: a zip of .npy members written with the store method, so
// records can be addressed directly with ReadAt.
const (
	blobDataMember   = "data"
	blobShapesMember = "shapes"
)

// BlobStore gives random access to the records of an embedded blob
// container holding stacked uint8 samples padded to a common shape:
//
//	data        uint8 [N, C, Hmax, Wmax]  the padded sample stack
//	shapes      int64 [N, 3]              true (channels, d1, d2) extents
//	labels/<x>  int64 [N]                 one or more labeling schemes
//
// The shapes table and the selected labels table load eagerly at open
// time; sample bytes are read per call through a fresh file handle, so
// one store can be shared across concurrent readers.
type BlobStore struct {
	path       string
	dataOffset int64
	dims       []int // padded [N, C, Hmax, Wmax]
	recordSize int
	shapes     []int64 // flat [N*3]
	labels     []int64
}

// OpenBlob opens a blob container and loads its side tables. scheme
// names the labels member to read, e.g. "labels/resnet/rc_32". A missing
// file fails with ErrNotFound. A compressed data member fails outright:
// random access needs stored byte offsets.
func OpenBlob(path, scheme string) (*BlobStore, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNotFound, "blob container %s", path)
		}
		return nil, errors.Wrapf(err, "failed to open blob container %s", path)
	}
	defer zr.Close()

	bs := &BlobStore{path: path}
	var shapesT, labelsT *tensors.Tensor
	for _, f := range zr.File {
		switch strings.TrimSuffix(f.Name, ".npy") {
		case blobDataMember:
			if f.Method != zip.Store {
				return nil, errors.Errorf("blob member %q in %s is compressed; random access needs stored entries", f.Name, path)
			}
			if err := bs.readDataMeta(f); err != nil {
				return nil, err
			}
		case blobShapesMember:
			shapesT, err = readBlobTable(f)
			if err != nil {
				return nil, err
			}
		case scheme:
			labelsT, err = readBlobTable(f)
			if err != nil {
				return nil, err
			}
		}
	}
	if bs.dims == nil {
		return nil, errors.Errorf("blob container %s has no %q member", path, blobDataMember)
	}
	if shapesT == nil {
		return nil, errors.Errorf("blob container %s has no %q member", path, blobShapesMember)
	}
	if labelsT == nil {
		return nil, errors.Errorf("blob container %s has no labeling scheme %q", path, scheme)
	}

	n := bs.dims[0]
	if dims := shapesT.Shape().Dimensions; len(dims) != 2 || dims[0] != n || dims[1] != 3 {
		return nil, errors.Errorf("blob shapes table has shape %v, want [%d 3]", dims, n)
	}
	if dims := labelsT.Shape().Dimensions; len(dims) != 1 || dims[0] != n {
		return nil, errors.Errorf("blob labels table %q has shape %v, want [%d]", scheme, dims, n)
	}
	if err := tensors.ConstFlatData(shapesT, func(flat []int64) {
		bs.shapes = append([]int64(nil), flat...)
	}); err != nil {
		return nil, errors.WithMessagef(err, "blob shapes table in %s", path)
	}
	if err := tensors.ConstFlatData(labelsT, func(flat []int64) {
		bs.labels = append([]int64(nil), flat...)
	}); err != nil {
		return nil, errors.WithMessagef(err, "blob labels table %q in %s", scheme, path)
	}
	return bs, nil
}

// readDataMeta locates the data member's raw bytes within the archive
// and parses its NPY preamble for the padded dimensions.
func (bs *BlobStore) readDataMeta(f *zip.File) error {
	base, err := f.DataOffset()
	if err != nil {
		return errors.Wrapf(err, "failed to locate %q inside the archive", f.Name)
	}
	rc, err := f.Open()
	if err != nil {
		return errors.Wrapf(err, "failed to open blob member %q", f.Name)
	}
	defer rc.Close()

	preamble, dtype, dims, err := readNpyPreamble(rc)
	if err != nil {
		return errors.WithMessagef(err, "blob member %q", f.Name)
	}
	if !strings.HasSuffix(dtype, "u1") {
		return errors.Errorf("blob member %q holds dtype %q, want uint8", f.Name, dtype)
	}
	if len(dims) != 4 {
		return errors.Errorf("blob member %q has rank %d, want [N, C, H, W]", f.Name, len(dims))
	}
	bs.dataOffset = base + preamble
	bs.dims = dims
	bs.recordSize = dims[1] * dims[2] * dims[3]
	return nil
}

func readBlobTable(f *zip.File) (*tensors.Tensor, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open blob member %q", f.Name)
	}
	defer rc.Close()
	t, err := numpy.FromNpyReader(rc)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to read blob member %q", f.Name)
	}
	return t, nil
}

var (
	npyDescrRe = regexp.MustCompile(`'descr'\s*:\s*'([^']*)'`)
	npyOrderRe = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
	npyShapeRe = regexp.MustCompile(`'shape'\s*:\s*\(([^)]*)\)`)
)

// readNpyPreamble reads the NPY magic, version and header from r and
// returns the total preamble length in bytes together with the parsed
// dtype string and dimensions. Array data starts at exactly that offset
// within the member.
func readNpyPreamble(r io.Reader) (length int64, dtype string, dims []int, err error) {
	head := make([]byte, 8)
	if _, err = io.ReadFull(r, head); err != nil {
		err = errors.Wrapf(err, "failed to read npy magic")
		return
	}
	if string(head[:6]) != "\x93NUMPY" {
		err = errors.Errorf("npy magic string mismatch")
		return
	}

	var headerLen int
	switch major := head[6]; {
	case major == 1:
		lenBytes := make([]byte, 2)
		if _, err = io.ReadFull(r, lenBytes); err != nil {
			err = errors.Wrapf(err, "failed to read npy header length")
			return
		}
		headerLen = int(binary.LittleEndian.Uint16(lenBytes))
		length = int64(10 + headerLen)
	case major >= 2:
		lenBytes := make([]byte, 4)
		if _, err = io.ReadFull(r, lenBytes); err != nil {
			err = errors.Wrapf(err, "failed to read npy header length")
			return
		}
		headerLen = int(binary.LittleEndian.Uint32(lenBytes))
		length = int64(12 + headerLen)
	default:
		err = errors.Errorf("unsupported npy version %d.%d", head[6], head[7])
		return
	}

	headerBytes := make([]byte, headerLen)
	if _, err = io.ReadFull(r, headerBytes); err != nil {
		err = errors.Wrapf(err, "failed to read npy header")
		return
	}
	header := string(headerBytes)

	m := npyDescrRe.FindStringSubmatch(header)
	if len(m) < 2 {
		err = errors.Errorf("no 'descr' in npy header %q", header)
		return
	}
	dtype = m[1]

	m = npyOrderRe.FindStringSubmatch(header)
	if len(m) < 2 {
		err = errors.Errorf("no 'fortran_order' in npy header %q", header)
		return
	}
	if m[1] == "True" {
		err = errors.Errorf("fortran-order blob members are not supported")
		return
	}

	m = npyShapeRe.FindStringSubmatch(header)
	if len(m) < 2 {
		err = errors.Errorf("no 'shape' in npy header %q", header)
		return
	}
	for _, p := range strings.Split(m[1], ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, pErr := strconv.Atoi(p)
		if pErr != nil {
			err = errors.Wrapf(pErr, "bad dimension %q in npy header", p)
			return
		}
		dims = append(dims, v)
	}
	return
}

// Count returns the number of stored records.
func (bs *BlobStore) Count() int { return bs.dims[0] }

// Label returns the stored label value for record i.
func (bs *BlobStore) Label(i int) int64 { return bs.labels[i] }

// Shape returns the true extents (channels, d1, d2) of record i from the
// shapes table.
func (bs *BlobStore) Shape(i int) (c, d1, d2 int) {
	return int(bs.shapes[i*3]), int(bs.shapes[i*3+1]), int(bs.shapes[i*3+2])
}

// Record reads record i and returns it as an image. The container is
// reopened on every call and nothing is cached, so concurrent readers
// never share a handle. The shapes table bounds the valid region inside
// the padded record; the stored axes map to the image as width=d1 and
// height=d2, matching how the original container transposes records on
// the way out.
func (bs *BlobStore) Record(i int) (image.Image, error) {
	if i < 0 || i >= bs.Count() {
		return nil, fmt.Errorf("record %d out of range [0, %d)", i, bs.Count())
	}
	f, err := os.Open(bs.path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to reopen blob container %s", bs.path)
	}
	defer f.Close()

	buf := make([]byte, bs.recordSize)
	if _, err := f.ReadAt(buf, bs.dataOffset+int64(i)*int64(bs.recordSize)); err != nil {
		return nil, errors.Wrapf(ErrDecode, "failed to read record %d from %s: %v", i, bs.path, err)
	}

	c, d1, d2 := bs.Shape(i)
	hMax, wMax := bs.dims[2], bs.dims[3]
	if c > bs.dims[1] || d1 > hMax || d2 > wMax || c < 1 || d1 < 1 || d2 < 1 {
		return nil, errors.Wrapf(ErrDecode, "record %d extents (%d, %d, %d) do not fit padded dims %v", i, c, d1, d2, bs.dims[1:])
	}

	img := image.NewNRGBA(image.Rect(0, 0, d1, d2))
	plane := hMax * wMax
	for y := range d2 {
		for x := range d1 {
			var r, g, b uint8
			if c >= 3 {
				r = buf[0*plane+x*wMax+y]
				g = buf[1*plane+x*wMax+y]
				b = buf[2*plane+x*wMax+y]
			} else {
				r = buf[x*wMax+y]
				g, b = r, r
			}
			o := img.PixOffset(x, y)
			img.Pix[o+0] = r
			img.Pix[o+1] = g
			img.Pix[o+2] = b
			img.Pix[o+3] = 0xFF
		}
	}
	return img, nil
}

// BlobIndexer derives entries for blob records [Start, End), reading
// each record's class from the store's labeling scheme. The range clamps
// to the number of stored records, so a container smaller than the
// nominal slice simply yields fewer entries.
type BlobIndexer struct {
	Store *BlobStore
	Start int
	End   int
}

// Index implements Indexer.
func (b *BlobIndexer) Index() ([]Entry, error) {
	if b.Start < 0 || b.End < b.Start {
		return nil, errors.Wrapf(ErrConfiguration, "blob record range [%d, %d)", b.Start, b.End)
	}
	start, end := b.Start, b.End
	if n := b.Store.Count(); end > n {
		end = n
	}
	if start > end {
		start = end
	}
	entries := make([]Entry, 0, end-start)
	for i := start; i < end; i++ {
		entries = append(entries, Entry{Record: i, Class: strconv.FormatInt(b.Store.Label(i), 10)})
	}
	return entries, nil
}

// blobLoader adapts a BlobStore to the Loader interface.
type blobLoader struct {
	store *BlobStore
}

func (l blobLoader) Load(e Entry) (image.Image, error) {
	return l.store.Record(e.Record)
}

// WriteBlob writes a blob container with the given members, each stored
// uncompressed so OpenBlob can address records in place. Member names
// get the .npy suffix appended and are written in sorted order. The
// stock NPZ writer deflates its members, which would defeat ReadAt,
// hence this variant.
func WriteBlob(path string, members map[string]*tensors.Tensor) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create blob container %s", path)
	}
	zw := zip.NewWriter(f)
	names := make([]string, 0, len(members))
	for name := range members {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name + ".npy", Method: zip.Store})
		if err != nil {
			_ = zw.Close()
			_ = f.Close()
			return errors.Wrapf(err, "failed to add blob member %q", name)
		}
		if err := numpy.ToNpyWriter(members[name], w); err != nil {
			_ = zw.Close()
			_ = f.Close()
			return errors.WithMessagef(err, "failed to write blob member %q", name)
		}
	}
	if err := zw.Close(); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "failed to finish blob container %s", path)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "failed to close blob container %s", path)
	}
	return nil
}
