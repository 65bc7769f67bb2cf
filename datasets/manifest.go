package datasets

import (
	"encoding/csv"
	"os"

	"github.com/pkg/errors"
)

// ManifestIndexer reads a headerless two-column CSV manifest of
// (location, class id) rows. Each row is trusted verbatim: class ids are
// carried through as-is and nothing checks that the referenced files
// exist until they are actually loaded.
type ManifestIndexer struct {
	Path string
}

// Index implements Indexer. A missing manifest fails with ErrNotFound; a
// malformed CSV aborts indexing.
func (m *ManifestIndexer) Index() ([]Entry, error) {
	f, err := os.Open(m.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNotFound, "manifest %s", m.Path)
		}
		return nil, errors.Wrapf(err, "failed to open manifest %s", m.Path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 2
	rows, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read manifest %s", m.Path)
	}
	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, Entry{Location: row[0], Class: row[1]})
	}
	return entries, nil
}
