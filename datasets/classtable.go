package datasets

import (
	"sort"
	"strconv"
)

// ClassTable maps raw class identifiers to dense integer ids and back.
// Ids are assigned by rank in the sorted distinct name set, so the same
// input set always yields the same mapping, no matter how often or in
// which order the names were observed.
//
// When every name parses as a base-10 integer the sort is numeric, which
// keeps identifiers like "10" after "2". Otherwise names sort
// lexicographically.
type ClassTable struct {
	names []string
	ids   map[string]int
}

// NewClassTable builds the table from the class names observed during
// indexing. Repeated names are fine; only the distinct set matters.
func NewClassTable(names []string) *ClassTable {
	distinct := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		distinct = append(distinct, n)
	}
	sortClassNames(distinct)
	ids := make(map[string]int, len(distinct))
	for i, n := range distinct {
		ids[n] = i
	}
	return &ClassTable{names: distinct, ids: ids}
}

func sortClassNames(names []string) {
	values := make(map[string]int64, len(names))
	for _, n := range names {
		v, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			sort.Strings(names)
			return
		}
		values[n] = v
	}
	sort.Slice(names, func(i, j int) bool { return values[names[i]] < values[names[j]] })
}

// ID returns the dense id assigned to a raw class name.
func (ct *ClassTable) ID(name string) (int, bool) {
	id, ok := ct.ids[name]
	return id, ok
}

// Name returns the raw class name behind a dense id.
func (ct *ClassTable) Name(id int) (string, bool) {
	if id < 0 || id >= len(ct.names) {
		return "", false
	}
	return ct.names[id], true
}

// Len returns the number of distinct classes.
func (ct *ClassTable) Len() int { return len(ct.names) }

// Names returns the class names in dense-id order. The slice is shared;
// callers must not modify it.
func (ct *ClassTable) Names() []string { return ct.names }
