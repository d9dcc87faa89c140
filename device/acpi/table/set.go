package table

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"gopheraml/kernel"

	"golang.org/x/sync/errgroup"
)

var errChecksumMismatch = &kernel.Error{Module: "acpi_table", Message: "detected checksum mismatch while parsing ACPI table header", Errno: kernel.EILSEQ}

// Set is an in-memory Resolver. Tables sharing a signature are kept in
// insertion order.
type Set struct {
	tables map[string][]*Table
	order  []*Table
}

// NewSet returns an empty table set.
func NewSet() *Set {
	return &Set{tables: make(map[string][]*Table)}
}

// Add inserts a raw table into the set. Tables that fail to decode or whose
// checksum does not match are rejected.
func (s *Set) Add(b []byte) (*Table, error) {
	t, err := Unmarshal(b)
	if err != nil {
		return nil, err
	}

	if !t.Valid() {
		return t, errChecksumMismatch
	}

	sig := t.Signature()
	s.tables[sig] = append(s.tables[sig], t)
	s.order = append(s.order, t)
	return t, nil
}

// LookupTable implements Resolver.
func (s *Set) LookupTable(signature string, n int) *Table {
	list := s.tables[signature]
	if n < 0 || n >= len(list) {
		return nil
	}

	return list[n]
}

// Count returns the number of tables with the given signature.
func (s *Set) Count(signature string) int {
	return len(s.tables[signature])
}

// Tables returns all tables in insertion order.
func (s *Set) Tables() []*Table {
	return s.order
}

// Signatures returns the sorted list of distinct table signatures.
func (s *Set) Signatures() []string {
	sigs := make([]string, 0, len(s.tables))
	for sig := range s.tables {
		sigs = append(sigs, sig)
	}
	sort.Strings(sigs)
	return sigs
}

// LoadFiles reads the given table dumps concurrently and adds them to a new
// Set in the order they were specified. Directories are expanded to the
// *.aml and *.dat files they contain.
func LoadFiles(ctx context.Context, paths ...string) (*Set, error) {
	files, err := expandPaths(paths)
	if err != nil {
		return nil, err
	}

	contents := make([][]byte, len(files))
	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			contents[i] = data
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	set := NewSet()
	for i, data := range contents {
		if _, err := set.Add(data); err != nil {
			return nil, &FileError{Path: files[i], Err: err}
		}
	}

	return set, nil
}

// FileError associates a table decoding error with the file it came from.
type FileError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *FileError) Error() string {
	return e.Path + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *FileError) Unwrap() error {
	return e.Err
}

func expandPaths(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}

		if !info.IsDir() {
			files = append(files, path)
			continue
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, err
		}

		for _, entry := range entries {
			switch filepath.Ext(entry.Name()) {
			case ".aml", ".dat":
				if !entry.IsDir() {
					files = append(files, filepath.Join(path, entry.Name()))
				}
			}
		}
	}

	return files, nil
}
