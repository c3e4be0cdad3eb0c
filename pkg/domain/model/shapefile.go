package model

import (
	"archive/zip"
	"io"
	"path"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// ShapefileSuffixes are the component extensions the mapping API requires for a
// vector table upload.
var ShapefileSuffixes = []string{"shp", "dbf", "prj", "shx"}

// MinShapefileEntries is the number of recognized components an archive must
// contain before an upload is attempted.
const MinShapefileEntries = 4

// IsShapefileComponent reports whether name carries one of ShapefileSuffixes.
// The match is case-insensitive.
func IsShapefileComponent(name string) bool {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
	for _, s := range ShapefileSuffixes {
		if ext == s {
			return true
		}
	}
	return false
}

// ShapefileArchive is an uploaded zip archive held in memory for the duration
// of one request.
type ShapefileArchive struct {
	Size    int64
	Entries []string // recognized entry names, in archive order

	reader *zip.Reader
	files  map[string]*zip.File
}

// NewShapefileArchive wraps a parsed zip reader. Entries are the names of the
// recognized components; directories are skipped.
func NewShapefileArchive(r *zip.Reader, size int64) *ShapefileArchive {
	a := &ShapefileArchive{
		Size:   size,
		reader: r,
		files:  make(map[string]*zip.File),
	}

	for _, f := range r.File {
		if f.FileInfo().IsDir() || !IsShapefileComponent(f.Name) {
			continue
		}
		a.Entries = append(a.Entries, f.Name)
		a.files[f.Name] = f
	}

	return a
}

// AllNames returns every non-directory entry in the archive, recognized or not.
func (x *ShapefileArchive) AllNames() []string {
	var names []string
	for _, f := range x.reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		names = append(names, f.Name)
	}
	return names
}

// BaseName is the first recognized entry's file name without directory and
// extension. It names the table created from the archive.
func (x *ShapefileArchive) BaseName() string {
	if len(x.Entries) == 0 {
		return ""
	}
	base := path.Base(x.Entries[0])
	return strings.TrimSuffix(base, path.Ext(base))
}

// Open returns the content of a recognized entry.
func (x *ShapefileArchive) Open(name string) (io.ReadCloser, error) {
	f, ok := x.files[name]
	if !ok {
		return nil, goerr.New("entry not found in archive", goerr.V("name", name))
	}

	rc, err := f.Open()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open archive entry", goerr.V("name", name))
	}
	return rc, nil
}

// EntrySize returns the uncompressed size of a recognized entry.
func (x *ShapefileArchive) EntrySize(name string) int64 {
	if f, ok := x.files[name]; ok {
		return int64(f.UncompressedSize64)
	}
	return 0
}
