package textreader

// resource.go locates and opens the text a Reader consumes.
//
// Every resource is decoded as UTF-8 on the way in: a leading byte order mark
// is dropped and invalid byte sequences are replaced with U+FFFD, so the line
// parser only ever sees valid text.

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Resource is a named, re-openable source of text.
type Resource interface {
	// Name identifies the resource in logs and errors.
	Name() string
	// Open returns a fresh stream positioned at the start of the resource.
	Open() (io.ReadCloser, error)
}

type fsResource struct {
	fsys fs.FS
	name string
}

// FSResource returns a Resource for name inside fsys. Existence is checked on Open.
func FSResource(fsys fs.FS, name string) Resource {
	return fsResource{fsys: fsys, name: name}
}

func (r fsResource) Name() string { return r.name }

func (r fsResource) Open() (io.ReadCloser, error) {
	return r.fsys.Open(r.name)
}

type fileResource string

// FileResource returns a Resource for a path on the local filesystem.
func FileResource(path string) Resource {
	return fileResource(path)
}

func (r fileResource) Name() string { return string(r) }

func (r fileResource) Open() (io.ReadCloser, error) {
	return os.Open(string(r))
}

type stringResource struct {
	name string
	text string
}

// StringResource returns an in-memory Resource. Useful for tests and for
// resources assembled at runtime.
func StringResource(name, text string) Resource {
	return stringResource{name: name, text: text}
}

func (r stringResource) Name() string { return r.name }

func (r stringResource) Open() (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(r.text)), nil
}

// lookup verifies that name exists in fsys and is a regular file.
func lookup(fsys fs.FS, name string) (Resource, error) {
	if fsys == nil {
		return nil, errors.New("textreader: nil filesystem")
	}
	info, err := fs.Stat(fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %q", ErrResourceNotFound, name)
		}
		return nil, fmt.Errorf("textreader: stat %q: %w", name, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %q is a directory", ErrResourceNotFound, name)
	}
	return FSResource(fsys, name), nil
}

// countingReader tracks how many bytes were consumed from the raw stream.
type countingReader struct {
	reader    io.Reader
	bytesRead int64
}

func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.bytesRead += int64(n)
	return n, err
}

// decodeUTF8 wraps r with BOM stripping and UTF-8 repair.
func decodeUTF8(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}
