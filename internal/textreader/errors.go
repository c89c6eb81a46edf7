package textreader

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig marks a bad directive or an inconsistent schema.
	ErrConfig = errors.New("textreader: invalid configuration")
	// ErrParse marks cell text that does not parse as its column type.
	ErrParse = errors.New("textreader: invalid cell")
	// ErrAccess marks an out-of-range index or a typed read of the wrong type.
	ErrAccess = errors.New("textreader: invalid access")
	// ErrResourceNotFound is returned by Open when the named resource does not exist.
	ErrResourceNotFound = errors.New("textreader: resource not found")
)

// ReadError reports a failed Read with the resource and the physical line
// being processed. Line is 0 for failures outside any line (open, close).
type ReadError struct {
	Resource string
	Line     int
	Err      error
}

func (e *ReadError) Error() string {
	if e == nil {
		return ""
	}
	if e.Line > 0 {
		return fmt.Sprintf("textreader: unable to load resource %q (line %d): %v", e.Resource, e.Line, e.Err)
	}
	return fmt.Sprintf("textreader: unable to load resource %q: %v", e.Resource, e.Err)
}

func (e *ReadError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}

func accessErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrAccess, fmt.Sprintf(format, args...))
}
