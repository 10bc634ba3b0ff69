package sniffer

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrBadPattern is wrapped by a GlobError for malformed patterns.
var ErrBadPattern = doublestar.ErrBadPattern

// GlobError reports a malformed walk pattern or a traversal failure.
type GlobError struct {
	Pattern string
	Err     error
}

func (e *GlobError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("walk %q: %v", e.Pattern, e.Err)
}

func (e *GlobError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
