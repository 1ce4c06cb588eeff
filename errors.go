package routekit

import (
	"errors"
	"fmt"
)

// Common filesystem errors
var (
	ErrNotExist     = errors.New("file does not exist")
	ErrExist        = errors.New("file already exists")
	ErrPermission   = errors.New("permission denied")
	ErrNotDir       = errors.New("not a directory")
	ErrIsDir        = errors.New("is a directory")
	ErrNotSupported = errors.New("operation not supported")
	ErrNotAllowed   = errors.New("operation not allowed")
)

// Routing errors
var (
	// ErrDateUnparseable is returned when a name carries no date matching
	// the declared date format.
	ErrDateUnparseable = errors.New("no date matching the declared format")
	// ErrUnknownPlaceholder is returned for templates containing a run of
	// Y/M/D letters that is not YYYY, YY, MM or DD.
	ErrUnknownPlaceholder = errors.New("unknown date placeholder")
	// ErrDateGrammar is returned when a display pattern and a parse pattern
	// describe different date shapes.
	ErrDateGrammar = errors.New("display and parse patterns disagree")
	// ErrArchiveRejected is returned by archive openers for archives that
	// fail the safety checks (path traversal, size or member limits).
	ErrArchiveRejected = errors.New("archive rejected")
	// ErrChecksumMismatch is returned when a copy does not hash like its source.
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// PathError records an error and the operation and file path that caused it
type PathError struct {
	Op   string
	Path string
	Err  error
}

// Error implements the error interface
func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error
func (e *PathError) Unwrap() error {
	return e.Err
}

// IsNotExist reports whether an error indicates that a file or directory
// does not exist
func IsNotExist(err error) bool {
	return errors.Is(err, ErrNotExist)
}

// IsExist reports whether an error indicates that a file or directory
// already exists
func IsExist(err error) bool {
	return errors.Is(err, ErrExist)
}

// IsPermission reports whether an error indicates that permission is denied
func IsPermission(err error) bool {
	return errors.Is(err, ErrPermission)
}

// errPath returns the path recorded in err's *PathError, if any.
func errPath(err error) string {
	var pe *PathError
	if errors.As(err, &pe) {
		return pe.Path
	}
	return ""
}
