package routekit

import (
	"time"
)

// Option represents a configuration option for write operations
type Option func(*Options)

// Options contains all possible options for write operations
type Options struct {
	// Overwrite determines whether to overwrite existing files
	Overwrite bool

	// ModTime, when set, is applied to the written file
	ModTime *time.Time
}

// WithOverwrite enables or disables overwriting existing files
func WithOverwrite(overwrite bool) Option {
	return func(o *Options) {
		o.Overwrite = overwrite
	}
}

// WithModTime sets the modification time of the written file
func WithModTime(t time.Time) Option {
	return func(o *Options) {
		o.ModTime = &t
	}
}

// ApplyOptions folds opts into an Options value. Drivers call it at the
// top of Write.
func ApplyOptions(opts ...Option) *Options {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RouterOption configures a Router
type RouterOption func(*Router)

// WithEventSink sets where routing events are emitted. Defaults to a sink
// that discards everything.
func WithEventSink(sink EventSink) RouterOption {
	return func(r *Router) {
		r.sink = sink
	}
}

// WithArchiveOpener sets the archive backend used for zip use cases.
// Without one, zip items fail with ErrNotSupported.
func WithArchiveOpener(opener ArchiveOpener) RouterOption {
	return func(r *Router) {
		r.archives = opener
	}
}

// WithClock overrides time.Now, used for the processed-archive month folder
// and report timestamps.
func WithClock(now func() time.Time) RouterOption {
	return func(r *Router) {
		r.now = now
	}
}

// WithArchiveDir sets the folder, relative to the source directory, that
// verified archives are moved into. Defaults to "moved".
func WithArchiveDir(dir string) RouterOption {
	return func(r *Router) {
		r.archiveDir = dir
	}
}

// WithVerifyCopies toggles checksum verification of secondary copies.
// Enabled by default.
func WithVerifyCopies(verify bool) RouterOption {
	return func(r *Router) {
		r.verifyCopies = verify
	}
}

// WithRunID overrides how run identifiers are generated.
func WithRunID(fn func() string) RouterOption {
	return func(r *Router) {
		r.newRunID = fn
	}
}
