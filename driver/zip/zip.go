// Package zip opens zip bundles for extraction by a routekit.Router.
//
// Archives are checked before anything is extracted: member names must stay
// inside the destination, and member count, total uncompressed size and
// compression ratio must stay within the configured Limits. Archives that
// fail a check are rejected with an error wrapping routekit.ErrArchiveRejected.
package zip

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/gobeaver/routekit"
)

const (
	KB int64 = 1024
	MB       = 1024 * KB
	GB       = 1024 * MB
)

// Limits bounds what an archive may expand to. Zero disables a limit.
type Limits struct {
	// MaxFiles is the maximum number of members, directories included.
	MaxFiles int

	// MaxUncompressedSize is the maximum total uncompressed size in bytes.
	MaxUncompressedSize int64

	// MaxCompressionRatio is the maximum uncompressed/compressed ratio of
	// any single member. Zip bombs typically exceed 1000:1.
	MaxCompressionRatio float64
}

// DefaultLimits returns limits suited to batch output bundles.
func DefaultLimits() Limits {
	return Limits{
		MaxFiles:            10000,
		MaxUncompressedSize: 10 * GB,
		MaxCompressionRatio: 1000,
	}
}

// bufferLimit caps archives read into memory when the filesystem does not
// hand back a seekable reader.
const bufferLimit = 64 * MB

// Opener implements routekit.ArchiveOpener over a routekit.FileReader.
type Opener struct {
	fs     routekit.FileReader
	limits Limits
}

// NewOpener creates an Opener reading archives through fs.
func NewOpener(fs routekit.FileReader, limits Limits) *Opener {
	return &Opener{fs: fs, limits: limits}
}

// OpenArchive implements routekit.ArchiveOpener.
func (o *Opener) OpenArchive(ctx context.Context, archivePath string) (routekit.Archive, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	rc, err := o.fs.Read(ctx, archivePath)
	if err != nil {
		return nil, err
	}

	ra, size, err := readerAt(rc)
	if err != nil {
		rc.Close()
		return nil, &routekit.PathError{Op: "openarchive", Path: archivePath, Err: err}
	}

	zr, err := zip.NewReader(ra, size)
	if err != nil {
		rc.Close()
		return nil, &routekit.PathError{Op: "openarchive", Path: archivePath, Err: err}
	}

	if err := o.check(zr); err != nil {
		rc.Close()
		return nil, &routekit.PathError{Op: "openarchive", Path: archivePath, Err: err}
	}

	r := &Reader{closer: rc, files: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		r.entries = append(r.entries, routekit.ArchiveEntry{
			Name:     f.Name,
			Size:     int64(f.UncompressedSize64), //nolint:gosec // bounded by the size check
			Modified: f.Modified,
		})
		r.files[f.Name] = f
	}
	return r, nil
}

// readerAt returns rc as an io.ReaderAt. Files are used in place; other
// readers are buffered.
func readerAt(rc io.ReadCloser) (io.ReaderAt, int64, error) {
	if f, ok := rc.(interface {
		io.ReaderAt
		Seek(offset int64, whence int) (int64, error)
	}); ok {
		size, err := f.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, 0, err
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, 0, err
		}
		return f, size, nil
	}

	data, err := io.ReadAll(io.LimitReader(rc, bufferLimit+1))
	if err != nil {
		return nil, 0, err
	}
	if int64(len(data)) > bufferLimit {
		return nil, 0, fmt.Errorf("%w: archive larger than %d bytes needs a seekable reader", routekit.ErrArchiveRejected, bufferLimit)
	}
	return bytes.NewReader(data), int64(len(data)), nil
}

// check applies the safety gate to the central directory. Nothing is
// decompressed.
func (o *Opener) check(zr *zip.Reader) error {
	if o.limits.MaxFiles > 0 && len(zr.File) > o.limits.MaxFiles {
		return fmt.Errorf("%w: %d members (max: %d)", routekit.ErrArchiveRejected, len(zr.File), o.limits.MaxFiles)
	}

	var total uint64
	for _, f := range zr.File {
		if isDangerousPath(f.Name) {
			return fmt.Errorf("%w: dangerous path %q", routekit.ErrArchiveRejected, f.Name)
		}

		if o.limits.MaxCompressionRatio > 0 && f.CompressedSize64 > 0 {
			ratio := float64(f.UncompressedSize64) / float64(f.CompressedSize64)
			if ratio > o.limits.MaxCompressionRatio {
				return fmt.Errorf("%w: suspicious compression ratio for %s: %.2f:1 (max: %.2f:1)",
					routekit.ErrArchiveRejected, f.Name, ratio, o.limits.MaxCompressionRatio)
			}
		}

		total += f.UncompressedSize64
		if o.limits.MaxUncompressedSize > 0 && total > uint64(o.limits.MaxUncompressedSize) { //nolint:gosec // positive by the check above
			return fmt.Errorf("%w: archive would expand past %d bytes", routekit.ErrArchiveRejected, o.limits.MaxUncompressedSize)
		}
	}
	return nil
}

// isDangerousPath reports member names that could land outside the
// extraction root.
func isDangerousPath(name string) bool {
	if name == "" || strings.ContainsAny(name, "\\\x00") {
		return true
	}
	if path.IsAbs(name) || (len(name) >= 2 && name[1] == ':') {
		return true
	}
	clean := path.Clean(name)
	return clean == ".." || strings.HasPrefix(clean, "../")
}

// Reader is an opened archive. It implements routekit.Archive.
type Reader struct {
	closer  io.Closer
	entries []routekit.ArchiveEntry
	files   map[string]*zip.File
}

// Entries implements routekit.Archive.
func (r *Reader) Entries() []routekit.ArchiveEntry {
	return r.entries
}

// Open implements routekit.Archive.
func (r *Reader) Open(name string) (io.ReadCloser, error) {
	f, ok := r.files[name]
	if !ok {
		return nil, &routekit.PathError{Op: "open", Path: name, Err: routekit.ErrNotExist}
	}
	if f.FileInfo().IsDir() {
		return nil, &routekit.PathError{Op: "open", Path: name, Err: routekit.ErrIsDir}
	}
	return f.Open()
}

// Close implements routekit.Archive.
func (r *Reader) Close() error {
	return r.closer.Close()
}

var (
	_ routekit.ArchiveOpener = (*Opener)(nil)
	_ routekit.Archive       = (*Reader)(nil)
)
