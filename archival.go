package routekit

import (
	"context"
	"fmt"
	"path/filepath"
	"time"
)

// DefaultArchiveDir is the folder beneath the source directory that
// processed archives are moved into.
const DefaultArchiveDir = "moved"

// ArchivePath returns where src is filed once processed:
// <dir of src>/<archiveDir>/<YYYY> <MM>/<name of src>.
func ArchivePath(src, archiveDir string, now time.Time) string {
	month := fmt.Sprintf("%04d %02d", now.Year(), int(now.Month()))
	return filepath.Join(filepath.Dir(src), archiveDir, month, filepath.Base(src))
}

// archiveSource moves a verified archive out of the source directory and
// returns its new path, or "" when it stayed in place. Failures are reported
// but never change the item's outcome; the next sweep finds the extracted
// destination and skips.
func (r *Router) archiveSource(ctx context.Context, useCase, src string) string {
	dst := ArchivePath(src, r.archiveDir, r.now())
	fields := map[string]any{"use_case": useCase, "source": src, "destination": dst}

	if err := r.fs.CreateDir(ctx, filepath.Dir(dst)); err != nil {
		fields["error"] = err.Error()
		r.sink.Emit(ctx, Event{
			Kind: EventArchivalFailed, Severity: SeverityCritical,
			Message: "could not create archive folder, source left in place",
			Fields:  fields,
		})
		return ""
	}

	err := moveFile(ctx, r.fs, src, dst)
	switch {
	case err == nil:
		r.sink.Emit(ctx, Event{
			Kind: EventSourceArchived, Severity: SeveritySuccess,
			Message: "source archived", Fields: fields,
		})
		return dst
	case IsExist(err):
		r.sink.Emit(ctx, Event{
			Kind: EventArchivalConflict, Severity: SeverityWarning,
			Message: "archived copy already exists, source left in place",
			Fields:  fields,
		})
	default:
		fields["error"] = err.Error()
		fields["outcome"] = string(classify(err, src))
		r.sink.Emit(ctx, Event{
			Kind: EventArchivalFailed, Severity: SeverityCritical,
			Message: "could not archive source", Fields: fields,
		})
	}
	return ""
}
