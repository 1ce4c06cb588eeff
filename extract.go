package routekit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// ============================================================================
// Archive port
// ============================================================================

// ArchiveEntry is one member of an archive. Directory members end in "/".
type ArchiveEntry struct {
	Name     string
	Size     int64
	Modified time.Time
}

// IsDir reports whether the entry is a directory member.
func (e ArchiveEntry) IsDir() bool {
	return strings.HasSuffix(e.Name, "/")
}

// Archive is an opened, read-only archive.
type Archive interface {
	// Entries returns the member list in archive order.
	Entries() []ArchiveEntry

	// Open returns the content of the named file member.
	Open(name string) (io.ReadCloser, error)

	Close() error
}

// ArchiveOpener opens archives found on the routed filesystem. Openers
// reject unsafe archives with an error wrapping ErrArchiveRejected.
type ArchiveOpener interface {
	OpenArchive(ctx context.Context, path string) (Archive, error)
}

// ============================================================================
// Reconciliation
// ============================================================================

// Manifest is what an archive promises to produce.
type Manifest struct {
	ExpectedFiles   int
	ExpectedFolders int
}

// NewManifest counts file and directory members.
func NewManifest(entries []ArchiveEntry) Manifest {
	var m Manifest
	for _, e := range entries {
		if e.IsDir() {
			m.ExpectedFolders++
		} else {
			m.ExpectedFiles++
		}
	}
	return m
}

// Tally is what an extraction actually produced.
type Tally struct {
	ActualFiles   int
	ActualFolders int
}

// CountTree walks dir recursively and counts the files and directories below
// it. dir itself is not counted.
func CountTree(ctx context.Context, fs FileReader, dir string) (Tally, error) {
	entries, err := fs.ListContents(ctx, dir, true)
	if err != nil {
		return Tally{}, err
	}

	var t Tally
	for _, e := range entries {
		if e.IsDir {
			t.ActualFolders++
		} else {
			t.ActualFiles++
		}
	}
	return t, nil
}

// Verdict is the result of comparing a Tally against a Manifest.
type Verdict struct {
	Outcome Outcome

	// Exempt is set when missing folders were forgiven because every file
	// arrived. Zip tools routinely skip empty directory members.
	Exempt bool

	// Deficient names what fell short: "files", "folders" or both.
	Deficient string
}

// Reconcile decides whether an extraction is complete. Extraction is
// complete only when nothing is missing, with a single exception: a folder
// shortfall is forgiven when the file count matches exactly.
func Reconcile(m Manifest, t Tally) Verdict {
	filesOK := t.ActualFiles >= m.ExpectedFiles
	foldersOK := t.ActualFolders >= m.ExpectedFolders

	switch {
	case filesOK && foldersOK:
		if t.ActualFiles == m.ExpectedFiles && t.ActualFolders == m.ExpectedFolders {
			return Verdict{Outcome: OutcomeSuccess}
		}
		return Verdict{Outcome: OutcomeSuccessDegraded}
	case !foldersOK && t.ActualFiles == m.ExpectedFiles:
		return Verdict{Outcome: OutcomeSuccess, Exempt: true, Deficient: "folders"}
	case !filesOK && !foldersOK:
		return Verdict{Outcome: OutcomeCountMismatch, Deficient: "files and folders"}
	case !filesOK:
		return Verdict{Outcome: OutcomeCountMismatch, Deficient: "files"}
	default:
		return Verdict{Outcome: OutcomeCountMismatch, Deficient: "folders"}
	}
}

func (v Verdict) describe(m Manifest, t Tally) string {
	return fmt.Sprintf("expected %d files, %d folders; found %d files, %d folders",
		m.ExpectedFiles, m.ExpectedFolders, t.ActualFiles, t.ActualFolders)
}

// ============================================================================
// Extraction state machine
// ============================================================================

// ExtractArchive runs one zip through
// resolve → pre-check → extract → companion → verify → archive.
// It never returns an error; every failure ends in the result's Outcome.
func (r *Router) ExtractArchive(ctx context.Context, useCase string, rule *ZipRule, src string) ItemResult {
	item := ItemResult{UseCase: useCase, Kind: KindZip, Source: src}
	name := filepath.Base(src)
	fields := func(kv ...any) map[string]any {
		f := map[string]any{"use_case": useCase, "source": src}
		for i := 0; i+1 < len(kv); i += 2 {
			f[kv[i].(string)] = kv[i+1]
		}
		return f
	}

	// Resolve the destination.
	date, found := time.Time{}, false
	if rule.DateFormat != nil {
		date, found = rule.DateFormat.Extract(name)
	}
	if !found && rule.needsDate() {
		item.Outcome = OutcomeDateUnparseable
		item.Detail = fmt.Sprintf("%v %s", ErrDateUnparseable, rule.DateFormat)
		r.sink.Emit(ctx, Event{
			Kind: EventDateUnparseable, Severity: SeverityWarning,
			Message: "archive name carries no usable date, leaving it in place",
			Fields:  fields("format", rule.DateFormat.String()),
		})
		return item
	}
	dest := rule.destination(date, found)
	item.Destinations = []string{dest}

	// Pre-check: an existing destination means an earlier sweep got here.
	exists, err := r.fs.DirExists(ctx, dest)
	if err != nil {
		return r.failZip(ctx, item, err, EventExtractFailed, fields("destination", dest))
	}
	if exists {
		return r.staleSource(ctx, rule, item, dest, fields)
	}

	if r.archives == nil {
		return r.failZip(ctx, item, fmt.Errorf("%w: no archive opener configured", ErrNotSupported), EventExtractFailed, fields())
	}

	ar, err := r.archives.OpenArchive(ctx, src)
	if err != nil {
		kind := EventExtractFailed
		if errors.Is(err, ErrArchiveRejected) {
			kind = EventArchiveRejected
		}
		return r.failZip(ctx, item, err, kind, fields("destination", dest))
	}
	manifest := NewManifest(ar.Entries())
	err = r.extractMembers(ctx, ar, dest, nil)
	ar.Close()
	if err != nil {
		r.rollback(ctx, dest, fields)
		return r.failZip(ctx, item, err, EventExtractFailed, fields("destination", dest))
	}

	if rule.Companion != nil {
		manifest.ExpectedFiles += r.extractCompanion(ctx, rule.Companion, date, found, dest, fields)
	}

	// Verify.
	tally, err := CountTree(ctx, r.fs, dest)
	if err != nil {
		r.rollback(ctx, dest, fields)
		return r.failZip(ctx, item, err, EventExtractFailed, fields("destination", dest))
	}
	item.Manifest, item.Tally = &manifest, &tally

	verdict := Reconcile(manifest, tally)
	item.Outcome = verdict.Outcome
	item.Detail = verdict.describe(manifest, tally)

	switch {
	case verdict.Outcome == OutcomeCountMismatch:
		r.sink.Emit(ctx, Event{
			Kind: EventCountMismatch, Severity: SeverityCritical,
			Message: "extraction incomplete, source not archived",
			Fields: fields("destination", dest, "deficient", verdict.Deficient,
				"expected_files", manifest.ExpectedFiles, "expected_folders", manifest.ExpectedFolders,
				"actual_files", tally.ActualFiles, "actual_folders", tally.ActualFolders),
		})
		r.rollback(ctx, dest, fields)
		return item
	case verdict.Exempt:
		r.sink.Emit(ctx, Event{
			Kind: EventVerified, Severity: SeverityWarning,
			Message: "empty folders were not extracted, every file is present",
			Fields: fields("destination", dest, "expected_folders", manifest.ExpectedFolders,
				"actual_folders", tally.ActualFolders),
		})
	case verdict.Outcome == OutcomeSuccessDegraded:
		r.sink.Emit(ctx, Event{
			Kind: EventVerified, Severity: SeverityWarning,
			Message: "destination holds more than the archive, accepting",
			Fields:  fields("destination", dest, "detail", item.Detail),
		})
	default:
		r.sink.Emit(ctx, Event{
			Kind: EventVerified, Severity: SeveritySuccess,
			Message: "archive extracted and verified",
			Fields:  fields("destination", dest, "files", tally.ActualFiles, "folders", tally.ActualFolders),
		})
	}

	item.Archived = r.archiveSource(ctx, useCase, src)
	return item
}

// staleSource handles a source whose destination already exists. A
// destination that holds everything the archive promises means an earlier
// sweep finished; the source is then kept or deleted per policy. Anything
// less is a failure: the directory was not written by a completed sweep and
// is left for an operator.
func (r *Router) staleSource(ctx context.Context, rule *ZipRule, item ItemResult, dest string, fields func(...any) map[string]any) ItemResult {
	complete, err := r.destinationComplete(ctx, item.Source, dest)
	if err != nil {
		return r.failZip(ctx, item, err, EventExtractFailed, fields("destination", dest))
	}
	if !complete {
		item.Outcome = OutcomeCountMismatch
		item.Detail = "destination already exists but does not match the archive"
		r.sink.Emit(ctx, Event{
			Kind: EventCountMismatch, Severity: SeverityCritical,
			Message: "destination exists but is incomplete, remove it to retry",
			Fields:  fields("destination", dest),
		})
		return item
	}

	item.Outcome = OutcomeSkippedExists
	item.Detail = "destination already exists"

	if rule.StaleSource != StaleDelete {
		r.sink.Emit(ctx, Event{
			Kind: EventArchiveSkipped, Severity: SeverityInfo,
			Message: "destination already exists, skipping",
			Fields:  fields("destination", dest),
		})
		return item
	}

	if err := r.fs.Delete(ctx, item.Source); err != nil {
		r.sink.Emit(ctx, Event{
			Kind: EventStaleSource, Severity: SeverityWarning,
			Message: "could not delete already extracted source",
			Fields:  fields("destination", dest, "error", err.Error()),
		})
		return item
	}
	item.Detail = "destination already exists, source deleted"
	r.sink.Emit(ctx, Event{
		Kind: EventStaleSource, Severity: SeverityInfo,
		Message: "source was already extracted, deleted",
		Fields:  fields("destination", dest),
	})
	return item
}

// rollback removes a destination this sweep created but could not complete,
// so the next sweep starts from nothing. It runs even after cancellation.
func (r *Router) rollback(ctx context.Context, dest string, fields func(...any) map[string]any) {
	err := r.fs.DeleteDir(context.WithoutCancel(ctx), dest)
	if err == nil || IsNotExist(err) {
		return
	}
	r.sink.Emit(ctx, Event{
		Kind: EventRollbackFailed, Severity: SeverityCritical,
		Message: "could not remove incomplete destination",
		Fields:  fields("destination", dest, "error", err.Error()),
	})
}

func (r *Router) destinationComplete(ctx context.Context, src, dest string) (bool, error) {
	if r.archives == nil {
		return false, fmt.Errorf("%w: no archive opener configured", ErrNotSupported)
	}
	ar, err := r.archives.OpenArchive(ctx, src)
	if err != nil {
		return false, err
	}
	manifest := NewManifest(ar.Entries())
	ar.Close()

	tally, err := CountTree(ctx, r.fs, dest)
	if err != nil {
		return false, err
	}
	return Reconcile(manifest, tally).Outcome.Succeeded(), nil
}

// extractMembers writes every file member of ar accepted by keep below dest.
// Directory members are implied by file paths and skipped.
func (r *Router) extractMembers(ctx context.Context, ar Archive, dest string, keep func(ArchiveEntry) bool) error {
	if err := r.fs.CreateDir(ctx, dest); err != nil {
		return err
	}

	for _, e := range ar.Entries() {
		if e.IsDir() || (keep != nil && !keep(e)) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		target, err := memberPath(dest, e.Name)
		if err != nil {
			return err
		}
		if err := r.writeMember(ctx, ar, e, target); err != nil {
			return err
		}
	}
	return nil
}

func (r *Router) writeMember(ctx context.Context, ar Archive, e ArchiveEntry, target string) error {
	rc, err := ar.Open(e.Name)
	if err != nil {
		return err
	}
	defer rc.Close()

	var opts []Option
	if !e.Modified.IsZero() {
		opts = append(opts, WithModTime(e.Modified))
	}
	return r.fs.Write(ctx, target, rc, opts...)
}

// memberPath joins an archive member name onto dest and refuses names that
// would land outside it.
func memberPath(dest, name string) (string, error) {
	clean := path.Clean(name)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") ||
		path.IsAbs(name) || strings.Contains(name, "\\") {
		return "", &PathError{Op: "extract", Path: name, Err: ErrArchiveRejected}
	}
	return filepath.Join(dest, filepath.FromSlash(clean)), nil
}

// extractCompanion copies the matching members of a second archive into
// dest. Members already present are left alone. It returns the number of
// files it added; a missing or unreadable companion is reported and costs
// the primary flow nothing.
func (r *Router) extractCompanion(ctx context.Context, c *CompanionRule, date time.Time, found bool, dest string, fields func(...any) map[string]any) int {
	companion := c.Path.Text()
	if found {
		companion = c.Path.Resolve(date)
	}

	exists, err := r.fs.FileExists(ctx, companion)
	if err != nil || !exists {
		r.sink.Emit(ctx, Event{
			Kind: EventCompanionMissing, Severity: SeverityCritical,
			Message: "companion archive not found",
			Fields:  fields("companion", companion),
		})
		return 0
	}

	ar, err := r.archives.OpenArchive(ctx, companion)
	if err != nil {
		r.sink.Emit(ctx, Event{
			Kind: EventCompanionFailed, Severity: SeverityCritical,
			Message: "could not open companion archive",
			Fields:  fields("companion", companion, "error", err.Error()),
		})
		return 0
	}
	defer ar.Close()

	added := 0
	for _, e := range ar.Entries() {
		if e.IsDir() || (c.Members != nil && !c.Members.MatchName(e.Name)) {
			continue
		}
		target, err := memberPath(dest, e.Name)
		if err != nil {
			r.sink.Emit(ctx, Event{
				Kind: EventCompanionFailed, Severity: SeverityCritical,
				Message: "unsafe companion member skipped",
				Fields:  fields("companion", companion, "member", e.Name),
			})
			continue
		}
		if present, err := r.fs.FileExists(ctx, target); err == nil && present {
			continue
		}
		if err := r.writeMember(ctx, ar, e, target); err != nil {
			r.sink.Emit(ctx, Event{
				Kind: EventCompanionFailed, Severity: SeverityCritical,
				Message: "could not extract companion member",
				Fields:  fields("companion", companion, "member", e.Name, "error", err.Error()),
			})
			continue
		}
		added++
	}

	r.sink.Emit(ctx, Event{
		Kind: EventCompanion, Severity: SeverityInfo,
		Message: "companion members extracted",
		Fields:  fields("companion", companion, "added", added),
	})
	return added
}

func (r *Router) failZip(ctx context.Context, item ItemResult, err error, kind string, fields map[string]any) ItemResult {
	item.Outcome = classify(err, item.Source)
	item.Detail = err.Error()
	fields["outcome"] = string(item.Outcome)
	fields["error"] = err.Error()

	sev := SeverityCritical
	if item.Outcome == OutcomeSourceVanished {
		sev = SeverityWarning
	}
	r.sink.Emit(ctx, Event{Kind: kind, Severity: sev, Message: "archive not processed", Fields: fields})
	return item
}
