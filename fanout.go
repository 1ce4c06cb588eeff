package routekit

import (
	"context"
	"errors"
	"path/filepath"
)

// Destination is one place a routed file goes. The first destination of a
// rule is the primary and receives the original by move; the others are
// secondaries and receive copies.
type Destination struct {
	Template  Template
	Transform *Transform
}

// TargetResult is the outcome of delivering to one destination.
type TargetResult struct {
	Path    string
	Primary bool
	Outcome Outcome
	Err     error
}

// FanoutResult collects the per-destination results. Outcome is the
// primary's outcome.
type FanoutResult struct {
	Targets []TargetResult
	Outcome Outcome
}

// Paths returns the delivered file paths in destination order.
func (r FanoutResult) Paths() []string {
	out := make([]string, len(r.Targets))
	for i, t := range r.Targets {
		out[i] = t.Path
	}
	return out
}

// fanout delivers src to every directory in dirs, which are aligned with
// dests. Secondaries are copied first; the primary is moved last so the
// source stays in place until every copy has been attempted. A failure at
// one destination never prevents the others. Missing directories are only
// created when createDirs is set; otherwise the copy or move reports them.
func fanout(ctx context.Context, fs FileSystem, sink EventSink, useCase, src string, dirs []string, dests []Destination, createDirs, verify bool) FanoutResult {
	var res FanoutResult
	if len(dirs) == 0 {
		res.Outcome = OutcomeIOFailure
		return res
	}

	base := filepath.Base(src)
	for i := 1; i < len(dirs); i++ {
		dst := filepath.Join(dirs[i], rename(ctx, sink, useCase, base, dests[i].Transform))
		if createDirs {
			ensureDir(ctx, fs, sink, useCase, dirs[i])
		}

		err := copyFile(ctx, fs, src, dst)
		if err == nil && verify {
			err = verifyCopy(ctx, fs, src, dst)
		}
		t := TargetResult{Path: dst, Outcome: classify(err, src), Err: err}
		if errors.Is(err, ErrChecksumMismatch) {
			t.Outcome = OutcomeIOFailure
		}
		report(ctx, sink, useCase, src, t, EventCopied, "file copied")
		res.Targets = append(res.Targets, t)
	}

	dst := filepath.Join(dirs[0], rename(ctx, sink, useCase, base, dests[0].Transform))
	if createDirs {
		ensureDir(ctx, fs, sink, useCase, dirs[0])
	}

	err := moveFile(ctx, fs, src, dst)
	primary := TargetResult{Path: dst, Primary: true, Outcome: classify(err, src), Err: err}
	report(ctx, sink, useCase, src, primary, EventMoved, "file moved")

	res.Targets = append([]TargetResult{primary}, res.Targets...)
	res.Outcome = primary.Outcome
	return res
}

func rename(ctx context.Context, sink EventSink, useCase, name string, t *Transform) string {
	renamed, ok := t.Apply(name)
	if !ok {
		sink.Emit(ctx, Event{
			Kind:     EventTransformSkipped,
			Severity: SeverityWarning,
			Message:  "no date in name, keeping original name",
			Fields:   map[string]any{"use_case": useCase, "file": name, "format": t.Format.String()},
		})
	}
	return renamed
}

// ensureDir creates dir when it is missing. Failures are only logged; the
// copy or move that follows reports the real outcome.
func ensureDir(ctx context.Context, fs FileSystem, sink EventSink, useCase, dir string) {
	if ok, err := fs.DirExists(ctx, dir); err == nil && ok {
		return
	}
	if err := fs.CreateDir(ctx, dir); err != nil {
		sink.Emit(ctx, Event{
			Kind:     EventDirCreateFailed,
			Severity: SeverityWarning,
			Message:  "could not create destination directory",
			Fields:   map[string]any{"use_case": useCase, "dir": dir, "error": err.Error()},
		})
	}
}

func report(ctx context.Context, sink EventSink, useCase, src string, t TargetResult, kind, msg string) {
	fields := map[string]any{"use_case": useCase, "source": src, "destination": t.Path}
	if t.Err == nil {
		sink.Emit(ctx, Event{Kind: kind, Severity: SeveritySuccess, Message: msg, Fields: fields})
		return
	}

	fields["outcome"] = string(t.Outcome)
	fields["error"] = t.Err.Error()
	sev := SeverityCritical
	msg = "delivery failed"
	if t.Outcome == OutcomeConflictExists {
		sev = SeverityWarning
		msg = "destination already exists, not overwriting"
	}
	sink.Emit(ctx, Event{Kind: EventRouteFailed, Severity: sev, Message: msg, Fields: fields})
}

// verifyCopy checks dst against src and removes dst when they differ.
// Filesystems without checksum support are trusted.
func verifyCopy(ctx context.Context, fs FileSystem, src, dst string) error {
	err := VerifyCopy(ctx, fs, src, dst)
	if err == nil || errors.Is(err, ErrNotSupported) {
		return nil
	}
	if derr := fs.Delete(ctx, dst); derr != nil {
		return errors.Join(err, derr)
	}
	return err
}

// copyFile copies src to dst without overwriting, natively when fs can.
func copyFile(ctx context.Context, fs FileSystem, src, dst string) error {
	if c, ok := fs.(CanCopy); ok {
		return c.Copy(ctx, src, dst)
	}

	r, err := fs.Read(ctx, src)
	if err != nil {
		return err
	}
	defer r.Close()

	return fs.Write(ctx, dst, r)
}

// moveFile moves src to dst without overwriting, natively when fs can.
func moveFile(ctx context.Context, fs FileSystem, src, dst string) error {
	if m, ok := fs.(CanMove); ok {
		return m.Move(ctx, src, dst)
	}

	if err := copyFile(ctx, fs, src, dst); err != nil {
		return err
	}
	if err := fs.Delete(ctx, src); err != nil {
		_ = fs.Delete(ctx, dst)
		return err
	}
	return nil
}
