package routekit

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime/debug"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Router moves dated files and unpacks dated archives out of a source
// directory. A Router holds no per-sweep state; Run may be called
// repeatedly but not concurrently with itself on the same source.
type Router struct {
	fs           FileSystem
	sink         EventSink
	archives     ArchiveOpener
	now          func() time.Time
	archiveDir   string
	verifyCopies bool
	newRunID     func() string
}

// NewRouter creates a Router over fs.
func NewRouter(fs FileSystem, opts ...RouterOption) *Router {
	r := &Router{
		fs:           fs,
		sink:         NopSink{},
		now:          time.Now,
		archiveDir:   DefaultArchiveDir,
		verifyCopies: true,
		newRunID:     func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.sink == nil {
		r.sink = NopSink{}
	}
	return r
}

// Run performs one sweep of sourceDir. Use cases run in name order and
// files within a use case in name order, one item at a time. A failing item
// never stops the sweep; cancelling ctx stops it between items.
func (r *Router) Run(ctx context.Context, useCases []*UseCase, sourceDir string) *RunReport {
	report := newRunReport(r.newRunID(), sourceDir, r.now())
	r.sink.Emit(ctx, Event{
		Kind: EventSweepStarted, Severity: SeverityInfo,
		Message: "sweep started",
		Fields:  map[string]any{"run_id": report.RunID, "source_dir": sourceDir, "use_cases": len(useCases)},
	})

	ordered := make([]*UseCase, len(useCases))
	copy(ordered, useCases)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Name < ordered[j].Name })

	for _, uc := range ordered {
		if ctx.Err() != nil {
			break
		}
		r.runUseCase(ctx, uc, sourceDir, report)
	}

	report.Finished = r.now()
	fields := map[string]any{
		"run_id":   report.RunID,
		"items":    len(report.Items),
		"failures": report.Failures(),
		"duration": report.Finished.Sub(report.Started).String(),
	}
	if err := ctx.Err(); err != nil {
		fields["cancelled"] = err.Error()
	}
	r.sink.Emit(ctx, Event{Kind: EventSweepFinished, Severity: SeverityInfo, Message: "sweep finished", Fields: fields})
	return report
}

func (r *Router) runUseCase(ctx context.Context, uc *UseCase, sourceDir string, report *RunReport) {
	r.sink.Emit(ctx, Event{
		Kind: EventUseCaseStarted, Severity: SeverityInfo,
		Message: "routing use case", Fields: map[string]any{"use_case": uc.Name},
	})

	zips, inputs, err := r.discover(ctx, uc, sourceDir)
	if err != nil {
		r.sink.Emit(ctx, Event{
			Kind: EventDiscoveryFailed, Severity: SeverityCritical,
			Message: "could not list source directory",
			Fields:  map[string]any{"use_case": uc.Name, "source_dir": sourceDir, "error": err.Error()},
		})
		return
	}
	r.sink.Emit(ctx, Event{
		Kind: EventFilesFound, Severity: SeverityInfo,
		Message: fmt.Sprintf("found %d files", len(zips)+len(inputs)),
		Fields:  map[string]any{"use_case": uc.Name, "zip": len(zips), "inputs": len(inputs)},
	})

	for _, src := range zips {
		if ctx.Err() != nil {
			return
		}
		report.add(r.guard(ctx, uc.Name, KindZip, src, func() ItemResult {
			return r.ExtractArchive(ctx, uc.Name, uc.Zip, src)
		}))
	}
	for _, src := range inputs {
		if ctx.Err() != nil {
			return
		}
		report.add(r.guard(ctx, uc.Name, KindInput, src, func() ItemResult {
			return r.RouteInput(ctx, uc.Name, uc.Inputs, src)
		}))
	}
}

// discover lists the files of sourceDir that belong to uc. A name matched
// by both rules is treated as an archive.
func (r *Router) discover(ctx context.Context, uc *UseCase, sourceDir string) (zips, inputs []string, err error) {
	var zipSel, inputSel FileSelector
	if uc.Zip != nil {
		zipSel = uc.Zip.Pattern
	}
	if uc.Inputs != nil {
		inputSel = uc.Inputs.Pattern
		if zipSel != nil {
			inputSel = And(inputSel, Not(zipSel))
		}
	}

	files, err := ListWithSelector(ctx, r.fs, sourceDir, All(), false)
	if err != nil {
		return nil, nil, err
	}

	for i := range files {
		f := &files[i]
		switch {
		case zipSel != nil && zipSel.Match(f):
			zips = append(zips, f.Path)
		case inputSel != nil && inputSel.Match(f):
			inputs = append(inputs, f.Path)
		}
	}
	return zips, inputs, nil
}

// guard runs one item and turns a panic into an io-failure so the sweep
// continues.
func (r *Router) guard(ctx context.Context, useCase string, kind ItemKind, src string, fn func() ItemResult) (item ItemResult) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			item = ItemResult{
				UseCase: useCase, Kind: kind, Source: src,
				Outcome: OutcomeIOFailure,
				Detail:  fmt.Sprintf("panic: %v", p),
			}
			r.sink.Emit(ctx, Event{
				Kind: EventItemPanicked, Severity: SeverityCritical,
				Message: "item handler panicked",
				Fields: map[string]any{
					"use_case": useCase, "source": src,
					"panic": fmt.Sprint(p), "stack": string(debug.Stack()),
				},
			})
		}
		item.Duration = time.Since(start)
	}()
	return fn()
}

// RouteInput resolves the destinations of one plain file and delivers it.
// It never returns an error; every failure ends in the result's Outcome.
func (r *Router) RouteInput(ctx context.Context, useCase string, rule *InputRule, src string) ItemResult {
	item := ItemResult{UseCase: useCase, Kind: KindInput, Source: src}
	name := filepath.Base(src)
	templates := rule.Templates()

	res := ResolveDestinations(ctx, r.fs, name, rule.DateFormat, templates, rule.CreateDirs)
	for _, d := range res.Dirs {
		if d.Err != nil {
			r.sink.Emit(ctx, Event{
				Kind: EventDirCreateFailed, Severity: SeverityWarning,
				Message: "could not create destination directory",
				Fields:  map[string]any{"use_case": useCase, "dir": d.Path, "error": d.Err.Error()},
			})
		}
	}

	if !res.Found && rule.DateFormat != nil {
		if res.Unresolved(templates) {
			item.Outcome = OutcomeDateUnparseable
			item.Detail = fmt.Sprintf("%v %s", ErrDateUnparseable, rule.DateFormat)
			r.sink.Emit(ctx, Event{
				Kind: EventDateUnparseable, Severity: SeverityWarning,
				Message: "no usable date in name, leaving file in place",
				Fields:  map[string]any{"use_case": useCase, "source": src, "format": rule.DateFormat.String()},
			})
			return item
		}
		r.sink.Emit(ctx, Event{
			Kind: EventDateUnparseable, Severity: SeverityWarning,
			Message: "no usable date in name, destinations do not need one",
			Fields:  map[string]any{"use_case": useCase, "source": src, "format": rule.DateFormat.String()},
		})
	}

	out := fanout(ctx, r.fs, r.sink, useCase, src, res.Paths, rule.Destinations, rule.CreateDirs, r.verifyCopies)
	item.Destinations = out.Paths()
	item.Outcome = out.Outcome
	for _, t := range out.Targets {
		if t.Err != nil {
			item.Detail = t.Err.Error()
			break
		}
	}
	return item
}
