package routekit

import (
	"errors"
	"time"
)

// Outcome is the final classification of one routed item.
type Outcome string

const (
	OutcomeSuccess          Outcome = "success"
	OutcomeSuccessDegraded  Outcome = "success-degraded"
	OutcomeSkippedExists    Outcome = "skipped-exists"
	OutcomeDateUnparseable  Outcome = "date-unparseable"
	OutcomeCountMismatch    Outcome = "count-mismatch"
	OutcomePermissionDenied Outcome = "permission-denied"
	OutcomeConflictExists   Outcome = "conflict-exists"
	OutcomeSourceVanished   Outcome = "source-vanished"
	OutcomeIOFailure        Outcome = "io-failure"
	OutcomeArchiveRejected  Outcome = "archive-rejected"
)

// Outcomes lists every outcome in report order.
var Outcomes = []Outcome{
	OutcomeSuccess,
	OutcomeSuccessDegraded,
	OutcomeSkippedExists,
	OutcomeDateUnparseable,
	OutcomeCountMismatch,
	OutcomePermissionDenied,
	OutcomeConflictExists,
	OutcomeSourceVanished,
	OutcomeIOFailure,
	OutcomeArchiveRejected,
}

// Succeeded reports whether the item reached its destination.
func (o Outcome) Succeeded() bool {
	return o == OutcomeSuccess || o == OutcomeSuccessDegraded
}

// Failed reports whether the outcome needs operator attention. Skips and
// unparseable dates are expected states and do not count.
func (o Outcome) Failed() bool {
	switch o {
	case OutcomeSuccess, OutcomeSuccessDegraded, OutcomeSkippedExists, OutcomeDateUnparseable:
		return false
	default:
		return true
	}
}

// classify maps a filesystem error from an operation on src to an outcome.
func classify(err error, src string) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case IsExist(err):
		return OutcomeConflictExists
	case IsPermission(err):
		return OutcomePermissionDenied
	case IsNotExist(err) && errPath(err) == src:
		return OutcomeSourceVanished
	case errors.Is(err, ErrArchiveRejected):
		return OutcomeArchiveRejected
	default:
		return OutcomeIOFailure
	}
}

// ItemKind distinguishes plain inputs from zip bundles.
type ItemKind string

const (
	KindInput ItemKind = "input"
	KindZip   ItemKind = "zip"
)

// ItemResult describes what happened to one source file.
type ItemResult struct {
	UseCase      string
	Kind         ItemKind
	Source       string
	Destinations []string
	Outcome      Outcome
	Detail       string

	// Zip items only.
	Manifest *Manifest
	Tally    *Tally
	Archived string

	Duration time.Duration
}

// RunReport collects every item of one sweep.
type RunReport struct {
	RunID     string
	SourceDir string
	Started   time.Time
	Finished  time.Time
	Items     []ItemResult
	Counts    map[Outcome]int
}

func newRunReport(id, sourceDir string, started time.Time) *RunReport {
	return &RunReport{
		RunID:     id,
		SourceDir: sourceDir,
		Started:   started,
		Counts:    make(map[Outcome]int),
	}
}

func (r *RunReport) add(item ItemResult) {
	r.Items = append(r.Items, item)
	r.Counts[item.Outcome]++
}

// Failures returns the number of items whose outcome needs attention.
func (r *RunReport) Failures() int {
	n := 0
	for o, c := range r.Counts {
		if o.Failed() {
			n += c
		}
	}
	return n
}

// ByUseCase groups item counts per use case and outcome.
func (r *RunReport) ByUseCase() map[string]map[Outcome]int {
	out := make(map[string]map[Outcome]int)
	for _, it := range r.Items {
		m, ok := out[it.UseCase]
		if !ok {
			m = make(map[Outcome]int)
			out[it.UseCase] = m
		}
		m[it.Outcome]++
	}
	return out
}
