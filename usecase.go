package routekit

import (
	"path/filepath"
	"time"
)

// StalePolicy decides what happens to an archive whose destination already
// exists.
type StalePolicy string

const (
	// StaleKeep leaves the source where it is.
	StaleKeep StalePolicy = "keep"
	// StaleDelete removes the source once the existing destination is
	// confirmed to hold everything the archive contains.
	StaleDelete StalePolicy = "delete"
)

// UseCase is one named routing configuration, compiled and validated. It is
// immutable for the duration of a sweep.
type UseCase struct {
	Name   string
	Inputs *InputRule
	Zip    *ZipRule
}

// InputRule routes plain files to one or more dated destinations.
type InputRule struct {
	Pattern      *GlobSelector
	Destinations []Destination
	DateFormat   *DateFormat
	CreateDirs   bool
}

// Templates returns the destination templates in order.
func (r *InputRule) Templates() []Template {
	out := make([]Template, len(r.Destinations))
	for i, d := range r.Destinations {
		out[i] = d.Template
	}
	return out
}

// ZipRule unpacks archives into a dated destination.
type ZipRule struct {
	Pattern     *GlobSelector
	Destination Template
	DateFormat  *DateFormat

	// Subfolder is appended to Destination, rendered from the same date.
	Subfolder *Template

	StaleSource StalePolicy
	Companion   *CompanionRule
}

// CompanionRule names a second archive whose matching members are merged
// into the destination after the primary extraction.
type CompanionRule struct {
	Path    Template
	Members *GlobSelector
}

func (r *ZipRule) needsDate() bool {
	return r.Destination.HasPlaceholders() || (r.Subfolder != nil && r.Subfolder.HasPlaceholders())
}

func (r *ZipRule) destination(date time.Time, found bool) string {
	render := func(t Template) string {
		if found {
			return t.Resolve(date)
		}
		return t.Text()
	}

	dest := render(r.Destination)
	if r.Subfolder != nil {
		dest = filepath.Join(dest, render(*r.Subfolder))
	}
	return filepath.Clean(dest)
}

// Resolve returns the extraction directory for an archive dated date.
func (r *ZipRule) Resolve(date time.Time) string {
	return r.destination(date, true)
}
