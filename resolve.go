package routekit

import (
	"context"
	"time"
)

// DirResult is the outcome of one best-effort directory creation.
type DirResult struct {
	Path string
	Err  error
}

// Resolution is the result of resolving a name against destination templates.
type Resolution struct {
	// Date is the date read from the name; zero when Found is false.
	Date  time.Time
	Found bool

	// Paths holds one entry per template. When Found is false the templates
	// are returned as written.
	Paths []string

	// Dirs holds one entry per directory creation attempt. Empty unless
	// directories were requested and a date was found.
	Dirs []DirResult
}

// Unresolved reports whether some path still carries placeholders because
// no date was found.
func (r Resolution) Unresolved(templates []Template) bool {
	if r.Found {
		return false
	}
	for _, t := range templates {
		if t.HasPlaceholders() {
			return true
		}
	}
	return false
}

// ResolveDestinations reads the date out of name with format and substitutes
// it into every template. With createDirs set and a date found, each
// resolved path is created through fs; failures are recorded in Dirs and do
// not stop resolution. A nil format resolves every template as literal text.
func ResolveDestinations(ctx context.Context, fs FileWriter, name string, format *DateFormat, templates []Template, createDirs bool) Resolution {
	res := Resolution{Paths: make([]string, len(templates))}

	if format != nil {
		res.Date, res.Found = format.Extract(name)
	}

	for i, t := range templates {
		if res.Found {
			res.Paths[i] = t.Resolve(res.Date)
		} else {
			res.Paths[i] = t.Text()
		}
	}

	if !res.Found || !createDirs || fs == nil {
		return res
	}

	for _, p := range res.Paths {
		res.Dirs = append(res.Dirs, DirResult{Path: p, Err: fs.CreateDir(ctx, p)})
	}
	return res
}
