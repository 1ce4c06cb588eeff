package routekit

import (
	"context"
	"fmt"
	"sort"

	"github.com/gobwas/glob"
)

// ============================================================================
// FileSelector Interface
// ============================================================================

// FileSelector filters files during listing.
//
// Example usage:
//
//	sel := routekit.And(
//	    routekit.MustGlob("BundlingImport*.txt"),
//	    routekit.FuncSelector(func(f *routekit.FileInfo) bool {
//	        return f.Size > 0
//	    }),
//	)
//	files, err := routekit.ListWithSelector(ctx, fs, "/mnt/inputs", sel, false)
type FileSelector interface {
	// Match returns true if the file should be included in results.
	Match(file *FileInfo) bool

	// TraverseDescendants returns true if directory descendants should be
	// traversed. Only called for directories when listing recursively.
	TraverseDescendants(file *FileInfo) bool
}

// ============================================================================
// ListWithSelector
// ============================================================================

// ListWithSelector lists regular files under path matching selector, sorted
// by path. Directories are never returned.
func ListWithSelector(ctx context.Context, fs FileReader, path string, selector FileSelector, recursive bool) ([]FileInfo, error) {
	if selector == nil {
		selector = All()
	}

	var results []FileInfo
	if err := listRecursive(ctx, fs, path, selector, recursive, &results); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Path < results[j].Path })
	return results, nil
}

func listRecursive(ctx context.Context, fs FileReader, path string, selector FileSelector, recursive bool, results *[]FileInfo) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	files, err := fs.ListContents(ctx, path, false)
	if err != nil {
		return err
	}

	for i := range files {
		file := &files[i]

		if file.IsDir {
			if recursive && selector.TraverseDescendants(file) {
				if err := listRecursive(ctx, fs, file.Path, selector, recursive, results); err != nil {
					return err
				}
			}
			continue
		}
		if selector.Match(file) {
			*results = append(*results, *file)
		}
	}

	return nil
}

// ============================================================================
// Built-in Selectors
// ============================================================================

// AllSelector matches all files and traverses all directories.
type AllSelector struct{}

func (s AllSelector) Match(file *FileInfo) bool               { return true }
func (s AllSelector) TraverseDescendants(file *FileInfo) bool { return true }

// All returns a selector that matches all files.
func All() FileSelector {
	return AllSelector{}
}

// GlobSelector matches base names against a shell-style pattern.
// Supports *, ?, [abc], [a-z] and {alt1,alt2}. No separator is special, so
// when matched against a zip member name "*.csv" also matches "sub/a.csv".
type GlobSelector struct {
	pattern string
	g       glob.Glob
}

// Glob compiles pattern into a selector.
//
// Examples:
//
//	Glob("BundlingImport*.txt")
//	Glob("Results_??_??_????.zip")
//	Glob("*.{csv,txt}")
func Glob(pattern string) (*GlobSelector, error) {
	if pattern == "" {
		return nil, fmt.Errorf("glob: empty pattern")
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}
	return &GlobSelector{pattern: pattern, g: g}, nil
}

// MustGlob is like Glob but panics on error.
func MustGlob(pattern string) *GlobSelector {
	s, err := Glob(pattern)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *GlobSelector) Match(file *FileInfo) bool {
	return s.g.Match(file.Name)
}

// MatchName matches a bare name.
func (s *GlobSelector) MatchName(name string) bool {
	return s.g.Match(name)
}

func (s *GlobSelector) TraverseDescendants(file *FileInfo) bool {
	return true
}

func (s *GlobSelector) String() string {
	return s.pattern
}

// ============================================================================
// Composable Selectors
// ============================================================================

type andSelector struct {
	selectors []FileSelector
}

// And matches only if ALL selectors match.
func And(selectors ...FileSelector) FileSelector {
	return &andSelector{selectors: selectors}
}

func (s *andSelector) Match(file *FileInfo) bool {
	for _, sel := range s.selectors {
		if !sel.Match(file) {
			return false
		}
	}
	return true
}

func (s *andSelector) TraverseDescendants(file *FileInfo) bool {
	for _, sel := range s.selectors {
		if !sel.TraverseDescendants(file) {
			return false
		}
	}
	return true
}

type notSelector struct {
	selector FileSelector
}

// Not inverts a selector's match result.
func Not(selector FileSelector) FileSelector {
	return &notSelector{selector: selector}
}

func (s *notSelector) Match(file *FileInfo) bool {
	return !s.selector.Match(file)
}

func (s *notSelector) TraverseDescendants(file *FileInfo) bool {
	return true
}

type funcSelector struct {
	matchFn func(*FileInfo) bool
}

// FuncSelector creates a selector from a custom function.
func FuncSelector(fn func(*FileInfo) bool) FileSelector {
	return &funcSelector{matchFn: fn}
}

func (s *funcSelector) Match(file *FileInfo) bool               { return s.matchFn(file) }
func (s *funcSelector) TraverseDescendants(file *FileInfo) bool { return true }
