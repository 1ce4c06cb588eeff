// Package memory provides an in-memory routekit.FileSystem for tests. It can
// be told to fail writes below a prefix to stand in for a read-only share.
package memory

import (
	"bytes"
	"context"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"

	"github.com/gobeaver/routekit"
)

// memoryFile represents a file stored in memory
type memoryFile struct {
	content []byte
	modTime time.Time
}

// watchEntry represents a single watch subscription
type watchEntry struct {
	match glob.Glob
	token *routekit.CallbackChangeToken
}

// fault makes mutations below prefix fail with err.
type fault struct {
	prefix string
	err    error
}

// Adapter is an in-memory filesystem with "/"-separated absolute paths.
type Adapter struct {
	mu     sync.RWMutex
	files  map[string]*memoryFile
	dirs   map[string]time.Time
	faults []fault
	now    func() time.Time

	// Watch support
	watchMu sync.RWMutex
	watches []*watchEntry
}

// New creates an empty filesystem holding only the root directory.
func New() *Adapter {
	a := &Adapter{
		files: make(map[string]*memoryFile),
		dirs:  make(map[string]time.Time),
		now:   time.Now,
	}
	a.dirs["/"] = a.now()
	return a
}

// FailWrites makes every write, copy, move, delete or mkdir whose target
// lies at or below prefix fail with err wrapped in a *routekit.PathError.
func (a *Adapter) FailWrites(prefix string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.faults = append(a.faults, fault{prefix: normalizePath(prefix), err: err})
}

// checkFault must be called with the lock held.
func (a *Adapter) checkFault(op, p string) error {
	for _, f := range a.faults {
		if p == f.prefix || strings.HasPrefix(p, strings.TrimSuffix(f.prefix, "/")+"/") {
			return &routekit.PathError{Op: op, Path: p, Err: f.err}
		}
	}
	return nil
}

// Write implements routekit.FileWriter
func (a *Adapter) Write(ctx context.Context, p string, content io.Reader, options ...routekit.Option) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	p = normalizePath(p)
	data, err := io.ReadAll(content)
	if err != nil {
		return &routekit.PathError{Op: "write", Path: p, Err: err}
	}
	opts := routekit.ApplyOptions(options...)

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.checkFault("write", p); err != nil {
		return err
	}
	if _, isDir := a.dirs[p]; isDir {
		return &routekit.PathError{Op: "write", Path: p, Err: routekit.ErrIsDir}
	}
	if _, exists := a.files[p]; exists && !opts.Overwrite {
		return &routekit.PathError{Op: "write", Path: p, Err: routekit.ErrExist}
	}

	a.ensureParentDirs(p)
	modTime := a.now()
	if opts.ModTime != nil {
		modTime = *opts.ModTime
	}
	a.files[p] = &memoryFile{content: data, modTime: modTime}

	go a.notifyWatchers(p)
	return nil
}

// Read implements routekit.FileReader
func (a *Adapter) Read(ctx context.Context, p string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	p = normalizePath(p)

	a.mu.RLock()
	defer a.mu.RUnlock()

	file, exists := a.files[p]
	if !exists {
		if _, isDir := a.dirs[p]; isDir {
			return nil, &routekit.PathError{Op: "read", Path: p, Err: routekit.ErrIsDir}
		}
		return nil, &routekit.PathError{Op: "read", Path: p, Err: routekit.ErrNotExist}
	}

	return io.NopCloser(bytes.NewReader(file.content)), nil
}

// ReadAll returns the whole content of a file.
func (a *Adapter) ReadAll(ctx context.Context, p string) ([]byte, error) {
	rc, err := a.Read(ctx, p)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Delete implements routekit.FileWriter
func (a *Adapter) Delete(ctx context.Context, p string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	p = normalizePath(p)

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.checkFault("delete", p); err != nil {
		return err
	}
	if _, exists := a.files[p]; !exists {
		if _, isDir := a.dirs[p]; isDir {
			return &routekit.PathError{Op: "delete", Path: p, Err: routekit.ErrIsDir}
		}
		return &routekit.PathError{Op: "delete", Path: p, Err: routekit.ErrNotExist}
	}
	delete(a.files, p)
	return nil
}

// FileExists implements routekit.FileReader
func (a *Adapter) FileExists(ctx context.Context, p string) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	_, exists := a.files[normalizePath(p)]
	return exists, nil
}

// DirExists implements routekit.FileReader
func (a *Adapter) DirExists(ctx context.Context, p string) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	_, exists := a.dirs[normalizePath(p)]
	return exists, nil
}

// Stat implements routekit.FileReader
func (a *Adapter) Stat(ctx context.Context, p string) (*routekit.FileInfo, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	p = normalizePath(p)

	a.mu.RLock()
	defer a.mu.RUnlock()

	if file, exists := a.files[p]; exists {
		info := fileInfo(p, file)
		return &info, nil
	}
	if modTime, exists := a.dirs[p]; exists {
		info := dirInfo(p, modTime)
		return &info, nil
	}
	return nil, &routekit.PathError{Op: "stat", Path: p, Err: routekit.ErrNotExist}
}

// ListContents implements routekit.FileReader. Entries are sorted by path;
// the listed directory itself is never included.
func (a *Adapter) ListContents(ctx context.Context, p string, recursive bool) ([]routekit.FileInfo, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	p = normalizePath(p)

	a.mu.RLock()
	defer a.mu.RUnlock()

	if _, exists := a.dirs[p]; !exists {
		if _, isFile := a.files[p]; isFile {
			return nil, &routekit.PathError{Op: "listcontents", Path: p, Err: routekit.ErrNotDir}
		}
		return nil, &routekit.PathError{Op: "listcontents", Path: p, Err: routekit.ErrNotExist}
	}

	var entries []routekit.FileInfo
	for fp, file := range a.files {
		if within(p, fp, recursive) {
			entries = append(entries, fileInfo(fp, file))
		}
	}
	for dp, modTime := range a.dirs {
		if within(p, dp, recursive) {
			entries = append(entries, dirInfo(dp, modTime))
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})
	return entries, nil
}

// within reports whether child lies below dir, directly unless recursive.
func within(dir, child string, recursive bool) bool {
	if child == dir {
		return false
	}
	prefix := strings.TrimSuffix(dir, "/") + "/"
	if !strings.HasPrefix(child, prefix) {
		return false
	}
	return recursive || !strings.Contains(child[len(prefix):], "/")
}

// CreateDir implements routekit.FileWriter
func (a *Adapter) CreateDir(ctx context.Context, p string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	p = normalizePath(p)

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.checkFault("createdir", p); err != nil {
		return err
	}
	if _, exists := a.files[p]; exists {
		return &routekit.PathError{Op: "createdir", Path: p, Err: routekit.ErrExist}
	}

	a.ensureParentDirs(p)
	if _, exists := a.dirs[p]; !exists {
		a.dirs[p] = a.now()
	}
	return nil
}

// DeleteDir implements routekit.FileWriter
func (a *Adapter) DeleteDir(ctx context.Context, p string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	p = normalizePath(p)

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.checkFault("deletedir", p); err != nil {
		return err
	}
	if _, exists := a.dirs[p]; !exists {
		if _, isFile := a.files[p]; isFile {
			return &routekit.PathError{Op: "deletedir", Path: p, Err: routekit.ErrNotDir}
		}
		return &routekit.PathError{Op: "deletedir", Path: p, Err: routekit.ErrNotExist}
	}

	prefix := strings.TrimSuffix(p, "/") + "/"
	for fp := range a.files {
		if strings.HasPrefix(fp, prefix) {
			delete(a.files, fp)
		}
	}
	for dp := range a.dirs {
		if dp == p || strings.HasPrefix(dp, prefix) {
			delete(a.dirs, dp)
		}
	}
	return nil
}

// FileCount returns the number of files stored
func (a *Adapter) FileCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.files)
}

// ensureParentDirs creates all parent directories for a given path
// Must be called with lock held
func (a *Adapter) ensureParentDirs(p string) {
	for dir := path.Dir(p); dir != "/"; dir = path.Dir(dir) {
		if _, exists := a.dirs[dir]; !exists {
			a.dirs[dir] = a.now()
		}
	}
}

// normalizePath cleans p into an absolute "/"-separated path.
func normalizePath(p string) string {
	return path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))
}

func fileInfo(p string, f *memoryFile) routekit.FileInfo {
	return routekit.FileInfo{
		Name:    path.Base(p),
		Path:    p,
		Size:    int64(len(f.content)),
		ModTime: f.modTime,
	}
}

func dirInfo(p string, modTime time.Time) routekit.FileInfo {
	return routekit.FileInfo{
		Name:    path.Base(p),
		Path:    p,
		ModTime: modTime,
		IsDir:   true,
	}
}

// ============================================================================
// Optional Capability Interfaces
// ============================================================================

// Copy implements routekit.CanCopy. Like the local driver it never
// overwrites and needs dst's parent directory to exist.
func (a *Adapter) Copy(ctx context.Context, src, dst string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	src = normalizePath(src)
	dst = normalizePath(dst)

	a.mu.Lock()
	defer a.mu.Unlock()

	srcFile, err := a.transferCheck("copy", src, dst)
	if err != nil {
		return err
	}

	content := make([]byte, len(srcFile.content))
	copy(content, srcFile.content)
	a.files[dst] = &memoryFile{content: content, modTime: srcFile.modTime}

	go a.notifyWatchers(dst)
	return nil
}

// Move implements routekit.CanMove with the same rules as Copy.
func (a *Adapter) Move(ctx context.Context, src, dst string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	src = normalizePath(src)
	dst = normalizePath(dst)

	a.mu.Lock()
	defer a.mu.Unlock()

	srcFile, err := a.transferCheck("move", src, dst)
	if err != nil {
		return err
	}
	if err := a.checkFault("move", src); err != nil {
		return err
	}

	a.files[dst] = srcFile
	delete(a.files, src)

	go a.notifyWatchers(dst)
	return nil
}

// transferCheck validates a copy or move. Must be called with lock held.
func (a *Adapter) transferCheck(op, src, dst string) (*memoryFile, error) {
	srcFile, exists := a.files[src]
	if !exists {
		return nil, &routekit.PathError{Op: op, Path: src, Err: routekit.ErrNotExist}
	}
	if err := a.checkFault(op, dst); err != nil {
		return nil, err
	}
	if _, exists := a.dirs[path.Dir(dst)]; !exists {
		return nil, &routekit.PathError{Op: op, Path: dst, Err: routekit.ErrNotExist}
	}
	_, fileExists := a.files[dst]
	_, dirExists := a.dirs[dst]
	if fileExists || dirExists {
		return nil, &routekit.PathError{Op: op, Path: dst, Err: routekit.ErrExist}
	}
	return srcFile, nil
}

// Checksum implements routekit.CanChecksum for in-memory files.
func (a *Adapter) Checksum(ctx context.Context, p string, algorithm routekit.ChecksumAlgorithm) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	p = normalizePath(p)

	a.mu.RLock()
	defer a.mu.RUnlock()

	file, exists := a.files[p]
	if !exists {
		return "", &routekit.PathError{Op: "checksum", Path: p, Err: routekit.ErrNotExist}
	}

	checksum, err := routekit.CalculateChecksum(bytes.NewReader(file.content), algorithm)
	if err != nil {
		return "", &routekit.PathError{Op: "checksum", Path: p, Err: err}
	}
	return checksum, nil
}

// ============================================================================
// Watcher Implementation
// ============================================================================

// Watch implements routekit.CanWatch. pattern is matched against full paths
// with "/" as separator, so "/in/*.zip" does not fire for "/in/sub/a.zip".
func (a *Adapter) Watch(ctx context.Context, pattern string) (routekit.ChangeToken, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	match, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, &routekit.PathError{Op: "watch", Path: pattern, Err: err}
	}

	token := routekit.NewCallbackChangeToken()

	a.watchMu.Lock()
	a.watches = append(a.watches, &watchEntry{match: match, token: token})
	a.watchMu.Unlock()

	go func() {
		<-ctx.Done()
		a.removeWatch(token)
	}()

	return token, nil
}

// notifyWatchers signals all watchers whose pattern matches the given path
func (a *Adapter) notifyWatchers(p string) {
	a.watchMu.RLock()
	defer a.watchMu.RUnlock()

	for _, entry := range a.watches {
		if entry.match.Match(p) {
			entry.token.SignalChange()
		}
	}
}

// removeWatch removes a watch entry by token
func (a *Adapter) removeWatch(token *routekit.CallbackChangeToken) {
	a.watchMu.Lock()
	defer a.watchMu.Unlock()

	for i, entry := range a.watches {
		if entry.token == token {
			a.watches[i] = a.watches[len(a.watches)-1]
			a.watches = a.watches[:len(a.watches)-1]
			return
		}
	}
}

// Ensure Adapter implements interfaces
var (
	_ routekit.FileSystem  = (*Adapter)(nil)
	_ routekit.CanCopy     = (*Adapter)(nil)
	_ routekit.CanMove     = (*Adapter)(nil)
	_ routekit.CanChecksum = (*Adapter)(nil)
	_ routekit.CanWatch    = (*Adapter)(nil)
)
