package local

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gobeaver/routekit"
)

// Adapter provides a local filesystem implementation of routekit.FileSystem.
//
// An Adapter with a root resolves every path beneath it and refuses paths
// that escape. An Adapter without a root works on host paths directly,
// which is what routing between mounted shares needs.
type Adapter struct {
	root string
}

// New creates a new local filesystem adapter. An empty root means host
// paths are used as given; otherwise root is created if missing.
func New(root string) (*Adapter, error) {
	if root == "" {
		return &Adapter{}, nil
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	// Ensure the root directory exists
	if err := os.MkdirAll(absRoot, 0755); err != nil {
		return nil, err
	}

	return &Adapter{
		root: absRoot,
	}, nil
}

// resolve maps a caller path onto the host.
func (a *Adapter) resolve(op, path string) (string, error) {
	if a.root == "" {
		return filepath.Clean(path), nil
	}

	fullPath := filepath.Join(a.root, filepath.Clean(path))
	if !isPathUnderRoot(a.root, fullPath) {
		return "", &routekit.PathError{Op: op, Path: path, Err: routekit.ErrNotAllowed}
	}
	return fullPath, nil
}

// pathError maps OS errors onto routekit's sentinels.
func pathError(op, path string, err error) error {
	switch {
	case errors.Is(err, os.ErrNotExist):
		err = routekit.ErrNotExist
	case errors.Is(err, os.ErrExist):
		err = routekit.ErrExist
	case errors.Is(err, os.ErrPermission), errors.Is(err, syscall.EROFS):
		err = routekit.ErrPermission
	case errors.Is(err, syscall.ENOTDIR):
		err = routekit.ErrNotDir
	case errors.Is(err, syscall.EISDIR):
		err = routekit.ErrIsDir
	}
	return &routekit.PathError{Op: op, Path: path, Err: err}
}

// Write implements routekit.FileWriter
func (a *Adapter) Write(ctx context.Context, path string, content io.Reader, options ...routekit.Option) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		// Continue
	}

	fullPath, err := a.resolve("write", path)
	if err != nil {
		return err
	}
	opts := routekit.ApplyOptions(options...)

	// Ensure the directory exists
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return pathError("write", path, err)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if opts.Overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(fullPath, flags, 0644)
	if err != nil {
		return pathError("write", path, err)
	}

	if err := writeAndSync(f, content); err != nil {
		os.Remove(fullPath)
		return pathError("write", path, err)
	}

	if opts.ModTime != nil {
		if err := os.Chtimes(fullPath, *opts.ModTime, *opts.ModTime); err != nil {
			return pathError("write", path, err)
		}
	}

	return nil
}

// writeAndSync copies r into f and flushes it to stable storage. Network
// shares report late write errors on sync or close.
func writeAndSync(f *os.File, r io.Reader) error {
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Read implements routekit.FileReader
func (a *Adapter) Read(ctx context.Context, path string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
		// Continue
	}

	fullPath, err := a.resolve("read", path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(fullPath)
	if err != nil {
		return nil, pathError("read", path, err)
	}

	return f, nil
}

// Delete implements routekit.FileWriter
func (a *Adapter) Delete(ctx context.Context, path string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		// Continue
	}

	fullPath, err := a.resolve("delete", path)
	if err != nil {
		return err
	}

	info, err := os.Lstat(fullPath)
	if err != nil {
		return pathError("delete", path, err)
	}
	if info.IsDir() {
		return &routekit.PathError{Op: "delete", Path: path, Err: routekit.ErrIsDir}
	}

	if err := os.Remove(fullPath); err != nil {
		return pathError("delete", path, err)
	}

	return nil
}

// FileExists implements routekit.FileReader
func (a *Adapter) FileExists(ctx context.Context, path string) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
		// Continue
	}

	fullPath, err := a.resolve("fileexists", path)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, pathError("fileexists", path, err)
	}

	// Return true only if it's a file (not a directory)
	return !info.IsDir(), nil
}

// DirExists implements routekit.FileReader
func (a *Adapter) DirExists(ctx context.Context, path string) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
		// Continue
	}

	fullPath, err := a.resolve("direxists", path)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, pathError("direxists", path, err)
	}

	// Return true only if it's a directory
	return info.IsDir(), nil
}

// Stat implements routekit.FileReader
func (a *Adapter) Stat(ctx context.Context, path string) (*routekit.FileInfo, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
		// Continue
	}

	fullPath, err := a.resolve("stat", path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		return nil, pathError("stat", path, err)
	}

	return fileInfo(path, info), nil
}

func fileInfo(path string, info os.FileInfo) *routekit.FileInfo {
	return &routekit.FileInfo{
		Name:    info.Name(),
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		IsDir:   info.IsDir(),
	}
}

// ListContents implements routekit.FileReader. Returned paths are path
// joined with the entry's path relative to it. The listed directory itself
// is never included.
func (a *Adapter) ListContents(ctx context.Context, path string, recursive bool) ([]routekit.FileInfo, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
		// Continue
	}

	fullPath, err := a.resolve("listcontents", path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		return nil, pathError("listcontents", path, err)
	}
	if !info.IsDir() {
		return nil, &routekit.PathError{Op: "listcontents", Path: path, Err: routekit.ErrNotDir}
	}

	var files []routekit.FileInfo

	if recursive {
		err = filepath.WalkDir(fullPath, func(walkPath string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}

			// Skip the root directory itself
			if walkPath == fullPath {
				return nil
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			info, err := d.Info()
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(fullPath, walkPath)
			if err != nil {
				return err
			}

			files = append(files, *fileInfo(filepath.Join(path, rel), info))
			return nil
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			return nil, pathError("listcontents", path, err)
		}
		return files, nil
	}

	entries, err := os.ReadDir(fullPath)
	if err != nil {
		return nil, pathError("listcontents", path, err)
	}

	files = make([]routekit.FileInfo, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			// vanished between ReadDir and Info
			continue
		}
		files = append(files, *fileInfo(filepath.Join(path, entry.Name()), info))
	}

	return files, nil
}

// CreateDir implements routekit.FileWriter
func (a *Adapter) CreateDir(ctx context.Context, path string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		// Continue
	}

	fullPath, err := a.resolve("createdir", path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(fullPath, 0755); err != nil {
		return pathError("createdir", path, err)
	}

	return nil
}

// DeleteDir implements routekit.FileWriter
func (a *Adapter) DeleteDir(ctx context.Context, path string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		// Continue
	}

	fullPath, err := a.resolve("deletedir", path)
	if err != nil {
		return err
	}
	if fullPath == a.root || fullPath == filepath.Dir(fullPath) {
		return &routekit.PathError{Op: "deletedir", Path: path, Err: routekit.ErrNotAllowed}
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		return pathError("deletedir", path, err)
	}
	if !info.IsDir() {
		return &routekit.PathError{Op: "deletedir", Path: path, Err: routekit.ErrNotDir}
	}

	if err := os.RemoveAll(fullPath); err != nil {
		return pathError("deletedir", path, err)
	}

	return nil
}

// isPathUnderRoot checks if a path is under a given root directory
func isPathUnderRoot(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}

	return !filepath.IsAbs(rel) && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// ============================================================================
// Optional Capability Interfaces
// ============================================================================

// Copy implements routekit.CanCopy. The destination must not exist; its
// parent directory must. Mode and modification time follow the source.
func (a *Adapter) Copy(ctx context.Context, src, dst string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	srcPath, err := a.resolve("copy", src)
	if err != nil {
		return err
	}
	dstPath, err := a.resolve("copy", dst)
	if err != nil {
		return err
	}

	srcFile, err := os.Open(srcPath)
	if err != nil {
		return pathError("copy", src, err)
	}
	defer srcFile.Close()

	srcInfo, err := srcFile.Stat()
	if err != nil {
		return pathError("copy", src, err)
	}
	if srcInfo.IsDir() {
		return &routekit.PathError{Op: "copy", Path: src, Err: routekit.ErrIsDir}
	}

	dstFile, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, srcInfo.Mode().Perm())
	if err != nil {
		return pathError("copy", dst, err)
	}

	if err := writeAndSync(dstFile, srcFile); err != nil {
		os.Remove(dstPath)
		return pathError("copy", dst, err)
	}

	// best effort, like cp -p on a share that ignores times
	_ = os.Chtimes(dstPath, time.Now(), srcInfo.ModTime())

	return nil
}

// Move implements routekit.CanMove. The destination must not exist. A
// rename that crosses devices falls back to copy and remove.
func (a *Adapter) Move(ctx context.Context, src, dst string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	srcPath, err := a.resolve("move", src)
	if err != nil {
		return err
	}
	dstPath, err := a.resolve("move", dst)
	if err != nil {
		return err
	}

	// Check source exists
	if _, err := os.Lstat(srcPath); err != nil {
		return pathError("move", src, err)
	}

	// os.Rename replaces silently, so refuse an existing destination first
	if _, err := os.Lstat(dstPath); err == nil {
		return &routekit.PathError{Op: "move", Path: dst, Err: routekit.ErrExist}
	} else if !os.IsNotExist(err) {
		return pathError("move", dst, err)
	}

	err = os.Rename(srcPath, dstPath)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		if _, serr := os.Lstat(srcPath); os.IsNotExist(serr) {
			return pathError("move", src, serr)
		}
		return pathError("move", dst, err)
	}

	// Cross-device: copy, then remove the source. Undo the copy when the
	// source cannot be removed so the file never ends up in both places.
	if err := a.Copy(ctx, src, dst); err != nil {
		return err
	}
	if err := os.Remove(srcPath); err != nil {
		os.Remove(dstPath)
		return pathError("move", src, err)
	}

	return nil
}

// Checksum implements routekit.CanChecksum for local files.
func (a *Adapter) Checksum(ctx context.Context, path string, algorithm routekit.ChecksumAlgorithm) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	fullPath, err := a.resolve("checksum", path)
	if err != nil {
		return "", err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		return "", pathError("checksum", path, err)
	}
	defer file.Close()

	checksum, err := routekit.CalculateChecksum(file, algorithm)
	if err != nil {
		return "", &routekit.PathError{Op: "checksum", Path: path, Err: err}
	}

	return checksum, nil
}

// Ensure Adapter implements interfaces
var (
	_ routekit.FileSystem  = (*Adapter)(nil)
	_ routekit.CanCopy     = (*Adapter)(nil)
	_ routekit.CanMove     = (*Adapter)(nil)
	_ routekit.CanChecksum = (*Adapter)(nil)
	_ routekit.CanWatch    = (*Adapter)(nil)
)
