package local

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	"github.com/gobeaver/routekit"
)

// Watch implements routekit.CanWatch using fsnotify. pattern is a directory
// followed by a glob on base names ("/mnt/inputs/Results_*.zip"); a pattern
// without glob characters watches a single file. The token fires once, on
// the first create or write of a matching name.
func (a *Adapter) Watch(ctx context.Context, pattern string) (routekit.ChangeToken, error) {
	dir, base := splitPattern(pattern)

	watchPath, err := a.resolve("watch", dir)
	if err != nil {
		return nil, err
	}

	match, err := glob.Compile(base)
	if err != nil {
		return nil, &routekit.PathError{Op: "watch", Path: pattern, Err: err}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, &routekit.PathError{Op: "watch", Path: pattern, Err: err}
	}
	if err := watcher.Add(watchPath); err != nil {
		watcher.Close()
		return nil, pathError("watch", dir, err)
	}

	token := routekit.NewCallbackChangeToken()
	go pump(ctx, watcher, match, token)
	return token, nil
}

// pump forwards the first relevant event to token and releases the watcher.
func pump(ctx context.Context, w *fsnotify.Watcher, match glob.Glob, token *routekit.CallbackChangeToken) {
	defer w.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			// Rename reports the old name leaving; arrivals show up as Create.
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if match.Match(filepath.Base(event.Name)) {
				token.SignalChange()
				return
			}
		case _, ok := <-w.Errors:
			if !ok {
				return
			}
			// overflow or a vanished mount; sweep anyway
			token.SignalChange()
			return
		}
	}
}

// splitPattern splits "dir/glob" at the last separator before the first
// glob character.
func splitPattern(pattern string) (dir, base string) {
	idx := strings.IndexAny(pattern, "*?[{")
	if idx < 0 {
		return filepath.Dir(pattern), filepath.Base(pattern)
	}

	head := pattern[:idx]
	slash := strings.LastIndexAny(head, `/\`)
	if slash < 0 {
		return ".", pattern
	}
	if slash == 0 {
		return pattern[:1], pattern[1:]
	}
	return pattern[:slash], pattern[slash+1:]
}
