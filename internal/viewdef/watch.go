package viewdef

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kazz187/taskgantt/pkg/cerr"
	"github.com/kazz187/taskgantt/pkg/panicerr"
)

// DebounceInterval lets editors that save in several steps settle before
// the file is read again.
const DebounceInterval = 100 * time.Millisecond

// Watcher reloads a view definition when its file changes.
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	onLoad   func(*Definition, error)
	debounce time.Duration

	mu    sync.Mutex
	last  []byte
	timer *time.Timer
	done  chan struct{}
}

// Watch starts watching path. onLoad runs after every content change with
// the new definition, or with the error that made it unusable; the
// previous definition stays in effect in that case. The watch ends when
// ctx is done or Close is called.
func Watch(ctx context.Context, path string, debounce time.Duration, onLoad func(*Definition, error)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, cerr.NewError(cerr.Internal, "failed to create file watcher", err)
	}
	// Watch the directory: atomic saves replace the file's inode.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, cerr.NewError(cerr.FailedPrecondition, "failed to watch view definition directory", err)
	}
	last, _ := os.ReadFile(path)
	w := &Watcher{
		watcher:  fw,
		path:     path,
		onLoad:   onLoad,
		debounce: debounce,
		last:     last,
		done:     make(chan struct{}),
	}
	go w.loop(ctx)
	return w, nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
	name := filepath.Base(w.path)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.timer = time.AfterFunc(w.debounce, func() { w.reload(ctx) })
			w.mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.WarnContext(ctx, "view definition watcher error", "path", w.path, "error", err)

		case <-ctx.Done():
			w.watcher.Close()
			return
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		// Renamed away mid-save; the following create event reloads it.
		slog.DebugContext(ctx, "view definition not readable", "path", w.path, "error", err)
		return
	}
	w.mu.Lock()
	if bytes.Equal(data, w.last) {
		w.mu.Unlock()
		return
	}
	w.last = data
	w.mu.Unlock()

	def, err := Parse(data)
	if err != nil {
		slog.WarnContext(ctx, "view definition rejected", "path", w.path, "error", err)
	} else {
		slog.InfoContext(ctx, "view definition reloaded", "path", w.path, "model", def.Model)
	}
	if err := panicerr.Go(ctx, func(context.Context) { w.onLoad(def, err) }); err != nil {
		slog.ErrorContext(ctx, "view definition handler failed", "path", w.path, "error", err)
	}
}

// Close stops the watcher and waits for its loop to end.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return err
}
