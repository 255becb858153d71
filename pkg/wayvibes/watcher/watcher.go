// Package watcher reports changes to the installed pack set: packs added,
// removed or renamed, and manifests edited in place.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/logging"
)

// DefaultDebounce is the quiet period before a batch of events is delivered.
const DefaultDebounce = 250 * time.Millisecond

// Event is a single filesystem change under the packs root.
type Event struct {
	Path string
	Op   fsnotify.Op
}

// Watcher watches the packs root and each pack directory directly below
// it. Hidden entries, including the staging area, are ignored.
type Watcher struct {
	root     string
	debounce time.Duration
	watcher  *fsnotify.Watcher

	mu     sync.Mutex
	paths  map[string]bool
	closed bool
}

// New starts watching root, creating it if needed. A debounce of zero
// uses DefaultDebounce.
func New(root string, debounce time.Duration) (*Watcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(absRoot, 0o755); err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		root:     absRoot,
		debounce: debounce,
		watcher:  fsw,
		paths:    make(map[string]bool),
	}

	if err := w.addWatch(absRoot); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	entries, err := os.ReadDir(absRoot)
	if err != nil {
		_ = fsw.Close()
		return nil, err
	}
	for _, e := range entries {
		if e.IsDir() && !hidden(e.Name()) {
			_ = w.addWatch(filepath.Join(absRoot, e.Name()))
		}
	}
	return w, nil
}

// Root returns the watched directory.
func (w *Watcher) Root() string { return w.root }

func (w *Watcher) addWatch(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || w.paths[path] {
		return nil
	}
	if err := w.watcher.Add(path); err != nil {
		logging.Get("watcher").Warn("failed to add watch", "path", path, "error", err)
		return err
	}
	w.paths[path] = true
	return nil
}

func (w *Watcher) dropWatch(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.paths[path] {
		return
	}
	// The kernel drops watches on removed directories itself.
	_ = w.watcher.Remove(path)
	delete(w.paths, path)
}

// Run delivers debounced batches of events to onChange until ctx is done or
// the watcher is closed.
func (w *Watcher) Run(ctx context.Context, onChange func([]Event)) {
	log := logging.Get("watcher")

	var (
		pending []Event
		timer   *time.Timer
		fire    <-chan time.Time
	)
	flush := func() {
		if len(pending) > 0 && onChange != nil {
			onChange(pending)
		}
		pending = nil
		fire = nil
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				flush()
				return
			}
			ev, keep := w.handleEvent(event)
			if !keep {
				continue
			}
			pending = append(pending, ev)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			flush()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error("watcher error", "error", err)
		}
	}
}

// Changes runs the watcher on its own goroutine and returns the batches as
// a channel, closed when ctx is done.
func (w *Watcher) Changes(ctx context.Context) <-chan []Event {
	ch := make(chan []Event, 1)
	go func() {
		defer close(ch)
		w.Run(ctx, func(batch []Event) {
			select {
			case ch <- batch:
			case <-ctx.Done():
			}
		})
	}()
	return ch
}

// handleEvent keeps watches in sync and reports whether the event matters.
func (w *Watcher) handleEvent(event fsnotify.Event) (Event, bool) {
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil || rel == "." {
		return Event{}, false
	}
	for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
		if hidden(seg) {
			return Event{}, false
		}
	}
	topLevel := !strings.Contains(filepath.ToSlash(rel), "/")

	switch {
	case event.Op&fsnotify.Create != 0 && topLevel:
		if info, err := os.Lstat(event.Name); err == nil && info.IsDir() {
			_ = w.addWatch(event.Name)
		}
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 && topLevel:
		w.dropWatch(event.Name)
	case event.Op == fsnotify.Chmod:
		return Event{}, false
	}

	logging.Get("watcher").Debug("pack change", "path", event.Name, "op", event.Op.String())
	return Event{Path: event.Name, Op: event.Op}, true
}

// Close stops watching.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	w.paths = make(map[string]bool)
	return w.watcher.Close()
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
