// Package watcher reacts to markdown file changes with trailing-edge
// debouncing. A burst of events for one path collapses into a single
// callback fired after the path has been quiet for the debounce window.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/memsearch/memsearch/internal/scanner"
)

// DefaultDebounce is how long a path must stay quiet before its event fires.
// Editors save in bursts (write, truncate, rename), so this is deliberately
// generous.
const DefaultDebounce = 1500 * time.Millisecond

// Op is the kind of change reported for a path.
type Op int

const (
	// OpWrite indicates a file was created or modified.
	OpWrite Op = iota
	// OpRemove indicates a file was deleted or renamed away.
	OpRemove
)

func (op Op) String() string {
	switch op {
	case OpWrite:
		return "WRITE"
	case OpRemove:
		return "REMOVE"
	default:
		return "UNKNOWN"
	}
}

// Event is a debounced change notification for one markdown file.
type Event struct {
	Path string
	Op   Op
}

// Options configures the watcher.
type Options struct {
	// Roots are the directories to watch recursively.
	Roots []string

	// Debounce is the quiet window per path (0 = DefaultDebounce).
	Debounce time.Duration

	// OnEvent receives debounced events. Called from a timer goroutine,
	// never with the watcher's internal lock held.
	OnEvent func(Event)
}

type pendingEvent struct {
	op    Op
	timer *time.Timer
}

// Watcher watches note roots via fsnotify and emits debounced events.
type Watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration
	onEvent  func(Event)

	mu      sync.Mutex
	pending map[string]*pendingEvent
	stopped bool

	group *errgroup.Group
}

// New creates a watcher and registers every directory under the roots.
// Hidden directories are not watched.
func New(opts Options) (*Watcher, error) {
	if opts.OnEvent == nil {
		return nil, errors.New("watcher requires an OnEvent callback")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		fsw:      fsw,
		debounce: opts.Debounce,
		onEvent:  opts.OnEvent,
		pending:  make(map[string]*pendingEvent),
	}

	for _, root := range opts.Roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("failed to resolve root %s: %w", root, err)
		}
		if err := w.addRecursive(abs); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Start runs the event loop in the background until the context is
// cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) {
	group, ctx := errgroup.WithContext(ctx)
	w.group = group
	group.Go(func() error {
		return w.run(ctx)
	})
}

func (w *Watcher) run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	// New directories must be registered so files created inside them are
	// seen. fsnotify does not watch recursively on its own.
	if event.Op.Has(fsnotify.Create) {
		// Harmless for plain files: the walk visits nothing to add.
		_ = w.addRecursive(event.Name)
	}

	if !scanner.IsMarkdown(event.Name) {
		return
	}

	switch {
	case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
		w.schedule(event.Name, OpRemove)
	case event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write):
		w.schedule(event.Name, OpWrite)
	}
}

// schedule arms or re-arms the debounce timer for a path. The most recent
// op wins; a write after a remove reports a write.
func (w *Watcher) schedule(path string, op Op) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	if p, ok := w.pending[path]; ok {
		p.op = op
		p.timer.Reset(w.debounce)
		return
	}
	p := &pendingEvent{op: op}
	p.timer = time.AfterFunc(w.debounce, func() {
		w.fire(path)
	})
	w.pending[path] = p
}

func (w *Watcher) fire(path string) {
	w.mu.Lock()
	p, ok := w.pending[path]
	if ok {
		delete(w.pending, path)
	}
	stopped := w.stopped
	w.mu.Unlock()

	if !ok || stopped {
		return
	}
	w.onEvent(Event{Path: path, Op: p.op})
}

// addRecursive registers a directory tree with fsnotify. Non-directories
// and hidden directories are skipped silently.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return fmt.Errorf("failed to walk %s: %w", root, err)
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return fs.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// Stop cancels pending timers, closes the underlying watcher and waits for
// the event loop to exit. Safe to call more than once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	for _, p := range w.pending {
		p.timer.Stop()
	}
	w.pending = make(map[string]*pendingEvent)
	w.mu.Unlock()

	err := w.fsw.Close()
	if w.group != nil {
		if waitErr := w.group.Wait(); waitErr != nil && !errors.Is(waitErr, context.Canceled) {
			err = errors.Join(err, waitErr)
		}
	}
	return err
}
