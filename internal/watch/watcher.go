// Package watch rebuilds sidebars when a crate's sources change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Handler is called once per burst of changes with the files that changed,
// sorted and deduplicated.
type Handler func(ctx context.Context, changed []string)

// Options configures a Watcher.
type Options struct {
	Debounce time.Duration
	Ignore   []string // directory base names or filepath.Match patterns
	Match    func(path string) bool
}

// Watcher watches a directory tree.
type Watcher struct {
	root    string
	opts    Options
	handler Handler
	fs      *fsnotify.Watcher
	deb     *Debouncer

	mu      sync.Mutex
	changed map[string]struct{}
	closed  bool

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup // Run and in-flight handler calls
}

// New starts watching root and every directory below it that is not ignored.
func New(root string, opts Options, handler Handler) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = 250 * time.Millisecond
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	w := &Watcher{
		root:    root,
		opts:    opts,
		handler: handler,
		fs:      fw,
		deb:     NewDebouncer(opts.Debounce),
		changed: make(map[string]struct{}),
		done:    make(chan struct{}),
	}
	if err := w.addTree(root); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// IsIgnored reports whether a directory is skipped. Dot directories and
// target/ are always skipped below the root.
func (w *Watcher) IsIgnored(dir string) bool {
	if dir == w.root {
		return false
	}
	base := filepath.Base(dir)
	if base == "target" || strings.HasPrefix(base, ".") {
		return true
	}
	for _, pattern := range w.opts.Ignore {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Directories can vanish between the event and the walk.
			if errors.Is(err, fs.ErrNotExist) && path != root {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.IsIgnored(path) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

// Run delivers debounced changes to the handler until ctx is done or Close
// is called.
func (w *Watcher) Run(ctx context.Context) error {
	// Registered under mu so Close never waits before Run is counted.
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.wg.Add(1)
	w.mu.Unlock()
	defer w.wg.Done()
	defer w.deb.Cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.done:
			return nil
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", "err", err)
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, ev)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if !w.IsIgnored(ev.Name) {
				if err := w.addTree(ev.Name); err != nil {
					slog.Warn("watching new directory", "dir", ev.Name, "err", err)
				}
			}
			return
		}
	}
	if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
		return
	}
	if w.opts.Match != nil && !w.opts.Match(ev.Name) {
		return
	}

	slog.Debug("source changed", "file", ev.Name, "op", ev.Op.String())
	w.mu.Lock()
	w.changed[ev.Name] = struct{}{}
	w.mu.Unlock()
	w.deb.Trigger(func() { w.fire(ctx) })
}

func (w *Watcher) fire(ctx context.Context) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	changed := make([]string, 0, len(w.changed))
	for p := range w.changed {
		changed = append(changed, p)
	}
	w.changed = make(map[string]struct{})
	w.wg.Add(1)
	w.mu.Unlock()
	defer w.wg.Done()

	if len(changed) == 0 || ctx.Err() != nil {
		return
	}
	sort.Strings(changed)
	w.handler(ctx, changed)
}

// Close stops Run, drops pending changes and waits for Run and any running
// handler call to return.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		close(w.done)
		w.mu.Unlock()

		w.deb.Cancel()
		w.wg.Wait()
		err = w.fs.Close()
	})
	return err
}
