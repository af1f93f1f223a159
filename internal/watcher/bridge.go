package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Aman-CERP/codesync/internal/filter"
)

// ErrStopped is returned by Start after Stop.
var ErrStopped = errors.New("watcher stopped")

// Bridge turns raw file-system notifications under one root into Events.
// It uses fsnotify as the primary mechanism with polling as a fallback.
type Bridge struct {
	filter *filter.Filter
	opts   Options

	events chan Event
	errors chan error
	stopCh chan struct{}
	done   chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool
	root    string

	// Owned by the run loop once Start returns.
	fsw    *fsnotify.Watcher
	poller *poller
	dirs   map[string]struct{}
	// gone holds directories already reported deleted; inotify reports a
	// removed directory both to itself and to its parent.
	gone map[string]struct{}

	dropped atomic.Uint64
}

// New creates a Bridge. Paths are excluded according to f.
func New(f *filter.Filter, opts Options) *Bridge {
	opts = opts.WithDefaults()
	return &Bridge{
		filter: f,
		opts:   opts,
		events: make(chan Event, opts.EventBuffer),
		errors: make(chan error, 10),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
		dirs:   make(map[string]struct{}),
		gone:   make(map[string]struct{}),
	}
}

// Start begins watching root. Watches are in place when it returns; events
// are delivered until Stop is called or ctx is done. Calling Start again
// is a no-op.
func (b *Bridge) Start(ctx context.Context, root string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return ErrStopped
	}
	if b.started {
		return nil
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return fmt.Errorf("stat watch root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch root is not a directory: %s", absRoot)
	}
	b.root = absRoot

	if !b.opts.ForcePolling {
		if err := b.startFsnotify(); err != nil {
			slog.Warn("fsnotify unavailable, falling back to polling",
				slog.String("root", absRoot),
				slog.String("error", err.Error()))
		}
	}
	if b.fsw == nil {
		b.poller = newPoller(absRoot, b.filter.IsVCSDirName)
		b.poller.scan()
	}

	b.started = true
	go b.run(ctx)

	slog.Debug("watcher started",
		slog.String("root", absRoot),
		slog.String("mode", b.modeLocked()))
	return nil
}

func (b *Bridge) startFsnotify() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	b.fsw = fsw
	if err := b.addRecursive(b.root, false); err != nil {
		_ = fsw.Close()
		b.fsw = nil
		b.dirs = make(map[string]struct{})
		return err
	}
	return nil
}

// run is the only goroutine that sends on events and errors.
func (b *Bridge) run(ctx context.Context) {
	defer close(b.done)
	defer close(b.errors)
	defer close(b.events)

	if b.fsw != nil {
		defer b.fsw.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case <-b.stopCh:
				return
			case ev, ok := <-b.fsw.Events:
				if !ok {
					return
				}
				b.handle(ev)
			case err, ok := <-b.fsw.Errors:
				if !ok {
					return
				}
				b.emitError(err)
			}
		}
	}

	ticker := time.NewTicker(b.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stopCh:
			return
		case <-ticker.C:
			for _, ev := range b.poller.detect() {
				b.emit(ev)
			}
		}
	}
}

// handle converts one fsnotify event.
func (b *Bridge) handle(ev fsnotify.Event) {
	path := ev.Name
	if path == b.root {
		return
	}

	switch {
	case ev.Has(fsnotify.Create):
		delete(b.gone, path)
		info, err := os.Lstat(path)
		if err != nil {
			// Already gone again.
			return
		}
		if !info.IsDir() {
			b.emit(Event{Kind: FileAdded, Path: path, Time: time.Now()})
			return
		}
		b.emit(Event{Kind: FolderAdded, Path: path, Time: time.Now()})
		if !b.filter.IsVCSDirName(info.Name()) {
			if err := b.addRecursive(path, true); err != nil {
				b.emitError(fmt.Errorf("watch new directory %s: %w", path, err))
			}
		}
	case ev.Has(fsnotify.Write):
		if _, isDir := b.dirs[path]; !isDir {
			b.emit(Event{Kind: FileChanged, Path: path, Time: time.Now()})
		}
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		// A rename is the removal of the old path; the new path arrives as a Create.
		b.removed(path)
	}
}

func (b *Bridge) removed(path string) {
	if _, seen := b.gone[path]; seen {
		delete(b.gone, path)
		return
	}
	if _, isDir := b.dirs[path]; !isDir {
		b.emit(Event{Kind: FileDeleted, Path: path, Time: time.Now()})
		return
	}

	prefix := path + string(filepath.Separator)
	for d := range b.dirs {
		if d == path || strings.HasPrefix(d, prefix) {
			delete(b.dirs, d)
			b.gone[d] = struct{}{}
			_ = b.fsw.Remove(d)
		}
	}
	b.emit(Event{Kind: FolderDeleted, Path: path, Time: time.Now()})
}

// addRecursive watches top and every non-excluded directory below it.
// With emitNested, entries found below top are reported as added: they
// appeared before the new directory's watch was in place.
func (b *Bridge) addRecursive(top string, emitNested bool) error {
	return filepath.WalkDir(top, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == top {
				return err
			}
			return nil // Skip entries we can't access
		}

		if !d.IsDir() {
			if emitNested && d.Type().IsRegular() {
				b.emit(Event{Kind: FileAdded, Path: path, Time: time.Now()})
			}
			return nil
		}

		if path != top && b.filter.IsVCSDirName(d.Name()) {
			return filepath.SkipDir
		}
		if err := b.fsw.Add(path); err != nil {
			if path == top {
				return err
			}
			slog.Debug("cannot watch directory",
				slog.String("path", path),
				slog.String("error", err.Error()))
			return filepath.SkipDir
		}
		b.dirs[path] = struct{}{}
		if emitNested && path != top {
			b.emit(Event{Kind: FolderAdded, Path: path, Time: time.Now()})
		}
		return nil
	})
}

// emit delivers ev unless it lies in an excluded directory. A full buffer
// drops the event.
func (b *Bridge) emit(ev Event) {
	if b.filter.IsExcludedDirectory(ev.Path) {
		return
	}

	select {
	case b.events <- ev:
	default:
		count := b.dropped.Add(1)
		slog.Warn("event buffer full, dropping event",
			slog.String("kind", ev.Kind.String()),
			slog.String("path", ev.Path),
			slog.Uint64("total_dropped", count))
	}
}

func (b *Bridge) emitError(err error) {
	select {
	case b.errors <- err:
	default:
	}
}

// Stop stops the watcher and closes both channels. Safe to call multiple times.
func (b *Bridge) Stop() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	started := b.started
	close(b.stopCh)
	b.mu.Unlock()

	if started {
		<-b.done
		return
	}
	close(b.events)
	close(b.errors)
}

// Events returns the event channel. It is closed when the watcher stops.
func (b *Bridge) Events() <-chan Event {
	return b.events
}

// Errors returns non-fatal watcher errors. It is closed when the watcher stops.
func (b *Bridge) Errors() <-chan error {
	return b.errors
}

// Dropped returns the number of events lost to a full buffer.
func (b *Bridge) Dropped() uint64 {
	return b.dropped.Load()
}

// Root returns the watched root, or "" before Start.
func (b *Bridge) Root() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.root
}

// Mode returns "fsnotify" or "polling", or "" before Start.
func (b *Bridge) Mode() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.modeLocked()
}

func (b *Bridge) modeLocked() string {
	switch {
	case !b.started && b.fsw == nil && b.poller == nil:
		return ""
	case b.fsw != nil:
		return "fsnotify"
	default:
		return "polling"
	}
}
