package watcher

import (
	"io/fs"
	"path/filepath"
	"sort"
	"time"
)

// poller detects changes by periodically rescanning the tree. Used as a
// fallback when fsnotify is not available or fails.
type poller struct {
	root      string
	skipDir   func(name string) bool
	fileState map[string]fileSnapshot
}

type fileSnapshot struct {
	modTime time.Time
	size    int64
	isDir   bool
}

func newPoller(root string, skipDir func(name string) bool) *poller {
	return &poller{
		root:      root,
		skipDir:   skipDir,
		fileState: make(map[string]fileSnapshot),
	}
}

// scan records the baseline state.
func (p *poller) scan() {
	p.fileState = p.snapshot()
}

// snapshot walks the tree, skipping directories skipDir rejects.
func (p *poller) snapshot() map[string]fileSnapshot {
	state := make(map[string]fileSnapshot)
	_ = filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || path == p.root {
			return nil // Skip files we can't access
		}
		if d.IsDir() && p.skipDir(d.Name()) {
			return filepath.SkipDir
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		state[path] = fileSnapshot{
			modTime: info.ModTime(),
			size:    info.Size(),
			isDir:   d.IsDir(),
		}
		return nil
	})
	return state
}

// detect compares the tree with the previous scan. Additions come first,
// then changes, then deletions, each in path order.
func (p *poller) detect() []Event {
	now := time.Now()
	current := p.snapshot()

	var added []string
	var deleted []string
	for path := range current {
		if _, ok := p.fileState[path]; !ok {
			added = append(added, path)
		}
	}
	for path := range p.fileState {
		if _, ok := current[path]; !ok {
			deleted = append(deleted, path)
		}
	}
	sort.Strings(added)
	sort.Strings(deleted)

	var events []Event
	for _, path := range added {
		kind := FileAdded
		if current[path].isDir {
			kind = FolderAdded
		}
		events = append(events, Event{Kind: kind, Path: path, Time: now})
	}

	var changed []string
	for path, snap := range current {
		prev, ok := p.fileState[path]
		if !ok || snap.isDir || prev.isDir {
			continue
		}
		if prev.modTime != snap.modTime || prev.size != snap.size {
			changed = append(changed, path)
		}
	}
	sort.Strings(changed)
	for _, path := range changed {
		events = append(events, Event{Kind: FileChanged, Path: path, Time: now})
	}

	for _, path := range deleted {
		kind := FileDeleted
		if p.fileState[path].isDir {
			kind = FolderDeleted
		}
		events = append(events, Event{Kind: kind, Path: path, Time: now})
	}

	p.fileState = current
	return events
}
