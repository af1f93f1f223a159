package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/Aman-CERP/codesync/internal/filter"
	"github.com/Aman-CERP/codesync/internal/vcs"
)

// Scanner walks a repository root and returns the files eligible for sync.
// A Scanner holds no per-walk state and may run concurrent walks.
type Scanner struct {
	fs     afero.Fs
	filter *filter.Filter
	opts   Options
}

// New creates a Scanner reading from fs.
func New(fs afero.Fs, f *filter.Filter, opts Options) *Scanner {
	return &Scanner{
		fs:     fs,
		filter: f,
		opts:   opts.WithDefaults(),
	}
}

// Walk returns the absolute paths of eligible files under root in
// depth-first discovery order, truncated to MaxResults.
//
// Directories are read from an explicit work list by up to Workers
// goroutines. A directory that cannot be read contributes nothing.
// Symlinks are not followed.
func (s *Scanner) Walk(ctx context.Context, root string, ignored vcs.IgnoreSet) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	info, err := s.fs.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path is not a directory: %s", absRoot)
	}

	start := time.Now()
	top := &dirNode{path: absRoot}
	s.drain(ctx, top, ignored)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	files, total := flatten(top, s.opts.MaxResults)
	slog.Debug("walk complete",
		slog.String("root", absRoot),
		slog.Int("eligible", total),
		slog.Int("returned", len(files)),
		slog.Duration("elapsed", time.Since(start)))

	return files, nil
}

// drain reads every directory reachable from top using a shared work list.
func (s *Scanner) drain(ctx context.Context, top *dirNode, ignored vcs.IgnoreSet) {
	var (
		mu      sync.Mutex
		cond    = sync.NewCond(&mu)
		stack   = []*dirNode{top}
		pending = 1 // queued or being read
		wg      sync.WaitGroup
	)

	for i := 0; i < s.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				mu.Lock()
				for len(stack) == 0 && pending > 0 {
					cond.Wait()
				}
				if pending == 0 {
					mu.Unlock()
					return
				}
				node := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				mu.Unlock()

				children := s.readDir(ctx, node, ignored)

				mu.Lock()
				stack = append(stack, children...)
				pending += len(children) - 1
				cond.Broadcast()
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
}

// readDir lists one directory into node.entries and returns the
// sub-directories that still need reading.
func (s *Scanner) readDir(ctx context.Context, node *dirNode, ignored vcs.IgnoreSet) []*dirNode {
	if ctx.Err() != nil {
		return nil
	}

	// One listing gives name, kind and size for every entry.
	infos, err := afero.ReadDir(s.fs, node.path)
	if err != nil {
		slog.Debug("skipping unreadable directory",
			slog.String("path", node.path),
			slog.String("error", err.Error()))
		return nil
	}

	var children []*dirNode
	for _, info := range infos {
		name := info.Name()
		abs := filepath.Join(node.path, name)
		rel := name
		if node.rel != "" {
			rel = node.rel + "/" + name
		}

		switch {
		case info.Mode()&os.ModeSymlink != 0:
			continue
		case info.IsDir():
			if s.filter.IsExcludedDirName(name) || s.filter.PrunesDirectory(rel) {
				continue
			}
			child := &dirNode{path: abs, rel: rel}
			node.entries = append(node.entries, entry{dir: child})
			children = append(children, child)
		default:
			if ignored.Has(abs) || info.Size() > s.filter.MaxFileSize() || !s.filter.IsEligible(abs, info.Size()) {
				continue
			}
			node.entries = append(node.entries, entry{file: abs})
		}
	}

	return children
}

// flatten emits files depth-first in listing order, stopping at limit.
// It also returns how many eligible files exist in total.
func flatten(top *dirNode, limit int) ([]string, int) {
	type frame struct {
		node *dirNode
		next int
	}

	var files []string
	total := 0
	stack := []frame{{node: top}}
	for len(stack) > 0 {
		f := &stack[len(stack)-1]
		if f.next == len(f.node.entries) {
			stack = stack[:len(stack)-1]
			continue
		}
		e := f.node.entries[f.next]
		f.next++

		if e.dir != nil {
			stack = append(stack, frame{node: e.dir})
			continue
		}
		total++
		if len(files) < limit {
			files = append(files, e.file)
		}
	}
	return files, total
}
