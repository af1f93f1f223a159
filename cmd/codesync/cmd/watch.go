package cmd

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/codesync/internal/config"
	serrors "github.com/Aman-CERP/codesync/internal/errors"
	"github.com/Aman-CERP/codesync/internal/lock"
	"github.com/Aman-CERP/codesync/internal/orchestrator"
	"github.com/Aman-CERP/codesync/internal/output"
	"github.com/Aman-CERP/codesync/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "watch [dir...]",
		Short: "Sync directories and keep them in sync",
		Long: `Sync each directory, then resync it periodically (sync.interval) and ask
the remote to re-index it (sync.reindex_interval) until interrupted.

File-system events are printed as they happen unless --quiet is set.`,
		Example: `  # Watch the current project
  codesync watch

  # Watch two repositories from one process
  codesync watch ~/src/api ~/src/web`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{""}
			}
			return runWatch(cmd, args, quiet)
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print file-system events")
	return cmd
}

// syncedWriter serializes output from the per-root goroutines.
type syncedWriter struct {
	mu  sync.Mutex
	out *output.Writer
}

func (w *syncedWriter) do(fn func(out *output.Writer)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fn(w.out)
}

func runWatch(cmd *cobra.Command, dirs []string, quiet bool) error {
	store, err := openPrefs()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	roots := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		root, err := resolveRoot(dir)
		if err != nil {
			return err
		}
		roots = append(roots, root)
	}

	// One builder for every root: all of them share the remote client and
	// the upload slot pool of the first root's configuration.
	baseCfg, err := loadRootConfig(roots[0])
	if err != nil {
		return err
	}
	builder, err := orchestrator.NewBuilder(baseCfg, store)
	if err != nil {
		return err
	}
	defer builder.Close()

	mgr, err := orchestrator.NewManager(max(len(roots), orchestrator.DefaultMaxRoots), func(root string) (*orchestrator.Orchestrator, error) {
		cfg, err := loadRootConfig(root)
		if err != nil {
			return nil, err
		}
		return builder.BuildWithConfig(root, cfg)
	})
	if err != nil {
		return err
	}
	defer mgr.Close()

	var locks []*lock.FileLock
	defer func() {
		for _, l := range locks {
			_ = l.Unlock()
		}
	}()
	for _, root := range roots {
		l := lock.ForRoot(config.DataDir(), root)
		if err := l.Acquire(root); err != nil {
			return err
		}
		locks = append(locks, l)
	}

	out := &syncedWriter{out: output.New(cmd.OutOrStdout())}
	g, ctx := errgroup.WithContext(cmd.Context())
	for _, root := range roots {
		o, err := mgr.Get(root)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return watchRoot(ctx, o, root, out, quiet)
		})
	}

	err = g.Wait()
	if cmd.Context().Err() != nil {
		// Interrupted: a normal way to stop watching.
		return nil
	}
	return err
}

func loadRootConfig(root string) (*config.Config, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, serrors.ConfigError("failed to load config", err).WithDetail("root", root)
	}
	return cfg, nil
}

func watchRoot(ctx context.Context, o *orchestrator.Orchestrator, root string, out *syncedWriter, quiet bool) error {
	out.do(func(w *output.Writer) { w.Statusf("→", "Syncing %s", root) })
	if err := o.Start(ctx, root); err != nil {
		return err
	}
	out.do(func(w *output.Writer) { printOutcome(w, o) })

	events, err := o.Watch(ctx)
	if err != nil {
		return err
	}
	go o.Run(ctx)

	out.do(func(w *output.Writer) { w.Statusf("👀", "Watching %s (Ctrl+C to stop)", root) })
	for ev := range events {
		if quiet {
			continue
		}
		printEvent(out, root, ev)
	}
	slog.Debug("watch stopped", slog.String("root", root))
	return nil
}

func printEvent(out *syncedWriter, root string, ev watcher.Event) {
	rel, err := filepath.Rel(root, ev.Path)
	if err != nil {
		rel = ev.Path
	}
	out.do(func(w *output.Writer) {
		w.Statusf("", "%-13s %s", ev.Kind, filepath.ToSlash(rel))
	})
}
