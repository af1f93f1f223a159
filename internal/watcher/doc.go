// Package watcher relays file-system changes under a repository root as
// typed events.
//
// The package implements a hybrid watching strategy:
//   - Primary: fsnotify, with every non-excluded directory watched and new
//     directories added as they appear
//   - Fallback: Polling for environments where fsnotify fails (network mounts, Docker volumes)
//
// Events are delivered one by one, never coalesced. Paths inside VCS and
// dependency directories are dropped. The watcher only reports changes;
// deciding whether to re-sync is up to the consumer.
//
// Usage:
//
//	b := watcher.New(f, watcher.DefaultOptions())
//	if err := b.Start(ctx, "/path/to/project"); err != nil {
//	    return err
//	}
//	defer b.Stop()
//
//	for ev := range b.Events() {
//	    switch ev.Kind {
//	    case watcher.FileAdded, watcher.FileChanged:
//	        // schedule a resync
//	    }
//	}
package watcher
