package watcher

import (
	"time"
)

// EventKind is the kind of change a watcher event reports.
type EventKind int

const (
	// FileAdded indicates a new file was created.
	FileAdded EventKind = iota
	// FolderAdded indicates a new directory was created.
	FolderAdded
	// FileChanged indicates an existing file was written.
	FileChanged
	// FileDeleted indicates a file was removed or renamed away.
	FileDeleted
	// FolderDeleted indicates a watched directory was removed or renamed away.
	FolderDeleted
)

// String returns the event name hosts subscribe to.
func (k EventKind) String() string {
	switch k {
	case FileAdded:
		return "fileAdded"
	case FolderAdded:
		return "folderAdded"
	case FileChanged:
		return "fileChanged"
	case FileDeleted:
		return "fileDeleted"
	case FolderDeleted:
		return "folderDeleted"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name.
func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Event is one file-system change under the watched root.
type Event struct {
	Kind EventKind `json:"kind"`
	// Path is absolute.
	Path string    `json:"path"`
	Time time.Time `json:"time"`
}

// Options configures the watcher behavior.
type Options struct {
	// PollInterval is the interval for polling mode (fallback).
	// Default: 5s
	PollInterval time.Duration

	// EventBuffer is the size of the event channel buffer.
	// Default: 1000
	EventBuffer int

	// ForcePolling skips fsnotify entirely.
	ForcePolling bool
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		PollInterval: 5 * time.Second,
		EventBuffer:  1000,
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.PollInterval <= 0 {
		o.PollInterval = defaults.PollInterval
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = defaults.EventBuffer
	}
	return o
}
