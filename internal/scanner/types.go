// Package scanner discovers the files under a repository root that are
// eligible for sync. It prunes excluded directories, honours the version
// control ignore set and the path filter, and caps the result size.
package scanner

import "runtime"

// DefaultMaxResults is the largest number of files a walk returns.
const DefaultMaxResults = 1000

// Options configures the scanner.
type Options struct {
	// MaxResults truncates the walk result, keeping discovery order (0 = DefaultMaxResults).
	MaxResults int

	// Workers is the number of directories read concurrently (0 = NumCPU).
	Workers int
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	if o.MaxResults <= 0 {
		o.MaxResults = DefaultMaxResults
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	return o
}

// entry is one element of a directory listing, in listing order:
// either an eligible file or a sub-directory still to be read.
type entry struct {
	file string
	dir  *dirNode
}

// dirNode is a directory on the work list. Its entries are filled in by
// whichever worker reads it.
type dirNode struct {
	path    string
	rel     string
	entries []entry
}
