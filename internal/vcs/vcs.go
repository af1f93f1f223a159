// Package vcs resolves the set of files version control excludes from a
// repository: files git ignores and files owned by submodules.
//
// Listings can be arbitrarily large, so every backend feeds its output
// through CollectPaged, which pulls fixed-size pages and stops at the
// first short page.
//
// Resolution never fails a sync. A missing git binary, a directory that is
// not a repository, or a failing command all yield an empty IgnoreSet; the
// accompanying error only explains why.
package vcs

import (
	"context"
	"path/filepath"
)

// DefaultPageSize is the number of paths requested per page.
const DefaultPageSize = 10000

// IgnoreSet is a read-only set of absolute paths excluded by version control.
// The zero value is an empty set.
type IgnoreSet map[string]struct{}

// Has reports whether the absolute path is in the set.
func (s IgnoreSet) Has(path string) bool {
	_, ok := s[path]
	return ok
}

// Len returns the number of paths in the set.
func (s IgnoreSet) Len() int {
	return len(s)
}

// union returns a new set holding every path of a and b.
func union(a, b IgnoreSet) IgnoreSet {
	out := make(IgnoreSet, len(a)+len(b))
	for p := range a {
		out[p] = struct{}{}
	}
	for p := range b {
		out[p] = struct{}{}
	}
	return out
}

// fromRelative joins every root-relative path in lines to root.
func fromRelative(root string, lines []string) IgnoreSet {
	set := make(IgnoreSet, len(lines))
	for _, l := range lines {
		set[filepath.Join(root, filepath.FromSlash(l))] = struct{}{}
	}
	return set
}

// Resolver lists the files version control excludes under a root.
type Resolver interface {
	// ListIgnored returns the ignored and submodule-owned files under root.
	// The returned set is always usable, even when err is non-nil.
	ListIgnored(ctx context.Context, root string) (IgnoreSet, error)
}

// Nop is a Resolver that never ignores anything.
type Nop struct{}

// ListIgnored returns an empty set.
func (Nop) ListIgnored(context.Context, string) (IgnoreSet, error) {
	return IgnoreSet{}, nil
}

// New returns the resolver for a configured backend name
// ("exec", "gogit" or "none").
func New(backend string, pageSize int) Resolver {
	switch backend {
	case "gogit":
		return NewGitResolver(pageSize)
	case "none":
		return Nop{}
	default:
		return NewCommandResolver(ExecRunner{}, pageSize)
	}
}
