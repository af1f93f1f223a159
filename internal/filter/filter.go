// Package filter decides which paths under a repository root are eligible
// for sync. Every method is a pure function of its arguments and the
// options given to New, so a Filter can be shared by any number of
// goroutines.
package filter

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Options configures a Filter. Nil slices fall back to the package defaults.
type Options struct {
	// Extensions allow-lists file types, without the leading dot.
	Extensions []string

	// IgnorePatterns are extra regular expressions, added to DefaultIgnorePatterns.
	IgnorePatterns []string

	// LockFiles are basenames that are never eligible.
	LockFiles []string

	// PrunedDirs are directory names the walker skips entirely.
	PrunedDirs []string

	// VCSDirs are directory names whose contents the watcher suppresses.
	VCSDirs []string

	// MaxFileSize is the largest eligible file in bytes (0 = DefaultMaxFileSize).
	MaxFileSize int64
}

// Filter is an immutable eligibility predicate bound to one repository root.
type Filter struct {
	root        string
	extensions  map[string]struct{}
	lockFiles   map[string]struct{}
	prunedDirs  map[string]struct{}
	vcsDirs     map[string]struct{}
	patterns    []*regexp.Regexp
	maxFileSize int64
}

// New compiles a Filter for root.
func New(root string, opts Options) (*Filter, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	f := &Filter{
		root:        absRoot,
		extensions:  toSet(orDefault(opts.Extensions, DefaultExtensions), normalizeExtension),
		lockFiles:   toSet(orDefault(opts.LockFiles, DefaultLockFiles), nil),
		prunedDirs:  toSet(orDefault(opts.PrunedDirs, DefaultPrunedDirs), nil),
		vcsDirs:     toSet(orDefault(opts.VCSDirs, DefaultVCSDirs), nil),
		maxFileSize: opts.MaxFileSize,
	}
	if f.maxFileSize <= 0 {
		f.maxFileSize = DefaultMaxFileSize
	}

	all := make([]string, 0, len(DefaultIgnorePatterns)+len(opts.IgnorePatterns))
	all = append(all, DefaultIgnorePatterns...)
	all = append(all, opts.IgnorePatterns...)
	for _, p := range all {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", p, err)
		}
		f.patterns = append(f.patterns, re)
	}

	return f, nil
}

// Root returns the absolute repository root the filter is bound to.
func (f *Filter) Root() string {
	return f.root
}

// MaxFileSize returns the configured size limit in bytes.
func (f *Filter) MaxFileSize() int64 {
	return f.maxFileSize
}

// IsEligible reports whether a file at path with the given size should be synced.
// path may be absolute (under the root) or relative to the root.
func (f *Filter) IsEligible(path string, size int64) bool {
	rel := f.rel(path)
	if rel == "" {
		return false
	}

	base := pathBase(rel)
	if _, ok := f.extensions[extensionOf(base)]; !ok {
		return false
	}
	if _, ok := f.lockFiles[base]; ok {
		return false
	}
	if hasHiddenSegment(rel) {
		return false
	}
	if f.matchesPattern("/" + rel) {
		return false
	}

	return size <= f.maxFileSize
}

// IsExcludedDirectory reports whether path lies inside a VCS or dependency
// directory. Only interior segments count: a path that ends with the
// directory name (the directory itself, or a root named that way) is not
// excluded.
func (f *Filter) IsExcludedDirectory(path string) bool {
	rel := f.rel(path)
	if rel == "" {
		return false
	}

	segments := strings.Split(rel, "/")
	for _, seg := range segments[:len(segments)-1] {
		if _, ok := f.vcsDirs[seg]; ok {
			return true
		}
	}
	return false
}

// IsExcludedDirName reports whether the walker should skip a directory with this name.
func (f *Filter) IsExcludedDirName(name string) bool {
	_, ok := f.prunedDirs[name]
	return ok
}

// IsVCSDirName reports whether name is a VCS or dependency directory,
// whose contents never produce watch events.
func (f *Filter) IsVCSDirName(name string) bool {
	_, ok := f.vcsDirs[name]
	return ok
}

// PrunesDirectory reports whether no file below relDir can ever be eligible.
// It lets the walker skip a subtree without changing what it returns.
func (f *Filter) PrunesDirectory(relDir string) bool {
	rel := f.rel(relDir)
	if rel == "" {
		return false
	}
	return hasHiddenSegment(rel) || f.matchesPattern("/"+rel+"/")
}

func (f *Filter) matchesPattern(p string) bool {
	for _, re := range f.patterns {
		if re.MatchString(p) {
			return true
		}
	}
	return false
}

// rel converts path to a slash-separated path relative to the root.
// The root itself becomes "".
func (f *Filter) rel(path string) string {
	if filepath.IsAbs(path) {
		r, err := filepath.Rel(f.root, path)
		if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
			// Outside the root: judge the path on its own segments.
			r = strings.TrimPrefix(filepath.ToSlash(path), "/")
			return strings.TrimSuffix(r, "/")
		}
		path = r
	}

	r := filepath.ToSlash(filepath.Clean(path))
	r = strings.TrimPrefix(r, "./")
	if r == "." {
		return ""
	}
	return strings.Trim(r, "/")
}

func extensionOf(base string) string {
	if strings.EqualFold(base, "dockerfile") {
		return "dockerfile"
	}
	i := strings.LastIndexByte(base, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(base[i+1:])
}

func normalizeExtension(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

func hasHiddenSegment(rel string) bool {
	for _, seg := range strings.Split(rel, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}

func pathBase(rel string) string {
	if i := strings.LastIndexByte(rel, '/'); i >= 0 {
		return rel[i+1:]
	}
	return rel
}

func orDefault(v, def []string) []string {
	if v == nil {
		return def
	}
	return v
}

func toSet(items []string, norm func(string) string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		if norm != nil {
			it = norm(it)
		}
		set[it] = struct{}{}
	}
	return set
}
