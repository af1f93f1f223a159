package vcs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	serrors "github.com/Aman-CERP/codesync/internal/errors"
)

// GitResolver computes the ignore set in-process with go-git, without
// needing a git binary. It mirrors what CommandResolver asks the CLI for:
// untracked files matched by .gitignore rules, plus every file tracked by
// a submodule.
type GitResolver struct {
	pageSize int
}

// NewGitResolver creates a go-git backed resolver.
func NewGitResolver(pageSize int) *GitResolver {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &GitResolver{pageSize: pageSize}
}

// ListIgnored implements Resolver.
func (r *GitResolver) ListIgnored(ctx context.Context, root string) (IgnoreSet, error) {
	repo, err := git.PlainOpen(root)
	if err != nil {
		return IgnoreSet{}, serrors.ToolingError("open git repository", err).WithDetail("root", root)
	}

	ignored, err := untrackedIgnored(ctx, repo)
	if err != nil {
		if ctx.Err() != nil {
			return IgnoreSet{}, ctx.Err()
		}
		slog.Warn("go-git ignore scan failed", slog.String("root", root), slog.String("error", err.Error()))
		ignored = nil
	}

	var submodule []string
	if err := submoduleFiles(repo, "", &submodule); err != nil {
		slog.Warn("go-git submodule scan failed", slog.String("root", root), slog.String("error", err.Error()))
		submodule = nil
	}

	ignoredPages, err := CollectPaged(ctx, &slicePager{items: ignored}, r.pageSize)
	if err != nil {
		return IgnoreSet{}, err
	}
	submodulePages, err := CollectPaged(ctx, &slicePager{items: submodule}, r.pageSize)
	if err != nil {
		return IgnoreSet{}, err
	}

	return union(fromRelative(root, ignoredPages), fromRelative(root, submodulePages)), nil
}

// untrackedIgnored walks the worktree and returns slash paths of files that
// are not in the index and match a .gitignore rule.
func untrackedIgnored(ctx context.Context, repo *git.Repository) ([]string, error) {
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("worktree: %w", err)
	}
	idx, err := repo.Storer.Index()
	if err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}
	tracked := make(map[string]struct{}, len(idx.Entries))
	for _, e := range idx.Entries {
		tracked[e.Name] = struct{}{}
	}

	patterns, err := gitignore.ReadPatterns(wt.Filesystem, nil)
	if err != nil {
		return nil, fmt.Errorf("read .gitignore patterns: %w", err)
	}
	patterns = append(patterns, excludeFilePatterns(wt.Filesystem)...)
	matcher := gitignore.NewMatcher(patterns)

	var out []string
	err = util.Walk(wt.Filesystem, ".", func(p string, info os.FileInfo, err error) error {
		if err != nil {
			// Unreadable entries are left out, like the CLI does.
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel := strings.TrimPrefix(path.Clean("/"+filepath.ToSlash(p)), "/")
		if rel == "" {
			return nil
		}
		if info.IsDir() {
			if rel == git.GitDirName {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := tracked[rel]; ok {
			return nil
		}
		if matcher.Match(strings.Split(rel, "/"), false) {
			out = append(out, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// excludeFilePatterns reads .git/info/exclude, which --exclude-standard honours too.
func excludeFilePatterns(fs billy.Filesystem) []gitignore.Pattern {
	data, err := util.ReadFile(fs, path.Join(git.GitDirName, "info", "exclude"))
	if err != nil {
		return nil
	}
	var ps []gitignore.Pattern
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ps = append(ps, gitignore.ParsePattern(line, nil))
	}
	return ps
}

// submoduleFiles appends every file tracked by repo's submodules, recursively,
// as slash paths relative to the top-level worktree.
func submoduleFiles(repo *git.Repository, prefix string, out *[]string) error {
	wt, err := repo.Worktree()
	if err != nil {
		return err
	}
	subs, err := wt.Submodules()
	if err != nil {
		return err
	}

	for _, sub := range subs {
		subPath := path.Join(prefix, sub.Config().Path)
		subRepo, err := sub.Repository()
		if err != nil {
			// Uninitialized submodule: nothing checked out to exclude.
			slog.Debug("skipping submodule", slog.String("path", subPath), slog.String("error", err.Error()))
			continue
		}
		idx, err := subRepo.Storer.Index()
		if err != nil {
			continue
		}
		for _, e := range idx.Entries {
			*out = append(*out, path.Join(subPath, e.Name))
		}
		if err := submoduleFiles(subRepo, subPath, out); err != nil {
			slog.Debug("nested submodule scan failed", slog.String("path", subPath), slog.String("error", err.Error()))
		}
	}
	return nil
}
