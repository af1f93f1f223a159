package vcs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"

	"go.uber.org/multierr"

	serrors "github.com/Aman-CERP/codesync/internal/errors"
)

// Runner starts an external command in dir and streams its stdout.
// wait must be called after stdout is drained; it reports the exit status.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) (stdout io.ReadCloser, wait func() error, err error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) (io.ReadCloser, func() error, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, err
	}
	return stdout, cmd.Wait, nil
}

var (
	// gitConfig keeps non-ASCII paths unquoted in ls-files output. Config
	// given with -c reaches the git processes submodule foreach starts.
	gitConfig = []string{"-c", "core.quotePath=off"}

	ignoredArgs   = []string{"ls-files", "--others", "--ignored", "--exclude-standard"}
	submoduleArgs = []string{"submodule", "foreach", "--quiet", "--recursive", `git ls-files | sed "s|^|$displaypath/|"`}
)

// CommandResolver asks the git CLI for ignored and submodule files.
type CommandResolver struct {
	runner   Runner
	pageSize int
}

// NewCommandResolver creates a resolver that shells out through runner.
func NewCommandResolver(runner Runner, pageSize int) *CommandResolver {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &CommandResolver{runner: runner, pageSize: pageSize}
}

// ListIgnored implements Resolver. A failing query contributes nothing to
// the set; the failure is returned as a tooling error alongside it.
func (r *CommandResolver) ListIgnored(ctx context.Context, root string) (IgnoreSet, error) {
	ignored, errIgnored := r.query(ctx, root, ignoredArgs)
	submodule, errSubmodule := r.query(ctx, root, submoduleArgs)

	if err := ctx.Err(); err != nil {
		return IgnoreSet{}, err
	}

	set := union(fromRelative(root, ignored), fromRelative(root, submodule))
	if err := multierr.Combine(errIgnored, errSubmodule); err != nil {
		slog.Warn("vcs ignore listing degraded",
			slog.String("root", root),
			slog.Int("paths", set.Len()),
			slog.String("error", err.Error()))
		return set, serrors.ToolingError("git ignore listing failed", err).
			WithDetail("root", root).
			WithSuggestion("install git or set vcs.backend to 'gogit' or 'none'")
	}

	slog.Debug("vcs ignore set resolved",
		slog.String("root", root),
		slog.Int("ignored", len(ignored)),
		slog.Int("submodule", len(submodule)))
	return set, nil
}

// query runs one git command and pages through its output.
// Any failure discards the partial listing.
func (r *CommandResolver) query(ctx context.Context, root string, args []string) ([]string, error) {
	full := append(append([]string(nil), gitConfig...), args...)
	stdout, wait, err := r.runner.Run(ctx, root, "git", full...)
	if err != nil {
		return nil, fmt.Errorf("git %s: %w", args[0], err)
	}

	lines, readErr := CollectPaged(ctx, newLinePager(stdout), r.pageSize)
	// Drain whatever is left so the process can exit.
	_, _ = io.Copy(io.Discard, stdout)
	_ = stdout.Close()
	waitErr := wait()

	if err := multierr.Combine(readErr, waitErr); err != nil {
		return nil, fmt.Errorf("git %s: %w", args[0], err)
	}
	return lines, nil
}
