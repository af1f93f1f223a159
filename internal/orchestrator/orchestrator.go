// Package orchestrator drives synchronization of one repository root:
// resolve the remote repository, walk, detect, upload, and keep the root
// in sync on a timer.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/Aman-CERP/codesync/internal/detect"
	serrors "github.com/Aman-CERP/codesync/internal/errors"
	"github.com/Aman-CERP/codesync/internal/prefs"
	"github.com/Aman-CERP/codesync/internal/remote"
	"github.com/Aman-CERP/codesync/internal/scanner"
	"github.com/Aman-CERP/codesync/internal/session"
	"github.com/Aman-CERP/codesync/internal/upload"
	"github.com/Aman-CERP/codesync/internal/vcs"
	"github.com/Aman-CERP/codesync/internal/watcher"
)

// ErrNotStarted is returned by operations that need Start to have run.
var ErrNotStarted = errors.New("orchestrator not started")

// ErrBusy is returned when a pass is requested while another is running.
var ErrBusy = errors.New("sync already in progress")

// Deps are the components an Orchestrator drives.
type Deps struct {
	Resolver vcs.Resolver
	Scanner  *scanner.Scanner
	Detector *detect.Detector
	Uploader *upload.Pipeline
	Store    remote.Store
	Prefs    prefs.Store
	Gate     Gate
	// Watcher is optional.
	Watcher *watcher.Bridge
}

// Config holds the periodic loop timings.
type Config struct {
	Interval        time.Duration
	ReindexInterval time.Duration
}

// DefaultConfig returns the default timings.
func DefaultConfig() Config {
	return Config{
		Interval:        2 * time.Minute,
		ReindexInterval: time.Hour,
	}
}

// Orchestrator synchronizes a single repository root. The root is fixed by
// the first Start.
type Orchestrator struct {
	deps Deps
	cfg  Config

	// pass serializes sync passes.
	pass sync.Mutex

	mu         sync.Mutex
	state      State
	root       string
	sess       *session.Session
	cancelled  bool
	lastReport *upload.Report
	lastSync   time.Time
}

// New creates an Orchestrator.
func New(deps Deps, cfg Config) *Orchestrator {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.ReindexInterval <= 0 {
		cfg.ReindexInterval = def.ReindexInterval
	}
	if deps.Resolver == nil {
		deps.Resolver = vcs.Nop{}
	}
	if deps.Gate == nil {
		deps.Gate = GateFunc(func() bool { return true })
	}
	return &Orchestrator{deps: deps, cfg: cfg}
}

// Start binds root, resolves its remote repository and runs a full pass.
// It returns once the pass is Done or Cancelled. When the gate is closed
// nothing is contacted and the orchestrator goes straight to Done.
func (o *Orchestrator) Start(ctx context.Context, root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return serrors.New(serrors.ErrCodeInvalidPath, "cannot resolve root", err).WithDetail("root", root)
	}
	absRoot = filepath.Clean(absRoot)

	o.mu.Lock()
	if o.root != "" && o.root != absRoot {
		bound := o.root
		o.mu.Unlock()
		return serrors.ValidationError("orchestrator is bound to another root", nil).
			WithDetail("root", absRoot).
			WithDetail("bound", bound)
	}
	o.root = absRoot
	o.mu.Unlock()

	return o.runPass(ctx, true)
}

// Resync runs another pass for the bound root with the same repository.
// If no repository was resolved yet, because the gate was closed when
// Start ran, it is resolved now.
func (o *Orchestrator) Resync(ctx context.Context) error {
	if o.Root() == "" {
		return ErrNotStarted
	}
	return o.runPass(ctx, false)
}

// runPass runs one pass over the bound root. resolve forces the remote
// repository to be looked up again even when a session exists.
func (o *Orchestrator) runPass(ctx context.Context, resolve bool) error {
	if !o.pass.TryLock() {
		return ErrBusy
	}
	defer o.pass.Unlock()
	o.beginPass()

	root := o.Root()
	if !o.deps.Gate.UploadsAllowed() {
		slog.Info("uploads disabled, skipping sync", slog.String("root", root))
		o.setState(Done)
		return nil
	}

	if sess := o.Session(); sess != nil && !resolve {
		settings, err := prefs.LoadRepoSettings(o.deps.Prefs, sess.Root)
		if err != nil {
			return o.fail(ctx, err)
		}
		// An initial upload that never completed is redone in full.
		fresh := !settings.Uploaded || settings.RepoID != sess.RepoID
		return o.sync(ctx, fresh)
	}

	settings, err := o.ensureRepo(ctx, root)
	if err != nil {
		return o.fail(ctx, err)
	}

	o.mu.Lock()
	o.sess = session.New(root, settings.RepoID)
	o.mu.Unlock()

	return o.sync(ctx, !settings.Uploaded)
}

// Reindex asks the remote store to re-index the bound repository.
// Nothing is requested while no repository has been resolved.
func (o *Orchestrator) Reindex(ctx context.Context) error {
	if o.Root() == "" {
		return ErrNotStarted
	}
	sess := o.Session()
	if sess == nil || !o.deps.Gate.UploadsAllowed() {
		return nil
	}
	if err := o.deps.Store.FinishUpload(ctx, sess.RepoID); err != nil {
		return err
	}
	slog.Debug("reindex requested", slog.String("root", sess.Root), slog.String("repo_id", sess.RepoID))
	return nil
}

// Run resyncs every Interval and reindexes every ReindexInterval until ctx
// is done. Failures are logged and the loop carries on.
func (o *Orchestrator) Run(ctx context.Context) {
	resync := time.NewTicker(o.cfg.Interval)
	defer resync.Stop()
	reindex := time.NewTicker(o.cfg.ReindexInterval)
	defer reindex.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-resync.C:
			if err := o.Resync(ctx); err != nil && !errors.Is(err, ErrBusy) && ctx.Err() == nil {
				slog.Warn("periodic resync failed", append([]any{slog.String("root", o.Root())}, serrors.LogAttrs(err)...)...)
			}
		case <-reindex.C:
			if err := o.Reindex(ctx); err != nil && ctx.Err() == nil {
				slog.Warn("periodic reindex failed", append([]any{slog.String("root", o.Root())}, serrors.LogAttrs(err)...)...)
			}
		}
	}
}

// Cancel stops the running pass at its next stage boundary and it ends
// Cancelled. Requests already in flight are not aborted; their results are
// discarded. Cancelling the context given to Start or Resync aborts them.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cancelled = true
}

// Close cancels any pass and stops the watcher.
func (o *Orchestrator) Close() {
	o.Cancel()
	if o.deps.Watcher != nil {
		o.deps.Watcher.Stop()
	}
}

// Watch starts the watcher bridge on the bound root and returns its events.
func (o *Orchestrator) Watch(ctx context.Context) (<-chan watcher.Event, error) {
	root := o.Root()
	if root == "" {
		return nil, ErrNotStarted
	}
	if o.deps.Watcher == nil {
		return nil, serrors.InternalError("no watcher configured", nil)
	}
	if err := o.deps.Watcher.Start(ctx, root); err != nil {
		return nil, err
	}
	return o.deps.Watcher.Events(), nil
}

// Progress reports the upload fraction while a pass runs and the remote
// indexing progress once it is done.
func (o *Orchestrator) Progress(ctx context.Context) (Progress, error) {
	o.mu.Lock()
	state, sess := o.state, o.sess
	o.mu.Unlock()

	gated := !o.deps.Gate.UploadsAllowed()
	switch {
	case state == Done && gated:
		return Progress{State: Complete, Fraction: 1}, nil
	case sess == nil || state == Idle || state == Cancelled:
		return Progress{State: NotStarted}, nil
	case state.Active():
		return Progress{State: InProgress, Fraction: sess.Progress()}, nil
	}
	ip, err := o.deps.Store.IndexProgress(ctx, sess.RepoID)
	if err != nil {
		return Progress{State: Indexing}, err
	}
	if ip.Done {
		return Progress{State: Complete, Fraction: 1}, nil
	}
	return Progress{State: Indexing, Fraction: ip.Fraction}, nil
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Root returns the bound root, or "" before Start.
func (o *Orchestrator) Root() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.root
}

// Session returns the current session, or nil before Start resolved a repository.
func (o *Orchestrator) Session() *session.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sess
}

// LastReport returns the transfer report of the last completed pass.
func (o *Orchestrator) LastReport() *upload.Report {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastReport
}

// LastSync returns when the last pass reached Done.
func (o *Orchestrator) LastSync() time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastSync
}

// beginPass clears a Cancel left over from an earlier pass.
func (o *Orchestrator) beginPass() {
	o.mu.Lock()
	o.cancelled = false
	o.mu.Unlock()
}

// ensureRepo returns the repository bound to root, registering a new one
// when none is remembered or the remote no longer knows it.
func (o *Orchestrator) ensureRepo(ctx context.Context, root string) (prefs.RepoSettings, error) {
	settings, err := prefs.LoadRepoSettings(o.deps.Prefs, root)
	if err != nil {
		return prefs.RepoSettings{}, err
	}

	if settings.RepoID != "" {
		status, err := o.deps.Store.Status(ctx, settings.RepoID)
		if status != remote.StatusNotFound && status != remote.StatusError {
			return settings, nil
		}
		if ctx.Err() != nil {
			return prefs.RepoSettings{}, ctx.Err()
		}
		attrs := []any{slog.String("root", root), slog.String("repo_id", settings.RepoID), slog.String("status", string(status))}
		slog.Info("remote repository unavailable, registering a new one", append(attrs, serrors.LogAttrs(err)...)...)
	}

	id, err := o.deps.Store.Register(ctx)
	if err != nil {
		return prefs.RepoSettings{}, err
	}
	settings = prefs.RepoSettings{RepoID: id}
	if err := prefs.SaveRepoSettings(o.deps.Prefs, root, settings); err != nil {
		return prefs.RepoSettings{}, err
	}
	slog.Info("registered repository", slog.String("root", root), slog.String("repo_id", id))
	return settings, nil
}

// sync runs walk, then either the bulk upload of a fresh repository or
// detect and transfer.
func (o *Orchestrator) sync(ctx context.Context, fresh bool) error {
	sess := o.Session()
	start := time.Now()

	o.setState(Walking)
	ignored, err := o.deps.Resolver.ListIgnored(ctx, sess.Root)
	if err != nil {
		slog.Warn("ignore set unavailable, continuing without it",
			append([]any{slog.String("root", sess.Root)}, serrors.LogAttrs(err)...)...)
	}
	files, err := o.deps.Scanner.Walk(ctx, sess.Root, ignored)
	if err != nil {
		return o.fail(ctx, err)
	}
	if o.stopRequested(ctx) {
		return o.abandon()
	}

	var report *upload.Report
	if fresh {
		o.setState(Uploading)
		load := func(path string) (detect.Candidate, error) {
			return o.deps.Detector.Load(sess.Root, path, sess.RepoID)
		}
		report = o.uploader().UploadAll(ctx, sess, files, load, sess.RepoID)
		if o.stopRequested(ctx) {
			return o.abandon()
		}
		if err := o.deps.Store.FinishUpload(ctx, sess.RepoID); err != nil {
			return o.fail(ctx, fmt.Errorf("trigger indexing: %w", err))
		}
		if err := prefs.SaveRepoSettings(o.deps.Prefs, sess.Root, prefs.RepoSettings{RepoID: sess.RepoID, Uploaded: true}); err != nil {
			return o.fail(ctx, err)
		}
	} else {
		o.setState(Detecting)
		changes, err := o.deps.Detector.Detect(ctx, sess.Root, files, sess.RepoID)
		if err != nil {
			return o.fail(ctx, err)
		}
		if o.stopRequested(ctx) {
			return o.abandon()
		}

		o.setState(Uploading)
		report = o.uploader().Transfer(ctx, sess, changes, sess.RepoID)
		if o.stopRequested(ctx) {
			return o.abandon()
		}
	}

	o.mu.Lock()
	o.lastReport = report
	o.lastSync = time.Now()
	o.mu.Unlock()
	o.setState(Done)

	slog.Info("sync complete",
		slog.String("root", sess.Root),
		slog.Bool("initial", fresh),
		slog.Int("files", len(files)),
		slog.Int("transferred", report.Transferred()),
		slog.Int("failed", len(report.Failed())),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

// uploader stops dispatching transfers once Cancel is called.
func (o *Orchestrator) uploader() *upload.Pipeline {
	return o.deps.Uploader.WithStop(o.cancelRequested)
}

func (o *Orchestrator) cancelRequested() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cancelled
}

func (o *Orchestrator) stopRequested(ctx context.Context) bool {
	return o.cancelRequested() || ctx.Err() != nil
}

func (o *Orchestrator) abandon() error {
	o.setState(Cancelled)
	slog.Info("sync cancelled", slog.String("root", o.Root()))
	return nil
}

// fail ends the pass. Errors caused by cancellation end it Cancelled
// instead of being returned.
func (o *Orchestrator) fail(ctx context.Context, err error) error {
	if o.stopRequested(ctx) {
		return o.abandon()
	}
	o.setState(Idle)
	return err
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	prev := o.state
	o.state = s
	root := o.root
	o.mu.Unlock()

	if prev != s {
		slog.Debug("sync state",
			slog.String("root", root),
			slog.String("from", prev.String()),
			slog.String("to", s.String()))
	}
}
