// Package upload pushes detected changes to the remote store through a
// bounded pool of transfer slots.
package upload

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/Aman-CERP/codesync/internal/detect"
	serrors "github.com/Aman-CERP/codesync/internal/errors"
	"github.com/Aman-CERP/codesync/internal/remote"
	"github.com/Aman-CERP/codesync/internal/session"
)

// DefaultConcurrency is the number of transfers in flight.
const DefaultConcurrency = 20

// Options configures a Pipeline.
type Options struct {
	// Concurrency is the size of the transfer slot pool (0 = 20).
	Concurrency int
}

// Loader reads a file for upload.
type Loader func(path string) (detect.Candidate, error)

// errStopped marks transfers never started because the pass was stopped.
var errStopped = errors.New("pass stopped")

// Pipeline transfers files to a remote store. All transfers started through
// one Pipeline, or through the copies ForStore and WithStop make of it,
// share its slot pool.
type Pipeline struct {
	store remote.Store
	slots *semaphore.Weighted
	size  int
	stop  func() bool
}

// New creates a Pipeline.
func New(store remote.Store, opts Options) *Pipeline {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	return &Pipeline{
		store: store,
		slots: semaphore.NewWeighted(int64(opts.Concurrency)),
		size:  opts.Concurrency,
	}
}

// ForStore returns a Pipeline that sends to store and draws from the same
// slots as p.
func (p *Pipeline) ForStore(store remote.Store) *Pipeline {
	q := *p
	q.store = store
	return &q
}

// WithStop returns a Pipeline that starts no further transfer once stop
// reports true. Transfers already running are left to complete.
func (p *Pipeline) WithStop(stop func() bool) *Pipeline {
	q := *p
	q.stop = stop
	return &q
}

// Concurrency returns the slot pool size.
func (p *Pipeline) Concurrency() int {
	return p.size
}

type job struct {
	kind Kind
	rel  string
	run  func(ctx context.Context) (Kind, error)
}

// Transfer uploads changes.New with AddFile and changes.Changed with
// UpdateFile. It returns once every transfer has resolved and the session
// is marked finished. Failures are reported, never returned.
func (p *Pipeline) Transfer(ctx context.Context, sess *session.Session, changes *detect.Changes, repoID string) *Report {
	jobs := make([]job, 0, changes.Pending())
	for _, c := range changes.New {
		jobs = append(jobs, p.fileJob(KindAdd, c, repoID))
	}
	for _, c := range changes.Changed {
		jobs = append(jobs, p.fileJob(KindUpdate, c, repoID))
	}
	return p.run(ctx, sess, jobs)
}

// UploadAll adds every file of a freshly registered repository without
// comparing fingerprints. Files are read only when their slot is acquired.
func (p *Pipeline) UploadAll(ctx context.Context, sess *session.Session, files []string, load Loader, repoID string) *Report {
	jobs := make([]job, 0, len(files))
	for _, path := range files {
		rel, err := detect.RelPath(sess.Root, path)
		if err != nil {
			rel = path
		}
		jobs = append(jobs, job{
			kind: KindAdd,
			rel:  rel,
			run: func(ctx context.Context) (Kind, error) {
				c, err := load(path)
				if err != nil {
					if serrors.GetCode(err) == serrors.ErrCodeFileGone {
						return KindGone, err
					}
					return KindAdd, err
				}
				return KindAdd, p.store.AddFile(ctx, repoID, remote.File{Path: c.RelPath, Contents: string(c.Content)})
			},
		})
	}
	return p.run(ctx, sess, jobs)
}

func (p *Pipeline) fileJob(kind Kind, c detect.Candidate, repoID string) job {
	f := remote.File{Path: c.RelPath, Contents: string(c.Content)}
	return job{
		kind: kind,
		rel:  c.RelPath,
		run: func(ctx context.Context) (Kind, error) {
			if kind == KindUpdate {
				return kind, p.store.UpdateFile(ctx, repoID, f)
			}
			return kind, p.store.AddFile(ctx, repoID, f)
		},
	}
}

// run executes jobs on the slot pool and joins them all.
func (p *Pipeline) run(ctx context.Context, sess *session.Session, jobs []job) *Report {
	start := time.Now()
	report := &Report{}
	sess.Begin(len(jobs))

	var wg sync.WaitGroup
	for i, j := range jobs {
		err := p.slots.Acquire(ctx, 1)
		if err == nil && p.stop != nil && p.stop() {
			p.slots.Release(1)
			err = errStopped
		}
		if err != nil {
			// Nothing further is started.
			for _, rest := range jobs[i:] {
				report.add(Result{RelPath: rest.rel, Kind: rest.kind, Err: cancelled(err)})
			}
			break
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer p.slots.Release(1)

			kind, err := j.run(ctx)
			if err == nil {
				sess.MarkUploaded()
			} else if ctx.Err() != nil {
				err = cancelled(ctx.Err())
			}
			report.add(Result{RelPath: j.rel, Kind: kind, Err: err})
		}()
	}
	wg.Wait()
	sess.MarkFinished()

	failed := report.Failed()
	logAttrs := []any{
		slog.String("root", sess.Root),
		slog.Int("files", len(jobs)),
		slog.Int("transferred", len(jobs)-len(failed)),
		slog.Int("failed", len(failed)),
		slog.Duration("elapsed", time.Since(start)),
	}
	if len(failed) > 0 {
		slog.Warn("upload finished with failures", logAttrs...)
		for _, f := range failed {
			slog.Debug("transfer failed", append([]any{slog.String("file", f.RelPath)}, serrors.LogAttrs(f.Err)...)...)
		}
	} else {
		slog.Debug("upload finished", logAttrs...)
	}

	return report
}

func cancelled(err error) error {
	return serrors.New(serrors.ErrCodeCancelled, "transfer cancelled", err)
}
