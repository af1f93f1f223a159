// Package detect decides which eligible files differ from the remote copy.
//
// Every file is read and fingerprinted locally, then the remote's
// fingerprints are fetched in fixed-size batches. A file is new when the
// remote has nothing for its path, changed when the fingerprints differ,
// and unchanged otherwise.
package detect

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	serrors "github.com/Aman-CERP/codesync/internal/errors"
	"github.com/Aman-CERP/codesync/internal/remote"
)

// Defaults.
const (
	DefaultBatchSize   = 100
	DefaultConcurrency = 8
)

// Candidate is a file read for comparison or upload.
type Candidate struct {
	AbsPath string
	// RelPath is the slash-separated path relative to the root, "./"-prefixed.
	RelPath     string
	Content     []byte
	Fingerprint string
}

// SkipReason says why a file was left out of a detection pass.
type SkipReason string

const (
	// SkipRead means the file could not be read.
	SkipRead SkipReason = "read"
	// SkipRemote means the remote fingerprint lookup for its batch failed.
	SkipRemote SkipReason = "remote"
)

// Skipped is a file that was neither classified nor uploaded this pass.
type Skipped struct {
	AbsPath string
	Reason  SkipReason
	Err     error
}

// Changes partitions the input of one detection pass. Each input file is
// in exactly one list, and every list keeps input order.
type Changes struct {
	New       []Candidate
	Changed   []Candidate
	Unchanged []Candidate // Content is nil
	Skipped   []Skipped
}

// Len returns the number of files classified, skipped ones included.
func (c *Changes) Len() int {
	return len(c.New) + len(c.Changed) + len(c.Unchanged) + len(c.Skipped)
}

// Pending returns the number of files that need a transfer.
func (c *Changes) Pending() int {
	return len(c.New) + len(c.Changed)
}

// Options configures a Detector.
type Options struct {
	// BatchSize is the number of paths per fingerprint lookup (0 = 100).
	BatchSize int

	// Concurrency is the number of batches in flight (0 = 8).
	Concurrency int

	// Fingerprinter defaults to MD5.
	Fingerprinter Fingerprinter
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.Fingerprinter == nil {
		o.Fingerprinter = MD5{}
	}
	return o
}

// Detector classifies files against the remote store.
type Detector struct {
	fs    afero.Fs
	store remote.Store
	opts  Options
}

// New creates a Detector.
func New(fsys afero.Fs, store remote.Store, opts Options) *Detector {
	return &Detector{fs: fsys, store: store, opts: opts.WithDefaults()}
}

// Fingerprinter returns the scheme in use.
func (d *Detector) Fingerprinter() Fingerprinter {
	return d.opts.Fingerprinter
}

// verdict is the per-file outcome, indexed like the input.
type verdict struct {
	cand   Candidate
	kind   int
	reason SkipReason
	err    error
}

const (
	kindSkipped = iota
	kindNew
	kindChanged
	kindUnchanged
)

// Detect reads, fingerprints and classifies files (absolute paths under root).
// Read and lookup failures are reported in Changes.Skipped; the returned
// error is only ever a context error.
func (d *Detector) Detect(ctx context.Context, root string, files []string, repoID string) (*Changes, error) {
	start := time.Now()
	verdicts := make([]verdict, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Concurrency)

	for lo := 0; lo < len(files); lo += d.opts.BatchSize {
		hi := min(lo+d.opts.BatchSize, len(files))
		g.Go(func() error {
			d.detectBatch(gctx, root, files[lo:hi], repoID, verdicts[lo:hi])
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	changes := &Changes{}
	for i, v := range verdicts {
		switch v.kind {
		case kindNew:
			changes.New = append(changes.New, v.cand)
		case kindChanged:
			changes.Changed = append(changes.Changed, v.cand)
		case kindUnchanged:
			v.cand.Content = nil
			changes.Unchanged = append(changes.Unchanged, v.cand)
		default:
			changes.Skipped = append(changes.Skipped, Skipped{AbsPath: files[i], Reason: v.reason, Err: v.err})
		}
	}

	slog.Debug("detection complete",
		slog.String("root", root),
		slog.Int("files", len(files)),
		slog.Int("new", len(changes.New)),
		slog.Int("changed", len(changes.Changed)),
		slog.Int("unchanged", len(changes.Unchanged)),
		slog.Int("skipped", len(changes.Skipped)),
		slog.Duration("elapsed", time.Since(start)))

	return changes, nil
}

// detectBatch fills out (same length as batch) for one lookup batch.
func (d *Detector) detectBatch(ctx context.Context, root string, batch []string, repoID string, out []verdict) {
	var (
		readable []int
		rels     []string
	)
	for i, path := range batch {
		if ctx.Err() != nil {
			return
		}
		cand, err := d.Load(root, path, repoID)
		if err != nil {
			out[i] = verdict{kind: kindSkipped, reason: SkipRead, err: err}
			slog.Debug("skipping unreadable file", append([]any{slog.String("path", path)}, serrors.LogAttrs(err)...)...)
			continue
		}
		out[i] = verdict{cand: cand}
		readable = append(readable, i)
		rels = append(rels, cand.RelPath)
	}
	if len(readable) == 0 {
		return
	}

	remoteFPs, err := d.store.RemoteFingerprints(ctx, repoID, rels)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Warn("fingerprint lookup failed, batch skipped",
			append([]any{slog.Int("files", len(readable))}, serrors.LogAttrs(err)...)...)
		for _, i := range readable {
			out[i] = verdict{kind: kindSkipped, reason: SkipRemote, err: err}
		}
		return
	}

	for j, i := range readable {
		switch fp := remoteFPs[j]; {
		case fp == "":
			out[i].kind = kindNew
		case fp != out[i].cand.Fingerprint:
			out[i].kind = kindChanged
		default:
			out[i].kind = kindUnchanged
		}
	}
}

// Load reads one file under root and fingerprints it.
// A file that no longer exists fails with ErrCodeFileGone.
func (d *Detector) Load(root, path, repoID string) (Candidate, error) {
	rel, err := RelPath(root, path)
	if err != nil {
		return Candidate{}, err
	}

	raw, err := afero.ReadFile(d.fs, path)
	if err != nil {
		return Candidate{}, readError(path, err)
	}
	content := WireContent(raw)

	return Candidate{
		AbsPath:     path,
		RelPath:     rel,
		Content:     content,
		Fingerprint: d.opts.Fingerprinter.Fingerprint(rel, content, repoID),
	}, nil
}

// WireContent returns content as the remote store receives it: contents
// travel as a JSON string, where each byte that is not part of valid UTF-8
// becomes U+FFFD. Fingerprints are taken over these bytes.
func WireContent(content []byte) []byte {
	if utf8.Valid(content) {
		return content
	}
	out := make([]byte, 0, len(content)+8)
	for i := 0; i < len(content); {
		r, size := utf8.DecodeRune(content[i:])
		if r == utf8.RuneError && size == 1 {
			out = utf8.AppendRune(out, utf8.RuneError)
		} else {
			out = append(out, content[i:i+size]...)
		}
		i += size
	}
	return out
}

// RelPath returns path relative to root in the remote's form: slash
// separated and "./"-prefixed.
func RelPath(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", serrors.New(serrors.ErrCodeInvalidPath, "path is not under the root", err).
			WithDetail("path", path)
	}
	return "./" + filepath.ToSlash(rel), nil
}

func readError(path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return serrors.New(serrors.ErrCodeFileGone, "file no longer exists", err).WithDetail("path", path)
	case errors.Is(err, fs.ErrPermission):
		return serrors.New(serrors.ErrCodeFilePermission, "file is not readable", err).WithDetail("path", path)
	default:
		return serrors.IOError("failed to read file", err).WithDetail("path", path)
	}
}
