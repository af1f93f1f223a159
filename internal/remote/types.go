// Package remote is the client side of the remote content store's HTTP
// contract: repository registration and status, per-path fingerprint
// lookup, file add/update, and the re-index trigger.
package remote

import (
	"context"
	"time"
)

// Status is the sync status the remote reports for a repository.
// Besides StatusNotFound and StatusError, the value is whatever the store
// returns (for example "uploaded" or "indexing").
type Status string

const (
	// StatusNotFound means the remote has no such repository.
	StatusNotFound Status = "notFound"
	// StatusError means the status could not be determined.
	StatusError Status = "error"
)

// File is one upload payload.
type File struct {
	// Path is the root-relative path, "./"-prefixed.
	Path     string `json:"file"`
	Contents string `json:"contents"`
}

// IndexProgress is the remote indexing progress for a repository.
type IndexProgress struct {
	Done     bool
	Fraction float64
}

// Store is the remote content store consumed by the sync core.
// Every call is scoped to the repository root the store was bound to.
type Store interface {
	// Status returns the repository's sync status. Transport failures and
	// unexpected responses yield StatusError together with the cause.
	Status(ctx context.Context, repoID string) (Status, error)

	// Register creates a new remote repository and returns its identifier.
	Register(ctx context.Context) (string, error)

	// RemoteFingerprints returns, per path and in the same order, the
	// fingerprint on record, or "" when the remote has none.
	RemoteFingerprints(ctx context.Context, repoID string, paths []string) ([]string, error)

	// AddFile uploads a file the remote has never seen.
	AddFile(ctx context.Context, repoID string, f File) error

	// UpdateFile uploads new contents for a known file.
	UpdateFile(ctx context.Context, repoID string, f File) error

	// FinishUpload asks the remote to (re)index the repository.
	FinishUpload(ctx context.Context, repoID string) error

	// IndexProgress reports how far remote indexing has got.
	IndexProgress(ctx context.Context, repoID string) (IndexProgress, error)
}

// Options configures a Client.
type Options struct {
	// RequestTimeout bounds each request (0 = no per-request timeout).
	RequestTimeout time.Duration

	// BreakerFailures is how many consecutive transfer failures make
	// further transfers fail fast (0 = 10).
	BreakerFailures int

	// BreakerReset is how long the breaker stays open before probing again (0 = 30s).
	BreakerReset time.Duration

	// PoolSize sizes the HTTP connection pool (0 = 20).
	PoolSize int
}

// DefaultOptions returns the default client options.
func DefaultOptions() Options {
	return Options{
		RequestTimeout:  2 * time.Minute,
		BreakerFailures: 10,
		BreakerReset:    30 * time.Second,
		PoolSize:        20,
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	d := DefaultOptions()
	if o.BreakerFailures <= 0 {
		o.BreakerFailures = d.BreakerFailures
	}
	if o.BreakerReset <= 0 {
		o.BreakerReset = d.BreakerReset
	}
	if o.PoolSize <= 0 {
		o.PoolSize = d.PoolSize
	}
	return o
}

type statusResponse struct {
	Status string `json:"status"`
}

type registerResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

type progressResponse struct {
	Progress string `json:"progress"`
}
