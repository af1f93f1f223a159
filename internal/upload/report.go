package upload

import (
	"sync"

	"go.uber.org/multierr"
)

// Kind is the transfer a file needed.
type Kind string

const (
	KindAdd    Kind = "add"
	KindUpdate Kind = "update"
	// KindGone marks a file that vanished before it could be read for upload.
	KindGone Kind = "gone"
)

// Result is the outcome of one file transfer.
type Result struct {
	RelPath string
	Kind    Kind
	Err     error
}

// Report collects per-file results. It is safe for concurrent use.
type Report struct {
	mu      sync.Mutex
	results []Result
}

func (r *Report) add(res Result) {
	r.mu.Lock()
	r.results = append(r.results, res)
	r.mu.Unlock()
}

// Results returns a copy of every result in completion order.
func (r *Report) Results() []Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Result(nil), r.results...)
}

// Transferred returns the number of files that landed on the remote.
func (r *Report) Transferred() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, res := range r.results {
		if res.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the results that carry an error.
func (r *Report) Failed() []Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Result
	for _, res := range r.results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// Gone returns the number of files that disappeared before upload.
func (r *Report) Gone() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, res := range r.results {
		if res.Kind == KindGone {
			n++
		}
	}
	return n
}

// Err combines every failure, or returns nil.
func (r *Report) Err() error {
	var err error
	for _, res := range r.Failed() {
		err = multierr.Append(err, res.Err)
	}
	return err
}
