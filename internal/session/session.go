// Package session holds the bookkeeping for one synchronization pass:
// which root is being synced to which remote repository, and how far the
// upload has got.
package session

import (
	"sync/atomic"
	"time"
)

// Session is the record of one sync pass. Counters are updated by many
// concurrent transfers and are safe for concurrent use; Root and RepoID
// never change after New.
type Session struct {
	// Root is the absolute repository root being synced.
	Root string

	// RepoID is the remote repository identifier.
	RepoID string

	// StartedAt is when the pass began.
	StartedAt time.Time

	total    atomic.Int64
	uploaded atomic.Int64
	finished atomic.Bool
}

// New creates a session for root bound to the remote repository repoID.
func New(root, repoID string) *Session {
	return &Session{
		Root:      root,
		RepoID:    repoID,
		StartedAt: time.Now(),
	}
}

// Begin starts a new upload of total files, clearing previous progress.
func (s *Session) Begin(total int) {
	s.finished.Store(false)
	s.uploaded.Store(0)
	s.total.Store(int64(total))
}

// MarkUploaded records one completed transfer. The count never exceeds
// the total; extra calls are ignored.
func (s *Session) MarkUploaded() {
	for {
		cur := s.uploaded.Load()
		if cur >= s.total.Load() {
			return
		}
		if s.uploaded.CompareAndSwap(cur, cur+1) {
			return
		}
	}
}

// MarkFinished declares every transfer of the current upload resolved.
func (s *Session) MarkFinished() {
	s.finished.Store(true)
}

// Total returns the number of files in the current upload.
func (s *Session) Total() int {
	return int(s.total.Load())
}

// Uploaded returns the number of completed transfers.
func (s *Session) Uploaded() int {
	return int(s.uploaded.Load())
}

// Finished reports whether the current upload has fully resolved.
func (s *Session) Finished() bool {
	return s.finished.Load()
}

// Progress returns uploaded/(total+1), or 0 before anything was submitted.
// The +1 keeps the value below 1 until the caller observes Finished.
func (s *Session) Progress() float64 {
	total := s.total.Load()
	if total == 0 {
		return 0
	}
	return float64(s.uploaded.Load()) / float64(total+1)
}

// Snapshot is a point-in-time copy of a session's progress.
type Snapshot struct {
	Root     string    `json:"root"`
	RepoID   string    `json:"repo_id"`
	Total    int       `json:"total"`
	Uploaded int       `json:"uploaded"`
	Finished bool      `json:"finished"`
	Progress float64   `json:"progress"`
	Started  time.Time `json:"started_at"`
}

// Snapshot copies the current counters.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		Root:     s.Root,
		RepoID:   s.RepoID,
		Total:    s.Total(),
		Uploaded: s.Uploaded(),
		Finished: s.Finished(),
		Progress: s.Progress(),
		Started:  s.StartedAt,
	}
}
