// Package remotetest provides an in-memory remote content store served over
// HTTP, for tests that exercise the real client.
package remotetest

import (
	"crypto/md5" //nolint:gosec
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// RepoPathCookie is the cookie every client request carries.
const RepoPathCookie = "repo_path"

// Server is a fake remote store. It fingerprints files with MD5 the way
// the real store does.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	nextID   int
	repos    map[string]*repo
	progress string
	requests int
	failPath string
}

type repo struct {
	files    map[string]string
	adds     []string
	updates  []string
	finishes int
	roots    map[string]struct{}
}

// Snapshot is a copy of one repository's state.
type Snapshot struct {
	Files    map[string]string
	Adds     []string
	Updates  []string
	Finishes int
	// Roots are the repo_path cookie values seen for the repository.
	Roots []string
}

// New starts a server that is closed when t finishes.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{repos: make(map[string]*repo), progress: "done"}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/{id}/status", s.status)
	mux.HandleFunc("POST /upload/repos/private", s.register)
	mux.HandleFunc("POST /upload/repos/private/uuids/{id}", s.fingerprints)
	mux.HandleFunc("POST /upload/repos/private/add_file/{id}", s.transfer(false))
	mux.HandleFunc("POST /upload/repos/private/update_file/{id}", s.transfer(true))
	mux.HandleFunc("POST /upload/repos/private/finish_upload/{id}", s.finish)
	mux.HandleFunc("GET /upload/repos/private/index_progress/{id}", s.indexProgress)

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests++
		fail := s.failPath != "" && s.failPath == r.URL.Path
		s.mu.Unlock()
		if fail {
			http.Error(w, "injected failure", http.StatusInternalServerError)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

// RepoPath returns the repo_path cookie of r verbatim. The client writes
// the root unescaped, so net/http's cookie parser would reject roots with
// non-ASCII bytes or backslashes.
func RepoPath(r *http.Request) (string, bool) {
	prefix := RepoPathCookie + "="
	for _, line := range r.Header.Values("Cookie") {
		for _, part := range strings.Split(line, "; ") {
			if v, ok := strings.CutPrefix(strings.TrimSpace(part), prefix); ok {
				return v, true
			}
		}
	}
	return "", false
}

// Fingerprint is the remote-side fingerprint of a file.
func Fingerprint(relPath, contents, repoID string) string {
	h := md5.New() //nolint:gosec
	h.Write([]byte(relPath))
	h.Write([]byte(contents))
	h.Write([]byte(repoID))
	return hex.EncodeToString(h.Sum(nil))
}

// Requests returns the number of requests served.
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// SetProgress sets the index_progress answer: "done" or a fraction.
func (s *Server) SetProgress(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = p
}

// FailPath makes requests to path answer 500. An empty path clears it.
func (s *Server) FailPath(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPath = path
}

// Forget drops a repository, as if the remote had expired it.
func (s *Server) Forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.repos, id)
}

// RepoIDs returns the registered repository ids in order.
func (s *Server) RepoIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.repos))
	for id := range s.repos {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Repo returns a copy of a repository's state with Adds and Updates
// sorted. ok is false for an unknown id.
func (s *Server) Repo(id string) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.repos[id]
	if !ok {
		return Snapshot{}, false
	}
	snap := Snapshot{
		Files:    make(map[string]string, len(r.files)),
		Adds:     append([]string(nil), r.adds...),
		Updates:  append([]string(nil), r.updates...),
		Finishes: r.finishes,
	}
	for k, v := range r.files {
		snap.Files[k] = v
	}
	for root := range r.roots {
		snap.Roots = append(snap.Roots, root)
	}
	sort.Strings(snap.Adds)
	sort.Strings(snap.Updates)
	sort.Strings(snap.Roots)
	return snap, true
}

// lookup returns the repository for the request's {id}, recording its
// cookie. It writes 400 and returns nil for an unknown id. s.mu is held.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) *repo {
	rp, ok := s.repos[r.PathValue("id")]
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return nil
	}
	if root, ok := RepoPath(r); ok {
		rp.roots[root] = struct{}{}
	}
	return rp
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	rp := s.lookup(w, r)
	s.mu.Unlock()
	if rp == nil {
		return
	}
	writeJSON(w, map[string]string{"status": "uploaded"})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.nextID++
	id := "repo-" + strconv.Itoa(s.nextID)
	s.repos[id] = &repo{files: make(map[string]string), roots: make(map[string]struct{})}
	s.mu.Unlock()
	writeJSON(w, map[string]string{"message": "created", "id": id})
}

func (s *Server) fingerprints(w http.ResponseWriter, r *http.Request) {
	var paths []string
	if err := json.NewDecoder(r.Body).Decode(&paths); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	rp := s.lookup(w, r)
	if rp == nil {
		s.mu.Unlock()
		return
	}
	out := make([]*string, len(paths))
	for i, p := range paths {
		if c, ok := rp.files[p]; ok {
			fp := Fingerprint(p, c, r.PathValue("id"))
			out[i] = &fp
		}
	}
	s.mu.Unlock()
	writeJSON(w, out)
}

func (s *Server) transfer(update bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			File     string `json:"file"`
			Contents string `json:"contents"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		rp := s.lookup(w, r)
		if rp == nil {
			return
		}
		rp.files[body.File] = body.Contents
		if update {
			rp.updates = append(rp.updates, body.File)
		} else {
			rp.adds = append(rp.adds, body.File)
		}
	}
}

func (s *Server) finish(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rp := s.lookup(w, r); rp != nil {
		rp.finishes++
	}
}

func (s *Server) indexProgress(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	rp := s.lookup(w, r)
	progress := s.progress
	s.mu.Unlock()
	if rp == nil {
		return
	}
	writeJSON(w, map[string]string{"progress": progress})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
