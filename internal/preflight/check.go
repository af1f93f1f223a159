package preflight

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	serrors "github.com/Aman-CERP/codesync/internal/errors"
	"github.com/Aman-CERP/codesync/internal/output"
	"github.com/Aman-CERP/codesync/internal/remote"
)

// CheckStatus represents the result of a preflight check.
type CheckStatus int

const (
	// StatusPass indicates the check passed successfully.
	StatusPass CheckStatus = iota
	// StatusWarn indicates a non-critical warning.
	StatusWarn
	// StatusFail indicates the check failed.
	StatusFail
)

// String returns the string representation of a CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the status by name in JSON output.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CheckResult holds the result of a single preflight check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Prober is the part of the remote store used to test reachability.
type Prober interface {
	Status(ctx context.Context, repoID string) (remote.Status, error)
}

// probeRepoID is never a registered repository; the remote answers it
// with "not found", which is enough to prove it is reachable.
const probeRepoID = "codesync-preflight"

// Checker performs preflight validation checks.
type Checker struct {
	dataDir    string
	vcsBackend string
	offline    bool
	prober     Prober
	lookPath   func(string) (string, error)
}

// Option configures a Checker.
type Option func(*Checker)

// WithDataDir sets the directory checked for space and write access.
func WithDataDir(dir string) Option {
	return func(c *Checker) {
		c.dataDir = dir
	}
}

// WithVCSBackend sets the configured version control backend name.
func WithVCSBackend(backend string) Option {
	return func(c *Checker) {
		c.vcsBackend = backend
	}
}

// WithOffline skips the remote check.
func WithOffline(offline bool) Option {
	return func(c *Checker) {
		c.offline = offline
	}
}

// WithProber sets the remote used for the reachability check.
func WithProber(p Prober) Option {
	return func(c *Checker) {
		c.prober = p
	}
}

// New creates a new Checker with the given options.
func New(opts ...Option) *Checker {
	c := &Checker{
		dataDir:  os.TempDir(),
		lookPath: exec.LookPath,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs all preflight checks and returns the results.
func (c *Checker) RunAll(ctx context.Context) []CheckResult {
	return []CheckResult{
		c.CheckDiskSpace(c.dataDir),
		c.CheckWritePermissions(c.dataDir),
		c.CheckFileDescriptors(),
		c.CheckVCS(),
		c.CheckRemote(ctx),
	}
}

// HasCriticalFailures returns true if any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus returns a summary status string for the results.
func (c *Checker) SummaryStatus(results []CheckResult) string {
	hasWarnings := false
	hasCriticalFailure := false

	for _, r := range results {
		if r.IsCritical() {
			hasCriticalFailure = true
		}
		if r.Status == StatusWarn || (r.Status == StatusFail && !r.Required) {
			hasWarnings = true
		}
	}

	if hasCriticalFailure {
		return "failed"
	}
	if hasWarnings {
		return "ready_with_warnings"
	}
	return "ready"
}

// PrintResults prints check results with out.
func (c *Checker) PrintResults(out *output.Writer, results []CheckResult, verbose bool) {
	out.Header("codesync system check")

	for _, r := range results {
		line := fmt.Sprintf("%s: %s", r.Name, r.Message)
		switch {
		case r.Status == StatusPass:
			out.Success(line)
		case r.IsCritical():
			out.Error(line)
		default:
			out.Warning(line)
		}
		if verbose && r.Details != "" {
			out.Statusf("", "   %s", r.Details)
		}
	}

	out.Newline()
	out.Field("Status", c.SummaryStatus(results))
}

// CheckWritePermissions checks that dir exists, or can be created, and is
// writable.
func (c *Checker) CheckWritePermissions(dir string) CheckResult {
	result := CheckResult{
		Name:     "write_permissions",
		Required: true,
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}
	f, err := os.CreateTemp(dir, ".codesync-preflight-*")
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(f.Name())

	result.Status = StatusPass
	result.Message = "OK"
	result.Details = filepath.Clean(dir)
	return result
}

// CheckVCS checks that the configured version control backend can run.
// Only the exec backend depends on anything outside the binary.
func (c *Checker) CheckVCS() CheckResult {
	result := CheckResult{
		Name:   "vcs",
		Status: StatusPass,
	}

	switch c.vcsBackend {
	case "none":
		result.Message = "disabled"
	case "gogit":
		result.Message = "built-in (gogit)"
	default:
		path, err := c.lookPath("git")
		if err != nil {
			result.Status = StatusWarn
			result.Message = "git not found on PATH"
			result.Details = "Ignored files will still be filtered by path patterns; set vcs.backend to gogit to avoid the git binary"
			return result
		}
		result.Message = path
	}
	return result
}

// CheckRemote checks that the remote store answers requests.
func (c *Checker) CheckRemote(ctx context.Context) CheckResult {
	result := CheckResult{
		Name:     "remote",
		Required: true,
	}

	if c.offline || c.prober == nil {
		result.Status = StatusWarn
		result.Message = "skipped (offline)"
		return result
	}

	_, err := c.prober.Status(ctx, probeRepoID)
	switch {
	case err == nil:
		result.Status = StatusPass
		result.Message = "reachable"
	case serrors.GetCode(err) == serrors.ErrCodeRemoteStatus:
		// An error status still proves the remote is there.
		result.Status = StatusWarn
		result.Message = "reachable, but returned an error"
		result.Details = err.Error()
	default:
		result.Status = StatusFail
		result.Message = "unreachable"
		result.Details = err.Error()
	}
	return result
}
