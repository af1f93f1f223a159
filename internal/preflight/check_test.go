package preflight

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serrors "github.com/Aman-CERP/codesync/internal/errors"
	"github.com/Aman-CERP/codesync/internal/output"
	"github.com/Aman-CERP/codesync/internal/remote"
)

type stubProber struct {
	status remote.Status
	err    error
	asked  []string
}

func (s *stubProber) Status(_ context.Context, repoID string) (remote.Status, error) {
	s.asked = append(s.asked, repoID)
	return s.status, s.err
}

func TestCheckStatus_String(t *testing.T) {
	tests := []struct {
		status CheckStatus
		want   string
	}{
		{StatusPass, "PASS"},
		{StatusWarn, "WARN"},
		{StatusFail, "FAIL"},
		{CheckStatus(9), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.String())
		})
	}
}

func TestCheckResult_JSONUsesStatusName(t *testing.T) {
	data, err := json.Marshal(CheckResult{Name: "vcs", Status: StatusWarn})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status":"WARN"`)
}

func TestCheckResult_IsCritical(t *testing.T) {
	tests := []struct {
		name     string
		result   CheckResult
		expected bool
	}{
		{"required pass is not critical", CheckResult{Status: StatusPass, Required: true}, false},
		{"required fail is critical", CheckResult{Status: StatusFail, Required: true}, true},
		{"optional fail is not critical", CheckResult{Status: StatusFail, Required: false}, false},
		{"required warn is not critical", CheckResult{Status: StatusWarn, Required: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.result.IsCritical())
		})
	}
}

func TestChecker_SummaryStatus(t *testing.T) {
	checker := New()

	tests := []struct {
		name     string
		results  []CheckResult
		expected string
	}{
		{"all pass", []CheckResult{{Status: StatusPass}, {Status: StatusPass}}, "ready"},
		{"with warnings", []CheckResult{{Status: StatusPass}, {Status: StatusWarn}}, "ready_with_warnings"},
		{"with critical failure", []CheckResult{{Status: StatusPass}, {Status: StatusFail, Required: true}}, "failed"},
		{"with optional failure", []CheckResult{{Status: StatusPass}, {Status: StatusFail}}, "ready_with_warnings"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, checker.SummaryStatus(tt.results))
			assert.Equal(t, tt.expected == "failed", checker.HasCriticalFailures(tt.results))
		})
	}
}

func TestChecker_CheckWritePermissions_CreatesMissingDir(t *testing.T) {
	// Given: a data directory that does not exist yet
	dir := filepath.Join(t.TempDir(), "data")

	// When: checking write permissions
	result := New().CheckWritePermissions(dir)

	// Then: it is created and passes without leaving files behind
	assert.Equal(t, StatusPass, result.Status)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestChecker_CheckWritePermissions_ReadOnly(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("Skipping read-only test when running as root")
	}

	readOnlyDir := filepath.Join(t.TempDir(), "readonly")
	require.NoError(t, os.Mkdir(readOnlyDir, 0o555))
	defer func() { _ = os.Chmod(readOnlyDir, 0o755) }()

	result := New().CheckWritePermissions(readOnlyDir)

	assert.Equal(t, StatusFail, result.Status)
	assert.True(t, result.IsCritical())
	assert.Contains(t, result.Message, "permission denied")
}

func TestChecker_CheckDiskSpace_MissingDirUsesParent(t *testing.T) {
	result := New().CheckDiskSpace(filepath.Join(t.TempDir(), "not", "yet"))

	assert.NotEqual(t, StatusFail, result.Status, result.Message)
	assert.Contains(t, result.Message, "free")
}

func TestChecker_CheckVCS(t *testing.T) {
	found := func(string) (string, error) { return "/usr/bin/git", nil }
	missing := func(string) (string, error) { return "", errors.New("not found") }

	tests := []struct {
		name     string
		backend  string
		lookPath func(string) (string, error)
		status   CheckStatus
		message  string
	}{
		{"none", "none", missing, StatusPass, "disabled"},
		{"gogit needs no binary", "gogit", missing, StatusPass, "built-in (gogit)"},
		{"exec with git", "exec", found, StatusPass, "/usr/bin/git"},
		{"exec without git", "exec", missing, StatusWarn, "git not found on PATH"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(WithVCSBackend(tt.backend))
			c.lookPath = tt.lookPath

			result := c.CheckVCS()

			assert.Equal(t, tt.status, result.Status)
			assert.Equal(t, tt.message, result.Message)
		})
	}
}

func TestChecker_CheckRemote(t *testing.T) {
	ctx := context.Background()

	t.Run("offline skips", func(t *testing.T) {
		p := &stubProber{}
		result := New(WithOffline(true), WithProber(p)).CheckRemote(ctx)
		assert.Equal(t, StatusWarn, result.Status)
		assert.Empty(t, p.asked)
	})

	t.Run("not found proves reachability", func(t *testing.T) {
		p := &stubProber{status: remote.StatusNotFound}
		result := New(WithProber(p)).CheckRemote(ctx)
		assert.Equal(t, StatusPass, result.Status)
		assert.Equal(t, []string{probeRepoID}, p.asked)
	})

	t.Run("error status warns", func(t *testing.T) {
		p := &stubProber{status: remote.StatusError, err: serrors.New(serrors.ErrCodeRemoteStatus, "remote status returned 500", nil)}
		result := New(WithProber(p)).CheckRemote(ctx)
		assert.Equal(t, StatusWarn, result.Status)
	})

	t.Run("transport failure fails", func(t *testing.T) {
		p := &stubProber{status: remote.StatusError, err: serrors.New(serrors.ErrCodeNetworkUnavailable, "connection refused", nil)}
		result := New(WithProber(p)).CheckRemote(ctx)
		assert.Equal(t, StatusFail, result.Status)
		assert.True(t, result.IsCritical())
		assert.Contains(t, result.Details, "connection refused")
	})
}

func TestChecker_RunAll_ReturnsAllChecks(t *testing.T) {
	checker := New(WithDataDir(t.TempDir()), WithVCSBackend("none"), WithOffline(true))

	results := checker.RunAll(context.Background())

	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"disk_space", "write_permissions", "file_descriptors", "vcs", "remote"}, names)
}

func TestChecker_PrintResults(t *testing.T) {
	results := []CheckResult{
		{Name: "disk_space", Status: StatusPass, Message: "50 GiB free"},
		{Name: "vcs", Status: StatusWarn, Message: "git not found on PATH", Details: "use gogit"},
		{Name: "remote", Status: StatusFail, Message: "unreachable", Required: true},
	}

	var buf bytes.Buffer
	New().PrintResults(output.NewPlain(&buf), results, true)

	out := buf.String()
	assert.Contains(t, out, "✓ disk_space: 50 GiB free")
	assert.Contains(t, out, "! vcs: git not found on PATH")
	assert.Contains(t, out, "use gogit")
	assert.Contains(t, out, "✗ remote: unreachable")
	assert.Contains(t, out, "failed")
}
