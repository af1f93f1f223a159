package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/codesync/internal/filter"
)

// isolateEnv clears every override Load reads and points the user config
// at an empty directory. It returns that directory.
func isolateEnv(t *testing.T) string {
	t.Helper()
	for _, name := range []string{
		"CODESYNC_ENDPOINT", "CODESYNC_MODE", "CODESYNC_OFFLINE",
		"CODESYNC_UPLOAD_CONCURRENCY", "CODESYNC_MAX_RESULTS",
		"CODESYNC_VCS_BACKEND", "CODESYNC_LOG_LEVEL",
	} {
		t.Setenv(name, "")
	}
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return dir
}

func writeUserConfig(t *testing.T, configHome, content string) {
	t.Helper()
	dir := filepath.Join(configHome, "codesync")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))
}

// =============================================================================
// Default Configuration Tests
// =============================================================================

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	cfg := NewConfig()
	require.NotNil(t, cfg)

	// Remote defaults
	assert.Equal(t, "http://localhost:8000", cfg.Remote.Endpoint)
	assert.Equal(t, ModeLocal, cfg.Remote.Mode)
	assert.False(t, cfg.Remote.Offline)
	assert.Equal(t, 2*time.Minute, cfg.Remote.RequestTimeout)
	assert.Equal(t, 10, cfg.Remote.BreakerFailures)

	// Paths defaults come from the filter package
	assert.Equal(t, filter.DefaultExtensions, cfg.Paths.Extensions)
	assert.Equal(t, filter.DefaultPrunedDirs, cfg.Paths.ExcludedDirs)
	assert.Equal(t, int64(filter.DefaultMaxFileSize), cfg.Paths.MaxFileSize)
	assert.Empty(t, cfg.Paths.IgnorePatterns)

	// Sync defaults
	assert.Equal(t, 1000, cfg.Sync.MaxResults)
	assert.Equal(t, runtime.NumCPU(), cfg.Sync.WalkWorkers)
	assert.Equal(t, 100, cfg.Sync.BatchSize)
	assert.Equal(t, 20, cfg.Sync.UploadConcurrency)
	assert.Equal(t, 2*time.Minute, cfg.Sync.Interval)
	assert.Equal(t, time.Hour, cfg.Sync.ReindexInterval)
	assert.Equal(t, "md5", cfg.Sync.Fingerprint)

	assert.Equal(t, "exec", cfg.VCS.Backend)
	assert.Equal(t, 5*time.Second, cfg.Watch.PollInterval)
	assert.Equal(t, "info", cfg.Server.LogLevel)

	require.NoError(t, cfg.Validate())
}

func TestNewConfig_DefaultListsAreCopies(t *testing.T) {
	cfg := NewConfig()
	cfg.Paths.Extensions[0] = "changed"

	assert.NotEqual(t, "changed", filter.DefaultExtensions[0])
}

func TestConfig_UploadsAllowed(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		offline bool
		want    bool
	}{
		{"local online", ModeLocal, false, true},
		{"local offline", ModeLocal, true, false},
		{"remote-backed directory", ModeRemote, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			cfg.Remote.Mode = tt.mode
			cfg.Remote.Offline = tt.offline
			assert.Equal(t, tt.want, cfg.UploadsAllowed())
		})
	}
}

func TestConfig_FilterOptions(t *testing.T) {
	cfg := NewConfig()
	cfg.Paths.IgnorePatterns = []string{`\.gen\.go$`}

	opts := cfg.FilterOptions()

	assert.Equal(t, cfg.Paths.Extensions, opts.Extensions)
	assert.Equal(t, []string{`\.gen\.go$`}, opts.IgnorePatterns)
	assert.Equal(t, cfg.Paths.ExcludedDirs, opts.PrunedDirs)
	assert.Equal(t, cfg.Paths.WatchExcludedDirs, opts.VCSDirs)
	assert.Equal(t, cfg.Paths.MaxFileSize, opts.MaxFileSize)
}

// =============================================================================
// Configuration File Loading Tests
// =============================================================================

func TestLoad_NoConfigFile_ReturnsDefaults(t *testing.T) {
	isolateEnv(t)

	cfg, err := Load(t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, NewConfig(), cfg)
}

func TestLoad_YamlFile_OverridesDefaults(t *testing.T) {
	// Given: a directory with .codesync.yaml
	isolateEnv(t)
	tmpDir := t.TempDir()
	configContent := `
version: 1
remote:
  endpoint: https://sync.example.com
  request_timeout: 30s
sync:
  batch_size: 50
  upload_concurrency: 4
  interval: 5m
  fingerprint: blake2b
vcs:
  backend: gogit
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ProjectConfigYAML), []byte(configContent), 0o644))

	// When: loading configuration
	cfg, err := Load(tmpDir)

	// Then: all overrides are applied and the rest keep their defaults
	require.NoError(t, err)
	assert.Equal(t, "https://sync.example.com", cfg.Remote.Endpoint)
	assert.Equal(t, 30*time.Second, cfg.Remote.RequestTimeout)
	assert.Equal(t, 50, cfg.Sync.BatchSize)
	assert.Equal(t, 4, cfg.Sync.UploadConcurrency)
	assert.Equal(t, 5*time.Minute, cfg.Sync.Interval)
	assert.Equal(t, "blake2b", cfg.Sync.Fingerprint)
	assert.Equal(t, "gogit", cfg.VCS.Backend)
	assert.Equal(t, time.Hour, cfg.Sync.ReindexInterval)
}

func TestLoad_YmlExtension_IsRecognized(t *testing.T) {
	isolateEnv(t)
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ProjectConfigYML), []byte("remote:\n  mode: remote\n"), 0o644))

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, ModeRemote, cfg.Remote.Mode)
	assert.False(t, cfg.UploadsAllowed())
}

func TestLoad_YamlPreferredOverYml(t *testing.T) {
	isolateEnv(t)
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ProjectConfigYAML), []byte("vcs:\n  backend: none\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ProjectConfigYML), []byte("vcs:\n  backend: gogit\n"), 0o644))

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, "none", cfg.VCS.Backend)
}

func TestLoad_InvalidYaml_ReturnsError(t *testing.T) {
	isolateEnv(t)
	tmpDir := t.TempDir()
	invalidContent := `
sync:
  batch_size: [invalid yaml syntax
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ProjectConfigYAML), []byte(invalidContent), 0o644))

	cfg, err := Load(tmpDir)

	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "parse")
}

func TestLoad_InvalidFieldType_ReturnsError(t *testing.T) {
	isolateEnv(t)
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ProjectConfigYAML), []byte("sync:\n  batch_size: \"not-a-number\"\n"), 0o644))

	cfg, err := Load(tmpDir)

	require.Error(t, err)
	assert.Nil(t, cfg)
}

// =============================================================================
// Project Root Detection Tests
// =============================================================================

func TestFindProjectRoot_GitDirectory_ReturnsGitRoot(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(tmpDir, ".git"), 0o755))
	subDir := filepath.Join(tmpDir, "src", "pkg")
	require.NoError(t, os.MkdirAll(subDir, 0o755))

	root, err := FindProjectRoot(subDir)

	require.NoError(t, err)
	assert.Equal(t, tmpDir, root)
}

func TestFindProjectRoot_ConfigFile_ReturnsConfigLocation(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ProjectConfigYAML), []byte("version: 1"), 0o644))
	subDir := filepath.Join(tmpDir, "lib")
	require.NoError(t, os.Mkdir(subDir, 0o755))

	root, err := FindProjectRoot(subDir)

	require.NoError(t, err)
	assert.Equal(t, tmpDir, root)
}

func TestFindProjectRoot_NoMarkers_ReturnsStartDir(t *testing.T) {
	tmpDir := t.TempDir()

	root, err := FindProjectRoot(tmpDir)

	require.NoError(t, err)
	// Either tmpDir itself or a marked ancestor of it.
	assert.Contains(t, tmpDir, root)
}

// =============================================================================
// Environment Variable Tests
// =============================================================================

func TestLoad_EnvVarOverrides(t *testing.T) {
	tests := []struct {
		name  string
		env   string
		value string
		check func(t *testing.T, cfg *Config)
	}{
		{"endpoint", "CODESYNC_ENDPOINT", "http://env:9000", func(t *testing.T, cfg *Config) {
			assert.Equal(t, "http://env:9000", cfg.Remote.Endpoint)
		}},
		{"mode is lowercased", "CODESYNC_MODE", "REMOTE", func(t *testing.T, cfg *Config) {
			assert.Equal(t, ModeRemote, cfg.Remote.Mode)
		}},
		{"offline true", "CODESYNC_OFFLINE", "true", func(t *testing.T, cfg *Config) {
			assert.True(t, cfg.Remote.Offline)
		}},
		{"offline 1", "CODESYNC_OFFLINE", "1", func(t *testing.T, cfg *Config) {
			assert.True(t, cfg.Remote.Offline)
		}},
		{"upload concurrency", "CODESYNC_UPLOAD_CONCURRENCY", "3", func(t *testing.T, cfg *Config) {
			assert.Equal(t, 3, cfg.Sync.UploadConcurrency)
		}},
		{"malformed number ignored", "CODESYNC_UPLOAD_CONCURRENCY", "many", func(t *testing.T, cfg *Config) {
			assert.Equal(t, 20, cfg.Sync.UploadConcurrency)
		}},
		{"max results", "CODESYNC_MAX_RESULTS", "10", func(t *testing.T, cfg *Config) {
			assert.Equal(t, 10, cfg.Sync.MaxResults)
		}},
		{"vcs backend", "CODESYNC_VCS_BACKEND", "NONE", func(t *testing.T, cfg *Config) {
			assert.Equal(t, "none", cfg.VCS.Backend)
		}},
		{"log level", "CODESYNC_LOG_LEVEL", "warn", func(t *testing.T, cfg *Config) {
			assert.Equal(t, "warn", cfg.Server.LogLevel)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)
			t.Setenv(tt.env, tt.value)

			cfg, err := Load(t.TempDir())

			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoad_EnvVarInvalidValue_FailsValidation(t *testing.T) {
	isolateEnv(t)
	t.Setenv("CODESYNC_VCS_BACKEND", "svn")

	_, err := Load(t.TempDir())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "vcs.backend")
}

// =============================================================================
// User/Global Configuration Tests
// =============================================================================

func TestGetUserConfigPath_DefaultsToHomeConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")

	path := GetUserConfigPath()

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "codesync", "config.yaml"), path)
}

func TestGetUserConfigPath_RespectsXDGConfigHome(t *testing.T) {
	customConfig := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", customConfig)

	assert.Equal(t, filepath.Join(customConfig, "codesync", "config.yaml"), GetUserConfigPath())
}

func TestUserConfigExists(t *testing.T) {
	configHome := isolateEnv(t)
	assert.False(t, UserConfigExists())

	writeUserConfig(t, configHome, "version: 1")
	assert.True(t, UserConfigExists())
}

func TestDataDir(t *testing.T) {
	custom := t.TempDir()
	t.Setenv("CODESYNC_HOME", custom)
	assert.Equal(t, custom, DataDir())

	t.Setenv("CODESYNC_HOME", "")
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".codesync"), DataDir())
}

func TestLoad_PrecedenceEnvOverProjectOverUser(t *testing.T) {
	// Given: all three config sources exist
	configHome := isolateEnv(t)
	projectDir := t.TempDir()
	writeUserConfig(t, configHome, `
remote:
  endpoint: http://user:1
  request_timeout: 10s
sync:
  batch_size: 10
`)
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, ProjectConfigYAML), []byte(`
remote:
  endpoint: http://project:2
sync:
  batch_size: 20
`), 0o644))
	t.Setenv("CODESYNC_ENDPOINT", "http://env:3")

	// When: loading configuration
	cfg, err := Load(projectDir)

	// Then: env beats project, project beats user, user beats defaults
	require.NoError(t, err)
	assert.Equal(t, "http://env:3", cfg.Remote.Endpoint)
	assert.Equal(t, 20, cfg.Sync.BatchSize)
	assert.Equal(t, 10*time.Second, cfg.Remote.RequestTimeout)
}

func TestLoad_InvalidUserConfig_ReturnsError(t *testing.T) {
	configHome := isolateEnv(t)
	writeUserConfig(t, configHome, "sync:\n  batch_size: [invalid yaml\n")

	cfg, err := Load(t.TempDir())

	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "user config")
}

func TestWriteYAML_LoadsBack(t *testing.T) {
	configHome := isolateEnv(t)
	cfg := NewConfig()
	cfg.Remote.Endpoint = "https://written.example.com"
	cfg.Sync.Interval = 90 * time.Second

	path := GetUserConfigPath()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, cfg.WriteYAML(path))
	assert.FileExists(t, filepath.Join(configHome, "codesync", "config.yaml"))

	loaded, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "https://written.example.com", loaded.Remote.Endpoint)
	assert.Equal(t, 90*time.Second, loaded.Sync.Interval)
}
