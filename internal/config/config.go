package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/codesync/internal/filter"
)

// Project config file names, checked in order.
const (
	ProjectConfigYAML = ".codesync.yaml"
	ProjectConfigYML  = ".codesync.yml"
)

// Remote modes.
const (
	// ModeLocal is a directory on a local disk; uploads are allowed.
	ModeLocal = "local"
	// ModeRemote is a directory opened over a remote file system; uploads are disabled.
	ModeRemote = "remote"
)

// Config represents the complete codesync configuration.
type Config struct {
	Version int          `yaml:"version" json:"version"`
	Remote  RemoteConfig `yaml:"remote" json:"remote"`
	Paths   PathsConfig  `yaml:"paths" json:"paths"`
	Sync    SyncConfig   `yaml:"sync" json:"sync"`
	VCS     VCSConfig    `yaml:"vcs" json:"vcs"`
	Watch   WatchConfig  `yaml:"watch" json:"watch"`
	Server  ServerConfig `yaml:"server" json:"server"`
}

// RemoteConfig configures the remote content store.
type RemoteConfig struct {
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	// Mode is "local" or "remote". Remote-backed directories never upload.
	Mode string `yaml:"mode" json:"mode"`
	// Offline disables every network call.
	Offline        bool          `yaml:"offline" json:"offline"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
	// BreakerFailures is how many consecutive transfer failures open the circuit.
	BreakerFailures int `yaml:"breaker_failures" json:"breaker_failures"`
}

// PathsConfig configures which paths are eligible for sync.
type PathsConfig struct {
	Extensions []string `yaml:"extensions" json:"extensions"`
	// IgnorePatterns are extra regular expressions, appended to the built-in set.
	IgnorePatterns    []string `yaml:"ignore_patterns" json:"ignore_patterns"`
	LockFiles         []string `yaml:"lock_files" json:"lock_files"`
	ExcludedDirs      []string `yaml:"excluded_dirs" json:"excluded_dirs"`
	WatchExcludedDirs []string `yaml:"watch_excluded_dirs" json:"watch_excluded_dirs"`
	MaxFileSize       int64    `yaml:"max_file_size" json:"max_file_size"`
}

// SyncConfig configures the walk, detect and upload stages.
type SyncConfig struct {
	MaxResults        int           `yaml:"max_results" json:"max_results"`
	WalkWorkers       int           `yaml:"walk_workers" json:"walk_workers"`
	BatchSize         int           `yaml:"batch_size" json:"batch_size"`
	DetectConcurrency int           `yaml:"detect_concurrency" json:"detect_concurrency"`
	UploadConcurrency int           `yaml:"upload_concurrency" json:"upload_concurrency"`
	Interval          time.Duration `yaml:"interval" json:"interval"`
	ReindexInterval   time.Duration `yaml:"reindex_interval" json:"reindex_interval"`
	// Fingerprint is "md5" (what the remote store computes) or "blake2b".
	Fingerprint string `yaml:"fingerprint" json:"fingerprint"`
}

// VCSConfig configures ignore-set resolution.
type VCSConfig struct {
	// Backend is "exec" (git CLI), "gogit" (in-process) or "none".
	Backend  string `yaml:"backend" json:"backend"`
	PageSize int    `yaml:"page_size" json:"page_size"`
}

// WatchConfig configures the watcher bridge.
type WatchConfig struct {
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`
	EventBuffer  int           `yaml:"event_buffer" json:"event_buffer"`
}

// ServerConfig configures the host process.
type ServerConfig struct {
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// NewConfig creates a new configuration with default values.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Remote: RemoteConfig{
			Endpoint:        "http://localhost:8000",
			Mode:            ModeLocal,
			RequestTimeout:  2 * time.Minute,
			BreakerFailures: 10,
		},
		Paths: PathsConfig{
			Extensions:        append([]string(nil), filter.DefaultExtensions...),
			LockFiles:         append([]string(nil), filter.DefaultLockFiles...),
			ExcludedDirs:      append([]string(nil), filter.DefaultPrunedDirs...),
			WatchExcludedDirs: append([]string(nil), filter.DefaultVCSDirs...),
			MaxFileSize:       filter.DefaultMaxFileSize,
		},
		Sync: SyncConfig{
			MaxResults:        1000,
			WalkWorkers:       runtime.NumCPU(),
			BatchSize:         100,
			DetectConcurrency: 8,
			UploadConcurrency: 20,
			Interval:          2 * time.Minute,
			ReindexInterval:   time.Hour,
			Fingerprint:       "md5",
		},
		VCS: VCSConfig{
			Backend:  "exec",
			PageSize: 10000,
		},
		Watch: WatchConfig{
			PollInterval: 5 * time.Second,
			EventBuffer:  1000,
		},
		Server: ServerConfig{
			LogLevel: "info",
		},
	}
}

// FilterOptions builds path filter options from the paths section.
func (c *Config) FilterOptions() filter.Options {
	return filter.Options{
		Extensions:     c.Paths.Extensions,
		IgnorePatterns: c.Paths.IgnorePatterns,
		LockFiles:      c.Paths.LockFiles,
		PrunedDirs:     c.Paths.ExcludedDirs,
		VCSDirs:        c.Paths.WatchExcludedDirs,
		MaxFileSize:    c.Paths.MaxFileSize,
	}
}

// UploadsAllowed reports whether configuration permits any network transfer.
func (c *Config) UploadsAllowed() bool {
	return !c.Remote.Offline && c.Remote.Mode != ModeRemote
}

// GetUserConfigPath returns the path to the user configuration file.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config/codesync/config.yaml.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "codesync", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "codesync", "config.yaml")
	}
	return filepath.Join(home, ".config", "codesync", "config.yaml")
}

// UserConfigExists checks if a user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// DataDir returns the directory holding preferences, locks and logs.
// CODESYNC_HOME overrides the default ~/.codesync.
func DataDir() string {
	if v := os.Getenv("CODESYNC_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".codesync")
	}
	return filepath.Join(home, ".codesync")
}

func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}

	var parsed Config
	if err := readYAML(configPath, &parsed); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}
	return &parsed, nil
}

// Load loads configuration with the following precedence (highest to lowest):
//  1. Environment variables (CODESYNC_*)
//  2. Project config (.codesync.yaml in dir)
//  3. User config (~/.config/codesync/config.yaml)
//  4. Defaults
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	userCfg, err := loadUserConfig()
	if err != nil {
		return nil, err
	}
	if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile merges the project config, preferring .yaml over .yml.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{ProjectConfigYAML, ProjectConfigYML} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		var parsed Config
		if err := readYAML(path, &parsed); err != nil {
			return err
		}
		c.mergeWith(&parsed)
		return nil
	}
	return nil
}

func readYAML(path string, into *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, into); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// mergeWith merges non-zero values from other into c.
// Ignore patterns accumulate; every other list replaces.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Remote.Endpoint != "" {
		c.Remote.Endpoint = other.Remote.Endpoint
	}
	if other.Remote.Mode != "" {
		c.Remote.Mode = other.Remote.Mode
	}
	if other.Remote.Offline {
		c.Remote.Offline = true
	}
	if other.Remote.RequestTimeout != 0 {
		c.Remote.RequestTimeout = other.Remote.RequestTimeout
	}
	if other.Remote.BreakerFailures != 0 {
		c.Remote.BreakerFailures = other.Remote.BreakerFailures
	}

	if len(other.Paths.Extensions) > 0 {
		c.Paths.Extensions = other.Paths.Extensions
	}
	if len(other.Paths.IgnorePatterns) > 0 {
		c.Paths.IgnorePatterns = append(c.Paths.IgnorePatterns, other.Paths.IgnorePatterns...)
	}
	if len(other.Paths.LockFiles) > 0 {
		c.Paths.LockFiles = other.Paths.LockFiles
	}
	if len(other.Paths.ExcludedDirs) > 0 {
		c.Paths.ExcludedDirs = other.Paths.ExcludedDirs
	}
	if len(other.Paths.WatchExcludedDirs) > 0 {
		c.Paths.WatchExcludedDirs = other.Paths.WatchExcludedDirs
	}
	if other.Paths.MaxFileSize != 0 {
		c.Paths.MaxFileSize = other.Paths.MaxFileSize
	}

	if other.Sync.MaxResults != 0 {
		c.Sync.MaxResults = other.Sync.MaxResults
	}
	if other.Sync.WalkWorkers != 0 {
		c.Sync.WalkWorkers = other.Sync.WalkWorkers
	}
	if other.Sync.BatchSize != 0 {
		c.Sync.BatchSize = other.Sync.BatchSize
	}
	if other.Sync.DetectConcurrency != 0 {
		c.Sync.DetectConcurrency = other.Sync.DetectConcurrency
	}
	if other.Sync.UploadConcurrency != 0 {
		c.Sync.UploadConcurrency = other.Sync.UploadConcurrency
	}
	if other.Sync.Interval != 0 {
		c.Sync.Interval = other.Sync.Interval
	}
	if other.Sync.ReindexInterval != 0 {
		c.Sync.ReindexInterval = other.Sync.ReindexInterval
	}
	if other.Sync.Fingerprint != "" {
		c.Sync.Fingerprint = other.Sync.Fingerprint
	}

	if other.VCS.Backend != "" {
		c.VCS.Backend = other.VCS.Backend
	}
	if other.VCS.PageSize != 0 {
		c.VCS.PageSize = other.VCS.PageSize
	}

	if other.Watch.PollInterval != 0 {
		c.Watch.PollInterval = other.Watch.PollInterval
	}
	if other.Watch.EventBuffer != 0 {
		c.Watch.EventBuffer = other.Watch.EventBuffer
	}

	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// applyEnvOverrides applies CODESYNC_* environment variables.
// Malformed numeric values are ignored.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CODESYNC_ENDPOINT"); v != "" {
		c.Remote.Endpoint = v
	}
	if v := os.Getenv("CODESYNC_MODE"); v != "" {
		c.Remote.Mode = strings.ToLower(v)
	}
	if v := os.Getenv("CODESYNC_OFFLINE"); v != "" {
		c.Remote.Offline = strings.ToLower(v) == "true" || v == "1"
	}
	if v := os.Getenv("CODESYNC_UPLOAD_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Sync.UploadConcurrency = n
		}
	}
	if v := os.Getenv("CODESYNC_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Sync.MaxResults = n
		}
	}
	if v := os.Getenv("CODESYNC_VCS_BACKEND"); v != "" {
		c.VCS.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("CODESYNC_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	switch c.Remote.Mode {
	case ModeLocal, ModeRemote:
	default:
		return fmt.Errorf("remote.mode must be 'local' or 'remote', got %s", c.Remote.Mode)
	}
	if c.Remote.Endpoint == "" && !c.Remote.Offline {
		return fmt.Errorf("remote.endpoint is required unless remote.offline is set")
	}
	if c.Remote.RequestTimeout < 0 {
		return fmt.Errorf("remote.request_timeout must be non-negative, got %s", c.Remote.RequestTimeout)
	}

	if c.Paths.MaxFileSize <= 0 {
		return fmt.Errorf("paths.max_file_size must be positive, got %d", c.Paths.MaxFileSize)
	}
	for _, p := range c.Paths.IgnorePatterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("paths.ignore_patterns: invalid pattern %q: %w", p, err)
		}
	}

	if c.Sync.MaxResults <= 0 {
		return fmt.Errorf("sync.max_results must be positive, got %d", c.Sync.MaxResults)
	}
	if c.Sync.BatchSize <= 0 {
		return fmt.Errorf("sync.batch_size must be positive, got %d", c.Sync.BatchSize)
	}
	if c.Sync.UploadConcurrency <= 0 {
		return fmt.Errorf("sync.upload_concurrency must be positive, got %d", c.Sync.UploadConcurrency)
	}
	if c.Sync.DetectConcurrency <= 0 {
		return fmt.Errorf("sync.detect_concurrency must be positive, got %d", c.Sync.DetectConcurrency)
	}
	if c.Sync.WalkWorkers < 0 {
		return fmt.Errorf("sync.walk_workers must be non-negative, got %d", c.Sync.WalkWorkers)
	}
	switch c.Sync.Fingerprint {
	case "md5", "blake2b":
	default:
		return fmt.Errorf("sync.fingerprint must be 'md5' or 'blake2b', got %s", c.Sync.Fingerprint)
	}

	switch c.VCS.Backend {
	case "exec", "gogit", "none":
	default:
		return fmt.Errorf("vcs.backend must be 'exec', 'gogit' or 'none', got %s", c.VCS.Backend)
	}
	if c.VCS.PageSize <= 0 {
		return fmt.Errorf("vcs.page_size must be positive, got %d", c.VCS.PageSize)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// FindProjectRoot walks up from startDir looking for a .git directory or a
// project config file. Returns startDir (absolute) if neither is found.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	if _, err := os.Stat(absDir); err != nil {
		return "", fmt.Errorf("failed to access %s: %w", absDir, err)
	}

	currentDir := absDir
	for {
		if dirExists(filepath.Join(currentDir, ".git")) ||
			fileExists(filepath.Join(currentDir, ProjectConfigYAML)) ||
			fileExists(filepath.Join(currentDir, ProjectConfigYML)) {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return absDir, nil
		}
		currentDir = parentDir
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
