package orchestrator

import (
	"fmt"
	"sync"

	"github.com/spf13/afero"

	"github.com/Aman-CERP/codesync/internal/config"
	"github.com/Aman-CERP/codesync/internal/detect"
	"github.com/Aman-CERP/codesync/internal/filter"
	"github.com/Aman-CERP/codesync/internal/prefs"
	"github.com/Aman-CERP/codesync/internal/remote"
	"github.com/Aman-CERP/codesync/internal/scanner"
	"github.com/Aman-CERP/codesync/internal/upload"
	"github.com/Aman-CERP/codesync/internal/vcs"
	"github.com/Aman-CERP/codesync/internal/watcher"
)

// Builder assembles orchestrators from configuration. The remote client,
// the upload slot pool and the preference store are shared by every root it
// builds.
type Builder struct {
	Config *config.Config
	Client *remote.Client
	Prefs  prefs.Store
	// Uploads is the slot pool every built orchestrator transfers through,
	// sized by sync.upload_concurrency of Config.
	Uploads *upload.Pipeline
	// FS defaults to the OS file system.
	FS afero.Fs

	mu sync.Mutex
	// others holds clients for roots whose configuration names another endpoint.
	others map[string]*remote.Client
}

// NewBuilder creates the shared remote client and upload pool for cfg.
func NewBuilder(cfg *config.Config, store prefs.Store) (*Builder, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Builder{
		Config:  cfg,
		Client:  client,
		Prefs:   store,
		Uploads: upload.New(client, upload.Options{Concurrency: cfg.Sync.UploadConcurrency}),
		FS:      afero.NewOsFs(),
	}, nil
}

func newClient(cfg *config.Config) (*remote.Client, error) {
	opts := remote.DefaultOptions()
	opts.RequestTimeout = cfg.Remote.RequestTimeout
	if cfg.Remote.BreakerFailures > 0 {
		opts.BreakerFailures = cfg.Remote.BreakerFailures
	}
	opts.PoolSize = cfg.Sync.UploadConcurrency
	return remote.NewClient(cfg.Remote.Endpoint, opts)
}

// Build returns an orchestrator for root using the Builder's configuration.
func (b *Builder) Build(root string) (*Orchestrator, error) {
	return b.BuildWithConfig(root, b.Config)
}

// BuildWithConfig returns an orchestrator for root configured by cfg,
// typically the root's own project configuration. Transfers still draw
// from the Builder's upload pool.
func (b *Builder) BuildWithConfig(root string, cfg *config.Config) (*Orchestrator, error) {
	client, err := b.clientFor(cfg)
	if err != nil {
		return nil, err
	}

	f, err := filter.New(root, cfg.FilterOptions())
	if err != nil {
		return nil, fmt.Errorf("build path filter: %w", err)
	}
	fp, err := detect.ParseFingerprinter(cfg.Sync.Fingerprint)
	if err != nil {
		return nil, err
	}
	fsys := b.FS
	if fsys == nil {
		fsys = afero.NewOsFs()
	}

	store := client.ForRoot(root)
	deps := Deps{
		Resolver: vcs.New(cfg.VCS.Backend, cfg.VCS.PageSize),
		Scanner: scanner.New(fsys, f, scanner.Options{
			MaxResults: cfg.Sync.MaxResults,
			Workers:    cfg.Sync.WalkWorkers,
		}),
		Detector: detect.New(fsys, store, detect.Options{
			BatchSize:     cfg.Sync.BatchSize,
			Concurrency:   cfg.Sync.DetectConcurrency,
			Fingerprinter: fp,
		}),
		Uploader: b.Uploads.ForStore(store),
		Store:    store,
		Prefs:    b.Prefs,
		Gate:     PrefsGate{Config: cfg, Prefs: b.Prefs},
		Watcher: watcher.New(f, watcher.Options{
			PollInterval: cfg.Watch.PollInterval,
			EventBuffer:  cfg.Watch.EventBuffer,
		}),
	}
	return New(deps, Config{
		Interval:        cfg.Sync.Interval,
		ReindexInterval: cfg.Sync.ReindexInterval,
	}), nil
}

// clientFor returns the shared client, or one for cfg's endpoint when it
// differs from the Builder's.
func (b *Builder) clientFor(cfg *config.Config) (*remote.Client, error) {
	if cfg.Remote.Endpoint == b.Config.Remote.Endpoint {
		return b.Client, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.others[cfg.Remote.Endpoint]; ok {
		return c, nil
	}
	c, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	if b.others == nil {
		b.others = make(map[string]*remote.Client)
	}
	b.others[cfg.Remote.Endpoint] = c
	return c, nil
}

// Close releases the clients.
func (b *Builder) Close() {
	b.Client.Close()
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.others {
		c.Close()
	}
}
