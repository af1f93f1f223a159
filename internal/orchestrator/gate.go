package orchestrator

import (
	"log/slog"

	"github.com/Aman-CERP/codesync/internal/config"
	"github.com/Aman-CERP/codesync/internal/prefs"
)

// Gate decides whether anything may be sent to the remote store.
type Gate interface {
	UploadsAllowed() bool
}

// GateFunc adapts a function to Gate.
type GateFunc func() bool

func (f GateFunc) UploadsAllowed() bool { return f() }

// PrefsGate opens when configuration allows network transfers (not offline,
// not a remote-backed directory) and the persisted upload toggle is on.
type PrefsGate struct {
	Config *config.Config
	Prefs  prefs.Store
}

func (g PrefsGate) UploadsAllowed() bool {
	if g.Config != nil && !g.Config.UploadsAllowed() {
		return false
	}
	if g.Prefs == nil {
		return true
	}
	enabled, err := prefs.UploadsEnabled(g.Prefs)
	if err != nil {
		slog.Warn("cannot read upload preference, uploads disabled", slog.String("error", err.Error()))
		return false
	}
	return enabled
}
