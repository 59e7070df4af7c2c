// Package permission gates the OS accessibility/input-monitoring grant
// required for focus introspection and synthetic input.
package permission

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Probe is the platform check/request surface.
type Probe interface {
	// Granted reports whether the OS grant is currently in place.
	Granted() bool

	// Request triggers the OS permission prompt. Best-effort; the user
	// may still decline.
	Request()
}

// Gate tracks per-version prompt state around a platform probe. It
// never returns errors; permission is a state, not a failure.
type Gate struct {
	probe     Probe
	stateFile string
	version   string
	log       *slog.Logger
	mu        sync.Mutex
}

type promptRecord struct {
	PromptedVersion string `json:"prompted_version"`
}

// New creates a gate. stateDir holds the prompt record; version is the
// running app version, so each release may prompt once more.
func New(probe Probe, stateDir, version string, log *slog.Logger) *Gate {
	if log == nil {
		log = slog.Default()
	}
	return &Gate{
		probe:     probe,
		stateFile: filepath.Join(stateDir, "permission-prompt.json"),
		version:   version,
		log:       log,
	}
}

// IsGranted reports the current grant state.
func (g *Gate) IsGranted() bool {
	return g.probe.Granted()
}

// EnsurePrompted triggers the OS permission prompt at most once per app
// version while the grant is missing. Once the grant shows up the
// prompt record is cleared, so a later revoke→re-grant cycle can prompt
// again instead of being permanently suppressed.
func (g *Gate) EnsurePrompted() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.probe.Granted() {
		g.clearRecord()
		return
	}

	if g.readRecord() == g.version {
		return
	}

	g.log.Info("requesting accessibility permission", "version", g.version)
	g.probe.Request()
	g.writeRecord()
}

func (g *Gate) readRecord() string {
	data, err := os.ReadFile(g.stateFile)
	if err != nil {
		return ""
	}
	var rec promptRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return ""
	}
	return rec.PromptedVersion
}

func (g *Gate) writeRecord() {
	if err := os.MkdirAll(filepath.Dir(g.stateFile), 0700); err != nil {
		g.log.Warn("cannot create permission state dir", "error", err)
		return
	}
	data, _ := json.Marshal(promptRecord{PromptedVersion: g.version})
	if err := os.WriteFile(g.stateFile, data, 0600); err != nil {
		g.log.Warn("cannot write permission prompt record", "error", err)
	}
}

func (g *Gate) clearRecord() {
	if err := os.Remove(g.stateFile); err != nil && !os.IsNotExist(err) {
		g.log.Warn("cannot clear permission prompt record", "error", err)
	}
}
