package lifecycle

import (
	"log/slog"
	"sync"

	"github.com/nao1215/clientmap/internal/clientmap"
	"github.com/nao1215/clientmap/internal/eventbus"
	"github.com/nao1215/clientmap/internal/model"
)

// Bus vocabulary for scan lifecycle signals.
const (
	// DefaultTopic is the publisher name the gate listens to by default.
	DefaultTopic = "clientmap.spider.ajax"

	EventScanStarted = "scan.started"
	EventScanStopped = "scan.stopped"

	ParamScanID = "scanId"
	ParamTarget = "target"
)

// State is the pairing state of a Gate.
type State int

const (
	// Idle means no scan is in progress.
	Idle State = iota
	// AwaitingStop means a start was seen and the matching stop is pending.
	AwaitingStop
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingStop:
		return "awaiting-stop"
	default:
		return "unknown"
	}
}

// RunFunc is a reconciliation run for one completed scan window.
type RunFunc func(scan model.ScanInfo, tree *clientmap.Map)

// TreeFunc returns the tree of the current session.
type TreeFunc func() *clientmap.Map

// Gate turns start/stop pairs into reconciliation runs.
type Gate struct {
	mu      sync.Mutex
	state   State
	pending model.ScanInfo

	tree    TreeFunc
	run     RunFunc
	spawner Spawner
	topic   string
	logger  *slog.Logger
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithSpawner sets the spawn policy. The default is GoSpawner.
func WithSpawner(s Spawner) GateOption {
	return func(g *Gate) {
		g.spawner = s
	}
}

// WithTopic sets the publisher name Hook subscribes to.
func WithTopic(topic string) GateOption {
	return func(g *Gate) {
		if topic != "" {
			g.topic = topic
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) GateOption {
	return func(g *Gate) {
		g.logger = logger
	}
}

// NewGate creates an idle Gate.
func NewGate(tree TreeFunc, run RunFunc, opts ...GateOption) *Gate {
	g := &Gate{
		tree:  tree,
		run:   run,
		topic: DefaultTopic,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.spawner == nil {
		g.spawner = GoSpawner{}
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g
}

// State returns the current pairing state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// ScanStarted retains info until the matching stop. A start while a scan is
// already pending replaces the retained metadata.
func (g *Gate) ScanStarted(info model.ScanInfo) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == AwaitingStop {
		g.logger.Debug("scan restarted before stop", "previous", g.pending.ID, "scan", info.ID)
	}
	g.pending = info
	g.state = AwaitingStop
}

// ScanStopped closes the pending window and spawns a run for it. It reports
// whether a run was handed to the spawner. A stop while idle is ignored.
func (g *Gate) ScanStopped() bool {
	g.mu.Lock()
	if g.state != AwaitingStop {
		g.mu.Unlock()
		g.logger.Debug("scan stop without start ignored")
		return false
	}
	info := g.pending
	g.pending = model.ScanInfo{}
	g.state = Idle
	g.mu.Unlock()

	tree := g.tree()
	if tree == nil {
		return false
	}
	run := g.run
	if err := g.spawner.Spawn(func() { run(info, tree) }); err != nil {
		g.logger.Warn("reconciliation run not started", "scan", info.ID, "error", err)
		return false
	}
	return true
}

// OnEvent maps a bus event onto the gate transitions. Unknown event types
// are ignored.
func (g *Gate) OnEvent(e eventbus.Event) {
	switch e.Type {
	case EventScanStarted:
		g.ScanStarted(model.ScanInfo{
			ID:     e.Param(ParamScanID),
			Target: e.Param(ParamTarget),
		})
	case EventScanStopped:
		g.ScanStopped()
	}
}

// Hook subscribes the gate to its topic on bus.
func (g *Gate) Hook(bus *eventbus.Bus) *eventbus.Subscription {
	return bus.Subscribe(g.OnEvent, g.topic)
}
