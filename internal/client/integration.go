package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/clientmap/internal/boundary"
	"github.com/nao1215/clientmap/internal/clientmap"
	"github.com/nao1215/clientmap/internal/database"
	"github.com/nao1215/clientmap/internal/eventbus"
	"github.com/nao1215/clientmap/internal/history"
	"github.com/nao1215/clientmap/internal/lifecycle"
	"github.com/nao1215/clientmap/internal/model"
	"github.com/nao1215/clientmap/internal/reconcile"
	"github.com/nao1215/clientmap/internal/report"
)

// archiveTimeout bounds archive writes made on session boundaries.
const archiveTimeout = 10 * time.Second

// Archive persists sessions. *database.HistoryDB implements it.
type Archive interface {
	database.ObjectRecorder
	CreateSession(ctx context.Context, id, name string) error
	SaveTree(ctx context.Context, sessionID string, tree *clientmap.Map) error
}

// Session identifies the state an Integration currently holds.
type Session struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	StartedAt time.Time `json:"startedAt"`
}

// Integration is the facade over one session's tree, history and detail
// view. All methods are safe for concurrent use.
type Integration struct {
	mu      sync.RWMutex
	tree    *clientmap.Map
	session Session

	history *history.Log
	details *DetailPanel
	filter  *boundary.Filter
	gate    *lifecycle.Gate
	sub     *eventbus.Subscription

	archive   Archive
	spawner   lifecycle.Spawner
	worker    *reconcile.Worker
	topic     string
	listeners []clientmap.Listener
	logger    *slog.Logger
}

// Option configures an Integration.
type Option func(*Integration)

// WithFilter sets the control-channel boundary. The default is
// boundary.Default.
func WithFilter(f *boundary.Filter) Option {
	return func(i *Integration) {
		i.filter = f
	}
}

// WithArchive persists every session into a.
func WithArchive(a Archive) Option {
	return func(i *Integration) {
		i.archive = a
	}
}

// WithSpawner sets the reconciliation spawn policy. The default is
// lifecycle.GoSpawner.
func WithSpawner(s lifecycle.Spawner) Option {
	return func(i *Integration) {
		i.spawner = s
	}
}

// WithWorker sets the reconciliation worker. Without one, completed scans
// are paired but nothing is reconciled.
func WithWorker(w *reconcile.Worker) Option {
	return func(i *Integration) {
		i.worker = w
	}
}

// WithTopic sets the publisher name scan events are read from.
func WithTopic(topic string) Option {
	return func(i *Integration) {
		i.topic = topic
	}
}

// WithListener attaches l to the tree of every session.
func WithListener(l clientmap.Listener) Option {
	return func(i *Integration) {
		i.listeners = append(i.listeners, l)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Integration) {
		i.logger = logger
	}
}

// New creates an Integration and starts its first session.
func New(opts ...Option) *Integration {
	i := &Integration{
		details: &DetailPanel{},
		topic:   lifecycle.DefaultTopic,
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.logger == nil {
		i.logger = slog.Default()
	}
	if i.filter == nil {
		i.filter = boundary.Default()
	}
	if i.spawner == nil {
		i.spawner = lifecycle.GoSpawner{}
	}
	if i.worker == nil {
		i.worker = reconcile.NewWorker(nil, reconcile.WithLogger(i.logger))
	}

	i.worker = i.worker.Clone(reconcile.WithFilter(i.filter))

	i.history = history.New(history.WithFilter(i.filter), history.WithLogger(i.logger))
	i.gate = lifecycle.NewGate(i.Tree, i.worker.Run,
		lifecycle.WithSpawner(i.spawner),
		lifecycle.WithTopic(i.topic),
		lifecycle.WithLogger(i.logger),
	)

	first := i.prepareSession("")
	i.mu.Lock()
	i.installSessionLocked(first)
	i.mu.Unlock()
	return i
}

// pendingSession is a session prepared outside the lock, ready to install.
type pendingSession struct {
	tree    *clientmap.Map
	session Session
	sink    history.Sink
}

// prepareSession builds a fresh tree and session and registers the session
// with the archive. It does not touch the installed state, so it runs
// without holding i.mu.
func (i *Integration) prepareSession(name string) pendingSession {
	tree := clientmap.New(clientmap.WithLogger(i.logger))
	for _, l := range i.listeners {
		tree.AddListener(l)
	}
	p := pendingSession{
		tree: tree,
		session: Session{
			ID:        uuid.NewString(),
			Name:      name,
			StartedAt: time.Now(),
		},
	}
	if i.archive == nil {
		return p
	}

	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()
	if err := i.archive.CreateSession(ctx, p.session.ID, name); err != nil {
		i.logger.Warn("failed to archive session, history will not be persisted", "id", p.session.ID, "error", err)
		return p
	}
	p.sink = database.NewSessionSink(i.archive, p.session.ID)
	return p
}

// installSessionLocked makes p the current session. The history and detail
// view are reset by the caller.
func (i *Integration) installSessionLocked(p pendingSession) {
	i.tree = p.tree
	i.session = p.session
	i.history.SetSink(p.sink)
}

// Tree returns the tree of the current session.
func (i *Integration) Tree() *clientmap.Map {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.tree
}

// Session returns the current session.
func (i *Integration) Session() Session {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.session
}

// History returns the reported-object log.
func (i *Integration) History() *history.Log {
	return i.history
}

// Details returns the detail view.
func (i *Integration) Details() *DetailPanel {
	return i.details
}

// Gate returns the scan lifecycle gate.
func (i *Integration) Gate() *lifecycle.Gate {
	return i.gate
}

// Export snapshots the current session for the report writers.
func (i *Integration) Export() *report.Export {
	i.mu.RLock()
	session, tree := i.session, i.tree
	i.mu.RUnlock()
	return &report.Export{
		SessionID:   session.ID,
		SessionName: session.Name,
		StartedAt:   session.StartedAt,
		Nodes:       report.NodesFromTree(tree),
		Objects:     report.ObjectsFrom(i.history.Entries()),
	}
}

// GetOrAddNode records an observation of rawURL in the current tree and
// appends it to the history. Control channel URLs return ErrControlURL and
// leave both untouched.
func (i *Integration) GetOrAddNode(rawURL string, visited, hasStorageSideEffects bool) (clientmap.Node, error) {
	if i.filter.IsControlURL(rawURL) {
		return clientmap.Node{}, ErrControlURL
	}
	n, err := i.Tree().GetOrAddNode(rawURL, visited, hasStorageSideEffects)
	if err != nil {
		return n, err
	}
	i.history.Add(model.NewReportedNode(rawURL, n.Name))
	return n, nil
}

// AddComponent records a page element on the node for rawURL. Like
// GetOrAddNode, the observation is appended to the history.
func (i *Integration) AddComponent(rawURL string, c clientmap.Component) (clientmap.Node, error) {
	if i.filter.IsControlURL(rawURL) {
		return clientmap.Node{}, ErrControlURL
	}
	n, err := i.Tree().AddComponent(rawURL, c)
	if err != nil {
		return n, err
	}
	i.history.Add(model.NewReportedNode(rawURL, n.Name))
	return n, nil
}

// NodeChanged notifies the tree listeners that n changed. A node shown in
// the detail view is refreshed.
func (i *Integration) NodeChanged(n clientmap.Node) {
	tree := i.Tree()
	if current, ok := i.details.Current(); ok && current.ID == n.ID {
		if fresh, ok := tree.Get(n.ID); ok {
			i.details.Show(fresh)
		}
	}
	tree.NodeChanged(n)
}

// NodeSelected shows n in the detail view and notifies the tree listeners.
func (i *Integration) NodeSelected(n clientmap.Node) {
	i.details.Show(n)
	i.Tree().NodeSelected(n)
}

// DeleteNodes removes the nodes and their subtrees from the current tree.
// When the detail view shows a removed node, it is cleared.
func (i *Integration) DeleteNodes(ids ...clientmap.NodeID) []clientmap.Node {
	tree := i.Tree()
	removed := tree.DeleteNodes(ids...)
	if len(removed) == 0 {
		return removed
	}

	urls := make(map[string]bool, len(removed))
	for _, n := range removed {
		urls[n.URL] = true
	}
	i.details.clearIf(func(shown clientmap.Node) bool {
		if urls[shown.URL] {
			return true
		}
		// Descendants of a removed node are gone from the tree too.
		_, stillThere := tree.Get(shown.ID)
		return !stillThere
	})
	return removed
}

// AddReportedObject appends obj to the history unless it was observed on
// the control channel. It reports whether obj was stored.
func (i *Integration) AddReportedObject(obj model.ReportedObject) bool {
	return i.history.Add(obj)
}

// SessionChanged archives the current session and starts a new, empty one
// named name.
func (i *Integration) SessionChanged(name string) Session {
	next := i.prepareSession(name)

	i.mu.Lock()
	previous, oldTree := i.session, i.tree
	i.history.Clear()
	i.details.Clear()
	i.installSessionLocked(next)
	current := i.session
	i.mu.Unlock()

	i.saveTree(previous.ID, oldTree)
	i.logger.Debug("session changed", "previous", previous.ID, "current", current.ID)
	return current
}

// SaveTree archives the current tree. It is a no-op without an archive.
func (i *Integration) SaveTree(ctx context.Context) error {
	if i.archive == nil {
		return nil
	}
	i.mu.RLock()
	id, tree := i.session.ID, i.tree
	i.mu.RUnlock()
	if err := i.archive.SaveTree(ctx, id, tree); err != nil {
		return fmt.Errorf("failed to save tree of session %s: %w", id, err)
	}
	return nil
}

func (i *Integration) saveTree(id string, tree *clientmap.Map) {
	if i.archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()
	if err := i.archive.SaveTree(ctx, id, tree); err != nil {
		i.logger.Warn("failed to archive tree", "id", id, "error", err)
	}
}

// Hook subscribes the lifecycle gate to bus. A previous subscription is
// cancelled first.
func (i *Integration) Hook(bus *eventbus.Bus) {
	sub := i.gate.Hook(bus)
	i.mu.Lock()
	previous := i.sub
	i.sub = sub
	i.mu.Unlock()
	if previous != nil {
		previous.Cancel()
	}
}

// closer is implemented by spawners that own workers.
type closer interface {
	Close()
}

// Unload revokes the bus subscription, stops a pooled spawner and archives
// the current tree. Scans completed after Unload are not reconciled.
func (i *Integration) Unload() {
	i.mu.Lock()
	sub := i.sub
	i.sub = nil
	id, tree := i.session.ID, i.tree
	i.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}
	if c, ok := i.spawner.(closer); ok {
		c.Close()
	}
	i.saveTree(id, tree)
}
