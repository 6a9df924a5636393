package clientmap

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// DefaultRootName is the display name of the root when none is configured.
const DefaultRootName = "Client Map"

// Map is the observation tree of one session.
// All methods are safe for concurrent use.
type Map struct {
	mu    sync.RWMutex
	nodes map[NodeID]*entry
	byURL map[string]NodeID
	root  NodeID
	next  NodeID

	lmu       sync.RWMutex
	listeners []Listener

	logger *slog.Logger
}

// Option configures a Map.
type Option func(*mapOptions)

type mapOptions struct {
	rootName string
	logger   *slog.Logger
}

// WithRootName sets the display name of the session root.
func WithRootName(name string) Option {
	return func(o *mapOptions) {
		o.rootName = name
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *mapOptions) {
		o.logger = logger
	}
}

// New creates a Map that holds only its root.
func New(opts ...Option) *Map {
	o := mapOptions{rootName: DefaultRootName}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	m := &Map{
		nodes:  make(map[NodeID]*entry),
		byURL:  make(map[string]NodeID),
		logger: o.logger,
	}
	m.root = m.allocID()
	m.nodes[m.root] = newEntry(m.root, 0, o.rootName, "")
	return m
}

// allocID returns the next unused id. Must be called with mu held.
func (m *Map) allocID() NodeID {
	m.next++
	return m.next
}

// AddListener registers l for all future notifications.
func (m *Map) AddListener(l Listener) {
	m.lmu.Lock()
	defer m.lmu.Unlock()
	m.listeners = append(m.listeners, l)
}

// GetOrAddNode records an observation of rawURL and returns the leaf node.
//
// Every segment of the URL is reused when present and created otherwise.
// The flags of the leaf are merged with the stored ones: once true they stay
// true. Nodes created on the way to the leaf start unvisited and without
// storage side effects.
func (m *Map) GetOrAddNode(rawURL string, visited, hasStorageSideEffects bool) (Node, error) {
	n, err := normalize(rawURL)
	if err != nil {
		return Node{}, err
	}

	m.mu.Lock()
	leaf, created := m.walkLocked(n)
	changed := leaf.merge(visited, hasStorageSideEffects)
	pending := addedNotifications(created)
	if changed && len(created) == 0 {
		snap := leaf.snapshot()
		pending = append(pending, func(l Listener) { l.NodeChanged(snap) })
	}
	result := leaf.snapshot()
	m.mu.Unlock()

	m.notify(pending)
	return result, nil
}

// walkLocked walks or creates every segment of n and returns the leaf
// together with the entries it created, in creation order. Must be called
// with mu held.
func (m *Map) walkLocked(n normalizedURL) (*entry, []*entry) {
	var created []*entry

	current := m.nodes[m.root]
	for _, seg := range n.segments() {
		if id, ok := current.children[seg.key]; ok {
			current = m.nodes[id]
			continue
		}

		child := newEntry(m.allocID(), current.id, seg.key, seg.url)
		m.nodes[child.id] = child
		m.byURL[child.url] = child.id
		current.children[seg.key] = child.id
		current = child
		created = append(created, child)

		m.logger.Debug("client node added", "url", child.url)
	}
	return current, created
}

// addedNotifications snapshots created entries into NodeAdded calls.
// Must be called with mu held.
func addedNotifications(created []*entry) []notification {
	pending := make([]notification, 0, len(created))
	for _, e := range created {
		snap := e.snapshot()
		pending = append(pending, func(l Listener) { l.NodeAdded(snap) })
	}
	return pending
}

// AddComponent records a page element on the node for rawURL, creating the
// node when needed. Components are deduplicated by Component.Key.
func (m *Map) AddComponent(rawURL string, c Component) (Node, error) {
	n, err := normalize(rawURL)
	if err != nil {
		return Node{}, err
	}

	m.mu.Lock()
	leaf, created := m.walkLocked(n)
	componentAdded := leaf.addComponent(c)
	pending := addedNotifications(created)
	if componentAdded && len(created) == 0 {
		snap := leaf.snapshot()
		pending = append(pending, func(l Listener) { l.NodeChanged(snap) })
	}
	result := leaf.snapshot()
	m.mu.Unlock()

	m.notify(pending)
	return result, nil
}

// DeleteNodes removes the given nodes together with their subtrees. The
// whole batch is applied under one lock, so readers see either none or all
// of it. Unknown ids, ids already removed as part of an earlier subtree in the
// same batch and the root are skipped. The removed nodes are returned.
func (m *Map) DeleteNodes(ids ...NodeID) []Node {
	m.mu.Lock()
	removed := make([]Node, 0, len(ids))
	for _, id := range ids {
		if id == m.root {
			continue
		}
		e, ok := m.nodes[id]
		if !ok {
			continue
		}
		removed = append(removed, e.snapshot())
		if parent, ok := m.nodes[e.parent]; ok {
			delete(parent.children, e.name)
		}
		m.dropSubtreeLocked(e)
	}
	m.mu.Unlock()

	if len(removed) > 0 {
		m.notify([]notification{func(l Listener) { l.NodesRemoved(removed) }})
	}
	return removed
}

// dropSubtreeLocked removes e and everything below it from the arena.
func (m *Map) dropSubtreeLocked(e *entry) {
	for _, childID := range e.children {
		if child, ok := m.nodes[childID]; ok {
			m.dropSubtreeLocked(child)
		}
	}
	delete(m.nodes, e.id)
	if m.byURL[e.url] == e.id {
		delete(m.byURL, e.url)
	}
}

// NodeChanged tells listeners that n should be redrawn. It has no effect on
// the tree itself.
func (m *Map) NodeChanged(n Node) {
	m.notify([]notification{func(l Listener) { l.NodeChanged(n) }})
}

// NodeSelected tells listeners that n was selected.
func (m *Map) NodeSelected(n Node) {
	m.notify([]notification{func(l Listener) { l.NodeSelected(n) }})
}

// notify delivers pending notifications to every listener.
// Must be called without mu held.
func (m *Map) notify(pending []notification) {
	if len(pending) == 0 {
		return
	}
	m.lmu.RLock()
	listeners := make([]Listener, len(m.listeners))
	copy(listeners, m.listeners)
	m.lmu.RUnlock()

	for _, l := range listeners {
		for _, call := range pending {
			m.deliver(l, call)
		}
	}
}

// deliver runs one notification, logging instead of propagating a panic.
func (m *Map) deliver(l Listener, call notification) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Warn("client map listener failed", "panic", fmt.Sprint(r))
		}
	}()
	call(l)
}

// Root returns the session root.
func (m *Map) Root() Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.nodes[m.root].snapshot()
}

// Get returns the node with the given id.
func (m *Map) Get(id NodeID) (Node, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.nodes[id]
	if !ok {
		return Node{}, false
	}
	return e.snapshot(), true
}

// Find returns the node for rawURL, if the tree holds one.
func (m *Map) Find(rawURL string) (Node, bool) {
	n, err := normalize(rawURL)
	if err != nil {
		return Node{}, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byURL[n.String()]
	if !ok {
		return Node{}, false
	}
	return m.nodes[id].snapshot(), true
}

// Contains reports whether the tree holds a node for rawURL.
func (m *Map) Contains(rawURL string) bool {
	_, ok := m.Find(rawURL)
	return ok
}

// Children returns the children of id sorted by name.
func (m *Map) Children(id NodeID) ([]Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	return m.childrenLocked(e), nil
}

func (m *Map) childrenLocked(e *entry) []Node {
	out := make([]Node, 0, len(e.children))
	for _, childID := range e.children {
		out = append(out, m.nodes[childID].snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of nodes, root included.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.nodes)
}

// URLs returns the URLs of every node below the root, sorted.
func (m *Map) URLs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.byURL))
	for u := range m.byURL {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// Walk calls fn for every node in depth-first order, children sorted by
// name, starting with the root at depth 0. The nodes are collected first, so
// fn may call back into the Map.
func (m *Map) Walk(fn func(n Node, depth int)) {
	type visit struct {
		node  Node
		depth int
	}

	m.mu.RLock()
	var visits []visit
	var walk func(e *entry, depth int)
	walk = func(e *entry, depth int) {
		visits = append(visits, visit{node: e.snapshot(), depth: depth})
		children := m.childrenLocked(e)
		for _, c := range children {
			walk(m.nodes[c.ID], depth+1)
		}
	}
	walk(m.nodes[m.root], 0)
	m.mu.RUnlock()

	for _, v := range visits {
		fn(v.node, v.depth)
	}
}
