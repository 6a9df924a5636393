package clientmap

// Listener receives tree notifications. Implementations must not block for
// long: they run on the goroutine that mutated the tree.
type Listener interface {
	NodeAdded(n Node)
	NodeChanged(n Node)
	NodeSelected(n Node)
	NodesRemoved(nodes []Node)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	OnAdded    func(Node)
	OnChanged  func(Node)
	OnSelected func(Node)
	OnRemoved  func([]Node)
}

var _ Listener = ListenerFuncs{}

// NodeAdded implements Listener.
func (l ListenerFuncs) NodeAdded(n Node) {
	if l.OnAdded != nil {
		l.OnAdded(n)
	}
}

// NodeChanged implements Listener.
func (l ListenerFuncs) NodeChanged(n Node) {
	if l.OnChanged != nil {
		l.OnChanged(n)
	}
}

// NodeSelected implements Listener.
func (l ListenerFuncs) NodeSelected(n Node) {
	if l.OnSelected != nil {
		l.OnSelected(n)
	}
}

// NodesRemoved implements Listener.
func (l ListenerFuncs) NodesRemoved(nodes []Node) {
	if l.OnRemoved != nil {
		l.OnRemoved(nodes)
	}
}

// notification is a deferred listener call collected under the tree lock.
type notification func(Listener)
