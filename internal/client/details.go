package client

import (
	"sync"

	"github.com/nao1215/clientmap/internal/clientmap"
)

// DetailPanel holds the node currently shown in the detail view.
// The zero value is an empty panel.
type DetailPanel struct {
	mu    sync.RWMutex
	node  clientmap.Node
	shown bool
}

// Show displays n.
func (p *DetailPanel) Show(n clientmap.Node) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.node = n
	p.shown = true
}

// Current returns the displayed node, if any.
func (p *DetailPanel) Current() (clientmap.Node, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.node, p.shown
}

// Clear empties the panel.
func (p *DetailPanel) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.node = clientmap.Node{}
	p.shown = false
}

// clearIf empties the panel when match reports true for the displayed node.
// It reports whether the panel was cleared.
func (p *DetailPanel) clearIf(match func(clientmap.Node) bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.shown || !match(p.node) {
		return false
	}
	p.node = clientmap.Node{}
	p.shown = false
	return true
}
