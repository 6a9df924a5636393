package clientmap

import "strings"

// NodeID addresses a node in the arena. Ids are never reused within a Map.
// The zero value names no node.
type NodeID uint64

// Component is a page element recorded on a node, such as a link, a form or
// a button the browser rendered.
type Component struct {
	TagName string `json:"tagName,omitempty"`
	ID      string `json:"id,omitempty"`
	Href    string `json:"href,omitempty"`
	Text    string `json:"text,omitempty"`
	Type    string `json:"type,omitempty"`
}

// Key returns the structural key that identifies the component on its page.
// Two components with the same key are the same element.
func (c Component) Key() string {
	return strings.Join([]string{c.TagName, c.ID, c.Href, c.Text, c.Type}, "|")
}

// Node is a read-only snapshot of a tree node.
type Node struct {
	ID       NodeID `json:"id"`
	ParentID NodeID `json:"parentId,omitempty"`

	// Name is the display name: the URL segment this node stands for, or the
	// session title for the root.
	Name string `json:"name"`

	// URL is the normalized URL. It is empty for the root.
	URL string `json:"url,omitempty"`

	Visited               bool `json:"visited"`
	HasStorageSideEffects bool `json:"storage"`

	Components []Component `json:"components,omitempty"`
	ChildCount int         `json:"childCount"`
}

// IsRoot reports whether n is the session root.
func (n Node) IsRoot() bool {
	return n.ParentID == 0
}

// entry is the arena record behind a Node.
type entry struct {
	id       NodeID
	parent   NodeID
	name     string
	url      string
	visited  bool
	storage  bool
	children map[string]NodeID

	components    []Component
	componentKeys map[string]struct{}
}

func newEntry(id, parent NodeID, name, url string) *entry {
	return &entry{
		id:       id,
		parent:   parent,
		name:     name,
		url:      url,
		children: make(map[string]NodeID),
	}
}

// snapshot copies e into a Node. Must be called with the tree lock held.
func (e *entry) snapshot() Node {
	n := Node{
		ID:                    e.id,
		ParentID:              e.parent,
		Name:                  e.name,
		URL:                   e.url,
		Visited:               e.visited,
		HasStorageSideEffects: e.storage,
		ChildCount:            len(e.children),
	}
	if len(e.components) > 0 {
		n.Components = make([]Component, len(e.components))
		copy(n.Components, e.components)
	}
	return n
}

// merge ORs the flags into e and reports whether anything changed.
func (e *entry) merge(visited, storage bool) bool {
	changed := false
	if visited && !e.visited {
		e.visited = true
		changed = true
	}
	if storage && !e.storage {
		e.storage = true
		changed = true
	}
	return changed
}

// addComponent records c unless an element with the same key exists.
func (e *entry) addComponent(c Component) bool {
	if e.componentKeys == nil {
		e.componentKeys = make(map[string]struct{})
	}
	key := c.Key()
	if _, ok := e.componentKeys[key]; ok {
		return false
	}
	e.componentKeys[key] = struct{}{}
	e.components = append(e.components, c)
	return true
}
