package report

import (
	"sort"
	"time"

	"github.com/nao1215/clientmap/internal/clientmap"
	"github.com/nao1215/clientmap/internal/model"
)

// Export is everything the writers know about one session.
type Export struct {
	// SessionID identifies the session.
	SessionID string `json:"sessionId"`

	// SessionName is the human-readable session name, if any.
	SessionName string `json:"sessionName,omitempty"`

	// StartedAt is when the session was created.
	StartedAt time.Time `json:"startedAt"`

	// Nodes is the observation tree in walk order, root excluded.
	Nodes []Node `json:"nodes"`

	// Objects is the reported-object history in arrival order.
	Objects []Object `json:"objects"`
}

// Node is one tree node of an export.
type Node struct {
	URL        string                `json:"url"`
	Name       string                `json:"name"`
	Depth      int                   `json:"depth"`
	Visited    bool                  `json:"visited"`
	Storage    bool                  `json:"storage"`
	Components []clientmap.Component `json:"components,omitempty"`
}

// Object is one history entry of an export.
type Object struct {
	Kind     string    `json:"kind"`
	ID       string    `json:"id,omitempty"`
	NodeName string    `json:"nodeName,omitempty"`
	URL      string    `json:"url"`
	Text     string    `json:"text,omitempty"`
	Type     string    `json:"type"`
	Time     time.Time `json:"time,omitempty"`
}

// NodesFromTree flattens tree in walk order. The root is skipped and depths
// start at 1 for the site nodes.
func NodesFromTree(tree *clientmap.Map) []Node {
	var nodes []Node
	tree.Walk(func(n clientmap.Node, depth int) {
		if n.IsRoot() {
			return
		}
		nodes = append(nodes, Node{
			URL:        n.URL,
			Name:       n.Name,
			Depth:      depth,
			Visited:    n.Visited,
			Storage:    n.HasStorageSideEffects,
			Components: n.Components,
		})
	})
	return nodes
}

// ObjectFrom converts a reported object into an export row.
func ObjectFrom(obj model.ReportedObject) Object {
	o := Object{
		Kind:     model.Kind(obj),
		ID:       obj.ID(),
		NodeName: obj.NodeName(),
		URL:      obj.URL(),
		Text:     obj.Text(),
		Type:     obj.Type(),
	}
	if e, ok := obj.(*model.ReportedEvent); ok {
		o.Time = e.Timestamp
	}
	return o
}

// ObjectsFrom converts a history slice into export rows.
func ObjectsFrom(objs []model.ReportedObject) []Object {
	rows := make([]Object, 0, len(objs))
	for _, obj := range objs {
		if obj == nil {
			continue
		}
		rows = append(rows, ObjectFrom(obj))
	}
	return rows
}

// VisitedCount returns how many nodes were actually visited.
func (e *Export) VisitedCount() int {
	count := 0
	for _, n := range e.Nodes {
		if n.Visited {
			count++
		}
	}
	return count
}

// StorageCount returns how many nodes had storage side effects.
func (e *Export) StorageCount() int {
	count := 0
	for _, n := range e.Nodes {
		if n.Storage {
			count++
		}
	}
	return count
}

// TypeCount is the number of history entries carrying one type tag.
type TypeCount struct {
	Type  string
	Count int
}

// TypeCounts groups the history by type tag, most frequent first.
// Ties are ordered by tag.
func (e *Export) TypeCounts() []TypeCount {
	counts := make(map[string]int)
	for _, o := range e.Objects {
		counts[o.Type]++
	}
	result := make([]TypeCount, 0, len(counts))
	for typ, n := range counts {
		result = append(result, TypeCount{Type: typ, Count: n})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Type < result[j].Type
	})
	return result
}
