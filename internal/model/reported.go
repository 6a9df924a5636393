package model

import "time"

// Type tags attached to reported objects. They are message keys rather than
// display text; use LocalizedType to render them.
const (
	// TypeEvent is the default tag of a ReportedEvent.
	TypeEvent = "client.type.event"

	// TypeNode is the tag of every ReportedNode.
	TypeNode = "client.type.node"

	// TypeClick, TypeSubmit and TypeStorage are the event tags the browser
	// extension sends for user interaction and storage writes.
	TypeClick   = "client.type.click"
	TypeSubmit  = "client.type.submit"
	TypeStorage = "client.type.storage"
)

// ReportedObject is the read surface shared by every observation kept in the
// history log. The interface is sealed: only ReportedEvent and ReportedNode
// implement it.
type ReportedObject interface {
	// ID returns the stable identifier of the reported element, if any.
	ID() string
	// NodeName returns the display name of the reported node, if any.
	NodeName() string
	// URL returns the source URL the observation was made on.
	URL() string
	// Text returns the free text attached to the observation.
	Text() string
	// Type returns the i18n type tag.
	Type() string

	reported()
}

// ReportedEvent is something that happened on a page, as reported by the
// instrumented browser.
type ReportedEvent struct {
	// SourceURL is the page the event happened on.
	SourceURL string `json:"url"`

	// Message is the free text of the event.
	Message string `json:"text,omitempty"`

	// ElementID is the stable id of the element involved in the event.
	ElementID string `json:"id,omitempty"`

	// TypeTag is the i18n type tag. Empty means TypeEvent.
	TypeTag string `json:"type,omitempty"`

	// Timestamp is the wall-clock time reported by the browser.
	Timestamp time.Time `json:"timestamp"`
}

var _ ReportedObject = (*ReportedEvent)(nil)

// NewReportedEvent creates an event stamped with the current time.
func NewReportedEvent(url, text, id, typeTag string) *ReportedEvent {
	return &ReportedEvent{
		SourceURL: url,
		Message:   text,
		ElementID: id,
		TypeTag:   typeTag,
		Timestamp: time.Now(),
	}
}

// ID implements ReportedObject.
func (e *ReportedEvent) ID() string { return e.ElementID }

// NodeName implements ReportedObject. Events carry no node name.
func (e *ReportedEvent) NodeName() string { return "" }

// URL implements ReportedObject.
func (e *ReportedEvent) URL() string { return e.SourceURL }

// Text implements ReportedObject.
func (e *ReportedEvent) Text() string { return e.Message }

// Type implements ReportedObject.
func (e *ReportedEvent) Type() string {
	if e.TypeTag == "" {
		return TypeEvent
	}
	return e.TypeTag
}

func (*ReportedEvent) reported() {}

// ReportedNode is a node the browser saw while rendering a page.
type ReportedNode struct {
	// SourceURL is the page the node belongs to.
	SourceURL string `json:"url"`

	// Name is the node display name.
	Name string `json:"nodeName"`
}

var _ ReportedObject = (*ReportedNode)(nil)

// NewReportedNode creates a ReportedNode.
func NewReportedNode(url, name string) *ReportedNode {
	return &ReportedNode{SourceURL: url, Name: name}
}

// ID implements ReportedObject. Nodes carry no element id.
func (n *ReportedNode) ID() string { return "" }

// NodeName implements ReportedObject.
func (n *ReportedNode) NodeName() string { return n.Name }

// URL implements ReportedObject.
func (n *ReportedNode) URL() string { return n.SourceURL }

// Text implements ReportedObject.
func (n *ReportedNode) Text() string { return "" }

// Type implements ReportedObject.
func (n *ReportedNode) Type() string { return TypeNode }

func (*ReportedNode) reported() {}

// Kind returns "event" or "node" for the concrete variant of obj.
// It is used as a discriminator when objects are serialized.
func Kind(obj ReportedObject) string {
	switch obj.(type) {
	case *ReportedEvent:
		return "event"
	case *ReportedNode:
		return "node"
	default:
		return ""
	}
}
