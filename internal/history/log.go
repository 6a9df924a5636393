package history

import (
	"log/slog"
	"sync"

	"github.com/nao1215/clientmap/internal/boundary"
	"github.com/nao1215/clientmap/internal/model"
)

// Sink receives every object accepted by a Log.
// Record is called outside the log lock, in arrival order per producer.
type Sink interface {
	Record(obj model.ReportedObject) error
}

// Field names a column of the log for Values.
type Field string

// Columns that can be copied out of the log.
const (
	FieldID       Field = "ids"
	FieldNodeName Field = "nodenames"
	FieldURL      Field = "urls"
	FieldText     Field = "texts"
	FieldType     Field = "types"
)

// Fields lists every supported column in display order.
var Fields = []Field{FieldID, FieldNodeName, FieldURL, FieldText, FieldType}

// Log is the ordered history of reported objects.
// All methods are safe for concurrent use.
type Log struct {
	mu      sync.RWMutex
	entries []model.ReportedObject

	filter *boundary.Filter
	sink   Sink
	logger *slog.Logger
}

// Option configures a Log.
type Option func(*Log)

// WithFilter sets the control-channel filter. The default is boundary.Default.
func WithFilter(f *boundary.Filter) Option {
	return func(l *Log) {
		l.filter = f
	}
}

// WithSink forwards every accepted object to s.
func WithSink(s Sink) Option {
	return func(l *Log) {
		l.sink = s
	}
}

// WithLogger sets the logger used for sink failures.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Log) {
		l.logger = logger
	}
}

// New creates an empty Log.
func New(opts ...Option) *Log {
	l := &Log{}
	for _, opt := range opts {
		opt(l)
	}
	if l.filter == nil {
		l.filter = boundary.Default()
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l
}

// Add appends obj unless it is nil or was observed on the control channel.
// It reports whether the object was stored.
func (l *Log) Add(obj model.ReportedObject) bool {
	if obj == nil || l.filter.IsControlURL(obj.URL()) {
		return false
	}

	l.mu.Lock()
	l.entries = append(l.entries, obj)
	sink := l.sink
	l.mu.Unlock()

	if sink != nil {
		if err := sink.Record(obj); err != nil {
			l.logger.Warn("failed to archive reported object",
				"kind", model.Kind(obj),
				"url", obj.URL(),
				"error", err,
			)
		}
	}
	return true
}

// SetSink replaces the sink. A nil sink disables forwarding.
func (l *Log) SetSink(s Sink) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sink = s
}

// Clear removes every entry.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Entries returns a copy of the log in arrival order.
func (l *Log) Entries() []model.ReportedObject {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.ReportedObject, len(l.entries))
	copy(out, l.entries)
	return out
}

// Values copies one column of the log, one value per entry in arrival order.
// Unknown fields yield nil.
func (l *Log) Values(field Field) []string {
	get := accessor(field)
	if get == nil {
		return nil
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, len(l.entries))
	for i, obj := range l.entries {
		out[i] = get(obj)
	}
	return out
}

func accessor(field Field) func(model.ReportedObject) string {
	switch field {
	case FieldID:
		return model.ReportedObject.ID
	case FieldNodeName:
		return model.ReportedObject.NodeName
	case FieldURL:
		return model.ReportedObject.URL
	case FieldText:
		return model.ReportedObject.Text
	case FieldType:
		return model.ReportedObject.Type
	default:
		return nil
	}
}
