package report

import (
	"encoding/json"
	"io"
)

// JSONWriter outputs exports in JSON format.
// This format is designed for tool integration and programmatic processing.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent bool

	indentPrefix string
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with two-space indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// jsonExport adds summary counts to the exported session.
type jsonExport struct {
	*Export

	Summary jsonSummary `json:"summary"`
}

type jsonSummary struct {
	Nodes   int `json:"nodes"`
	Visited int `json:"visited"`
	Storage int `json:"storage"`
	Objects int `json:"objects"`
}

// Write outputs the export in JSON format.
func (w *JSONWriter) Write(export *Export) (int, error) {
	exported := *export
	if exported.Nodes == nil {
		exported.Nodes = []Node{}
	}
	if exported.Objects == nil {
		exported.Objects = []Object{}
	}
	wrapped := jsonExport{
		Export: &exported,
		Summary: jsonSummary{
			Nodes:   len(export.Nodes),
			Visited: export.VisitedCount(),
			Storage: export.StorageCount(),
			Objects: len(export.Objects),
		},
	}

	var data []byte
	var err error
	if w.indent {
		data, err = json.MarshalIndent(wrapped, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(wrapped)
	}
	if err != nil {
		return 0, err
	}

	// Trailing newline for terminal output.
	data = append(data, '\n')
	return w.output.Write(data)
}
