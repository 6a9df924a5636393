package report

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/language"

	"github.com/nao1215/clientmap/internal/clientmap"
	"github.com/nao1215/clientmap/internal/model"
)

// SimpleWriter outputs human-readable text exports.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with no entries are shown.
	showEmpty bool

	// verbose adds node components and event text to the output.
	verbose bool

	// lang is the display language of type tags.
	lang language.Tag
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// WithLanguage sets the language type tags are rendered in.
func WithLanguage(lang language.Tag) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.lang = lang
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		lang:       language.English,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the export in human-readable format.
func (w *SimpleWriter) Write(export *Export) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, export)
	w.writeTree(&sb, export)
	w.writeHistory(&sb, export)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

// writeHeader writes the export header with session information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, export *Export) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         CLIENTMAP SESSION\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Session:        %s\n", export.SessionID))
	if export.SessionName != "" {
		sb.WriteString(fmt.Sprintf("Name:           %s\n", export.SessionName))
	}
	if !export.StartedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("Started:        %s\n", export.StartedAt.Format("2006-01-02 15:04:05 MST")))
	}
	sb.WriteString(fmt.Sprintf("Nodes:          %d (%d visited, %d with storage)\n",
		len(export.Nodes), export.VisitedCount(), export.StorageCount()))
	sb.WriteString(fmt.Sprintf("Reported:       %d\n", len(export.Objects)))
	sb.WriteString("\n")
}

// writeTree writes the tree as an indented outline.
func (w *SimpleWriter) writeTree(sb *strings.Builder, export *Export) {
	if len(export.Nodes) == 0 && !w.showEmpty {
		return
	}

	w.writeSection(sb, "SITE TREE")

	if len(export.Nodes) == 0 {
		sb.WriteString("  No nodes recorded\n\n")
		return
	}

	for _, n := range export.Nodes {
		indent := strings.Repeat("  ", n.Depth)
		sb.WriteString(fmt.Sprintf("%s%s %s\n", indent, nodeMarker(n), n.Name))
		if w.verbose {
			for _, c := range n.Components {
				sb.WriteString(fmt.Sprintf("%s    <%s> %s\n", indent, c.TagName, componentLabel(c)))
			}
		}
	}
	sb.WriteString("\n")
}

// writeHistory writes reported objects in arrival order.
func (w *SimpleWriter) writeHistory(sb *strings.Builder, export *Export) {
	if len(export.Objects) == 0 && !w.showEmpty {
		return
	}

	w.writeSection(sb, "HISTORY")

	if len(export.Objects) == 0 {
		sb.WriteString("  No reported objects\n\n")
		return
	}

	for _, o := range export.Objects {
		sb.WriteString(fmt.Sprintf("  [%s] %s", model.LocalizedType(o.Type, w.lang), o.URL))
		if o.NodeName != "" {
			sb.WriteString(fmt.Sprintf(" (%s)", o.NodeName))
		}
		sb.WriteString("\n")
		if w.verbose && o.Text != "" {
			sb.WriteString(fmt.Sprintf("    %s\n", o.Text))
		}
	}
	sb.WriteString("\n")
}

// writeFooter writes the export footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Generated by clientmap\n")
	sb.WriteString("https://github.com/nao1215/clientmap\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}

// nodeMarker is "[x]" for visited nodes and "[ ]" otherwise, with an
// asterisk for storage side effects.
func nodeMarker(n Node) string {
	marker := "[ ]"
	if n.Visited {
		marker = "[x]"
	}
	if n.Storage {
		marker += "*"
	}
	return marker
}

// componentLabel picks the most descriptive attribute of a component.
func componentLabel(c clientmap.Component) string {
	switch {
	case c.Text != "":
		return c.Text
	case c.ID != "":
		return "#" + c.ID
	case c.Href != "":
		return c.Href
	default:
		return c.Type
	}
}
