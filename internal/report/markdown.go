package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"golang.org/x/text/language"

	"github.com/nao1215/clientmap/internal/model"
)

// MarkdownWriter outputs exports in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter

	lang language.Tag
}

// MarkdownWriterOption configures a MarkdownWriter.
type MarkdownWriterOption func(*MarkdownWriter)

// WithMarkdownLanguage sets the language type tags are rendered in.
func WithMarkdownLanguage(lang language.Tag) MarkdownWriterOption {
	return func(w *MarkdownWriter) {
		w.lang = lang
	}
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer, opts ...MarkdownWriterOption) *MarkdownWriter {
	w := &MarkdownWriter{
		baseWriter: newBaseWriter(output),
		lang:       language.English,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the export in Markdown format.
func (w *MarkdownWriter) Write(export *Export) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, export)
	w.writeTree(md, export)
	w.writeComponents(md, export)
	w.writeHistory(md, export)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the session information table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, export *Export) {
	md.H1("clientmap Session")
	md.PlainText("")

	rows := [][]string{
		{"Session", "`" + export.SessionID + "`"},
	}
	if export.SessionName != "" {
		rows = append(rows, []string{"Name", export.SessionName})
	}
	if !export.StartedAt.IsZero() {
		rows = append(rows, []string{"Started", export.StartedAt.Format("2006-01-02 15:04:05 MST")})
	}
	rows = append(rows,
		[]string{"Nodes", strconv.Itoa(len(export.Nodes))},
		[]string{"Visited", strconv.Itoa(export.VisitedCount())},
		[]string{"Storage Side Effects", strconv.Itoa(export.StorageCount())},
		[]string{"Reported Objects", strconv.Itoa(len(export.Objects))},
	)

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeTree writes the tree as a table in walk order. The name column is
// indented by depth so the hierarchy stays readable.
func (w *MarkdownWriter) writeTree(md *markdown.Markdown, export *Export) {
	md.H2("Site Tree")
	md.PlainText("")

	if len(export.Nodes) == 0 {
		md.Note("The tree is empty.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(export.Nodes))
	for i, n := range export.Nodes {
		rows[i] = []string{
			strings.Repeat("&nbsp;&nbsp;", max(n.Depth-1, 0)) + "`" + n.Name + "`",
			truncateString(n.URL, 60),
			checkMark(n.Visited),
			checkMark(n.Storage),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Name", "URL", "Visited", "Storage"},
		Rows:   rows,
	})
	md.PlainText("")

	if unvisited := len(export.Nodes) - export.VisitedCount(); unvisited > 0 {
		md.Tip(fmt.Sprintf("%d node(s) were discovered but never visited.", unvisited))
		md.PlainText("")
	}
}

// writeComponents writes one collapsible block per node with components.
func (w *MarkdownWriter) writeComponents(md *markdown.Markdown, export *Export) {
	var withComponents []Node
	for _, n := range export.Nodes {
		if len(n.Components) > 0 {
			withComponents = append(withComponents, n)
		}
	}
	if len(withComponents) == 0 {
		return
	}

	md.H2("Components")
	md.PlainText("")
	for _, n := range withComponents {
		items := make([]string, len(n.Components))
		for i, c := range n.Components {
			items[i] = fmt.Sprintf("<%s> %s", c.TagName, componentLabel(c))
		}
		md.Details(n.URL, strings.Join(items, "\n"))
	}
	md.PlainText("")
}

// writeHistory writes the reported-object table and its type distribution.
func (w *MarkdownWriter) writeHistory(md *markdown.Markdown, export *Export) {
	md.H2("History")
	md.PlainText("")

	if len(export.Objects) == 0 {
		md.PlainText("No reported objects.")
		md.PlainText("")
		return
	}

	w.writePieChart(md, export)

	rows := make([][]string, len(export.Objects))
	for i, o := range export.Objects {
		rows[i] = []string{
			model.LocalizedType(o.Type, w.lang),
			truncateString(o.URL, 60),
			orDash(o.NodeName),
			orDash(o.ID),
			orDash(truncateString(o.Text, 50)),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Type", "URL", "Node", "ID", "Text"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writePieChart writes a mermaid pie chart of the history by type.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, export *Export) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Reported Objects by Type"),
		piechart.WithShowData(true),
	)
	for _, tc := range export.TypeCounts() {
		chart.LabelAndIntValue(model.LocalizedType(tc.Type, w.lang), uint64(tc.Count))
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeFooter writes the export footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Generated by [clientmap](https://github.com/nao1215/clientmap)*")
}

func checkMark(b bool) string {
	if b {
		return "✅"
	}
	return "-"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncateString truncates a string to maxLen bytes with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
