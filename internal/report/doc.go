// Package report renders a clientmap session for humans and tools.
//
// A session export bundles the observation tree (flattened in walk order)
// with the reported-object history. Three writers render it:
//   - SimpleWriter: plain text for terminal display
//   - MarkdownWriter: Markdown for sharing, with a mermaid chart of the
//     history by type
//   - JSONWriter: structured JSON for tool integration
//
// Design decision: exports are built from plain rows (Node, Object) rather
// than from a live *clientmap.Map so that the same writers serve both the
// running integration and sessions archived in the history database.
package report
