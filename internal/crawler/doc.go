// Package crawler fetches a page and turns its DOM into the URL snapshot
// that the reconciliation worker diffs against the observation tree.
//
// # Components
//
//   - Parser: HTML parser that extracts URLs and page components
//   - DOMSnapshot: fetches the scan target and returns its URL set
//   - NewHTTPClient: HTTP client, optionally routed through a SOCKS5 proxy
//
// The snapshot is taken from the served HTML. When the application builds
// most of its DOM in script, use the browser package instead; both satisfy
// the same provider interface.
//
// Design decision: We parse with golang.org/x/net/html rather than regex
// because:
//  1. It correctly handles malformed HTML common on the web
//  2. Provides a proper DOM-like structure
//  3. Standard library extension, well-maintained
package crawler
