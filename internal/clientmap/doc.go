// Package clientmap provides the observation tree: a hierarchical,
// deduplicated store of the URLs and page elements seen on the client side.
//
// Observations arrive from two producers that run on their own goroutines:
// the proxy, which sees network traffic, and the browser telemetry API, which
// sees what the page actually rendered. Both call Map.GetOrAddNode, which
// normalizes the URL, splits it into segments and walks or creates one node
// per segment starting at the session root.
//
// # Storage
//
// Nodes live in an arena keyed by NodeID. A node owns its children through the
// child key table; the parent is stored only as an id used for lookups.
// Callers never hold a pointer into the arena: every read returns a Node
// snapshot value.
//
// Design decision: We use one RWMutex for the whole tree instead of per-node
// locks because:
//  1. The tree is small compared to the traffic that feeds it
//  2. A walk that creates several nodes must be atomic as a whole
//  3. Nested node locks invite lock-order deadlocks
//
// # Notifications
//
// Listeners are told about added, changed, selected and removed nodes after
// the lock has been released. A listener that panics is logged and skipped;
// notifications are never retried.
package clientmap
