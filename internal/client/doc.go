// Package client is the integration facade the rest of clientmap talks to.
//
// An Integration owns the state of one session: the observation tree, the
// reported-object history and the detail view of the selected node. It
// applies the control-channel boundary before anything reaches the tree,
// wires scan lifecycle events from the bus into reconciliation runs and
// archives the session when an archive is configured.
//
// Design decision: a session change replaces the tree with a new Map
// instead of emptying the old one. Reconciliation runs still in flight keep
// writing into the Map they were handed, which is discarded, so no stale
// URL can leak into the new session.
package client
