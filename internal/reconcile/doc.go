// Package reconcile repairs the observation tree after a scan.
//
// A Worker asks a SnapshotProvider for the URLs the scan target's DOM
// references and adds every URL the tree does not know yet, unvisited and
// without storage side effects. The snapshot is taken without holding the
// tree lock; each insertion takes the lock on its own. A failing provider
// ends the run quietly, since a missing snapshot is an expected outcome
// when the target has gone away.
package reconcile
