// Package database provides SQLite-based storage for clientmap.
//
// This package implements the HistoryDB, which stores:
//   - Sessions, one row per observation session
//   - Every reported object accepted by a session's history log
//   - The final observation tree of a session, flattened to URL rows
//
// Design decision: We use SQLite (via modernc.org/sqlite) instead of other
// databases because:
// 1. No external dependencies - the database is a single file
// 2. CGO-free implementation allows easy cross-compilation
// 3. WAL mode lets exports read while the proxy keeps recording
//
// Each archived object carries a SHA3-256 digest of its JSON payload, so
// repeated reports of the same event can be grouped when exporting.
package database
