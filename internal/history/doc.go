// Package history keeps the arrival-ordered log of reported objects for one
// session.
//
// The log is append-only. Objects that belong to the tool's own control
// channel are dropped before they are stored, so the log only ever shows
// what the observed application did. The log is emptied when the session
// changes and at no other time.
//
// An optional Sink receives every accepted object after it has been
// appended. The database package provides a Sink that archives objects in
// SQLite.
package history
