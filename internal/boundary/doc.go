// Package boundary decides which observed URLs belong to this tool's own
// control channel.
//
// Both the history log and the observation tree consult the same Filter so
// that requests the browser extension sends back to the control API are
// never recorded as application behavior.
package boundary
