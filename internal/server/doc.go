// Package server exposes the integration over a local HTTP API.
//
// The instrumented browser extension and the intercepting proxy push
// observations here; scan start and stop signals are republished onto the
// event bus so the lifecycle gate sees them exactly like events from any
// other publisher.
//
// Endpoints (JSON bodies, JSON responses):
//
//	POST /api/nodes            observe a URL {url, visited, storage}
//	POST /api/components       record a page element on a URL
//	POST /api/reported/nodes   log a node seen by the browser {url, nodeName}
//	POST /api/reported/events  log a browser event {url, text, id, type}
//	POST /api/scans/start      publish scan.started {scanId, target}
//	POST /api/scans/stop       publish scan.stopped
//	GET  /api/session          current session
//	POST /api/session          start a new session {name}
//	POST /api/select           show a node in the detail view {url}
//	GET  /api/details          node in the detail view
//	POST /api/delete           remove nodes and their subtrees {urls}
//	GET  /api/tree             the tree in walk order
//	GET  /api/history          the reported-object log
//	GET  /api/history/{field}  one column of the log
//	GET  /api/export           the session as json, markdown or text
//
// Control channel URLs are accepted and dropped with 204 No Content.
package server
