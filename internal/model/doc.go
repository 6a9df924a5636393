// Package model defines the values that flow between the observation sinks.
//
// This package contains the following main types:
//   - ReportedObject: the common read surface of everything the browser
//     telemetry or the proxy reports
//   - ReportedEvent and ReportedNode: the two concrete observations
//   - ScanInfo: metadata carried by scan lifecycle signals
//
// Design decision: We keep these types in their own package so that the
// history log, the lifecycle gate, the reconciliation worker and the
// persistence layer can share them without importing each other.
package model
