// Package main provides the entry point for the clientmap CLI.
//
// clientmap records the client-side navigation of a web application as a
// site tree. A browser extension reports what it sees to the telemetry
// API, and finished spider scans are reconciled with a fresh snapshot of
// the page they started from.
//
// Usage:
//
//	clientmap run
//	clientmap sessions
//	clientmap export --format markdown
//
// See --help for all available options.
package main

func main() {
	Execute()
}
