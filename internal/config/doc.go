// Package config provides configuration structures and utilities for clientmap.
// It defines the telemetry listener, the control-channel boundary, the scan
// event topic, reconciliation snapshot and spawn settings, the browser
// profile to synchronize and where session history is archived.
package config
