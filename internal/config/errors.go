package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrInvalidListenAddress is returned when the telemetry listener
	// address is not in "host:port" form.
	ErrInvalidListenAddress = errors.New("invalid listen address: must be host:port")

	// ErrNoControlPrefix is returned when the boundary has no prefixes.
	// Without one, the tool's own control traffic would land in the tree.
	ErrNoControlPrefix = errors.New("no control prefix configured")

	// ErrEmptyTopic is returned when the scan event topic is blank.
	ErrEmptyTopic = errors.New("scan event topic must not be empty")

	// ErrInvalidSnapshotMode is returned for an unknown snapshot mode.
	ErrInvalidSnapshotMode = errors.New("invalid snapshot mode: must be http or browser")

	// ErrInvalidSpawnPolicy is returned for an unknown spawn policy.
	ErrInvalidSpawnPolicy = errors.New("invalid spawn policy: must be go or pool")

	// ErrInvalidWorkers is returned when the pool policy has no workers or
	// no queue.
	ErrInvalidWorkers = errors.New("invalid pool size: workers and queue size must be positive")

	// ErrInvalidTimeout is returned when the snapshot timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// Use 0 to use the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrEmptyProfileName is returned when the browser profile name is blank.
	ErrEmptyProfileName = errors.New("browser profile name must not be empty")
)
