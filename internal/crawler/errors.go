package crawler

import "errors"

var (
	// ErrNoTarget is returned when a scan carries no target URL to snapshot.
	ErrNoTarget = errors.New("scan has no target URL")

	// ErrUnexpectedStatus is returned when the target answers with a non-2xx status.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")

	// ErrNotHTML is returned when the target does not serve HTML.
	ErrNotHTML = errors.New("target is not an HTML page")

	// ErrInvalidProxyAddress is returned when a proxy address is not "host:port".
	ErrInvalidProxyAddress = errors.New("invalid proxy address")
)
