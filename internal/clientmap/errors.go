package clientmap

import "errors"

var (
	// ErrInvalidURL is returned when an observed URL cannot be parsed or is
	// not an absolute http(s) URL. Callers treat it as a silent no-op.
	ErrInvalidURL = errors.New("invalid observation URL")

	// ErrNodeNotFound is returned when an id does not name a live node.
	ErrNodeNotFound = errors.New("node not found")
)
