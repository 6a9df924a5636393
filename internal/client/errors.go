package client

import "errors"

// ErrControlURL is returned when an operation names a URL of the tool's
// own control channel. Callers should treat it as a silent no-op.
var ErrControlURL = errors.New("control channel URL ignored")
