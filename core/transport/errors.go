package transport

import "errors"

// ErrUnknownCarrier is returned when a configured carrier name is not
// recognized.
var ErrUnknownCarrier = errors.New("transport: unknown carrier")
