package receiver

import "errors"

// Domain errors for the receiver package.
var (
	// ErrBind is returned by Start when the UDP socket cannot be bound.
	// The socket is not held after a bind failure.
	ErrBind = errors.New("receiver: bind failed")
)
