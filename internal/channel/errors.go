package channel

import (
	"errors"
	"fmt"
)

// Sentinel errors for the message bus.
var (
	// ErrInvalidChannel is returned for channel names that are empty, too
	// long, or reserved.
	ErrInvalidChannel = errors.New("invalid channel name")

	// ErrChannelNotRegistered is returned by strict sends on a channel the
	// remote side never registered.
	ErrChannelNotRegistered = errors.New("channel not registered by remote")

	// ErrNotConnected is returned when sending before Connect.
	ErrNotConnected = errors.New("endpoint is not connected")

	// ErrNilListener is returned when registering a nil listener.
	ErrNilListener = errors.New("listener cannot be nil")

	// ErrListenerPanic is wrapped around a recovered listener panic.
	ErrListenerPanic = errors.New("listener panicked")
)

// ListenerError wraps a failure from one listener during dispatch.
type ListenerError struct {
	// Listener identifies the failing listener.
	Listener string

	// Channel is the channel being delivered.
	Channel string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ListenerError) Error() string {
	return fmt.Sprintf("listener %s on channel %s: %v", e.Listener, e.Channel, e.Err)
}

// Unwrap returns the underlying error.
func (e *ListenerError) Unwrap() error {
	return e.Err
}
