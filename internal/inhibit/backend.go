// Package inhibit holds the idle-inhibition state machine and the
// D-Bus backends that talk to the desktop idle-management service.
package inhibit

import "errors"

// ErrBusCall indicates the idle-management service was unreachable or
// returned an error. Recoverable: the controller retries on the next
// triggering event.
var ErrBusCall = errors.New("idle service call failed")

// Token is the opaque handle returned by an inhibit call, required to
// later release it.
type Token interface {
	String() string
}

// Backend issues inhibit and uninhibit calls against one
// idle-management interface.
type Backend interface {
	// Name identifies the backend in logs and status output.
	Name() string

	// Inhibit asks the service to suspend idle handling and returns
	// the release token.
	Inhibit(appName, reason string) (Token, error)

	// UnInhibit releases a previously acquired inhibition.
	UnInhibit(t Token) error

	// Close releases the bus connection.
	Close() error
}
