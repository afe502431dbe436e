package esp

import (
	"errors"
	"fmt"
)

var (
	// ErrNoResponse is returned when nothing arrived from the module within
	// the poll budget.
	//
	// This usually means the module is unresponsive or the transport is
	// misconfigured (wrong port or baud rate).
	ErrNoResponse = errors.New("no response")

	// ErrTokenNotFound is returned when the module replied within the budget
	// but the reply never contained the expected token.
	ErrTokenNotFound = errors.New("response not found")

	// ErrRebooting is returned when a hardware or software reset does not
	// end with the module reporting "ready".
	ErrRebooting = errors.New("module did not come back after reset")

	// ErrNotATOK is returned when the liveness check does not yield OK.
	ErrNotATOK = errors.New("module does not respond to AT")

	// ErrWifiMode is returned when the station/access point mode cannot be set.
	ErrWifiMode = errors.New("unable to set wifi mode")

	// ErrUnableToConnect is returned when joining a network fails.
	ErrUnableToConnect = errors.New("unable to join network")

	// ErrConnectionMode is returned when single/multi connection mode cannot
	// be set.
	ErrConnectionMode = errors.New("unable to set connection mode")

	// ErrServerMode is returned when server mode cannot be started or stopped.
	ErrServerMode = errors.New("unable to set server mode")

	// ErrUnableToLink is returned when a TCP connection cannot be opened.
	ErrUnableToLink = errors.New("unable to link")

	// ErrUnableToUnlink is returned when a TCP connection cannot be closed.
	ErrUnableToUnlink = errors.New("unable to unlink")

	// ErrSendMessage is returned when a payload send is not acknowledged.
	ErrSendMessage = errors.New("unable to send message")

	// ErrGetIP is returned when the station address cannot be queried.
	ErrGetIP = errors.New("unable to get IP address")

	// ErrShortIPResponse is returned when the AT+CIFSR reply is too short
	// to hold an address at the expected offsets.
	ErrShortIPResponse = errors.New("IP response too short")

	// ErrNoDialer is returned when a Device is constructed without a Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order to
	// establish a connection to the module.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrNoResetLine is returned by Reboot when neither the Config nor the
	// Transport provides a reset line.
	ErrNoResetLine = errors.New("no reset line configured")

	// ErrInvalidBudget is returned by the config builder for a negative
	// poll budget.
	ErrInvalidBudget = errors.New("poll budget must not be negative")

	// ErrNotInitialized is returned when an operation is attempted on a
	// Device that has no transport.
	ErrNotInitialized = errors.New("device not initialized")

	// ErrAlreadyClosed is returned when an operation is attempted on a
	// Device that has already been closed.
	ErrAlreadyClosed = errors.New("device already closed")

	// ErrLoopRunning is returned when Worker.Loop is started twice.
	ErrLoopRunning = errors.New("loop already running")
)

// ResponseError describes a wait that ended without the expected token.
// Err is ErrNoResponse or ErrTokenNotFound; Raw holds the last text drained
// from the module, empty for ErrNoResponse.
type ResponseError struct {
	Expected string
	Raw      string
	Err      error
}

func (e *ResponseError) Error() string {
	if e.Raw == "" {
		return fmt.Sprintf("waiting for %q: %v", e.Expected, e.Err)
	}
	return fmt.Sprintf("waiting for %q: %v, got %q", e.Expected, e.Err, e.Raw)
}

func (e *ResponseError) Unwrap() error {
	return e.Err
}
