package modem

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDialer is returned when a Modem is constructed without a Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order to
	// establish a connection to the modem.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrNotInitialized is returned when an operation is attempted on a Modem
	// whose transport was never established.
	ErrNotInitialized = errors.New("modem not initialized")

	// ErrAlreadyClosed is returned when an operation is attempted on a Modem
	// that has been closed, or when Close is called twice.
	ErrAlreadyClosed = errors.New("modem already closed")

	// ErrInvalidEncoding is returned when a response line from the modem is
	// not valid UTF-8 text.
	//
	// AT responses are plain ASCII; binary garbage on the line usually means
	// the port is misconfigured or the wrong device node was opened.
	ErrInvalidEncoding = errors.New("response line is not valid text")
)

// TimeoutError is returned by Command when no response line arrives within
// the configured AT timeout. The pending exchange is abandoned; the modem
// connection itself stays usable.
type TimeoutError struct {
	// Cmd is the AT command that timed out.
	Cmd string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("AT command timeout (%q)", e.Cmd)
}
