package modem

import (
	"context"
	"errors"
	"io"
	"time"

	"go.bug.st/serial"
)

//go:generate go tool mockgen -source=transport.go -destination=mock_transport.go -package=modem

// Transport represents an established, bidirectional byte stream to a
// cellular modem.
//
// A Transport is assumed to be already connected and ready for use. It
// provides the low-level I/O primitives required to send AT commands and
// receive responses. Typical implementations include serial ports, TCP
// connections to emulators, or in-memory fakes used for testing.
type Transport interface {
	io.ReadWriteCloser
}

// Dialer opens a Transport to a cellular modem.
//
// Dialer abstracts how the modem connection is created (for example, via a
// serial port, TCP-based emulator, or test double) and is intended to be used
// during modem construction only. Once a Transport is obtained, the Dialer is
// no longer needed.
type Dialer interface {
	// Dial is responsible for creating and returning a connected Transport.
	// It may perform blocking operations and should respect cancellation and
	// deadlines provided by the context. Dial returns an error if the
	// transport cannot be established.
	Dial(ctx context.Context) (Transport, error)
}

// SerialDialer opens a modem over a local serial port.
//
// The port is configured with a per-read timeout so the background reader
// wakes up periodically instead of blocking forever; this timeout is
// independent of the command-level AT timeout.
type SerialDialer struct {
	// PortName is the device path of the AT command port, e.g. "/dev/ttyUSB3".
	PortName string
	// Mode holds the serial parameters. When nil the port defaults apply
	// (9600 8N1 for go.bug.st/serial).
	Mode *serial.Mode
	// ReadTimeout bounds a single blocking read. Defaults to one second.
	ReadTimeout time.Duration
}

func (d SerialDialer) Dial(ctx context.Context) (Transport, error) {
	if ctx == nil {
		return nil, errors.New("modem: context is nil")
	}
	if d.PortName == "" {
		return nil, errors.New("modem: serial port name is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mode := d.Mode
	if mode == nil {
		mode = &serial.Mode{}
	}

	port, err := serial.Open(d.PortName, mode)
	if err != nil {
		return nil, err
	}

	readTimeout := d.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = time.Second
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, err
	}

	return serialTransport{port}, nil
}

// serialTransport adapts a serial.Port to the Transport interface.
//
// go.bug.st/serial returns n == 0 with a nil error when a read times out
// with no data. An io.Reader must not do that (bufio.Scanner treats it as
// making no progress), so timed-out reads are retried here.
type serialTransport struct {
	port serial.Port
}

func (t serialTransport) Read(p []byte) (int, error) {
	for {
		n, err := t.port.Read(p)
		if n == 0 && err == nil {
			continue
		}
		return n, err
	}
}

func (t serialTransport) Write(p []byte) (int, error) {
	return t.port.Write(p)
}

func (t serialTransport) Close() error {
	return t.port.Close()
}
