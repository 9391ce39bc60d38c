package modem

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"i4.energy/across/cellinfo/at"
)

// Modem represents a cellular modem that communicates via AT commands.
//
// A background reader goroutine is the only reader of the transport. It
// frames the byte stream into lines and publishes them to an internal queue;
// Command issuers block on that queue. A mutex held for the full lifetime of
// each exchange guarantees at most one command in flight, so the queue is the
// only state shared between the two sides.
type Modem struct {
	// transport provides the physical connection to the modem (serial, TCP, etc.)
	transport Transport
	// config contains the modem configuration settings
	config Config
	// closed indicates if the modem has been shut down
	closed atomic.Bool

	// cmdMu serializes command exchanges, from write to terminator or timeout
	cmdMu sync.Mutex
	// lines carries completed response lines from the reader; closed when
	// the reader stops
	lines chan string
	// done releases the reader if it is blocked publishing when the modem
	// is closed with lines still queued
	done chan struct{}
	// readErr records why the reader stopped; written before lines is
	// closed, read only after observing the close
	readErr error
}

// New creates a Modem with the given configuration, dials the transport and
// starts the background reader. The reader runs for the lifetime of the
// connection and stops only when Close shuts the transport down.
func New(ctx context.Context, config Config) (*Modem, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	config.setDefaults()

	transport, err := config.Dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}
	if transport == nil {
		return nil, ErrNotInitialized
	}

	m := &Modem{
		transport: transport,
		config:    config,
		lines:     make(chan string, config.QueueSize),
		done:      make(chan struct{}),
	}

	go m.readLoop()

	return m, nil
}

// readLoop continuously reads the transport, frames lines and publishes
// them. It exits when the transport fails or is closed, recording the cause
// in readErr and closing the line queue so blocked Command calls wake up.
func (m *Modem) readLoop() {
	defer close(m.lines)

	scanner := bufio.NewScanner(m.transport)
	scanner.Split(at.Splitter)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if !utf8.ValidString(line) {
			m.readErr = ErrInvalidEncoding
			return
		}
		select {
		case m.lines <- line:
		case <-m.done:
			m.readErr = ErrAlreadyClosed
			return
		}
	}

	if err := scanner.Err(); err != nil {
		m.readErr = fmt.Errorf("read response: %w", err)
		return
	}
	m.readErr = io.EOF
}

// Command sends an AT command and collects response lines until the modem
// answers OK (or a failure terminator). See CommandExpect.
func (m *Modem) Command(ctx context.Context, cmd string) ([]string, error) {
	return m.CommandExpect(ctx, cmd, at.OK)
}

// CommandExpect sends an AT command and returns the response lines collected
// before the terminator. Collection stops on the expected terminator, ERROR
// or NO CARRIER; the terminator itself is excluded and which one matched is
// not reported.
//
// Each line must arrive within the configured ATTimeout; the timer restarts
// per line, so there is no overall deadline unless ctx carries one. On
// timeout a *TimeoutError is returned, the exchange is abandoned and the
// command lock is released. Lines of an abandoned exchange that arrive later
// are discarded at the start of the next command.
func (m *Modem) CommandExpect(ctx context.Context, cmd, terminator string) ([]string, error) {
	if m.transport == nil {
		return nil, ErrNotInitialized
	}

	m.cmdMu.Lock()
	defer m.cmdMu.Unlock()

	if m.closed.Load() {
		return nil, ErrAlreadyClosed
	}

	m.drain()

	wire := strings.TrimSpace(cmd) + "\r"
	if _, err := m.transport.Write([]byte(wire)); err != nil {
		return nil, fmt.Errorf("write command %q: %w", cmd, err)
	}

	timer := time.NewTimer(m.config.ATTimeout)
	defer timer.Stop()

	var collected []string
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case line, ok := <-m.lines:
			if !ok {
				// Reader stopped; readErr is visible after the close.
				return nil, m.readErr
			}
			if at.IsFinal(line, terminator) {
				return collected, nil
			}
			collected = append(collected, line)

			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(m.config.ATTimeout)

		case <-timer.C:
			return nil, &TimeoutError{Cmd: cmd}
		}
	}
}

// drain discards queued lines left over from an abandoned exchange. Called
// with cmdMu held, before the next command is written.
func (m *Modem) drain() {
	for {
		select {
		case _, ok := <-m.lines:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

// Close shuts down the modem and releases all resources. Closing the
// transport stops the background reader. After Close the Modem cannot be
// reused.
func (m *Modem) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return ErrAlreadyClosed
	}
	close(m.done)
	if m.transport != nil {
		return m.transport.Close()
	}
	return nil
}
