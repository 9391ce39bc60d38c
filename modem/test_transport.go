package modem

import (
	"context"
	"io"
	"sync"
)

// TestTransport is a test helper that simulates a blocking transport using
// channels. This is needed because the background reader continuously reads
// from the transport, and we need reads to block until data is available
// (like a real serial port would).
type TestTransport struct {
	mu        sync.Mutex
	readChan  chan []byte
	writeChan chan string
	closed    bool
}

// NewTestTransport creates a new test transport for testing.
// Exported for use in tests.
func NewTestTransport() *TestTransport {
	return &TestTransport{
		readChan:  make(chan []byte, 10),
		writeChan: make(chan string, 10),
	}
}

func (t *TestTransport) Write(p []byte) (n int, err error) {
	select {
	case t.writeChan <- string(p):
	default:
	}
	return len(p), nil
}

func (t *TestTransport) Read(p []byte) (n int, err error) {
	data, ok := <-t.readChan
	if !ok {
		return 0, io.EOF
	}
	return copy(p, data), nil
}

func (t *TestTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.readChan)
	return nil
}

// SendData queues data to be read by the transport.
// This simulates receiving data from the modem.
func (t *TestTransport) SendData(data string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.readChan <- []byte(data)
	}
}

// Writes exposes the commands written to the transport, in order.
// Tests use it to observe when and what a command exchange wrote.
func (t *TestTransport) Writes() <-chan string {
	return t.writeChan
}

// Dial implements Dialer by returning the transport itself, so a
// TestTransport can be plugged straight into a Config.
func (t *TestTransport) Dial(_ context.Context) (Transport, error) {
	return t, nil
}
