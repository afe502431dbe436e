package esp

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
)

// TestTransport is a scripted in-memory Transport for tests. Data becomes
// readable either explicitly through Feed or as the scripted reply to a
// command written by the Device. It also implements ResetLine.
type TestTransport struct {
	mu      sync.Mutex
	rx      []byte
	written bytes.Buffer
	replies []testReply
	closed  bool
	pulses  int

	// PulseReply is made readable on every Pulse.
	PulseReply string
}

type testReply struct {
	prefix   string
	response string
}

// NewTestTransport creates a new test transport for testing.
// Exported for use in tests.
func NewTestTransport() *TestTransport {
	return &TestTransport{}
}

// Feed makes data readable immediately. This simulates receiving data
// from the module.
func (t *TestTransport) Feed(data string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rx = append(t.rx, data...)
}

// Reply queues response to be fed when a write starting with prefix
// happens. Replies are consumed in the order they were queued.
func (t *TestTransport) Reply(prefix, response string) *TestTransport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.replies = append(t.replies, testReply{prefix: prefix, response: response})
	return t
}

// Written returns everything written to the transport so far.
func (t *TestTransport) Written() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.written.String()
}

// Pulses returns how often the reset line was pulsed.
func (t *TestTransport) Pulses() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pulses
}

// Closed reports whether Close was called.
func (t *TestTransport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *TestTransport) Available() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rx)
}

func (t *TestTransport) ReadByte() (byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.rx) == 0 {
		return 0, io.EOF
	}
	b := t.rx[0]
	t.rx = t.rx[1:]
	return b, nil
}

func (t *TestTransport) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, io.ErrClosedPipe
	}
	t.written.Write(p)
	for i, r := range t.replies {
		if strings.HasPrefix(string(p), r.prefix) {
			t.rx = append(t.rx, r.response...)
			t.replies = append(t.replies[:i], t.replies[i+1:]...)
			break
		}
	}
	return len(p), nil
}

func (t *TestTransport) Flush() error {
	return nil
}

func (t *TestTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *TestTransport) Pulse(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pulses++
	t.rx = append(t.rx, t.PulseReply...)
	return nil
}
