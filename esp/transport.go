package esp

//go:generate go tool mockgen -destination=mock_transport.go -package=esp . Transport,Dialer,ResetLine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// Transport represents an established, duplex byte channel to an ESP8266.
//
// A Transport is assumed to be already connected and ready for use. The
// protocol engine never blocks on it: Available must return immediately
// with the number of bytes that can be read without waiting, and ReadByte is
// only called while Available reports data. Typical implementations are
// serial ports or in-memory fakes used for testing.
type Transport interface {
	Available() int
	ReadByte() (byte, error)
	Write(p []byte) (int, error)
	// Flush blocks until everything written has left the host.
	Flush() error
	Close() error
}

// Dialer opens a Transport to an ESP8266.
//
// Dialer abstracts how the module connection is created (for example, via a
// serial port or test double) and is used during Device construction only.
type Dialer interface {
	// Dial creates and returns a connected Transport. It may perform
	// blocking operations and should respect cancellation and deadlines
	// provided by the context.
	Dial(ctx context.Context) (Transport, error)
}

// ResetLine drives the module's hardware reset pin.
type ResetLine interface {
	// Pulse holds the module in reset briefly and releases it.
	Pulse(ctx context.Context) error
}

const (
	// resetPulse is how long the reset line is held low.
	resetPulse = 50 * time.Millisecond
	// pollReadTimeout bounds a single availability probe on the port.
	pollReadTimeout = time.Millisecond
)

// SerialDialer opens an ESP8266 over a serial port using go.bug.st/serial.
type SerialDialer struct {
	PortName string
	// Mode defaults to 115200 8N1 when nil.
	Mode *serial.Mode
}

// Dial implements Dialer.
func (d SerialDialer) Dial(ctx context.Context) (Transport, error) {
	if ctx == nil {
		return nil, errors.New("esp8266: context is nil")
	}
	if d.PortName == "" {
		return nil, errors.New("esp8266: serial port name is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mode := d.Mode
	if mode == nil {
		mode = &serial.Mode{
			BaudRate: 115200,
			Parity:   serial.NoParity,
			DataBits: 8,
			StopBits: serial.OneStopBit,
		}
	}

	port, err := serial.Open(d.PortName, mode)
	if err != nil {
		return nil, fmt.Errorf("esp8266: open %s: %w", d.PortName, err)
	}
	if err := port.SetReadTimeout(pollReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("esp8266: set read timeout on %s: %w", d.PortName, err)
	}
	return newSerialTransport(port), nil
}

// serialTransport adapts a serial.Port to Transport. Bytes picked up by an
// availability probe are held in buf until consumed by ReadByte.
type serialTransport struct {
	port    serial.Port
	buf     []byte
	scratch [256]byte
}

func newSerialTransport(port serial.Port) *serialTransport {
	return &serialTransport{port: port}
}

func (t *serialTransport) Available() int {
	if len(t.buf) == 0 {
		n, err := t.port.Read(t.scratch[:])
		if err == nil && n > 0 {
			t.buf = append(t.buf, t.scratch[:n]...)
		}
	}
	return len(t.buf)
}

func (t *serialTransport) ReadByte() (byte, error) {
	if t.Available() == 0 {
		return 0, io.EOF
	}
	b := t.buf[0]
	t.buf = t.buf[1:]
	return b, nil
}

func (t *serialTransport) Write(p []byte) (int, error) {
	return t.port.Write(p)
}

func (t *serialTransport) Flush() error {
	return t.port.Drain()
}

func (t *serialTransport) Close() error {
	return t.port.Close()
}

// Pulse implements ResetLine using RTS, which most USB-serial ESP8266
// boards route to the module's reset/enable pin. Pending input is discarded
// since the module emits boot noise while restarting.
func (t *serialTransport) Pulse(ctx context.Context) error {
	if err := t.port.SetRTS(true); err != nil {
		return fmt.Errorf("assert reset: %w", err)
	}

	timer := time.NewTimer(resetPulse)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		t.port.SetRTS(false)
		return ctx.Err()
	case <-timer.C:
	}

	if err := t.port.SetRTS(false); err != nil {
		return fmt.Errorf("release reset: %w", err)
	}
	t.buf = t.buf[:0]
	return t.port.ResetInputBuffer()
}
