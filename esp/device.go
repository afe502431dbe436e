package esp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"i4.energy/across/esp8266/at"
)

// Device drives an ESP8266 over a Transport using AT commands.
//
// A Device is a single-threaded protocol engine: every read happens inside
// the calling goroutine while it waits for a reply, and it assumes exclusive
// use of its Transport. It must not be used from more than one goroutine at
// a time; wrap it in a Worker when concurrent callers need it.
type Device struct {
	// transport provides the physical connection to the module
	transport Transport
	// config contains the device configuration settings, defaults applied
	config Config
	logger *slog.Logger
	// closed indicates if the device has been shut down
	closed bool
	// state caches what successful exchanges revealed about the module
	state ConnectionState
}

// ConnectionState is what the Device last learned about the module. It is
// informational only and never consulted by the protocol engine.
type ConnectionState struct {
	IP         string
	ServerPort string
	TxMode     bool
}

// DialerFunc adapts an ordinary function to the Dialer interface.
type DialerFunc func(ctx context.Context) (Transport, error)

func (f DialerFunc) Dial(ctx context.Context) (Transport, error) {
	return f(ctx)
}

// New creates a Device with the given configuration and opens its
// transport. The module itself is not touched; call Init or the individual
// operations afterwards.
func New(ctx context.Context, config Config) (*Device, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	config.setDefaults()

	transport, err := config.Dialer.Dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	if transport == nil {
		return nil, ErrNotInitialized
	}

	return &Device{
		transport: transport,
		config:    config,
		logger:    config.Logger,
		state:     ConnectionState{IP: "0.0.0.0"},
	}, nil
}

// Close releases the transport. After calling Close the Device cannot be
// reused.
func (d *Device) Close() error {
	if d.closed {
		return ErrAlreadyClosed
	}
	d.closed = true

	if d.transport != nil {
		return d.transport.Close()
	}
	return nil
}

// State returns a copy of the cached connection state.
func (d *Device) State() ConnectionState {
	return d.state
}

func (d *Device) ready() error {
	if d.closed {
		return ErrAlreadyClosed
	}
	if d.transport == nil {
		return ErrNotInitialized
	}
	return nil
}

// drain reads everything the transport has buffered right now, up to
// MaxResponse bytes, mirroring each byte to the observer.
func (d *Device) drain() string {
	var sb strings.Builder
	for sb.Len() < d.config.MaxResponse && d.transport.Available() > 0 {
		b, err := d.transport.ReadByte()
		if err != nil {
			d.logger.Debug("read failed", "error", err)
			break
		}
		sb.WriteByte(b)
		if d.config.Observer != nil {
			d.config.Observer.Write([]byte{b})
		}
	}
	return sb.String()
}

// ReadAll returns whatever the module has sent since the last read,
// without waiting.
func (d *Device) ReadAll() (string, error) {
	if err := d.ready(); err != nil {
		return "", err
	}
	return d.drain(), nil
}

// ReadCmd drains pending output and classifies it. An idle module yields
// a response of kind at.KindEmpty.
func (d *Device) ReadCmd() (at.Response, error) {
	if err := d.ready(); err != nil {
		return at.Response{}, err
	}
	return at.Classify(d.drain()), nil
}

// Await waits up to the configured budget for expected to show up in the
// module output.
func (d *Device) Await(ctx context.Context, expected string) error {
	return d.AwaitWithin(ctx, expected, d.config.Budget)
}

// AwaitWithin polls the transport up to budget times for expected. Each
// poll drains the transport and looks for expected in what it got; polls
// that drained nothing are followed by one tick of sleep. A budget below one
// still polls once, so it only succeeds when the reply is already buffered.
//
// On failure the returned *ResponseError wraps ErrNoResponse when the last
// poll drained nothing and ErrTokenNotFound otherwise.
func (d *Device) AwaitWithin(ctx context.Context, expected string, budget int) error {
	if err := d.ready(); err != nil {
		return err
	}

	var raw string
	for i := 0; ; i++ {
		raw = d.drain()
		if raw != "" && at.Contains(raw, expected) {
			return nil
		}
		if i+1 >= budget {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if raw == "" {
			d.config.Sleep(d.config.Tick)
		}
	}

	if raw == "" {
		return &ResponseError{Expected: expected, Err: ErrNoResponse}
	}
	return &ResponseError{Expected: expected, Raw: raw, Err: ErrTokenNotFound}
}

// collect is like AwaitWithin but keeps everything drained along the way
// and returns it, for commands whose reply carries data.
func (d *Device) collect(ctx context.Context, expected string, budget int) (string, error) {
	var sb strings.Builder
	for i := 0; ; i++ {
		raw := d.drain()
		sb.WriteString(raw)
		if raw != "" && at.Contains(sb.String(), expected) {
			return sb.String(), nil
		}
		if i+1 >= budget || sb.Len() >= d.config.MaxResponse {
			break
		}
		if err := ctx.Err(); err != nil {
			return sb.String(), err
		}
		if raw == "" {
			d.config.Sleep(d.config.Tick)
		}
	}

	if sb.Len() == 0 {
		return "", &ResponseError{Expected: expected, Err: ErrNoResponse}
	}
	return sb.String(), &ResponseError{Expected: expected, Raw: sb.String(), Err: ErrTokenNotFound}
}

// Send writes cmd followed by CRLF and returns without waiting for a reply.
func (d *Device) Send(cmd string) error {
	if err := d.ready(); err != nil {
		return err
	}
	d.logger.Debug("send command", "command", commandName(cmd))
	if _, err := d.transport.Write([]byte(cmd + at.CRLF)); err != nil {
		return fmt.Errorf("write command %q: %w", commandName(cmd), err)
	}
	return nil
}

// Expect sends cmd and waits up to the configured budget for expected.
func (d *Device) Expect(ctx context.Context, cmd, expected string) error {
	return d.ExpectWithin(ctx, cmd, expected, d.config.Budget)
}

// ExpectWithin sends cmd and waits up to budget polls for expected.
func (d *Device) ExpectWithin(ctx context.Context, cmd, expected string, budget int) error {
	if err := d.Send(cmd); err != nil {
		return err
	}
	return d.AwaitWithin(ctx, expected, budget)
}

// commandName strips the arguments from cmd so credentials never reach
// the logs.
func commandName(cmd string) string {
	if i := strings.IndexByte(cmd, '='); i >= 0 {
		return cmd[:i]
	}
	return cmd
}
