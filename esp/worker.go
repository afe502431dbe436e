package esp

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"i4.energy/across/esp8266/at"
)

// Worker owns a Device and serialises access to it from a single goroutine.
// While no request is pending it polls the module and publishes whatever it
// classifies (Link/Unlink notifications, +IPD frames, other chatter) on the
// Events channel.
type Worker struct {
	device *Device
	// requests queues operations for the Loop to run
	requests chan *request
	// events receives classified module output seen while idle
	events  chan at.Response
	running atomic.Bool
}

// request is an operation to be run by the Loop on behalf of Do.
type request struct {
	fn   func(ctx context.Context, d *Device) error
	ctx  context.Context
	errc chan error
}

// NewWorker wraps d. The Device must not be used directly once the
// Worker's Loop is running.
func NewWorker(d *Device) *Worker {
	return &Worker{
		device: d,
		// No queue for requests
		requests: make(chan *request),
		events:   make(chan at.Response, 100),
	}
}

// Loop runs requests and idle polls until ctx is cancelled or the Device
// fails. It must be running for Do to make progress, and only one Loop may
// run at a time.
//
// Usage:
//
//	w := esp.NewWorker(device)
//	go w.Loop(ctx)
//
//	err := w.Do(ctx, func(ctx context.Context, d *esp.Device) error {
//		return d.CheckWifi(ctx)
//	})
func (w *Worker) Loop(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	defer w.running.Store(false)

	interval := time.Duration(w.device.config.IdleTicks) * w.device.config.Tick
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case req := <-w.requests:
			if err := req.ctx.Err(); err != nil {
				req.errc <- err
				continue
			}
			req.errc <- req.fn(req.ctx, w.device)

		case <-ticker.C:
			resp, err := w.device.ReadCmd()
			if err != nil {
				return fmt.Errorf("idle read: %w", err)
			}
			if resp.Kind == at.KindEmpty {
				continue
			}
			select {
			case w.events <- resp:
			default:
				// Events channel is full - drop the response
				w.device.logger.Warn("event dropped", "kind", resp.Kind.String())
			}
		}
	}
}

// Events returns a read-only channel of classified output that arrived
// while no request was running. The channel is buffered, but responses are
// dropped if it is not consumed fast enough.
func (w *Worker) Events() <-chan at.Response {
	return w.events
}

// Do runs fn on the Loop goroutine and returns its error. fn receives the
// same ctx and must not retain the Device.
func (w *Worker) Do(ctx context.Context, fn func(ctx context.Context, d *Device) error) error {
	req := &request{
		fn:   fn,
		ctx:  ctx,
		errc: make(chan error, 1), // Buffered to prevent blocking
	}

	select {
	case w.requests <- req:
	case <-ctx.Done():
		return fmt.Errorf("request cancelled before start: %w", ctx.Err())
	}

	select {
	case err := <-req.errc:
		return err
	case <-ctx.Done():
		return fmt.Errorf("request timeout: %w", ctx.Err())
	}
}
