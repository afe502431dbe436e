package esp_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"i4.energy/across/esp8266/at"
	"i4.energy/across/esp8266/esp"
)

func newWorker(t *testing.T, tr *esp.TestTransport) (*esp.Worker, context.Context, chan error) {
	t.Helper()
	d, _ := newTestDevice(t, tr, 5)
	w := esp.NewWorker(d)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	loopDone := make(chan error, 1)
	go func() {
		loopDone <- w.Loop(ctx)
	}()
	return w, ctx, loopDone
}

func TestWorker(t *testing.T) {
	t.Run("Runs requests on the loop", func(t *testing.T) {
		tr := esp.NewTestTransport()
		tr.Reply("AT\r\n", "AT\r\r\n\r\nOK\r\n")
		w, ctx, _ := newWorker(t, tr)

		reqCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()

		err := w.Do(reqCtx, func(ctx context.Context, d *esp.Device) error {
			return d.CheckWifi(ctx)
		})
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("Returns request errors", func(t *testing.T) {
		tr := esp.NewTestTransport()
		w, ctx, _ := newWorker(t, tr)

		reqCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()

		err := w.Do(reqCtx, func(ctx context.Context, d *esp.Device) error {
			return d.CloseTCP(ctx)
		})
		if !errors.Is(err, esp.ErrUnableToUnlink) {
			t.Errorf("expected ErrUnableToUnlink, got: %v", err)
		}
	})

	t.Run("Publishes idle frames", func(t *testing.T) {
		tr := esp.NewTestTransport()
		w, _, _ := newWorker(t, tr)

		tr.Feed("+IPD,2,4:ping")

		select {
		case resp := <-w.Events():
			if resp.Kind != at.KindFrame {
				t.Fatalf("expected frame, got %v", resp.Kind)
			}
			if resp.Frame.Channel != 2 || string(resp.Frame.Payload) != "ping" {
				t.Errorf("unexpected frame: %+v", resp.Frame)
			}
		case <-time.After(time.Second):
			t.Fatal("no event published")
		}
	})

	t.Run("Stops on cancellation", func(t *testing.T) {
		tr := esp.NewTestTransport()
		d, _ := newTestDevice(t, tr, 5)
		w := esp.NewWorker(d)

		ctx, cancel := context.WithCancel(context.Background())
		loopDone := make(chan error, 1)
		go func() {
			loopDone <- w.Loop(ctx)
		}()

		cancel()
		select {
		case err := <-loopDone:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got: %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("loop did not stop")
		}
	})

	t.Run("Stops when the device is closed", func(t *testing.T) {
		tr := esp.NewTestTransport()
		w, ctx, loopDone := newWorker(t, tr)

		reqCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		w.Do(reqCtx, func(ctx context.Context, d *esp.Device) error {
			return d.Close()
		})

		select {
		case err := <-loopDone:
			if !errors.Is(err, esp.ErrAlreadyClosed) {
				t.Errorf("expected ErrAlreadyClosed, got: %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("loop did not stop")
		}
	})

	t.Run("ErrLoopRunning on second loop", func(t *testing.T) {
		tr := esp.NewTestTransport()
		tr.Reply("AT\r\n", "OK\r\n")
		w, ctx, _ := newWorker(t, tr)

		// A completed request proves the first loop is up
		reqCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := w.Do(reqCtx, func(ctx context.Context, d *esp.Device) error {
			return d.CheckWifi(ctx)
		}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if err := w.Loop(ctx); err != esp.ErrLoopRunning {
			t.Errorf("expected ErrLoopRunning, got: %v", err)
		}
	})

	t.Run("Do gives up when nobody runs the loop", func(t *testing.T) {
		tr := esp.NewTestTransport()
		d, _ := newTestDevice(t, tr, 5)
		w := esp.NewWorker(d)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		err := w.Do(ctx, func(ctx context.Context, d *esp.Device) error { return nil })
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected context.DeadlineExceeded, got: %v", err)
		}
	})
}
