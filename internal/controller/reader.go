package controller

import (
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"padmux/internal/config"
)

// ErrControllerNotFound is returned by Open when no gamepad device is
// present (or the configured device path does not exist).
var ErrControllerNotFound = errors.New("no gamepad device found")

// ErrControllerLost is reported via Err after the device disappears
// mid-session, typically a USB unplug or Bluetooth drop.
var ErrControllerLost = errors.New("controller device lost")

// Reader owns one opened gamepad device and translates its raw input
// stream into debounced Events. The Events channel closes when the device
// is lost or the reader is closed; Err distinguishes the two.
type Reader struct {
	cfg    config.ControllerConfig
	logger *slog.Logger

	file   *os.File
	path   string
	axes   map[Axis]axisRange
	events chan Event
	raw    chan Event

	mu        sync.Mutex
	err       error
	closeOnce sync.Once
}

// Path reports the device path the reader is attached to.
func (r *Reader) Path() string { return r.path }

// Events returns the debounced event stream. Closed on device loss or Close.
func (r *Reader) Events() <-chan Event { return r.events }

// Err reports why the event stream ended. Nil after a clean Close.
func (r *Reader) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Reader) setErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err == nil {
		r.err = err
	}
}

// Close releases the device. Safe to call more than once.
func (r *Reader) Close() error {
	var err error
	r.closeOnce.Do(func() {
		err = r.file.Close()
	})
	return err
}

// debounceLoop sits between the raw parse loop and the public Events
// channel. It owns the debouncer and a flush timer so that held-back
// transitions are emitted when their window expires even if the device
// goes quiet.
func (r *Reader) debounceLoop() {
	defer close(r.events)

	deb := newDebouncer(r.cfg.Debounce())
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		var timerC <-chan time.Time
		if deadline, ok := deb.NextDeadline(); ok {
			timer.Reset(time.Until(deadline))
			timerC = timer.C
		}

		select {
		case ev, ok := <-r.raw:
			if timerC != nil && !timer.Stop() {
				<-timer.C
			}
			if !ok {
				r.emit(deb.drain())
				return
			}
			r.emit(deb.Process(ev, time.Now()))
		case now := <-timerC:
			r.emit(deb.Flush(now))
		}
	}
}

func (r *Reader) emit(evs []Event) {
	for _, ev := range evs {
		r.events <- ev
	}
}
