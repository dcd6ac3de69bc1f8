package controller

import "time"

// pendingEvent is a button transition held back until its debounce window
// expires, so that an immediate reversal can cancel it.
type pendingEvent struct {
	ev       Event
	deadline time.Time
}

// debouncer absorbs contact jitter on button transitions. A transition is
// held for the window; if the opposite transition for the same button
// arrives before the deadline, both are dropped and the button's externally
// observed state is unchanged. Surviving events are always emitted in
// timestamp order: before any newer event is emitted, every older pending
// transition is emitted first.
//
// The debouncer is not safe for concurrent use; the reader's event loop is
// its only caller. Time is passed in by the caller, which keeps the logic
// deterministic under test.
type debouncer struct {
	window   time.Duration
	observed map[Button]bool // last state emitted downstream
	pending  []pendingEvent  // arrival order, which is also timestamp order
}

func newDebouncer(window time.Duration) *debouncer {
	return &debouncer{
		window:   window,
		observed: make(map[Button]bool),
	}
}

// Process accepts one raw event and returns the events to emit now.
func (d *debouncer) Process(ev Event, now time.Time) []Event {
	out := d.Flush(now)

	if ev.Kind == AxisMove {
		// Axis events never debounce, but they must not overtake a
		// pending button transition that will survive.
		out = append(out, d.drain()...)
		return append(out, ev)
	}

	if d.window <= 0 {
		d.observed[ev.Button] = ev.Kind == ButtonDown
		return append(out, ev)
	}

	if i := d.pendingIndex(ev.Button); i >= 0 {
		if d.pending[i].ev.Kind != ev.Kind {
			// Reversal within the window: the pulse was jitter.
			d.pending = append(d.pending[:i], d.pending[i+1:]...)
		}
		// Otherwise a driver repeat in the same direction; the held
		// entry keeps its place and timestamp.
		return out
	}
	if d.observed[ev.Button] == (ev.Kind == ButtonDown) {
		// Duplicate of the state already observed downstream.
		return out
	}

	d.pending = append(d.pending, pendingEvent{ev: ev, deadline: now.Add(d.window)})
	return out
}

// Flush emits every pending transition whose window has expired.
func (d *debouncer) Flush(now time.Time) []Event {
	var out []Event
	for len(d.pending) > 0 && !d.pending[0].deadline.After(now) {
		out = append(out, d.pending[0].ev)
		d.observed[d.pending[0].ev.Button] = d.pending[0].ev.Kind == ButtonDown
		d.pending = d.pending[1:]
	}
	return out
}

// drain emits every pending transition regardless of deadline.
func (d *debouncer) drain() []Event {
	var out []Event
	for _, p := range d.pending {
		out = append(out, p.ev)
		d.observed[p.ev.Button] = p.ev.Kind == ButtonDown
	}
	d.pending = nil
	return out
}

// NextDeadline reports when Flush next has work, if anything is pending.
func (d *debouncer) NextDeadline() (time.Time, bool) {
	if len(d.pending) == 0 {
		return time.Time{}, false
	}
	return d.pending[0].deadline, true
}

func (d *debouncer) pendingIndex(b Button) int {
	for i, p := range d.pending {
		if p.ev.Button == b {
			return i
		}
	}
	return -1
}
