package controller

import "time"

// Kind discriminates controller event variants.
type Kind int

const (
	ButtonDown Kind = iota + 1
	ButtonUp
	AxisMove
)

// Event is one discrete controller input. Immutable once produced.
type Event struct {
	Kind   Kind
	Button Button
	Axis   Axis
	Value  float64 // normalized axis value in [-1, 1], zero for button events
	At     time.Time
}

// String renders the event for logs.
func (k Kind) String() string {
	switch k {
	case ButtonDown:
		return "button_down"
	case ButtonUp:
		return "button_up"
	case AxisMove:
		return "axis_move"
	default:
		return "unknown"
	}
}
