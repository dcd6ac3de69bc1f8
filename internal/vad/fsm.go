// Package vad gates captured audio on voice activity: it buffers speech
// between push-to-talk down and either push-to-talk up or a run of
// trailing silence, and drops segments too short to transcribe.
package vad

import "fmt"

type State string

type Event string

const (
	// StateIdle: push-to-talk not held, nothing buffered.
	StateIdle State = "idle"
	// StateWaiting: held, no speech observed yet.
	StateWaiting State = "waiting"
	// StateCapturing: held and buffering a speech segment.
	StateCapturing State = "capturing"
)

const (
	EventBegin    Event = "begin"
	EventSpeech   Event = "speech"
	EventBoundary Event = "boundary"
	EventEnd      Event = "end"
)

func Transition(current State, event Event) (State, error) {
	switch current {
	case StateIdle:
		switch event {
		case EventBegin:
			return StateWaiting, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateWaiting:
		switch event {
		case EventSpeech:
			return StateCapturing, nil
		case EventEnd:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateCapturing:
		switch event {
		case EventBoundary:
			return StateWaiting, nil
		case EventEnd:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
