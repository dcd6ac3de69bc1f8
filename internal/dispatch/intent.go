// Package dispatch runs the event loop that owns all mutable session
// state. Controller events, audio frames, and transcription results are
// funneled into a single goroutine, so chords and transcripts are applied
// in one serial order and the voice gate needs no locking.
package dispatch

import (
	"padmux/internal/controller"
	"padmux/internal/transcribe"
)

// intentKind discriminates the loop's unified event variants.
type intentKind int

const (
	intentChord intentKind = iota + 1
	intentTranscriptReady
	intentBridgeLost
)

// chord is one resolved controller input, modifier state already applied.
type chord struct {
	modifier bool
	button   controller.Button
}

// intent is the single event type the loop consumes.
type intent struct {
	kind   intentKind
	chord  chord
	result transcribe.Result
	err    error
}
