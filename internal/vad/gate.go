package vad

import (
	"time"

	"padmux/internal/audio"
)

// Segment is a bounded run of buffered audio ready for transcription.
// Buffering starts at the first above-threshold frame, so leading silence
// is never included.
type Segment struct {
	PCM        []int16
	SampleRate int
	Speech     time.Duration // total duration of above-threshold frames
	Frames     int
}

// Duration reports the segment's buffered length.
func (s Segment) Duration() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(s.PCM)) * time.Second / time.Duration(s.SampleRate)
}

// Gate assembles VoiceSegments from the frame stream between Begin (push
// to talk down) and End (push to talk up). A run of silenceFrames
// consecutive low-activity frames after speech emits the segment early,
// so a long hold can produce several segments. Segments with less than
// minSpeech of speech are dropped rather than emitted.
//
// The gate is passive and single-owner: only the dispatch loop calls it,
// so it carries no locking.
type Gate struct {
	detector      Detector
	silenceFrames int
	minSpeech     time.Duration

	state      State
	buf        []int16
	sampleRate int
	frames     int
	speech     time.Duration
	silenceRun int
}

// NewGate sizes the trailing-silence window in frames the same way the
// frame sources cut them, silenceDuration over the standard frame length.
func NewGate(detector Detector, silenceDuration, minSpeech time.Duration) *Gate {
	frameDur := time.Duration(audio.FrameSamples) * time.Second / audio.SampleRate
	n := int(silenceDuration / frameDur)
	if n < 1 {
		n = 1
	}
	return &Gate{
		detector:      detector,
		silenceFrames: n,
		minSpeech:     minSpeech,
		state:         StateIdle,
	}
}

// State exposes the gate's current state for logging and tests.
func (g *Gate) State() State { return g.state }

// Begin marks push-to-talk down. A duplicate Begin while a hold is
// already in progress (stuck key, driver repeat) is a no-op so buffered
// speech survives.
func (g *Gate) Begin() {
	next, err := Transition(g.state, EventBegin)
	if err != nil {
		return
	}
	g.state = next
	g.resetSegment()
}

// Feed processes one frame. The returned segment is valid only when ok is
// true, which happens at a trailing-silence boundary.
func (g *Gate) Feed(f audio.Frame) (Segment, bool) {
	if g.state == StateIdle {
		return Segment{}, false
	}

	isSpeech := g.detector.IsSpeech(f)

	if g.state == StateWaiting {
		if !isSpeech {
			return Segment{}, false
		}
		g.state, _ = Transition(g.state, EventSpeech)
	}

	g.buf = append(g.buf, f.PCM...)
	g.sampleRate = f.SampleRate
	g.frames++
	if isSpeech {
		g.speech += f.Duration()
		g.silenceRun = 0
		return Segment{}, false
	}

	g.silenceRun++
	if g.silenceRun < g.silenceFrames {
		return Segment{}, false
	}

	seg, ok := g.takeSegment()
	g.state, _ = Transition(g.state, EventBoundary)
	return seg, ok
}

// End marks push-to-talk up and flushes whatever is buffered.
func (g *Gate) End() (Segment, bool) {
	if g.state == StateIdle {
		return Segment{}, false
	}
	capturing := g.state == StateCapturing
	g.state, _ = Transition(g.state, EventEnd)
	if !capturing {
		g.resetSegment()
		return Segment{}, false
	}
	return g.takeSegment()
}

// takeSegment applies the minimum-speech policy and resets the buffers.
func (g *Gate) takeSegment() (Segment, bool) {
	seg := Segment{
		PCM:        g.buf,
		SampleRate: g.sampleRate,
		Speech:     g.speech,
		Frames:     g.frames,
	}
	g.buf = nil
	ok := len(seg.PCM) > 0 && seg.Speech >= g.minSpeech && seg.Speech > 0
	g.resetSegment()
	return seg, ok
}

func (g *Gate) resetSegment() {
	g.buf = nil
	g.frames = 0
	g.speech = 0
	g.silenceRun = 0
}
