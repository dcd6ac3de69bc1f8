package vad

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"padmux/internal/audio"
)

func speechFrame(seq uint64) audio.Frame {
	pcm := make([]int16, audio.FrameSamples)
	for i := range pcm {
		pcm[i] = 20000 // normalized RMS ~0.61, comfortably above 0.5
	}
	return audio.Frame{Seq: seq, SampleRate: audio.SampleRate, PCM: pcm}
}

func silenceFrame(seq uint64) audio.Frame {
	return audio.Frame{Seq: seq, SampleRate: audio.SampleRate, PCM: make([]int16, audio.FrameSamples)}
}

func newTestGate(silence, minSpeech time.Duration) *Gate {
	return NewGate(&Energy{Threshold: 0.5}, silence, minSpeech)
}

func TestGateEmitsAtExactSilenceBoundary(t *testing.T) {
	// 800ms of trailing silence over 30ms frames is 26 frames.
	g := newTestGate(800*time.Millisecond, 0)
	g.Begin()

	var seq uint64
	for i := 0; i < 5; i++ {
		_, ok := g.Feed(speechFrame(seq))
		require.False(t, ok)
		seq++
	}

	// One frame short of the boundary must not emit.
	for i := 0; i < 25; i++ {
		_, ok := g.Feed(silenceFrame(seq))
		require.False(t, ok, "emitted at silence frame %d", i+1)
		seq++
	}

	seg, ok := g.Feed(silenceFrame(seq))
	require.True(t, ok, "boundary frame must emit")
	require.Equal(t, 5*30*time.Millisecond, seg.Speech)
	require.Equal(t, 31, seg.Frames) // 5 speech + 26 silence
	require.Equal(t, StateWaiting, g.State(), "gate keeps listening for another segment")
}

func TestGateSpeechResetsSilenceRun(t *testing.T) {
	g := newTestGate(90*time.Millisecond, 0) // 3 frames
	g.Begin()

	g.Feed(speechFrame(0))
	g.Feed(silenceFrame(1))
	g.Feed(silenceFrame(2))
	_, ok := g.Feed(speechFrame(3)) // resets the run
	require.False(t, ok)
	g.Feed(silenceFrame(4))
	g.Feed(silenceFrame(5))
	seg, ok := g.Feed(silenceFrame(6))
	require.True(t, ok)
	require.Equal(t, 60*time.Millisecond, seg.Speech)
}

func TestGatePureSilenceNeverEmits(t *testing.T) {
	g := newTestGate(90*time.Millisecond, 0)
	g.Begin()

	for i := uint64(0); i < 50; i++ {
		_, ok := g.Feed(silenceFrame(i))
		require.False(t, ok)
	}

	_, ok := g.End()
	require.False(t, ok, "a hold over pure silence produces no segment")
	require.Equal(t, StateIdle, g.State())
}

func TestGateNoFramesTapIsNoOp(t *testing.T) {
	g := newTestGate(800*time.Millisecond, 100*time.Millisecond)
	g.Begin()
	_, ok := g.End()
	require.False(t, ok)
	require.Equal(t, StateIdle, g.State())
}

func TestGateEndFlushesBufferedSpeech(t *testing.T) {
	g := newTestGate(800*time.Millisecond, 0)
	g.Begin()

	for i := uint64(0); i < 4; i++ {
		g.Feed(speechFrame(i))
	}

	seg, ok := g.End()
	require.True(t, ok)
	require.Equal(t, 4*30*time.Millisecond, seg.Speech)
	require.Len(t, seg.PCM, 4*audio.FrameSamples)
}

func TestGateDropsShortSpeech(t *testing.T) {
	g := newTestGate(800*time.Millisecond, 100*time.Millisecond)
	g.Begin()

	g.Feed(speechFrame(0)) // 30ms of speech, under the 100ms minimum
	_, ok := g.End()
	require.False(t, ok)
}

func TestGateLeadingSilenceExcluded(t *testing.T) {
	g := newTestGate(800*time.Millisecond, 0)
	g.Begin()

	g.Feed(silenceFrame(0))
	g.Feed(silenceFrame(1))
	g.Feed(speechFrame(2))

	seg, ok := g.End()
	require.True(t, ok)
	require.Len(t, seg.PCM, audio.FrameSamples, "buffer must start at the first speech frame")
}

func TestGateMultipleSegmentsPerHold(t *testing.T) {
	g := newTestGate(90*time.Millisecond, 0)
	g.Begin()

	feedSegment := func() Segment {
		t.Helper()
		g.Feed(speechFrame(0))
		g.Feed(silenceFrame(0))
		g.Feed(silenceFrame(0))
		seg, ok := g.Feed(silenceFrame(0))
		require.True(t, ok)
		return seg
	}

	first := feedSegment()
	second := feedSegment()
	require.Equal(t, first.Speech, second.Speech)

	_, ok := g.End()
	require.False(t, ok, "nothing left after boundary emission")
}

func TestGateDuplicateBeginKeepsBufferedSpeech(t *testing.T) {
	g := newTestGate(800*time.Millisecond, 0)
	g.Begin()

	for i := uint64(0); i < 4; i++ {
		g.Feed(speechFrame(i))
	}

	// A repeated ButtonDown from a stuck key must not wipe the hold.
	g.Begin()
	require.Equal(t, StateCapturing, g.State())

	seg, ok := g.End()
	require.True(t, ok)
	require.Equal(t, 4*30*time.Millisecond, seg.Speech)
	require.Len(t, seg.PCM, 4*audio.FrameSamples)
}

func TestGateDuplicateBeginWhileWaitingIsNoOp(t *testing.T) {
	g := newTestGate(800*time.Millisecond, 0)
	g.Begin()
	g.Begin()
	require.Equal(t, StateWaiting, g.State())

	g.Feed(speechFrame(0))
	seg, ok := g.End()
	require.True(t, ok)
	require.Equal(t, 30*time.Millisecond, seg.Speech)
}
