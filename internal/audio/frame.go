// Package audio defines the capture frame format and the sources that
// produce it: a local PulseAudio microphone or the remote host bridge.
package audio

import (
	"context"
	"time"
)

const (
	// SampleRate is the capture rate used end to end. The transcription
	// backends expect 16kHz mono, so sources resample or request it.
	SampleRate = 16000

	// FrameSamples is one 30ms frame at SampleRate, the unit the voice
	// activity gate operates on.
	FrameSamples = 480

	frameBytes = FrameSamples * 2 // s16le
)

// Frame is one fixed-duration chunk of mono PCM. Seq increases by one per
// frame within a source's lifetime; gaps indicate loss upstream.
type Frame struct {
	Seq        uint64
	SampleRate int
	PCM        []int16
}

// Duration reports the frame's wall-clock length.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(f.PCM)) * time.Second / time.Duration(f.SampleRate)
}

// Source is a restartable capture stream. Start and Stop are idempotent;
// frames arrive on Frames between a Start and the matching Stop. The
// channel persists across Start/Stop cycles and closes only when the
// source fails permanently, with the cause available from Err.
type Source interface {
	Start(ctx context.Context) error
	Stop() error
	Frames() <-chan Frame
	Err() error
}

// splitFrames carves whole frames off pending PCM bytes, stamping each
// with the next sequence number. Leftover bytes are returned as the new
// pending buffer.
func splitFrames(pending []byte, seq *uint64) ([]byte, []Frame) {
	var frames []Frame
	for len(pending) >= frameBytes {
		pcm := make([]int16, FrameSamples)
		for i := range pcm {
			pcm[i] = int16(uint16(pending[2*i]) | uint16(pending[2*i+1])<<8)
		}
		frames = append(frames, Frame{Seq: *seq, SampleRate: SampleRate, PCM: pcm})
		*seq++
		pending = pending[frameBytes:]
	}
	return pending, frames
}
