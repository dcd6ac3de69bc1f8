package vad

import (
	"fmt"
	"math"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"

	"padmux/internal/audio"
)

// Detector classifies one frame as speech or not.
type Detector interface {
	IsSpeech(f audio.Frame) bool
}

// New builds the configured detector. threshold applies to the energy
// detector and to the webrtc detector's fallback path.
func New(kind string, threshold float64) (Detector, error) {
	switch kind {
	case "energy":
		return &Energy{Threshold: threshold}, nil
	case "webrtc":
		return NewWebRTC(threshold)
	default:
		return nil, fmt.Errorf("unknown detector %q", kind)
	}
}

// Energy is an RMS energy detector. Threshold compares against RMS
// normalized to [0, 1] over full-scale s16.
type Energy struct {
	Threshold float64
}

func (e *Energy) IsSpeech(f audio.Frame) bool {
	if len(f.PCM) == 0 {
		return false
	}
	var sum float64
	for _, s := range f.PCM {
		v := float64(s)
		sum += v * v
	}
	rms := math.Sqrt(sum/float64(len(f.PCM))) / 32768
	return rms >= e.Threshold
}

// WebRTC wraps the webrtcvad classifier, falling back to energy when a
// frame has a size or rate the classifier rejects.
type WebRTC struct {
	vad      *webrtcvad.VAD
	fallback Energy
}

// webrtcMode is the classifier aggressiveness, 0 (permissive) to 3.
const webrtcMode = 2

func NewWebRTC(threshold float64) (*WebRTC, error) {
	v, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("initializing webrtc vad: %w", err)
	}
	if err := v.SetMode(webrtcMode); err != nil {
		return nil, fmt.Errorf("setting webrtc vad mode: %w", err)
	}
	return &WebRTC{vad: v, fallback: Energy{Threshold: threshold}}, nil
}

func (w *WebRTC) IsSpeech(f audio.Frame) bool {
	buf := make([]byte, len(f.PCM)*2)
	for i, s := range f.PCM {
		buf[2*i] = byte(s)
		buf[2*i+1] = byte(s >> 8)
	}
	active, err := w.vad.Process(f.SampleRate, buf)
	if err != nil {
		return w.fallback.IsSpeech(f)
	}
	return active
}
