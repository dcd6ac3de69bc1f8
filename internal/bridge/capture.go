package bridge

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gen2brain/malgo"

	"padmux/internal/audio"
)

const frameBytes = audio.FrameSamples * 2 // s16le mono

// Capture owns the host microphone through miniaudio and hands fixed-size
// frames to a sink, normally Server.Broadcast. Start and Stop are driven by
// client demand and are idempotent.
type Capture struct {
	logger *slog.Logger
	sink   func(audio.Frame)

	mu      sync.Mutex
	mctx    *malgo.AllocatedContext
	device  *malgo.Device
	pending []byte
	running bool
}

func NewCapture(logger *slog.Logger, sink func(audio.Frame)) *Capture {
	return &Capture{logger: logger, sink: sink}
}

func (c *Capture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}

	if c.mctx == nil {
		mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			return fmt.Errorf("initializing audio context: %w", err)
		}
		c.mctx = mctx
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = audio.SampleRate

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, data []byte, _ uint32) {
			c.onPCM(data)
		},
	}

	device, err := malgo.InitDevice(c.mctx.Context, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("opening capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("starting capture device: %w", err)
	}

	c.device = device
	c.pending = nil
	c.running = true
	c.logger.Info("microphone capture started", "sample_rate", audio.SampleRate)
	return nil
}

func (c *Capture) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	device := c.device
	c.device = nil
	c.pending = nil
	c.mu.Unlock()

	// Released outside the lock; the device may still deliver a last
	// data callback that takes it.
	device.Stop()
	device.Uninit()
	c.logger.Info("microphone capture stopped")
}

// Close stops capture and releases the audio context.
func (c *Capture) Close() {
	c.Stop()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mctx != nil {
		_ = c.mctx.Uninit()
		c.mctx.Free()
		c.mctx = nil
	}
}

// onPCM runs on the miniaudio callback thread. Whole frames are carved
// off and delivered; the remainder waits for the next callback.
func (c *Capture) onPCM(data []byte) {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.pending = append(c.pending, data...)
	var frames []audio.Frame
	c.pending, frames = carveFrames(c.pending)
	c.mu.Unlock()

	for _, f := range frames {
		c.sink(f)
	}
}

// carveFrames splits whole 30ms frames off pending s16le bytes. Sequence
// numbers are left zero; Broadcast stamps them per connection.
func carveFrames(pending []byte) ([]byte, []audio.Frame) {
	var frames []audio.Frame
	for len(pending) >= frameBytes {
		pcm := make([]int16, audio.FrameSamples)
		for i := range pcm {
			pcm[i] = int16(uint16(pending[2*i]) | uint16(pending[2*i+1])<<8)
		}
		frames = append(frames, audio.Frame{SampleRate: audio.SampleRate, PCM: pcm})
		pending = pending[frameBytes:]
	}
	return pending, frames
}
