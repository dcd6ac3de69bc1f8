package audio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// Local captures from a PulseAudio source on this machine. It satisfies
// Source and survives repeated Start/Stop cycles, one per push-to-talk
// hold.
type Local struct {
	device string
	logger *slog.Logger

	frames chan Frame

	mu       sync.Mutex
	client   *pulse.Client
	stream   *pulse.RecordStream
	stopCh   chan struct{}
	pending  []byte
	seq      uint64
	running  bool
	err      error
	inflight sync.WaitGroup
}

// NewLocal builds an idle local source. No Pulse connection is made until
// Start, so construction never fails.
func NewLocal(device string, logger *slog.Logger) *Local {
	return &Local{
		device: device,
		logger: logger,
		frames: make(chan Frame, 64),
	}
}

// Frames returns the shared frame channel.
func (l *Local) Frames() <-chan Frame { return l.frames }

// Err reports a permanent source failure, nil otherwise.
func (l *Local) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Start opens a 16kHz mono s16 record stream. Calling Start while already
// capturing is a no-op.
func (l *Local) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return nil
	}

	selection, err := SelectDevice(ctx, l.device)
	if err != nil {
		return err
	}
	if selection.Warning != "" {
		l.logger.Warn("audio device fallback", "warning", selection.Warning)
	}

	client, err := pulse.NewClient(
		pulse.ClientApplicationName("padmux"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return fmt.Errorf("connect pulse server: %w", err)
	}

	source, err := client.SourceByID(selection.Device.ID)
	if err != nil {
		client.Close()
		return fmt.Errorf("resolve source %q: %w", selection.Device.ID, err)
	}

	l.stopCh = make(chan struct{})
	writer := pulse.NewWriter(writerFunc(l.onPCM), pulseproto.FormatInt16LE)
	stream, err := client.NewRecord(
		writer,
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(SampleRate),
		pulse.RecordBufferFragmentSize(frameBytes),
		pulse.RecordMediaName("padmux dictation"),
	)
	if err != nil {
		client.Close()
		return fmt.Errorf("create pulse record stream: %w", err)
	}

	l.client = client
	l.stream = stream
	l.pending = nil
	l.running = true
	stream.Start()

	l.logger.Info("local capture started", "device", selection.Device.ID)
	return nil
}

// Stop halts the stream and releases the Pulse connection. The frame
// channel stays open for the next Start.
func (l *Local) Stop() error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return nil
	}
	l.running = false
	close(l.stopCh)
	stream, client := l.stream, l.client
	l.stream, l.client = nil, nil
	l.mu.Unlock()

	if stream != nil {
		stream.Stop()
		stream.Close()
	}
	if client != nil {
		client.Close()
	}

	l.inflight.Wait()

	l.mu.Lock()
	l.pending = nil
	l.mu.Unlock()
	return nil
}

// onPCM receives raw Pulse bytes and emits whole frames. A full channel
// drops the frame instead of blocking the Pulse reader.
func (l *Local) onPCM(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return 0, io.EOF
	}
	// Add under the same mutex as l.running to avoid Add/Wait races.
	l.inflight.Add(1)
	l.pending = append(l.pending, buffer...)
	pending, frames := splitFrames(l.pending, &l.seq)
	l.pending = pending
	stopCh := l.stopCh
	l.mu.Unlock()
	defer l.inflight.Done()

	for _, frame := range frames {
		select {
		case <-stopCh:
			return 0, io.EOF
		case l.frames <- frame:
		default:
			l.logger.Debug("dropping frame, consumer behind", "seq", frame.Seq)
		}
	}
	return len(buffer), nil
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}
