package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"padmux/internal/actions"
	"padmux/internal/audio"
	"padmux/internal/controller"
	"padmux/internal/status"
	"padmux/internal/transcribe"
	"padmux/internal/vad"
)

type fakeController struct {
	events chan controller.Event
	err    error
}

func (f *fakeController) Events() <-chan controller.Event { return f.events }
func (f *fakeController) Err() error                      { return f.err }

type fakeSource struct {
	mu       sync.Mutex
	frames   chan audio.Frame
	startErr error
	starts   int
	stops    int
	err      error
}

func newFakeSource() *fakeSource {
	return &fakeSource{frames: make(chan audio.Frame, 64)}
}

func (f *fakeSource) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	return f.startErr
}

func (f *fakeSource) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func (f *fakeSource) Frames() <-chan audio.Frame { return f.frames }

func (f *fakeSource) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

type fakeTranscriber struct {
	mu      sync.Mutex
	calls   int
	text    string
	err     error
	release chan struct{} // when non-nil, Transcribe blocks until closed
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, seg vad.Segment) (transcribe.Result, error) {
	f.mu.Lock()
	f.calls++
	release := f.release
	text, err := f.text, f.err
	f.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return transcribe.Result{}, ctx.Err()
		}
	}
	return transcribe.Result{Text: text}, err
}

func (f *fakeTranscriber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingRunner struct {
	mu    sync.Mutex
	calls [][]string
}

func (r *recordingRunner) Run(_ context.Context, args ...string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, args)
	return "", nil
}

func (r *recordingRunner) snapshot() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]string, len(r.calls))
	copy(out, r.calls)
	return out
}

func (r *recordingRunner) find(match func([]string) bool) bool {
	for _, call := range r.snapshot() {
		if match(call) {
			return true
		}
	}
	return false
}

func isSendKeys(args []string, key string) bool {
	return len(args) >= 2 && args[0] == "send-keys" && args[len(args)-1] == key && args[len(args)-2] != "-l"
}

func isLiteralSend(args []string, text string) bool {
	if len(args) < 3 || args[0] != "send-keys" {
		return false
	}
	return args[len(args)-2] == "-l" && args[len(args)-1] == text
}

type harness struct {
	loop        *Loop
	ctrl        *fakeController
	source      *fakeSource
	transcriber *fakeTranscriber
	runner      *recordingRunner
	done        chan error
	cancel      context.CancelFunc
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctrl := &fakeController{events: make(chan controller.Event, 16)}
	source := newFakeSource()
	transcriber := &fakeTranscriber{text: "hello world"}
	runner := &recordingRunner{}

	bindings, err := actions.CompileBindings(map[string]string{
		"A":    "send_enter",
		"ZL_A": "cancel",
	}, controller.ButtonZL)
	require.NoError(t, err)

	loop := New(Config{
		Controller:  ctrl,
		Source:      source,
		Gate:        vad.NewGate(&vad.Energy{Threshold: 0.5}, 90*time.Millisecond, 0),
		Transcriber: transcriber,
		Registry:    actions.NewRegistry(logger),
		Bindings:    bindings,
		Tmux:        runner,
		Status:      status.NewManager(runner, logger, ""),
		PTTButton:   controller.ButtonZL,
		Logger:      logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	exited := make(chan struct{})
	go func() { done <- loop.Run(ctx); close(exited) }()

	h := &harness{loop: loop, ctrl: ctrl, source: source, transcriber: transcriber, runner: runner, done: done, cancel: cancel}
	// Tests may consume done themselves, so cleanup waits on the exit
	// signal rather than a second receive.
	t.Cleanup(func() {
		cancel()
		select {
		case <-exited:
		case <-time.After(2 * time.Second):
			t.Error("loop did not exit")
		}
	})
	return h
}

func (h *harness) press(b controller.Button) {
	h.ctrl.events <- controller.Event{Kind: controller.ButtonDown, Button: b, At: time.Now()}
}

func (h *harness) release(b controller.Button) {
	h.ctrl.events <- controller.Event{Kind: controller.ButtonUp, Button: b, At: time.Now()}
}

func speechFrame() audio.Frame {
	pcm := make([]int16, audio.FrameSamples)
	for i := range pcm {
		pcm[i] = 20000
	}
	return audio.Frame{SampleRate: audio.SampleRate, PCM: pcm}
}

func silenceFrame() audio.Frame {
	return audio.Frame{SampleRate: audio.SampleRate, PCM: make([]int16, audio.FrameSamples)}
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond, msg)
}

func TestSpokenHoldInjectsTranscript(t *testing.T) {
	h := newHarness(t)

	h.press(controller.ButtonZL)
	eventually(t, func() bool {
		h.source.mu.Lock()
		defer h.source.mu.Unlock()
		return h.source.starts == 1
	}, "capture never started")

	h.source.frames <- speechFrame()
	for i := 0; i < 3; i++ {
		h.source.frames <- silenceFrame()
	}

	eventually(t, func() bool { return h.transcriber.callCount() == 1 }, "transcription never invoked")
	h.release(controller.ButtonZL)
	eventually(t, func() bool {
		return h.runner.find(func(args []string) bool { return isLiteralSend(args, "hello world") })
	}, "transcript never injected")
}

func TestSilentHoldNeverTranscribes(t *testing.T) {
	h := newHarness(t)

	h.press(controller.ButtonZL)
	for i := 0; i < 10; i++ {
		h.source.frames <- silenceFrame()
	}
	h.release(controller.ButtonZL)

	eventually(t, func() bool {
		h.source.mu.Lock()
		defer h.source.mu.Unlock()
		return h.source.stops >= 1
	}, "capture never stopped")
	require.Zero(t, h.transcriber.callCount(), "silence must not reach the transcriber")
}

func TestInstantTapIsNoOp(t *testing.T) {
	h := newHarness(t)

	h.press(controller.ButtonZL)
	h.release(controller.ButtonZL)

	eventually(t, func() bool {
		h.source.mu.Lock()
		defer h.source.mu.Unlock()
		return h.source.stops >= 1
	}, "capture never stopped")
	require.Zero(t, h.transcriber.callCount())
}

func TestTrailingSilenceEmitsMidHold(t *testing.T) {
	h := newHarness(t)

	h.press(controller.ButtonZL)
	eventually(t, func() bool {
		h.source.mu.Lock()
		defer h.source.mu.Unlock()
		return h.source.starts == 1
	}, "capture never started")

	h.source.frames <- speechFrame()
	for i := 0; i < 3; i++ { // 90ms silence window over 30ms frames
		h.source.frames <- silenceFrame()
	}

	eventually(t, func() bool { return h.transcriber.callCount() == 1 },
		"trailing silence must finalize the segment while the button is still held")
}

func TestStaleFramesBeforeHoldAreDropped(t *testing.T) {
	h := newHarness(t)

	// Frames buffered while push-to-talk was up belong to no hold and
	// must never seed the next segment.
	for i := 0; i < 5; i++ {
		h.source.frames <- speechFrame()
	}

	h.press(controller.ButtonZL)
	eventually(t, func() bool {
		h.source.mu.Lock()
		defer h.source.mu.Unlock()
		return h.source.starts == 1
	}, "capture never started")

	for i := 0; i < 3; i++ {
		h.source.frames <- silenceFrame()
	}
	h.release(controller.ButtonZL)

	eventually(t, func() bool {
		h.source.mu.Lock()
		defer h.source.mu.Unlock()
		return h.source.stops >= 1
	}, "capture never stopped")
	require.Zero(t, h.transcriber.callCount(), "stale frames must not produce a segment")
}

func TestDuplicatePTTDownKeepsCapturing(t *testing.T) {
	h := newHarness(t)

	h.press(controller.ButtonZL)
	eventually(t, func() bool {
		h.source.mu.Lock()
		defer h.source.mu.Unlock()
		return h.source.starts == 1
	}, "capture never started")

	for i := 0; i < 4; i++ {
		h.source.frames <- speechFrame()
	}
	eventually(t, func() bool { return len(h.source.frames) == 0 }, "frames never consumed")

	// A second ButtonDown from a stuck or bouncing key must not wipe
	// the speech buffered so far.
	h.press(controller.ButtonZL)
	h.release(controller.ButtonZL)

	eventually(t, func() bool { return h.transcriber.callCount() == 1 },
		"buffered speech lost across a duplicate push-to-talk press")
}

func TestChordDispatch(t *testing.T) {
	h := newHarness(t)

	h.press(controller.ButtonA)
	eventually(t, func() bool {
		return h.runner.find(func(args []string) bool { return isSendKeys(args, "Enter") })
	}, "bare chord not dispatched")

	h.press(controller.ButtonZL)
	h.press(controller.ButtonA)
	eventually(t, func() bool {
		return h.runner.find(func(args []string) bool { return isSendKeys(args, "Escape") })
	}, "modifier chord not dispatched")
}

func TestUnboundChordIsNoOp(t *testing.T) {
	h := newHarness(t)

	h.press(controller.ButtonX)
	h.press(controller.ButtonA)
	eventually(t, func() bool {
		return h.runner.find(func(args []string) bool { return isSendKeys(args, "Enter") })
	}, "bound chord after unbound one not dispatched")

	for _, call := range h.runner.snapshot() {
		require.False(t, isSendKeys(call, "Escape"), "unbound chord must not dispatch")
	}
}

func TestChordDuringTranscriptionDispatchesFirst(t *testing.T) {
	h := newHarness(t)
	release := make(chan struct{})
	h.transcriber.mu.Lock()
	h.transcriber.release = release
	h.transcriber.mu.Unlock()

	h.press(controller.ButtonZL)
	eventually(t, func() bool {
		h.source.mu.Lock()
		defer h.source.mu.Unlock()
		return h.source.starts == 1
	}, "capture never started")
	h.source.frames <- speechFrame()
	for i := 0; i < 3; i++ {
		h.source.frames <- silenceFrame()
	}

	eventually(t, func() bool { return h.transcriber.callCount() == 1 }, "transcription never started")
	h.release(controller.ButtonZL)

	// While the transcriber is stuck, chords still flow.
	h.press(controller.ButtonA)
	eventually(t, func() bool {
		return h.runner.find(func(args []string) bool { return isSendKeys(args, "Enter") })
	}, "chord blocked behind transcription")

	close(release)
	eventually(t, func() bool {
		return h.runner.find(func(args []string) bool { return isLiteralSend(args, "hello world") })
	}, "transcript never landed")

	// The chord's key send must precede the transcript injection.
	var enterIdx, literalIdx int
	for i, call := range h.runner.snapshot() {
		if isSendKeys(call, "Enter") {
			enterIdx = i
		}
		if isLiteralSend(call, "hello world") {
			literalIdx = i
		}
	}
	require.Less(t, enterIdx, literalIdx)
}

func TestControllerLossStopsLoopWithoutReopen(t *testing.T) {
	h := newHarness(t)

	h.ctrl.err = controller.ErrControllerLost
	close(h.ctrl.events)

	select {
	case err := <-h.done:
		require.Error(t, err)
		require.ErrorIs(t, err, controller.ErrControllerLost)
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop on controller loss")
	}
}

func TestControllerReopensAfterLoss(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	first := &fakeController{events: make(chan controller.Event, 16)}
	second := &fakeController{events: make(chan controller.Event, 16)}
	source := newFakeSource()
	runner := &recordingRunner{}

	bindings, err := actions.CompileBindings(map[string]string{"A": "send_enter"}, controller.ButtonZL)
	require.NoError(t, err)

	var mu sync.Mutex
	attempts := 0
	loop := New(Config{
		Controller:  first,
		Source:      source,
		Gate:        vad.NewGate(&vad.Energy{Threshold: 0.5}, 90*time.Millisecond, 0),
		Transcriber: &fakeTranscriber{},
		Registry:    actions.NewRegistry(logger),
		Bindings:    bindings,
		Tmux:        runner,
		Status:      status.NewManager(runner, logger, ""),
		PTTButton:   controller.ButtonZL,
		Logger:      logger,
		Reopen: func() (ControllerSource, error) {
			mu.Lock()
			defer mu.Unlock()
			attempts++
			if attempts == 1 {
				return nil, controller.ErrControllerNotFound
			}
			return second, nil
		},
		ControllerRetry: 5 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	exited := make(chan struct{})
	go func() { done <- loop.Run(ctx); close(exited) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-exited:
		case <-time.After(2 * time.Second):
			t.Error("loop did not exit")
		}
	})

	first.err = controller.ErrControllerLost
	close(first.events)

	// The second device's events must flow once reopen succeeds, with
	// one failed attempt in between.
	second.events <- controller.Event{Kind: controller.ButtonDown, Button: controller.ButtonA, At: time.Now()}
	require.Eventually(t, func() bool {
		return runner.find(func(args []string) bool { return isSendKeys(args, "Enter") })
	}, 2*time.Second, 5*time.Millisecond, "events from reopened controller not dispatched")

	mu.Lock()
	require.GreaterOrEqual(t, attempts, 2)
	mu.Unlock()

	select {
	case err := <-done:
		t.Fatalf("loop exited on controller loss: %v", err)
	default:
	}
}

func TestBridgeLossIsSurvivable(t *testing.T) {
	h := newHarness(t)

	h.press(controller.ButtonZL)
	eventually(t, func() bool {
		h.source.mu.Lock()
		defer h.source.mu.Unlock()
		return h.source.starts == 1
	}, "capture never started")

	h.source.mu.Lock()
	h.source.err = errors.New("connection reset")
	h.source.mu.Unlock()
	close(h.source.frames)
	h.release(controller.ButtonZL)

	// The loop must keep dispatching chords after losing audio.
	h.press(controller.ButtonA)
	eventually(t, func() bool {
		return h.runner.find(func(args []string) bool { return isSendKeys(args, "Enter") })
	}, "loop wedged after bridge loss")

	select {
	case err := <-h.done:
		t.Fatalf("loop exited on bridge loss: %v", err)
	default:
	}
}

func TestTranscriptionFailureDoesNotCrash(t *testing.T) {
	h := newHarness(t)
	h.transcriber.mu.Lock()
	h.transcriber.err = errors.New("endpoint down")
	h.transcriber.mu.Unlock()

	h.press(controller.ButtonZL)
	eventually(t, func() bool {
		h.source.mu.Lock()
		defer h.source.mu.Unlock()
		return h.source.starts == 1
	}, "capture never started")
	h.source.frames <- speechFrame()
	for i := 0; i < 3; i++ {
		h.source.frames <- silenceFrame()
	}

	eventually(t, func() bool { return h.transcriber.callCount() == 1 }, "transcription never invoked")
	h.release(controller.ButtonZL)

	// Still alive and dispatching.
	h.press(controller.ButtonA)
	eventually(t, func() bool {
		return h.runner.find(func(args []string) bool { return isSendKeys(args, "Enter") })
	}, "loop wedged after transcription failure")
}
