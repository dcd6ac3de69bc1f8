package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"padmux/internal/actions"
	"padmux/internal/audio"
	"padmux/internal/bridge"
	"padmux/internal/controller"
	"padmux/internal/status"
	"padmux/internal/tmux"
	"padmux/internal/transcribe"
	"padmux/internal/vad"
)

// Backoff bounds for retrying an unavailable bridge at push-to-talk time.
const (
	retryBackoffMin = time.Second
	retryBackoffMax = 30 * time.Second
)

// ControllerSource is the slice of controller.Reader the loop consumes.
type ControllerSource interface {
	Events() <-chan controller.Event
	Err() error
}

// Config wires the loop's collaborators.
type Config struct {
	Controller  ControllerSource
	Source      audio.Source
	Gate        *vad.Gate
	Transcriber transcribe.Transcriber
	Registry    *actions.Registry
	Bindings    actions.Bindings
	Tmux        tmux.Runner
	Status      *status.Manager
	PTTButton   controller.Button
	Logger      *slog.Logger

	// Reopen reattaches to the controller after its event stream ends.
	// When nil, controller loss stops the loop instead.
	Reopen func() (ControllerSource, error)

	// ControllerRetry is the base backoff between reopen attempts;
	// zero means retryBackoffMin.
	ControllerRetry time.Duration
}

// Loop is the dispatch loop. Run owns every field below; nothing else
// touches them.
type Loop struct {
	cfg Config

	intents chan intent

	controller ControllerSource
	events     <-chan controller.Event
	ctrlRetry  <-chan time.Time
	ctrlWait   time.Duration

	pttHeld     bool
	captureDead bool
	inflight    int
	backoff     time.Duration
	nextRetry   time.Time
}

func New(cfg Config) *Loop {
	if cfg.ControllerRetry <= 0 {
		cfg.ControllerRetry = retryBackoffMin
	}
	return &Loop{
		cfg:      cfg,
		intents:  make(chan intent, 16),
		backoff:  retryBackoffMin,
		ctrlWait: cfg.ControllerRetry,
	}
}

// Run processes events until the context is cancelled. Bridge loss is
// survivable, and so is controller loss when a Reopen hook is wired.
func (l *Loop) Run(ctx context.Context) error {
	l.cfg.Status.Set(ctx, "ready")
	defer l.cfg.Status.Clear(context.WithoutCancel(ctx))
	defer l.cfg.Source.Stop()

	l.controller = l.cfg.Controller
	l.events = l.controller.Events()
	defer l.closeController()

	for {
		// The frame channel is consulted only while push-to-talk is
		// held and capture is live; a nil channel parks its select
		// case.
		var frames <-chan audio.Frame
		if l.pttHeld && !l.captureDead {
			frames = l.cfg.Source.Frames()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-l.events:
			if !ok {
				if l.cfg.Reopen == nil {
					return l.controllerLost(ctx)
				}
				l.controllerGone(ctx)
				continue
			}
			l.handleControllerEvent(ctx, ev)

		case <-l.ctrlRetry:
			l.retryController(ctx)

		case f, ok := <-frames:
			if !ok {
				l.captureDead = true
				l.handleIntent(ctx, intent{kind: intentBridgeLost})
				continue
			}
			if seg, ready := l.cfg.Gate.Feed(f); ready {
				l.beginTranscription(ctx, seg)
			}

		case in := <-l.intents:
			l.handleIntent(ctx, in)
		}
	}
}

func (l *Loop) handleControllerEvent(ctx context.Context, ev controller.Event) {
	switch ev.Kind {
	case controller.AxisMove:
		// Stick motion is reserved; nothing is bound to it yet.
		return

	case controller.ButtonDown:
		if ev.Button == l.cfg.PTTButton {
			l.pttDown(ctx)
			return
		}
		l.handleIntent(ctx, intent{
			kind:  intentChord,
			chord: chord{modifier: l.pttHeld, button: ev.Button},
		})

	case controller.ButtonUp:
		if ev.Button == l.cfg.PTTButton {
			l.pttUp(ctx)
		}
	}
}

// pttDown opens the gate and starts capture. An unreachable bridge is
// reported and rate-limited; the hold simply produces no audio.
func (l *Loop) pttDown(ctx context.Context) {
	if l.pttHeld {
		// Duplicate press from a stuck or bouncing key; the hold is
		// already live.
		return
	}
	l.pttHeld = true
	l.drainStaleFrames()
	l.cfg.Gate.Begin()

	if time.Now().Before(l.nextRetry) {
		l.cfg.Logger.Debug("skipping capture start during backoff")
		l.captureDead = true
		return
	}

	if err := l.cfg.Source.Start(ctx); err != nil {
		if errors.Is(err, bridge.ErrBridgeUnavailable) {
			l.nextRetry = time.Now().Add(l.backoff)
			l.backoff = min(l.backoff*2, retryBackoffMax)
		}
		l.cfg.Logger.Warn("capture start failed", "error", err)
		l.cfg.Status.Set(ctx, "mic unavailable")
		l.captureDead = true
		return
	}
	l.captureDead = false
	l.backoff = retryBackoffMin
	l.nextRetry = time.Time{}
	l.cfg.Status.Set(ctx, "listening...")
}

// pttUp closes the gate and flushes any buffered speech.
func (l *Loop) pttUp(ctx context.Context) {
	l.pttHeld = false
	if err := l.cfg.Source.Stop(); err != nil {
		l.cfg.Logger.Warn("capture stop failed", "error", err)
	}
	l.drainStaleFrames()
	if seg, ready := l.cfg.Gate.End(); ready {
		l.beginTranscription(ctx, seg)
	} else if l.inflight == 0 {
		l.cfg.Status.Set(ctx, "ready")
	}
}

// drainStaleFrames empties whatever the source buffered while the loop was
// not reading, so frames from one hold never leak into the next. A closed
// channel ends the drain; the main select reports the loss.
func (l *Loop) drainStaleFrames() {
	ch := l.cfg.Source.Frames()
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

// beginTranscription hands a segment to the transcriber off-loop. The
// result comes back through the intent channel so its application is
// serialized with everything else.
func (l *Loop) beginTranscription(ctx context.Context, seg vad.Segment) {
	l.inflight++
	l.cfg.Status.Set(ctx, "transcribing...")
	l.cfg.Logger.Info("segment captured",
		"audio_ms", seg.Duration().Milliseconds(),
		"speech_ms", seg.Speech.Milliseconds(),
	)

	go func() {
		result, err := l.cfg.Transcriber.Transcribe(ctx, seg)
		select {
		case l.intents <- intent{kind: intentTranscriptReady, result: result, err: err}:
		case <-ctx.Done():
		}
	}()
}

func (l *Loop) handleIntent(ctx context.Context, in intent) {
	switch in.kind {
	case intentChord:
		l.dispatchChord(ctx, in.chord)

	case intentTranscriptReady:
		l.inflight--
		l.finishTranscript(ctx, in)

	case intentBridgeLost:
		l.cfg.Logger.Warn("audio bridge lost", "error", l.cfg.Source.Err())
		l.cfg.Status.Set(ctx, "bridge lost")
		// Flush whatever speech made it across before the drop.
		if seg, ready := l.cfg.Gate.End(); ready {
			l.beginTranscription(ctx, seg)
		}
		if l.pttHeld {
			// Keep gate state consistent with the still-held button.
			l.cfg.Gate.Begin()
		}
	}
}

// dispatchChord resolves a chord against the binding table and runs its
// action synchronously, keeping tmux mutations serial.
func (l *Loop) dispatchChord(ctx context.Context, c chord) {
	name, ok := l.cfg.Bindings[actions.Chord{Modifier: c.modifier, Button: c.button}]
	if !ok {
		l.cfg.Logger.Debug("unbound chord", "modifier", c.modifier, "button", c.button)
		return
	}
	l.cfg.Logger.Info("dispatching action", "action", name, "button", c.button, "modifier", c.modifier)
	l.cfg.Registry.Dispatch(ctx, name, l.actionContext(ctx))
}

// finishTranscript injects recognized text into the active pane.
func (l *Loop) finishTranscript(ctx context.Context, in intent) {
	defer func() {
		if !l.pttHeld && l.inflight == 0 {
			l.cfg.Status.Set(ctx, "ready")
		}
	}()

	if in.err != nil {
		l.cfg.Logger.Error("transcription failed", "error", in.err)
		l.cfg.Status.Set(ctx, "transcription failed")
		return
	}
	if in.result.Text == "" {
		l.cfg.Logger.Debug("empty transcript, nothing to inject")
		return
	}

	pane, err := tmux.CurrentPane(ctx, l.cfg.Tmux)
	if err != nil {
		l.cfg.Logger.Warn("cannot resolve pane for transcript", "error", err)
		pane = ""
	}
	if err := tmux.SendLiteral(ctx, l.cfg.Tmux, pane, in.result.Text); err != nil {
		l.cfg.Logger.Error("transcript injection failed", "error", err)
		return
	}
	l.cfg.Logger.Info("transcript injected", "chars", len(in.result.Text))
}

// actionContext snapshots the active pane and session for a handler.
// tmux being unreachable degrades to empty targets rather than failing.
func (l *Loop) actionContext(ctx context.Context) *actions.Context {
	pane, err := tmux.CurrentPane(ctx, l.cfg.Tmux)
	if err != nil {
		pane = ""
	}
	session, err := tmux.CurrentSession(ctx, l.cfg.Tmux)
	if err != nil {
		session = ""
	}
	return &actions.Context{Tmux: l.cfg.Tmux, Pane: pane, Session: session}
}

func (l *Loop) controllerLost(ctx context.Context) error {
	err := l.controller.Err()
	if err == nil {
		err = controller.ErrControllerLost
	}
	l.cfg.Logger.Error("controller event stream ended", "error", err)
	l.cfg.Status.Set(ctx, "controller lost")
	return fmt.Errorf("dispatch loop stopping: %w", err)
}

// controllerGone releases any held push-to-talk state and schedules a
// reopen attempt.
func (l *Loop) controllerGone(ctx context.Context) {
	l.cfg.Logger.Warn("controller lost, retrying", "error", l.controller.Err(), "wait", l.ctrlWait)
	if l.pttHeld {
		l.pttUp(ctx)
	}
	l.cfg.Status.Set(ctx, "controller lost")

	l.closeController()
	l.events = nil
	l.ctrlRetry = time.After(l.ctrlWait)
	l.ctrlWait = min(l.ctrlWait*2, retryBackoffMax)
}

func (l *Loop) retryController(ctx context.Context) {
	ctrl, err := l.cfg.Reopen()
	if err != nil {
		l.cfg.Logger.Debug("controller reopen failed", "error", err, "wait", l.ctrlWait)
		l.ctrlRetry = time.After(l.ctrlWait)
		l.ctrlWait = min(l.ctrlWait*2, retryBackoffMax)
		return
	}

	l.controller = ctrl
	l.events = ctrl.Events()
	l.ctrlRetry = nil
	l.ctrlWait = l.cfg.ControllerRetry
	l.cfg.Logger.Info("controller reattached")
	l.cfg.Status.Set(ctx, "ready")
}

func (l *Loop) closeController() {
	if closer, ok := l.controller.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
}
