package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"padmux/internal/audio"
)

// ErrBridgeUnavailable means the daemon could not be reached at Start.
// Callers should surface it and stay up; the next Start retries.
var ErrBridgeUnavailable = errors.New("audio bridge unavailable")

// ErrBridgeLost means an established connection died mid-session.
var ErrBridgeLost = errors.New("audio bridge connection lost")

const dialTimeout = 3 * time.Second

// missedPongLimit is how many unanswered liveness pings kill a connection.
const missedPongLimit = 2

// Bridged is an audio.Source fed by the host-side bridge daemon. Each
// established connection gets its own Session and frame channel; when the
// connection dies the channel closes, and the next Start dials fresh.
type Bridged struct {
	host         string
	port         int
	pingInterval time.Duration
	logger       *slog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	writeMu   sync.Mutex // gorilla allows one concurrent writer
	session   *Session
	frames    chan audio.Frame
	capturing bool
	err       error
	done      chan struct{}

	missedPongs atomic.Int32
}

// NewBridged builds an unconnected bridged source. Host may be empty, in
// which case the default gateway is probed at dial time; port zero uses
// DefaultPort.
func NewBridged(host string, port int, pingInterval time.Duration, logger *slog.Logger) *Bridged {
	b := &Bridged{
		host:         host,
		port:         port,
		pingInterval: pingInterval,
		logger:       logger,
	}
	// A closed placeholder channel so Frames never returns nil.
	ch := make(chan audio.Frame)
	close(ch)
	b.frames = ch
	return b
}

// Frames returns the current connection's frame channel. It closes when
// the connection is lost; Start replaces it.
func (b *Bridged) Frames() <-chan audio.Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frames
}

// Err reports the most recent bridge fault.
func (b *Bridged) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Session returns continuity stats for the current connection, nil when
// disconnected.
func (b *Bridged) Session() *Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session
}

// Start connects to the daemon if needed and asks it to begin capturing.
// Unreachable daemon fails fast with ErrBridgeUnavailable.
func (b *Bridged) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.capturing {
		b.mu.Unlock()
		return nil
	}
	if b.conn == nil {
		if err := b.connectLocked(ctx); err != nil {
			b.err = err
			b.mu.Unlock()
			return err
		}
	}
	conn := b.conn
	b.capturing = true
	b.mu.Unlock()

	if err := b.writeControl(conn, ControlStartCapture); err != nil {
		b.teardown(fmt.Errorf("%w: %v", ErrBridgeLost, err))
		return fmt.Errorf("requesting capture: %w", err)
	}
	return nil
}

// Stop asks the daemon to pause capture. The connection stays up for the
// next push-to-talk hold.
func (b *Bridged) Stop() error {
	b.mu.Lock()
	if !b.capturing {
		b.mu.Unlock()
		return nil
	}
	b.capturing = false
	conn := b.conn
	b.mu.Unlock()

	if conn == nil {
		return nil
	}
	if err := b.writeControl(conn, ControlStopCapture); err != nil {
		b.teardown(fmt.Errorf("%w: %v", ErrBridgeLost, err))
		return fmt.Errorf("stopping capture: %w", err)
	}
	return nil
}

// Close tears the connection down for good.
func (b *Bridged) Close() error {
	b.teardown(nil)
	return nil
}

// connectLocked dials the daemon and starts the read and liveness loops.
// Caller holds b.mu.
func (b *Bridged) connectLocked(ctx context.Context) error {
	host := b.host
	if host == "" {
		detected, err := DetectGatewayHost(ctx)
		if err != nil {
			return fmt.Errorf("%w: no host configured and %v", ErrBridgeUnavailable, err)
		}
		host = detected
	}
	port := b.port
	if port == 0 {
		port = DefaultPort
	}

	u := url.URL{Scheme: "ws", Host: host + ":" + strconv.Itoa(port), Path: AudioPath}
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("%w: dialing %s: %v", ErrBridgeUnavailable, u.String(), err)
	}

	b.conn = conn
	b.session = NewSession()
	b.frames = make(chan audio.Frame, 64)
	b.done = make(chan struct{})
	b.err = nil
	b.missedPongs.Store(0)

	conn.SetPongHandler(func(string) error {
		b.missedPongs.Store(0)
		return nil
	})

	b.logger.Info("bridge connected", "url", u.String(), "session", b.session.ID)

	go b.readLoop(conn, b.session, b.frames, b.done)
	go b.pingLoop(conn, b.done)
	return nil
}

// readLoop delivers decoded frames until the connection fails. It owns
// the frames channel and is the only goroutine that closes it.
func (b *Bridged) readLoop(conn *websocket.Conn, session *Session, frames chan audio.Frame, done chan struct{}) {
	defer close(frames)
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-done:
				// Deliberate teardown already in progress.
			default:
				b.teardown(fmt.Errorf("%w: %v", ErrBridgeLost, err))
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		frame, err := DecodeFrame(data)
		if err != nil {
			b.logger.Warn("dropping malformed bridge frame", "session", session.ID, "error", err)
			continue
		}
		if skipped := session.Observe(frame.Seq); skipped > 0 {
			b.logger.Warn("bridge frame gap", "session", session.ID, "skipped", skipped, "seq", frame.Seq)
		}
		select {
		case <-done:
			return
		case frames <- frame:
		default:
			b.logger.Debug("dropping bridge frame, consumer behind", "seq", frame.Seq)
		}
	}
}

// pingLoop sends liveness pings; two unanswered pings in a row declare the
// daemon dead and close the connection.
func (b *Bridged) pingLoop(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(b.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if b.missedPongs.Add(1) > missedPongLimit {
				b.logger.Warn("bridge unresponsive, closing", "missed_pongs", missedPongLimit)
				conn.Close()
				return
			}
			deadline := time.Now().Add(b.pingInterval)
			if err := b.writeRaw(conn, websocket.PingMessage, nil, deadline); err != nil {
				conn.Close()
				return
			}
		}
	}
}

// teardown closes the connection once, recording err as the fault (nil
// for a deliberate Close). The read loop closes the frame channel when
// the dying connection unblocks it.
func (b *Bridged) teardown(err error) {
	b.mu.Lock()
	conn := b.conn
	done := b.done
	b.conn = nil
	b.session = nil
	b.done = nil
	b.capturing = false
	if err != nil {
		b.err = err
	}
	b.mu.Unlock()

	if conn == nil {
		return
	}
	close(done)
	conn.Close()
	if err != nil {
		b.logger.Warn("bridge connection lost", "error", err)
	}
}

func (b *Bridged) writeControl(conn *websocket.Conn, typ string) error {
	payload, err := EncodeControl(typ)
	if err != nil {
		return err
	}
	return b.writeRaw(conn, websocket.TextMessage, payload, time.Now().Add(dialTimeout))
}

func (b *Bridged) writeRaw(conn *websocket.Conn, msgType int, payload []byte, deadline time.Time) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	conn.SetWriteDeadline(deadline)
	if msgType == websocket.PingMessage {
		return conn.WriteControl(websocket.PingMessage, payload, deadline)
	}
	return conn.WriteMessage(msgType, payload)
}
