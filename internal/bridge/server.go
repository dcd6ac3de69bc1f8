package bridge

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"padmux/internal/audio"
)

const writeTimeout = 3 * time.Second

// Server is the daemon side of the bridge: it accepts websocket clients on
// AudioPath, gates the capture device by demand, and fans captured frames
// out to every client that asked for them. Each connection gets its own
// Session and sequence numbering.
type Server struct {
	logger *slog.Logger

	// startCapture is invoked when demand goes 0 -> 1, stopCapture when
	// it returns to 0. Both run on client goroutines.
	startCapture func() error
	stopCapture  func()

	upgrader websocket.Upgrader

	mu        sync.Mutex
	conns     map[*serverConn]struct{}
	demanding int
}

type serverConn struct {
	ws      *websocket.Conn
	session *Session

	mu        sync.Mutex
	capturing bool
	seq       uint64
}

// NewServer wires a server around the daemon's capture device callbacks.
func NewServer(logger *slog.Logger, startCapture func() error, stopCapture func()) *Server {
	return &Server{
		logger:       logger,
		startCapture: startCapture,
		stopCapture:  stopCapture,
		upgrader:     websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
		conns:        make(map[*serverConn]struct{}),
	}
}

// Handler returns the HTTP mux serving the audio endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(AudioPath, s.handleAudio)
	return mux
}

// Broadcast sends one captured frame to every capturing client, stamping
// each connection's own sequence number. Slow clients lose the frame
// rather than stalling the capture path.
func (s *Server) Broadcast(f audio.Frame) {
	s.mu.Lock()
	conns := make([]*serverConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.mu.Lock()
		if !c.capturing {
			c.mu.Unlock()
			continue
		}
		f.Seq = c.seq
		c.seq++
		payload := EncodeFrame(f)
		c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
		err := c.ws.WriteMessage(websocket.BinaryMessage, payload)
		c.mu.Unlock()
		if err != nil {
			s.logger.Warn("dropping client frame", "session", c.session.ID, "error", err)
		}
	}
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &serverConn{ws: ws, session: NewSession()}
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()

	s.logger.Info("bridge client connected", "remote", r.RemoteAddr, "session", c.session.ID)
	defer s.dropConn(c, r.RemoteAddr)

	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		ctrl, err := DecodeControl(data)
		if err != nil {
			s.logger.Warn("ignoring bad control message", "session", c.session.ID, "error", err)
			continue
		}
		switch ctrl.Type {
		case ControlStartCapture:
			s.setCapturing(c, true)
		case ControlStopCapture:
			s.setCapturing(c, false)
		}
	}
}

// setCapturing flips one connection's capture demand and drives the shared
// device when total demand crosses zero.
func (s *Server) setCapturing(c *serverConn, want bool) {
	c.mu.Lock()
	if c.capturing == want {
		c.mu.Unlock()
		return
	}
	c.capturing = want
	c.mu.Unlock()

	s.mu.Lock()
	if want {
		s.demanding++
	} else {
		s.demanding--
	}
	first := want && s.demanding == 1
	last := !want && s.demanding == 0
	s.mu.Unlock()

	if first {
		if err := s.startCapture(); err != nil {
			s.logger.Error("capture device start failed", "error", err)
			s.setCapturing(c, false)
			return
		}
		s.logger.Info("capture started", "session", c.session.ID)
	}
	if last {
		s.stopCapture()
		s.logger.Info("capture stopped", "session", c.session.ID)
	}
}

func (s *Server) dropConn(c *serverConn, remote string) {
	s.setCapturing(c, false)
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	c.ws.Close()
	s.logger.Info("bridge client disconnected", "remote", remote, "session", c.session.ID)
}
