package bridge

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session tracks one websocket connection's frame stream: identity for
// logs, sequence continuity, and a fault counter for gaps. Lost frames
// are recorded, never fatal.
type Session struct {
	ID      string
	Started time.Time

	mu      sync.Mutex
	seen    bool
	lastSeq uint64
	gaps    uint64
	faults  uint64
}

// NewSession mints a session with a fresh identity.
func NewSession() *Session {
	return &Session{
		ID:      uuid.NewString(),
		Started: time.Now(),
	}
}

// Observe records one received sequence number and returns how many frames
// were skipped since the previous one. A non-monotonic seq (duplicate or
// reordered) counts as a single fault and returns zero.
func (s *Session) Observe(seq uint64) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.seen {
		s.seen = true
		s.lastSeq = seq
		return 0
	}
	if seq <= s.lastSeq {
		s.faults++
		return 0
	}
	skipped := seq - s.lastSeq - 1
	s.lastSeq = seq
	if skipped > 0 {
		s.gaps += skipped
		s.faults++
	}
	return skipped
}

// LastSeq returns the highest sequence number observed.
func (s *Session) LastSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeq
}

// Faults returns the count of continuity faults (gaps plus reorderings).
func (s *Session) Faults() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.faults
}

// GapFrames returns the total number of frames known to be lost.
func (s *Session) GapFrames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gaps
}
