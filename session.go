package cadence

import (
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Session identifies one review session and hands out monotonic sequence
// numbers and idempotency keys for its journey events. The auditor relies
// on sequence monotonicity within a session to detect ordering drift.
type Session struct {
	mu        sync.Mutex
	id        string
	seq       int
	startedAt time.Time
}

// NewSession creates a session with a fresh ULID identity.
func NewSession() *Session {
	return &Session{
		id:        ulid.Make().String(),
		startedAt: time.Now().UTC(),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// StartedAt returns when the session was created.
func (s *Session) StartedAt() time.Time {
	return s.startedAt
}

// Next reserves the next sequence number and returns it together with the
// matching idempotency key. Keys are unique per (session, seq), so retried
// event inserts collapse into one row.
func (s *Session) Next() (int, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	return s.seq, fmt.Sprintf("%s:%d", s.id, s.seq)
}

// Count returns how many sequence numbers have been handed out.
func (s *Session) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}
