// Package checkout drives the multi-step checkout: identity capture,
// per-item fulfillment confirmation, then payment and order commit.
package checkout

import (
	"sync"
	"time"

	"github.com/valleygoods/storefront/internal/model"
)

// Step names a checkout step. The sequence is linear with no skip-ahead.
type Step int

const (
	StepIdentity Step = iota + 1
	StepFulfillment
	StepPayment
)

func (s Step) String() string {
	switch s {
	case StepIdentity:
		return "identity"
	case StepFulfillment:
		return "fulfillment"
	case StepPayment:
		return "payment"
	}
	return "unknown"
}

// Session is the ephemeral checkout state for one shopper session. It is
// created when checkout begins and discarded on success or abandonment;
// nothing here is persisted. The orchestrator serializes mutations under mu,
// so overlapping requests for one session (a double-clicked pay) cannot
// interleave.
type Session struct {
	ID           string
	Step         Step
	Identity     model.CustomerIdentity
	IntentID     string
	ClientSecret string
	LastError    string
	StartedAt    time.Time

	mu        sync.Mutex
	committed bool
}

// Snapshot is a consistent read of the session's mutable fields.
type Snapshot struct {
	Step         Step
	Identity     model.CustomerIdentity
	ClientSecret string
	LastError    string
}

// Snapshot copies the mutable fields under the session lock.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Step:         s.Step,
		Identity:     s.Identity,
		ClientSecret: s.ClientSecret,
		LastError:    s.LastError,
	}
}

// SessionStore keeps at most one checkout session per shopper session id.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionStore returns an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session)}
}

// Get returns the session for the id, creating one at the identity step.
func (s *SessionStore) Get(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		return sess
	}
	sess := &Session{ID: id, Step: StepIdentity, StartedAt: time.Now()}
	s.sessions[id] = sess
	return sess
}

// Drop discards the session, on commit success or abandonment.
func (s *SessionStore) Drop(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}
