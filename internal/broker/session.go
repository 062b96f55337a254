package broker

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harborhq/harbor-helper/pkg/harbor"
)

// defaultTTL applies to sessions whose capabilities don't set TTLMinutes.
const defaultTTL = 30 * time.Minute

// SessionManager tracks every active agent session, implicit and explicit,
// enforcing the active -> suspended -> terminated state machine and each
// session's quota (MaxToolCalls) and TTL.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*harbor.Session
}

// NewSessionManager creates an empty session manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[string]*harbor.Session)}
}

// CreateImplicit opens (or returns the existing) implicit session for a tab
// origin, synthesizing its capabilities from whatever scopes the origin
// currently holds.
func (m *SessionManager) CreateImplicit(origin harbor.Origin, caps harbor.SessionCapabilities, now time.Time) *harbor.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.sessions {
		if s.Origin == origin && s.Kind == harbor.SessionImplicit && s.State != harbor.SessionTerminated {
			return s
		}
	}
	return m.create(origin, harbor.SessionImplicit, caps, now)
}

// CreateExplicit opens a new explicit session, always distinct even if the
// origin already has one open.
func (m *SessionManager) CreateExplicit(origin harbor.Origin, caps harbor.SessionCapabilities, now time.Time) *harbor.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.create(origin, harbor.SessionExplicit, caps, now)
}

func (m *SessionManager) create(origin harbor.Origin, kind harbor.SessionKind, caps harbor.SessionCapabilities, now time.Time) *harbor.Session {
	ttl := defaultTTL
	if caps.TTLMinutes > 0 {
		ttl = time.Duration(caps.TTLMinutes) * time.Minute
	}
	expiresAt := now.Add(ttl)

	s := &harbor.Session{
		ID:           uuid.NewString(),
		Origin:       origin,
		Kind:         kind,
		State:        harbor.SessionActive,
		Capabilities: caps,
		CreatedAt:    now,
		ExpiresAt:    &expiresAt,
	}
	m.sessions[s.ID] = s
	return s
}

// Get returns a live snapshot of a session by id, expiring it first if its
// TTL has lapsed.
func (m *SessionManager) Get(id string, now time.Time) (harbor.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return harbor.Session{}, false
	}
	m.expireIfNeeded(s, now)
	return *s, true
}

// List returns a snapshot of every tracked session, expiring any whose TTL
// has lapsed first.
func (m *SessionManager) List(now time.Time) []harbor.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]harbor.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		m.expireIfNeeded(s, now)
		out = append(out, *s)
	}
	return out
}

func (m *SessionManager) expireIfNeeded(s *harbor.Session, now time.Time) {
	if s.State == harbor.SessionTerminated {
		return
	}
	if s.ExpiresAt != nil && s.ExpiresAt.Before(now) {
		s.State = harbor.SessionTerminated
	}
}

// Terminate moves a session to the terminated state. Terminated is
// absorbing: terminating a terminated session is a no-op.
func (m *SessionManager) Terminate(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return harbor.NewError(harbor.ErrHarborNotFound, "no session "+id)
	}
	s.State = harbor.SessionTerminated
	return nil
}

// Suspend moves an active session to suspended, e.g. when its tab is
// backgrounded. Suspending a terminated session is a no-op error.
func (m *SessionManager) Suspend(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return harbor.NewError(harbor.ErrHarborNotFound, "no session "+id)
	}
	if s.State == harbor.SessionTerminated {
		return harbor.NewError(harbor.ErrInvalidParams, "cannot suspend a terminated session")
	}
	s.State = harbor.SessionSuspended
	return nil
}

// Resume moves a suspended session back to active, refreshing its TTL from
// now so a backgrounded tab's session doesn't expire while invisible.
func (m *SessionManager) Resume(id string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return harbor.NewError(harbor.ErrHarborNotFound, "no session "+id)
	}
	if s.State != harbor.SessionSuspended {
		return harbor.NewError(harbor.ErrInvalidParams, "session is not suspended")
	}
	s.State = harbor.SessionActive
	ttl := defaultTTL
	if s.Capabilities.TTLMinutes > 0 {
		ttl = time.Duration(s.Capabilities.TTLMinutes) * time.Minute
	}
	expiresAt := now.Add(ttl)
	s.ExpiresAt = &expiresAt
	return nil
}

// CheckActive verifies a session is usable (active, not expired), returning
// ERR_HARBOR_NOT_FOUND for a dead or unknown session id.
func (m *SessionManager) CheckActive(id string, now time.Time) (*harbor.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, harbor.NewError(harbor.ErrHarborNotFound, "no session "+id)
	}
	m.expireIfNeeded(s, now)
	if s.State != harbor.SessionActive {
		return nil, harbor.NewError(harbor.ErrInvalidParams, "session is "+string(s.State))
	}
	return s, nil
}

// RecordPrompt increments a session's prompt count. Sessions don't cap
// prompt count today, only tool-call count, but the counter is tracked for
// observability and future quota use.
func (m *SessionManager) RecordPrompt(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.PromptCount++
	}
}

// RecordToolCall increments a session's tool-call count and reports whether
// the session's MaxToolCalls quota (if any) has now been reached. The
// router should surface quota exhaustion as ERR_INSUFFICIENT_SCOPE and stop
// invoking tools for that session.
func (m *SessionManager) RecordToolCall(id string) (exceeded bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return false, harbor.NewError(harbor.ErrHarborNotFound, "no session "+id)
	}
	s.ToolCallCount++
	if s.Capabilities.MaxToolCalls > 0 && s.ToolCallCount > s.Capabilities.MaxToolCalls {
		return true, nil
	}
	return false, nil
}
