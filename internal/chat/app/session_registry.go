package app

import (
	"sync"
	"time"

	"realtime_chat_service/internal/chat/domain"
)

// SessionRegistry owns the connection -> session bindings. Sessions never
// leak out by pointer; every read hands back a snapshot copy so callers can
// hold results across lock boundaries.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

// NewSessionRegistry create an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*domain.Session),
	}
}

// Bind creates the session for a freshly authenticated connection. A second
// bind on the same connection id fails with domain.ErrAlreadyBound.
func (r *SessionRegistry) Bind(connectionID string, principal domain.Principal, now time.Time) (domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[connectionID]; exists {
		return domain.Session{}, domain.ErrAlreadyBound
	}

	sess := &domain.Session{
		SessionID:   connectionID,
		Principal:   principal,
		DisplayName: principal.DisplayName,
		JoinedAt:    now,
	}
	r.sessions[connectionID] = sess
	return *sess, nil
}

// Get returns a snapshot of the session. A missing binding is not an error;
// it means the connection never authenticated or already tore down.
func (r *SessionRegistry) Get(connectionID string) (domain.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[connectionID]
	if !ok {
		return domain.Session{}, false
	}
	return *sess, true
}

// SetRoom records the session's current room and presence name after a join
// or switch. No-op when unbound.
func (r *SessionRegistry) SetRoom(connectionID, roomID, displayName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sess, ok := r.sessions[connectionID]; ok {
		sess.CurrentRoom = roomID
		sess.DisplayName = displayName
	}
}

// RecordActivity bumps the message counters. Silently no-ops when unbound so
// an in-flight broadcast racing a disconnect never crashes.
func (r *SessionRegistry) RecordActivity(connectionID string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[connectionID]
	if !ok {
		return
	}
	sess.MessageCount++
	at := now
	sess.LastMessageAt = &at
}

// Unbind removes and returns the session for teardown. Disconnect of a
// never-authenticated connection returns ok=false, silently.
func (r *SessionRegistry) Unbind(connectionID string) (domain.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[connectionID]
	if !ok {
		return domain.Session{}, false
	}
	delete(r.sessions, connectionID)
	return *sess, true
}

// Count reports the number of live sessions.
func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
