package app

import (
	"regexp"
	"sort"
	"strings"
	"sync"

	"realtime_chat_service/internal/chat/domain"
)

const maxUsernameLength = 20

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// RoomManager tracks which sessions are members of which room and computes
// the presence views. Rooms are created implicitly on first join and never
// destroyed; an empty membership set is inert, not garbage. One manager-wide
// lock serializes membership mutations so a switch is atomic: no reader ever
// observes a session in neither or both rooms.
type RoomManager struct {
	mu    sync.RWMutex
	rooms map[string]map[string]string // roomID -> sessionID -> display name
}

// NewRoomManager create an empty manager.
func NewRoomManager() *RoomManager {
	return &RoomManager{
		rooms: make(map[string]map[string]string),
	}
}

// ValidateUsername applies the membership-gating username policy for the
// target room: non-empty after trimming, at most 20 chars, [A-Za-z0-9_]
// only, and unique case-insensitively among the room's current members.
// Returns the trimmed name.
func (m *RoomManager) ValidateUsername(roomID, username string) (string, error) {
	name := strings.TrimSpace(username)
	if name == "" {
		return "", domain.ErrUsernameRequired
	}
	if len(name) > maxUsernameLength {
		return "", domain.ErrUsernameTooLong
	}
	if !usernamePattern.MatchString(name) {
		return "", domain.ErrInvalidUsername
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, member := range m.rooms[roomID] {
		if strings.EqualFold(member, name) {
			return "", domain.ErrDuplicateUsername
		}
	}
	return name, nil
}

// Join adds the session to the room. Idempotent: membership is a set.
func (m *RoomManager) Join(roomID, sessionID, displayName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.join(roomID, sessionID, displayName)
}

// Leave removes the session from the room and reports whether it was a
// member. Leaving a room the session is not in is a no-op.
func (m *RoomManager) Leave(roomID, sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.leave(roomID, sessionID)
}

// SwitchRoom moves the session between rooms atomically with respect to
// concurrent presence queries.
func (m *RoomManager) SwitchRoom(sessionID, from, to, displayName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leave(from, sessionID)
	m.join(to, sessionID, displayName)
}

func (m *RoomManager) join(roomID, sessionID, displayName string) {
	members, ok := m.rooms[roomID]
	if !ok {
		members = make(map[string]string)
		m.rooms[roomID] = members
	}
	members[sessionID] = displayName
}

func (m *RoomManager) leave(roomID, sessionID string) bool {
	members, ok := m.rooms[roomID]
	if !ok {
		return false
	}
	if _, isMember := members[sessionID]; !isMember {
		return false
	}
	delete(members, sessionID)
	return true
}

// MembersOf returns the session ids currently in the room. Callers must
// tolerate an empty result.
func (m *RoomManager) MembersOf(roomID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	members := make([]string, 0, len(m.rooms[roomID]))
	for sessionID := range m.rooms[roomID] {
		members = append(members, sessionID)
	}
	return members
}

// IsMember reports whether the session is in the room.
func (m *RoomManager) IsMember(roomID, sessionID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.rooms[roomID][sessionID]
	return ok
}

// OnlineUsers returns the room's display names sorted lexicographically, so
// presence views are stable between calls.
func (m *RoomManager) OnlineUsers(roomID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]string, 0, len(m.rooms[roomID]))
	for _, name := range m.rooms[roomID] {
		users = append(users, name)
	}
	sort.Strings(users)
	return users
}
