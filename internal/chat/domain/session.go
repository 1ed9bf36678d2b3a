package domain

import "time"

// Principal is the authenticated identity bound to a connection. Immutable
// once bound; re-derived from the token on each reconnect.
type Principal struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarRef   string `json:"avatar_ref,omitempty"`
}

// Session is the live binding between one connection and a principal.
// Exclusively owned by the session registry; the room manager holds only the
// session id, never the session itself.
type Session struct {
	SessionID     string     `json:"session_id"`
	Principal     Principal  `json:"principal"`
	DisplayName   string     `json:"display_name"` // presence name chosen at join
	CurrentRoom   string     `json:"current_room"` // empty until the first join
	JoinedAt      time.Time  `json:"joined_at"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	MessageCount  uint64     `json:"message_count"`
}

// InRoom reports whether the session has joined a room.
func (s *Session) InRoom() bool {
	return s.CurrentRoom != ""
}
