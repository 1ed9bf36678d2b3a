package app

import (
	"strings"
	"testing"

	"realtime_chat_service/internal/chat/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateUsernameRules(t *testing.T) {
	rooms := NewRoomManager()

	name, err := rooms.ValidateUsername("general", "  alice_1  ")
	require.NoError(t, err)
	assert.Equal(t, "alice_1", name, "surrounding whitespace is trimmed")

	_, err = rooms.ValidateUsername("general", "   ")
	assert.ErrorIs(t, err, domain.ErrUsernameRequired)

	_, err = rooms.ValidateUsername("general", strings.Repeat("a", 21))
	assert.ErrorIs(t, err, domain.ErrUsernameTooLong)

	_, err = rooms.ValidateUsername("general", "bad name")
	assert.ErrorIs(t, err, domain.ErrInvalidUsername)

	_, err = rooms.ValidateUsername("general", "bad-name!")
	assert.ErrorIs(t, err, domain.ErrInvalidUsername)
}

func TestValidateUsernameDuplicateCaseInsensitive(t *testing.T) {
	rooms := NewRoomManager()
	rooms.Join("general", "conn-1", "Alice")

	_, err := rooms.ValidateUsername("general", "alice")
	assert.ErrorIs(t, err, domain.ErrDuplicateUsername)

	// The same name is free in another room.
	name, err := rooms.ValidateUsername("random", "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", name)
}

func TestJoinIdempotent(t *testing.T) {
	rooms := NewRoomManager()
	rooms.Join("general", "conn-1", "alice")
	rooms.Join("general", "conn-1", "alice")

	assert.Equal(t, []string{"conn-1"}, rooms.MembersOf("general"))
	assert.True(t, rooms.IsMember("general", "conn-1"))
}

func TestLeaveReportsMembership(t *testing.T) {
	rooms := NewRoomManager()
	rooms.Join("general", "conn-1", "alice")

	assert.True(t, rooms.Leave("general", "conn-1"))
	assert.False(t, rooms.Leave("general", "conn-1"), "second leave is a no-op")
	assert.False(t, rooms.Leave("nowhere", "conn-1"))
}

func TestSwitchRoomMovesMembership(t *testing.T) {
	rooms := NewRoomManager()
	rooms.Join("general", "conn-1", "alice")

	rooms.SwitchRoom("conn-1", "general", "random", "alice")

	assert.False(t, rooms.IsMember("general", "conn-1"))
	assert.True(t, rooms.IsMember("random", "conn-1"))
}

func TestOnlineUsersSorted(t *testing.T) {
	rooms := NewRoomManager()
	rooms.Join("general", "conn-1", "carol")
	rooms.Join("general", "conn-2", "alice")
	rooms.Join("general", "conn-3", "bob")

	assert.Equal(t, []string{"alice", "bob", "carol"}, rooms.OnlineUsers("general"))
	assert.Empty(t, rooms.OnlineUsers("empty-room"))
}
