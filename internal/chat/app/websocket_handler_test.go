package app

import (
	"context"
	"testing"
	"time"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/internal/chat/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAuthenticator struct{}

func (stubAuthenticator) Authenticate(_ context.Context, token string) (domain.Principal, error) {
	if token == "" {
		return domain.Principal{}, domain.ErrAuthenticationFailed
	}
	return domain.Principal{ID: "user-" + token, DisplayName: token}, nil
}

type gatewayEnv struct {
	handler  *ChatWebsocketHandler
	registry *SessionRegistry
	rooms    *RoomManager
	limiter  *SlidingWindowLimiter
	messages *MessageUseCase
	hub      *Hub
}

func newGatewayEnv(rateLimit int) *gatewayEnv {
	registry := NewSessionRegistry()
	rooms := NewRoomManager()
	limiter := NewSlidingWindowLimiter(60*time.Second, rateLimit)
	messages := NewMessageUseCase(repository.NewMemoryMessageRepository(), 1000)
	hub := NewHub(64)

	return &gatewayEnv{
		handler:  NewChatWebsocketHandler(stubAuthenticator{}, registry, rooms, limiter, messages, hub, 50),
		registry: registry,
		rooms:    rooms,
		limiter:  limiter,
		messages: messages,
		hub:      hub,
	}
}

// connect binds a session the way HandleConnection would, minus the socket.
func (e *gatewayEnv) connect(t *testing.T, connID, userID string) *fakeSender {
	t.Helper()
	_, err := e.registry.Bind(connID, domain.Principal{ID: userID, DisplayName: userID}, time.Now())
	require.NoError(t, err)
	sender := &fakeSender{}
	e.hub.Register(connID, sender)
	return sender
}

func (e *gatewayEnv) join(t *testing.T, connID, room, username string) domain.WSResponse {
	t.Helper()
	resp := e.handler.handleJoin(context.Background(), connID, domain.WSRequest{
		Action:   string(domain.Join),
		Room:     room,
		Username: username,
	})
	require.True(t, resp.Success, "join failed: %s", resp.Error)
	return resp
}

func waitForAction(t *testing.T, s *fakeSender, action string) {
	t.Helper()
	assert.Eventually(t, func() bool {
		for _, a := range s.actions(t) {
			if a == action {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond, "expected %q frame", action)
}

func TestJoinDefaultsToGeneral(t *testing.T) {
	env := newGatewayEnv(10)
	sender := env.connect(t, "conn-1", "u1")

	resp := env.join(t, "conn-1", "", "alice")
	assert.Equal(t, "general", resp.Payload["room"])
	assert.Equal(t, "alice", resp.Payload["username"])

	waitForAction(t, sender, string(domain.EventUserJoined))
	waitForAction(t, sender, string(domain.EventRecentMessages))
	waitForAction(t, sender, string(domain.EventRoomStats))
	waitForAction(t, sender, string(domain.EventOnlineUsers))

	assert.True(t, env.rooms.IsMember("general", "conn-1"))
	sess, _ := env.registry.Get("conn-1")
	assert.Equal(t, "general", sess.CurrentRoom)
	assert.Equal(t, "alice", sess.DisplayName)
}

func TestJoinRejectsDuplicateUsername(t *testing.T) {
	env := newGatewayEnv(10)
	env.connect(t, "conn-1", "u1")
	env.connect(t, "conn-2", "u2")
	env.join(t, "conn-1", "general", "alice")

	resp := env.handler.handleJoin(context.Background(), "conn-2", domain.WSRequest{
		Action: string(domain.Join), Room: "general", Username: "ALICE",
	})
	assert.False(t, resp.Success)
	assert.Equal(t, string(domain.KindValidation), resp.ErrorKind)
	assert.False(t, env.rooms.IsMember("general", "conn-2"))
}

func TestJoinSwitchNotifiesOldRoom(t *testing.T) {
	env := newGatewayEnv(10)
	watcher := env.connect(t, "conn-1", "u1")
	env.connect(t, "conn-2", "u2")
	env.join(t, "conn-1", "general", "alice")
	env.join(t, "conn-2", "general", "bob")

	env.join(t, "conn-2", "random", "bob")

	waitForAction(t, watcher, string(domain.EventUserLeft))
	assert.False(t, env.rooms.IsMember("general", "conn-2"))
	assert.True(t, env.rooms.IsMember("random", "conn-2"))

	// The abandoned room's presence no longer lists bob.
	assert.Equal(t, []string{"alice"}, env.rooms.OnlineUsers("general"))
}

func TestMessageRequiresJoin(t *testing.T) {
	env := newGatewayEnv(10)
	env.connect(t, "conn-1", "u1")

	resp := env.handler.handleMessage(context.Background(), "conn-1", domain.WSRequest{
		Action: string(domain.SendMessage), Message: "hello",
	})
	assert.False(t, resp.Success)
	assert.Equal(t, string(domain.KindState), resp.ErrorKind)
}

func TestMessageBroadcastsToRoom(t *testing.T) {
	env := newGatewayEnv(10)
	alice := env.connect(t, "conn-1", "u1")
	bob := env.connect(t, "conn-2", "u2")
	env.join(t, "conn-1", "general", "alice")
	env.join(t, "conn-2", "general", "bob")

	resp := env.handler.handleMessage(context.Background(), "conn-1", domain.WSRequest{
		Action: string(domain.SendMessage), Message: "hello room",
	})
	require.True(t, resp.Success, resp.Error)

	waitForAction(t, alice, string(domain.EventMessage))
	waitForAction(t, bob, string(domain.EventMessage))

	sess, _ := env.registry.Get("conn-1")
	assert.Equal(t, uint64(1), sess.MessageCount)
}

func TestMessageRoomOverrideRequiresMembership(t *testing.T) {
	env := newGatewayEnv(10)
	env.connect(t, "conn-1", "u1")
	env.join(t, "conn-1", "general", "alice")

	resp := env.handler.handleMessage(context.Background(), "conn-1", domain.WSRequest{
		Action: string(domain.SendMessage), Room: "random", Message: "sneaky",
	})
	assert.False(t, resp.Success)
	assert.Equal(t, string(domain.KindAuthorization), resp.ErrorKind)

	// Matching override is accepted.
	resp = env.handler.handleMessage(context.Background(), "conn-1", domain.WSRequest{
		Action: string(domain.SendMessage), Room: "general", Message: "fine",
	})
	assert.True(t, resp.Success)
}

func TestMessageRateLimited(t *testing.T) {
	env := newGatewayEnv(2)
	env.connect(t, "conn-1", "u1")
	env.join(t, "conn-1", "general", "alice")

	for i := 0; i < 2; i++ {
		resp := env.handler.handleMessage(context.Background(), "conn-1", domain.WSRequest{
			Action: string(domain.SendMessage), Message: "spam",
		})
		require.True(t, resp.Success)
	}

	resp := env.handler.handleMessage(context.Background(), "conn-1", domain.WSRequest{
		Action: string(domain.SendMessage), Message: "spam",
	})
	assert.False(t, resp.Success)
	assert.Equal(t, string(domain.KindRateLimit), resp.ErrorKind)

	// The rejected message was not stored.
	stats, err := env.messages.RoomStats(context.Background(), "general")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalMessages)
}

func TestInvalidMessageDoesNotConsumeQuota(t *testing.T) {
	env := newGatewayEnv(1)
	env.connect(t, "conn-1", "u1")
	env.join(t, "conn-1", "general", "alice")

	resp := env.handler.handleMessage(context.Background(), "conn-1", domain.WSRequest{
		Action: string(domain.SendMessage), Message: "   ",
	})
	assert.Equal(t, string(domain.KindValidation), resp.ErrorKind)

	resp = env.handler.handleMessage(context.Background(), "conn-1", domain.WSRequest{
		Action: string(domain.SendMessage), Message: "valid",
	})
	assert.True(t, resp.Success, "validation failure must not count against the window")
}

func TestEditAndDeleteFlow(t *testing.T) {
	env := newGatewayEnv(10)
	alice := env.connect(t, "conn-1", "u1")
	env.join(t, "conn-1", "general", "alice")

	sent := env.handler.handleMessage(context.Background(), "conn-1", domain.WSRequest{
		Action: string(domain.SendMessage), Message: "draft",
	})
	require.True(t, sent.Success)
	msg := sent.Payload["message"].(*domain.Message)

	edited := env.handler.handleEdit(context.Background(), "conn-1", domain.WSRequest{
		Action: string(domain.EditMessage), MessageID: msg.ID, NewBody: "final",
	})
	require.True(t, edited.Success, edited.Error)
	waitForAction(t, alice, string(domain.EventMessageEdited))

	deleted := env.handler.handleDelete(context.Background(), "conn-1", domain.WSRequest{
		Action: string(domain.DeleteMessage), MessageID: msg.ID,
	})
	require.True(t, deleted.Success, deleted.Error)
	waitForAction(t, alice, string(domain.EventMessageDeleted))

	got, err := env.messages.Get(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TombstoneBody, got.Body)
}

func TestEditForeignMessageRejected(t *testing.T) {
	env := newGatewayEnv(10)
	env.connect(t, "conn-1", "u1")
	env.connect(t, "conn-2", "u2")
	env.join(t, "conn-1", "general", "alice")
	env.join(t, "conn-2", "general", "bob")

	sent := env.handler.handleMessage(context.Background(), "conn-1", domain.WSRequest{
		Action: string(domain.SendMessage), Message: "alice's",
	})
	require.True(t, sent.Success)
	msg := sent.Payload["message"].(*domain.Message)

	resp := env.handler.handleEdit(context.Background(), "conn-2", domain.WSRequest{
		Action: string(domain.EditMessage), MessageID: msg.ID, NewBody: "bob's now",
	})
	assert.False(t, resp.Success)
	assert.Equal(t, string(domain.KindAuthorization), resp.ErrorKind)
}

func TestEditFromAnotherRoomRejected(t *testing.T) {
	env := newGatewayEnv(10)
	env.connect(t, "conn-1", "u1")
	env.connect(t, "conn-2", "u2")
	env.join(t, "conn-1", "general", "alice")
	env.join(t, "conn-2", "random", "bob")

	sent := env.handler.handleMessage(context.Background(), "conn-1", domain.WSRequest{
		Action: string(domain.SendMessage), Message: "general only",
	})
	require.True(t, sent.Success)
	msg := sent.Payload["message"].(*domain.Message)

	resp := env.handler.handleDelete(context.Background(), "conn-2", domain.WSRequest{
		Action: string(domain.DeleteMessage), MessageID: msg.ID,
	})
	assert.False(t, resp.Success)
	assert.Equal(t, string(domain.KindAuthorization), resp.ErrorKind)
}

func TestTypingExcludesSender(t *testing.T) {
	env := newGatewayEnv(10)
	alice := env.connect(t, "conn-1", "u1")
	bob := env.connect(t, "conn-2", "u2")
	env.join(t, "conn-1", "general", "alice")
	env.join(t, "conn-2", "general", "bob")

	env.handler.handleTyping("conn-1", domain.WSRequest{
		Action: string(domain.Typing), IsTyping: true,
	})

	waitForAction(t, bob, string(domain.EventTyping))
	time.Sleep(20 * time.Millisecond)
	for _, a := range alice.actions(t) {
		assert.NotEqual(t, string(domain.EventTyping), a, "sender must not receive its own typing echo")
	}
}

func TestSearchScopedToCurrentRoom(t *testing.T) {
	env := newGatewayEnv(10)
	env.connect(t, "conn-1", "u1")
	env.join(t, "conn-1", "general", "alice")

	sent := env.handler.handleMessage(context.Background(), "conn-1", domain.WSRequest{
		Action: string(domain.SendMessage), Message: "deploy at noon",
	})
	require.True(t, sent.Success)

	resp := env.handler.handleSearch(context.Background(), "conn-1", domain.WSRequest{
		Action: string(domain.SearchMessages), Query: "DEPLOY",
	})
	require.True(t, resp.Success, resp.Error)
	results := resp.Payload["results"].([]domain.Message)
	require.Len(t, results, 1)

	// Override naming a foreign room is refused.
	resp = env.handler.handleSearch(context.Background(), "conn-1", domain.WSRequest{
		Action: string(domain.SearchMessages), Room: "random", Query: "deploy",
	})
	assert.Equal(t, string(domain.KindAuthorization), resp.ErrorKind)
}

func TestGetOnlineUsersSorted(t *testing.T) {
	env := newGatewayEnv(10)
	env.connect(t, "conn-1", "u1")
	env.connect(t, "conn-2", "u2")
	env.join(t, "conn-1", "general", "carol")
	env.join(t, "conn-2", "general", "alice")

	resp := env.handler.handleGetOnlineUsers("conn-1", domain.WSRequest{
		Action: string(domain.GetOnlineUsers),
	})
	require.True(t, resp.Success)
	assert.Equal(t, []string{"alice", "carol"}, resp.Payload["users"])
	assert.Equal(t, 2, resp.Payload["count"])
}

func TestTeardownNotifiesRoom(t *testing.T) {
	env := newGatewayEnv(10)
	watcher := env.connect(t, "conn-1", "u1")
	env.connect(t, "conn-2", "u2")
	env.join(t, "conn-1", "general", "alice")
	env.join(t, "conn-2", "general", "bob")

	env.handler.teardown("conn-2")

	waitForAction(t, watcher, string(domain.EventUserLeft))
	assert.False(t, env.rooms.IsMember("general", "conn-2"))
	_, bound := env.registry.Get("conn-2")
	assert.False(t, bound)
	assert.Equal(t, []string{"alice"}, env.rooms.OnlineUsers("general"))
}

func TestTeardownWithoutSessionIsSilent(t *testing.T) {
	env := newGatewayEnv(10)
	env.handler.teardown("conn-never-bound")
}

// Membership must be gone from the room before the session binding drops, so
// no observer ever sees a member whose session is already unbound.
func TestTeardownRemovesMembershipBeforeUnbind(t *testing.T) {
	for i := 0; i < 100; i++ {
		env := newGatewayEnv(10)
		env.connect(t, "conn-1", "u1")
		env.join(t, "conn-1", "general", "alice")

		done := make(chan struct{})
		go func() {
			defer close(done)
			env.handler.teardown("conn-1")
		}()

		for {
			// Reading the binding first: if it is already gone, a correctly
			// ordered teardown has removed the membership too.
			_, bound := env.registry.Get("conn-1")
			member := env.rooms.IsMember("general", "conn-1")
			if member && !bound {
				t.Fatal("room membership outlived the session binding")
			}
			if !member && !bound {
				break
			}
		}
		<-done
	}
}

func TestDispatchUnknownAction(t *testing.T) {
	env := newGatewayEnv(10)
	sender := env.connect(t, "conn-1", "u1")

	env.handler.dispatch(context.Background(), "conn-1", []byte(`{"action":"selfDestruct"}`))

	waitFrames(t, sender, 1)
	resps := sender.responses(t)
	assert.Equal(t, "selfDestruct", resps[0].Action)
	assert.Equal(t, "unknown action", resps[0].Error)
}

func TestDispatchMalformedPayload(t *testing.T) {
	env := newGatewayEnv(10)
	sender := env.connect(t, "conn-1", "u1")

	env.handler.dispatch(context.Background(), "conn-1", []byte(`{not json`))

	waitFrames(t, sender, 1)
	resps := sender.responses(t)
	assert.Equal(t, "invalid payload", resps[0].Error)
}
