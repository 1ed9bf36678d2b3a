package app

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/pkg/logger"
	"realtime_chat_service/pkg/middlewares"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Authenticator resolves a handshake token into a principal. Called once per
// connection; a failure is fatal to that connection only.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (domain.Principal, error)
}

// ChatWebsocketHandler is the gateway: it owns the per-connection read loop,
// enforces the connection state machine, and fans results out through the
// hub. Per-room striped locks serialize mutate -> snapshot targets ->
// enqueue, so listeners never observe fanout racing ahead of the mutation
// that caused it. Different rooms proceed fully in parallel.
type ChatWebsocketHandler struct {
	auth     Authenticator
	registry *SessionRegistry
	rooms    *RoomManager
	limiter  *SlidingWindowLimiter
	messages *MessageUseCase
	hub      *Hub

	historyLimit int

	locksMu   sync.Mutex
	roomLocks map[string]*sync.Mutex
}

// NewChatWebsocketHandler create ChatWebsocketHandler
func NewChatWebsocketHandler(
	auth Authenticator,
	registry *SessionRegistry,
	rooms *RoomManager,
	limiter *SlidingWindowLimiter,
	messages *MessageUseCase,
	hub *Hub,
	historyLimit int,
) *ChatWebsocketHandler {
	if historyLimit <= 0 {
		historyLimit = 50
	}
	return &ChatWebsocketHandler{
		auth:         auth,
		registry:     registry,
		rooms:        rooms,
		limiter:      limiter,
		messages:     messages,
		hub:          hub,
		historyLimit: historyLimit,
		roomLocks:    make(map[string]*sync.Mutex),
	}
}

// HandleConnection is the entry point for one WebSocket connection. It binds
// the session after a one-shot authentication, then runs the read loop until
// the peer goes away.
func (h *ChatWebsocketHandler) HandleConnection(ctx context.Context, conn *websocket.Conn) {
	token, _ := conn.Locals(middlewares.TokenRaw).(string)

	principal, err := h.auth.Authenticate(ctx, token)
	if err != nil {
		logger.Log.Warn("websocket authentication failed", zap.Error(err))
		h.sendDirect(conn, domain.WSResponse{
			Action:    "error",
			Error:     domain.ErrAuthenticationFailed.Error(),
			ErrorKind: string(domain.KindAuthentication),
		})
		conn.Close()
		return
	}

	connID := uuid.New().String()
	if _, err := h.registry.Bind(connID, principal, time.Now()); err != nil {
		logger.Log.Error("session bind failed", zap.String("connID", connID), zap.Error(err))
		conn.Close()
		return
	}
	h.hub.Register(connID, conn)

	logger.Log.Info("websocket connected",
		zap.String("connID", connID),
		zap.String("userID", principal.ID),
	)

	ticker := time.NewTicker(30 * time.Second)
	ctxClose, cancel := context.WithCancel(context.Background())

	defer func() {
		ticker.Stop()
		cancel()
		h.teardown(connID)
		logger.Log.Info("websocket closed", zap.String("connID", connID))
	}()

	conn.SetPongHandler(func(appData string) error {
		return nil
	})

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
					return
				}
			case <-ctxClose.Done():
				return
			}
		}
	}()

	for {
		mt, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Log.Debug("connection closed", zap.String("connID", connID))
			} else {
				logger.Log.Errorf("websocket read error:", err, zap.String("connID", connID))
			}
			return
		}
		if mt != websocket.TextMessage {
			h.hub.SendTo(connID, domain.WSResponse{Action: "error", Error: "unknown message type"})
			continue
		}
		h.dispatch(ctx, connID, raw)
	}
}

func (h *ChatWebsocketHandler) dispatch(ctx context.Context, connID string, raw []byte) {
	var req domain.WSRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		logger.Log.Errorf("json unmarshal error:", err, zap.String("connID", connID))
		h.hub.SendTo(connID, domain.WSResponse{Action: "error", Error: "invalid payload"})
		return
	}

	// Typing is fire-and-forget: no reply to the sender.
	if req.Action == string(domain.Typing) {
		h.handleTyping(connID, req)
		return
	}

	var resp domain.WSResponse
	switch req.Action {
	case string(domain.Join):
		resp = h.handleJoin(ctx, connID, req)
	case string(domain.SendMessage):
		resp = h.handleMessage(ctx, connID, req)
	case string(domain.EditMessage):
		resp = h.handleEdit(ctx, connID, req)
	case string(domain.DeleteMessage):
		resp = h.handleDelete(ctx, connID, req)
	case string(domain.SearchMessages):
		resp = h.handleSearch(ctx, connID, req)
	case string(domain.GetOnlineUsers):
		resp = h.handleGetOnlineUsers(connID, req)
	default:
		resp = domain.WSResponse{Action: req.Action, Error: "unknown action"}
	}

	if resp.Error != "" {
		logger.Log.Error("websocket action failed",
			zap.String("connID", connID),
			zap.String("action", req.Action),
			zap.String("err", resp.Error),
		)
	}
	h.hub.SendTo(connID, resp)
}

func (h *ChatWebsocketHandler) handleJoin(ctx context.Context, connID string, req domain.WSRequest) domain.WSResponse {
	resp := domain.WSResponse{Action: req.Action, Payload: map[string]interface{}{}}

	sess, ok := h.registry.Get(connID)
	if !ok {
		return failResp(resp, domain.ErrAuthenticationFailed)
	}

	room := req.Room
	if room == "" {
		room = domain.DefaultRoom
	}

	unlock := h.lockRooms(sess.CurrentRoom, room)
	defer unlock()

	name, err := h.rooms.ValidateUsername(room, req.Username)
	if err != nil {
		return failResp(resp, err)
	}

	if sess.InRoom() && sess.CurrentRoom != room {
		h.rooms.Leave(sess.CurrentRoom, connID)
		h.broadcastUserLeft(sess.CurrentRoom, sess.DisplayName)
		h.broadcastPresence(sess.CurrentRoom)
	}

	h.rooms.Join(room, connID, name)
	h.registry.SetRoom(connID, room, name)

	logger.Log.Info("user joined room", zap.String("username", name), zap.String("room", room))

	h.hub.Broadcast(h.rooms.MembersOf(room), domain.WSResponse{
		Action:  string(domain.EventUserJoined),
		Success: true,
		Payload: map[string]interface{}{
			"username":  name,
			"timestamp": time.Now(),
			"message":   name + " joined the chat",
		},
	})

	if recent, err := h.messages.Recent(ctx, room, h.historyLimit); err == nil {
		h.hub.SendTo(connID, domain.WSResponse{
			Action:  string(domain.EventRecentMessages),
			Success: true,
			Payload: map[string]interface{}{"messages": recent},
		})
	} else {
		logger.Log.Errorf("load recent messages:", err, zap.String("room", room))
	}

	if stats, err := h.messages.RoomStats(ctx, room); err == nil {
		h.hub.SendTo(connID, domain.WSResponse{
			Action:  string(domain.EventRoomStats),
			Success: true,
			Payload: map[string]interface{}{"stats": stats},
		})
	} else {
		logger.Log.Errorf("load room stats:", err, zap.String("room", room))
	}

	h.broadcastPresence(room)

	resp.Success = true
	resp.Payload["room"] = room
	resp.Payload["username"] = name
	resp.Payload["message"] = "Joined room " + room
	return resp
}

func (h *ChatWebsocketHandler) handleMessage(ctx context.Context, connID string, req domain.WSRequest) domain.WSResponse {
	resp := domain.WSResponse{Action: req.Action, Payload: map[string]interface{}{}}

	sess, ok := h.registry.Get(connID)
	if !ok || !sess.InRoom() {
		return failResp(resp, domain.ErrNotJoined)
	}
	if req.Room != "" && req.Room != sess.CurrentRoom {
		// A per-message room override is only honored for the room the
		// session actually joined.
		return failResp(resp, domain.ErrNotParticipant)
	}
	room := sess.CurrentRoom

	if err := h.messages.ValidateBody(req.Message); err != nil {
		return failResp(resp, err)
	}

	now := time.Now()
	if !h.limiter.Allow(sess.Principal.ID, now) {
		return failResp(resp, domain.ErrRateLimited)
	}

	unlock := h.lockRooms(room, "")
	defer unlock()

	msg, err := h.messages.Append(ctx, room, sess.Principal.ID, sess.DisplayName, req.Message)
	if err != nil {
		return failResp(resp, err)
	}
	h.registry.RecordActivity(connID, now)

	h.hub.Broadcast(h.rooms.MembersOf(room), domain.WSResponse{
		Action:  string(domain.EventMessage),
		Success: true,
		Payload: map[string]interface{}{"message": msg},
	})

	resp.Success = true
	resp.Payload["message"] = msg
	return resp
}

func (h *ChatWebsocketHandler) handleEdit(ctx context.Context, connID string, req domain.WSRequest) domain.WSResponse {
	resp := domain.WSResponse{Action: req.Action, Payload: map[string]interface{}{}}

	sess, ok := h.registry.Get(connID)
	if !ok || !sess.InRoom() {
		return failResp(resp, domain.ErrNotJoined)
	}

	current, err := h.messages.Get(ctx, req.MessageID)
	if err != nil {
		return failResp(resp, err)
	}
	if current.RoomID != sess.CurrentRoom {
		return failResp(resp, domain.ErrNotParticipant)
	}

	unlock := h.lockRooms(current.RoomID, "")
	defer unlock()

	edited, err := h.messages.Edit(ctx, req.MessageID, sess.Principal.ID, req.NewBody)
	if err != nil {
		return failResp(resp, err)
	}

	h.hub.Broadcast(h.rooms.MembersOf(edited.RoomID), domain.WSResponse{
		Action:  string(domain.EventMessageEdited),
		Success: true,
		Payload: map[string]interface{}{"message": edited},
	})

	resp.Success = true
	resp.Payload["message"] = edited
	return resp
}

func (h *ChatWebsocketHandler) handleDelete(ctx context.Context, connID string, req domain.WSRequest) domain.WSResponse {
	resp := domain.WSResponse{Action: req.Action, Payload: map[string]interface{}{}}

	sess, ok := h.registry.Get(connID)
	if !ok || !sess.InRoom() {
		return failResp(resp, domain.ErrNotJoined)
	}

	current, err := h.messages.Get(ctx, req.MessageID)
	if err != nil {
		return failResp(resp, err)
	}
	if current.RoomID != sess.CurrentRoom {
		return failResp(resp, domain.ErrNotParticipant)
	}

	unlock := h.lockRooms(current.RoomID, "")
	defer unlock()

	deleted, err := h.messages.Delete(ctx, req.MessageID, sess.Principal.ID)
	if err != nil {
		return failResp(resp, err)
	}

	h.hub.Broadcast(h.rooms.MembersOf(deleted.RoomID), domain.WSResponse{
		Action:  string(domain.EventMessageDeleted),
		Success: true,
		Payload: map[string]interface{}{"message": deleted},
	})

	resp.Success = true
	resp.Payload["message"] = deleted
	return resp
}

func (h *ChatWebsocketHandler) handleTyping(connID string, req domain.WSRequest) {
	sess, ok := h.registry.Get(connID)
	if !ok || !sess.InRoom() {
		return
	}

	h.hub.BroadcastExcept(h.rooms.MembersOf(sess.CurrentRoom), connID, domain.WSResponse{
		Action:  string(domain.EventTyping),
		Success: true,
		Payload: map[string]interface{}{
			"username":  sess.DisplayName,
			"is_typing": req.IsTyping,
		},
	})
}

func (h *ChatWebsocketHandler) handleSearch(ctx context.Context, connID string, req domain.WSRequest) domain.WSResponse {
	resp := domain.WSResponse{Action: req.Action, Payload: map[string]interface{}{}}

	sess, ok := h.registry.Get(connID)
	if !ok || !sess.InRoom() {
		return failResp(resp, domain.ErrNotJoined)
	}
	if req.Room != "" && req.Room != sess.CurrentRoom {
		return failResp(resp, domain.ErrNotParticipant)
	}

	results, err := h.messages.Search(ctx, sess.CurrentRoom, req.Query)
	if err != nil {
		return failResp(resp, err)
	}

	resp.Success = true
	resp.Payload["results"] = results
	resp.Payload["query"] = req.Query
	return resp
}

func (h *ChatWebsocketHandler) handleGetOnlineUsers(connID string, req domain.WSRequest) domain.WSResponse {
	resp := domain.WSResponse{Action: req.Action, Payload: map[string]interface{}{}}

	sess, ok := h.registry.Get(connID)
	if !ok || !sess.InRoom() {
		return failResp(resp, domain.ErrNotJoined)
	}

	users := h.rooms.OnlineUsers(sess.CurrentRoom)
	resp.Success = true
	resp.Payload["users"] = users
	resp.Payload["count"] = len(users)
	return resp
}

// teardown unwinds one connection: membership removal plus presence
// broadcast to the abandoned room, then unbind, then rate window discard.
// Room membership never outlives the session binding. Safe to call for a
// connection that never authenticated.
func (h *ChatWebsocketHandler) teardown(connID string) {
	sess, ok := h.registry.Get(connID)
	if ok && sess.InRoom() {
		unlock := h.lockRooms(sess.CurrentRoom, "")
		if h.rooms.Leave(sess.CurrentRoom, connID) {
			h.broadcastUserLeft(sess.CurrentRoom, sess.DisplayName)
			h.broadcastPresence(sess.CurrentRoom)
		}
		unlock()
	}

	h.registry.Unbind(connID)
	h.hub.Unregister(connID)
	if ok {
		h.limiter.Forget(sess.Principal.ID)
	}
}

func (h *ChatWebsocketHandler) broadcastUserLeft(roomID, username string) {
	h.hub.Broadcast(h.rooms.MembersOf(roomID), domain.WSResponse{
		Action:  string(domain.EventUserLeft),
		Success: true,
		Payload: map[string]interface{}{
			"username":  username,
			"timestamp": time.Now(),
			"message":   username + " left the chat",
		},
	})
}

func (h *ChatWebsocketHandler) broadcastPresence(roomID string) {
	users := h.rooms.OnlineUsers(roomID)
	h.hub.Broadcast(h.rooms.MembersOf(roomID), domain.WSResponse{
		Action:  string(domain.EventOnlineUsers),
		Success: true,
		Payload: map[string]interface{}{
			"users": users,
			"count": len(users),
		},
	})
}

// lockRooms acquires the striped locks for up to two rooms in sorted order
// so a switch can hold both sides without deadlocking against another
// switch going the opposite way.
func (h *ChatWebsocketHandler) lockRooms(a, b string) func() {
	if a == b {
		b = ""
	}
	if a == "" {
		a, b = b, ""
	}
	if a == "" {
		return func() {}
	}
	if b != "" && b < a {
		a, b = b, a
	}

	first := h.roomLock(a)
	first.Lock()
	if b == "" {
		return first.Unlock
	}
	second := h.roomLock(b)
	second.Lock()
	return func() {
		second.Unlock()
		first.Unlock()
	}
}

func (h *ChatWebsocketHandler) roomLock(roomID string) *sync.Mutex {
	h.locksMu.Lock()
	defer h.locksMu.Unlock()

	l, ok := h.roomLocks[roomID]
	if !ok {
		l = &sync.Mutex{}
		h.roomLocks[roomID] = l
	}
	return l
}

func (h *ChatWebsocketHandler) sendDirect(conn *websocket.Conn, resp domain.WSResponse) {
	data, _ := json.Marshal(resp)
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		logger.Log.Errorf("write message error:", err)
	}
}

func failResp(resp domain.WSResponse, err error) domain.WSResponse {
	resp.Error = err.Error()
	resp.ErrorKind = string(domain.KindOf(err))
	return resp
}
