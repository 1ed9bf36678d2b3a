package domain

// Action websocket request action
type Action string

const (
	// Join websocket action join
	Join Action = "join"
	// SendMessage websocket action message
	SendMessage Action = "message"
	// EditMessage websocket action editMessage
	EditMessage Action = "editMessage"
	// DeleteMessage websocket action deleteMessage
	DeleteMessage Action = "deleteMessage"
	// Typing websocket action typing
	Typing Action = "typing"
	// SearchMessages websocket action searchMessages
	SearchMessages Action = "searchMessages"
	// GetOnlineUsers websocket action getOnlineUsers
	GetOnlineUsers Action = "getOnlineUsers"
)

// Event server-to-client broadcast name
type Event string

const (
	// EventUserJoined a member entered the room
	EventUserJoined Event = "userJoined"
	// EventUserLeft a member left the room
	EventUserLeft Event = "userLeft"
	// EventMessage a new message was appended
	EventMessage Event = "message"
	// EventMessageEdited a message body was replaced by its owner
	EventMessageEdited Event = "messageEdited"
	// EventMessageDeleted a message was tombstoned
	EventMessageDeleted Event = "messageDeleted"
	// EventTyping a member toggled their typing flag
	EventTyping Event = "typing"
	// EventOnlineUsers the room presence view changed
	EventOnlineUsers Event = "onlineUsers"
	// EventRecentMessages history pushed to a joining connection
	EventRecentMessages Event = "recentMessages"
	// EventRoomStats stats pushed to a joining connection
	EventRoomStats Event = "roomStats"
)

// WSRequest websocket Request
type WSRequest struct {
	Action    string `json:"action"`
	Room      string `json:"room,omitempty"`
	Username  string `json:"username,omitempty"`
	Message   string `json:"message,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	NewBody   string `json:"new_message,omitempty"`
	IsTyping  bool   `json:"is_typing,omitempty"`
	Query     string `json:"query,omitempty"`
}

// WSResponse websocket Response
type WSResponse struct {
	Action    string                 `json:"action"`
	Success   bool                   `json:"success"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Error     string                 `json:"error,omitempty"`
	ErrorKind string                 `json:"error_kind,omitempty"`
}
