package domain

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// TombstoneBody replaces the content of a soft-deleted message. Once a
// message carries it, no read path may return the original body.
const TombstoneBody = "[This message was deleted]"

// DefaultRoom is joined when a client does not name a room.
const DefaultRoom = "general"

// Message is one chat entry inside a room. Deletion is a tombstone: the id
// and room ordering survive, the body does not.
type Message struct {
	ID         string     `bson:"_id" json:"id"`
	RoomID     string     `bson:"room_id" json:"room_id"`
	AuthorID   string     `bson:"author_id" json:"author_id"`
	AuthorName string     `bson:"author_name" json:"author_name"`
	Body       string     `bson:"body" json:"body"`
	CreatedAt  time.Time  `bson:"created_at" json:"created_at"`
	EditedAt   *time.Time `bson:"edited_at,omitempty" json:"edited_at,omitempty"`
	IsEdited   bool       `bson:"is_edited" json:"is_edited"`
	IsDeleted  bool       `bson:"is_deleted" json:"is_deleted"`
}

// RoomStats aggregates a room's message activity.
type RoomStats struct {
	TotalMessages   int        `json:"total_messages"`
	DistinctAuthors int        `json:"distinct_authors"`
	LastMessageAt   *time.Time `json:"last_message_at,omitempty"`
}

var messageSeq uint64

// NewMessageID builds a unique message id from the creation time, a
// per-process counter, and a random suffix. The counter plus suffix keep ids
// collision-free for concurrent appends inside the same millisecond; ordering
// comes from the room index, not the id.
func NewMessageID(now time.Time) string {
	seq := atomic.AddUint64(&messageSeq, 1)
	return fmt.Sprintf("%d-%d-%s", now.UnixMilli(), seq, uuid.New().String()[:8])
}
