package repository

import (
	"context"
	"time"

	"realtime_chat_service/internal/chat/domain"
)

// ListOptions controls room listing.
type ListOptions struct {
	// Limit keeps only the most recent N messages when > 0.
	Limit int
	// BeforeID pages strictly before the given message id in room order.
	BeforeID string
	// IncludeTombstones keeps soft-deleted entries in the result. Off by
	// default; only audit and cleanup paths turn it on.
	IncludeTombstones bool
}

// MessageRepository definition room-indexed, mutable-by-owner message log.
// Both the in-memory reference store and the mongo-backed variant implement
// it; the behavioral contract (ordering, ownership checks, tombstone
// semantics) is identical across the two.
type MessageRepository interface {
	// Insert stores a fully built message and appends it to the room index.
	Insert(ctx context.Context, msg *domain.Message) error
	// FindByID returns the message or domain.ErrMessageNotFound.
	FindByID(ctx context.Context, id string) (*domain.Message, error)
	// Edit replaces the body for the owning author. Tombstoned messages
	// refuse edits with domain.ErrAlreadyDeleted.
	Edit(ctx context.Context, id, requesterID, newBody string, now time.Time) (*domain.Message, error)
	// SoftDelete tombstones the message for the owning author. The original
	// body is unrecoverable through every read path afterwards.
	SoftDelete(ctx context.Context, id, requesterID string) (*domain.Message, error)
	// ListByRoom returns messages in creation order, tombstones excluded
	// unless opted in.
	ListByRoom(ctx context.Context, roomID string, opt ListOptions) ([]domain.Message, error)
	// Search matches the query case-insensitively against body and author
	// name, excluding tombstones. An empty roomID searches all rooms.
	Search(ctx context.Context, roomID, query string) ([]domain.Message, error)
	// RoomStats aggregates visible messages of one room.
	RoomStats(ctx context.Context, roomID string) (*domain.RoomStats, error)
	// Sweep physically removes tombstoned messages created before the
	// cutoff and reports how many went away. The only real deletion.
	Sweep(ctx context.Context, olderThan time.Time) (int, error)
}
