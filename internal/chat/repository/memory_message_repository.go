package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"realtime_chat_service/internal/chat/domain"
)

// memoryMessageRepository is the reference store: id -> message map plus a
// per-room ordered index of ids. The index carries the room ordering so
// pagination never reorders between calls.
type memoryMessageRepository struct {
	mu        sync.RWMutex
	messages  map[string]*domain.Message
	roomIndex map[string][]string
}

// NewMemoryMessageRepository create the in-memory MessageRepository.
func NewMemoryMessageRepository() MessageRepository {
	return &memoryMessageRepository{
		messages:  make(map[string]*domain.Message),
		roomIndex: make(map[string][]string),
	}
}

func (r *memoryMessageRepository) Insert(_ context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *msg
	r.messages[msg.ID] = &stored
	r.roomIndex[msg.RoomID] = append(r.roomIndex[msg.RoomID], msg.ID)
	return nil
}

func (r *memoryMessageRepository) FindByID(_ context.Context, id string) (*domain.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	msg, ok := r.messages[id]
	if !ok {
		return nil, domain.ErrMessageNotFound
	}
	out := *msg
	return &out, nil
}

func (r *memoryMessageRepository) Edit(_ context.Context, id, requesterID, newBody string, now time.Time) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg, ok := r.messages[id]
	if !ok {
		return nil, domain.ErrMessageNotFound
	}
	if msg.AuthorID != requesterID {
		return nil, domain.ErrNotMessageOwner
	}
	if msg.IsDeleted {
		return nil, domain.ErrAlreadyDeleted
	}

	msg.Body = newBody
	msg.IsEdited = true
	editedAt := now
	msg.EditedAt = &editedAt

	out := *msg
	return &out, nil
}

func (r *memoryMessageRepository) SoftDelete(_ context.Context, id, requesterID string) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg, ok := r.messages[id]
	if !ok {
		return nil, domain.ErrMessageNotFound
	}
	if msg.AuthorID != requesterID {
		return nil, domain.ErrNotMessageOwner
	}
	if msg.IsDeleted {
		return nil, domain.ErrAlreadyDeleted
	}

	msg.IsDeleted = true
	msg.Body = domain.TombstoneBody

	out := *msg
	return &out, nil
}

func (r *memoryMessageRepository) ListByRoom(_ context.Context, roomID string, opt ListOptions) ([]domain.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var cutoff *time.Time
	if opt.BeforeID != "" {
		anchor, ok := r.messages[opt.BeforeID]
		if !ok {
			return nil, domain.ErrMessageNotFound
		}
		createdAt := anchor.CreatedAt
		cutoff = &createdAt
	}

	ids := r.roomIndex[roomID]
	result := make([]domain.Message, 0, len(ids))
	for _, id := range ids {
		msg, ok := r.messages[id]
		if !ok {
			continue
		}
		if cutoff != nil && !msg.CreatedAt.Before(*cutoff) {
			continue
		}
		if msg.IsDeleted && !opt.IncludeTombstones {
			continue
		}
		result = append(result, *msg)
	}

	if opt.Limit > 0 && len(result) > opt.Limit {
		result = result[len(result)-opt.Limit:]
	}
	return result, nil
}

func (r *memoryMessageRepository) Search(_ context.Context, roomID, query string) ([]domain.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lowerQuery := strings.ToLower(query)

	var candidates []*domain.Message
	if roomID != "" {
		for _, id := range r.roomIndex[roomID] {
			if msg, ok := r.messages[id]; ok {
				candidates = append(candidates, msg)
			}
		}
	} else {
		for _, msg := range r.messages {
			candidates = append(candidates, msg)
		}
		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
		})
	}

	var result []domain.Message
	for _, msg := range candidates {
		if msg.IsDeleted {
			continue
		}
		if strings.Contains(strings.ToLower(msg.Body), lowerQuery) ||
			strings.Contains(strings.ToLower(msg.AuthorName), lowerQuery) {
			result = append(result, *msg)
		}
	}
	return result, nil
}

func (r *memoryMessageRepository) RoomStats(_ context.Context, roomID string) (*domain.RoomStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &domain.RoomStats{}
	authors := make(map[string]struct{})
	for _, id := range r.roomIndex[roomID] {
		msg, ok := r.messages[id]
		if !ok || msg.IsDeleted {
			continue
		}
		stats.TotalMessages++
		authors[msg.AuthorID] = struct{}{}
		createdAt := msg.CreatedAt
		stats.LastMessageAt = &createdAt
	}
	stats.DistinctAuthors = len(authors)
	return stats, nil
}

func (r *memoryMessageRepository) Sweep(_ context.Context, olderThan time.Time) (int, error) {
	// Snapshot candidates first so the delete pass holds the write lock for
	// as short as possible; a candidate vanishing in between is tolerated.
	r.mu.RLock()
	var candidates []string
	for id, msg := range r.messages {
		if msg.IsDeleted && msg.CreatedAt.Before(olderThan) {
			candidates = append(candidates, id)
		}
	}
	r.mu.RUnlock()

	if len(candidates) == 0 {
		return 0, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for _, id := range candidates {
		msg, ok := r.messages[id]
		if !ok || !msg.IsDeleted || !msg.CreatedAt.Before(olderThan) {
			continue
		}
		delete(r.messages, id)
		ids := r.roomIndex[msg.RoomID]
		for i, indexed := range ids {
			if indexed == id {
				r.roomIndex[msg.RoomID] = append(ids[:i], ids[i+1:]...)
				break
			}
		}
		removed++
	}
	return removed, nil
}
