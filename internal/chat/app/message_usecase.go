package app

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/internal/chat/repository"
)

// MessageUseCase validates message mutations and drives the repository. The
// repository may be the in-memory reference store or the mongo variant; the
// behavior here is identical for both.
type MessageUseCase struct {
	repo      repository.MessageRepository
	maxLength int
}

// NewMessageUseCase create a MessageUseCase capping bodies at maxLength.
func NewMessageUseCase(repo repository.MessageRepository, maxLength int) *MessageUseCase {
	if maxLength <= 0 {
		maxLength = 1000
	}
	return &MessageUseCase{
		repo:      repo,
		maxLength: maxLength,
	}
}

func (uc *MessageUseCase) validateBody(body string) (string, error) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return "", domain.ErrEmptyBody
	}
	// The cap counts characters, not bytes.
	if utf8.RuneCountInString(trimmed) > uc.maxLength {
		return "", domain.ErrBodyTooLong
	}
	return trimmed, nil
}

// ValidateBody reports whether body would be accepted by Append, without
// touching rate limits or storage.
func (uc *MessageUseCase) ValidateBody(body string) error {
	_, err := uc.validateBody(body)
	return err
}

// Append validates and stores a new message at the tail of the room index.
func (uc *MessageUseCase) Append(ctx context.Context, roomID, authorID, authorName, body string) (*domain.Message, error) {
	trimmed, err := uc.validateBody(body)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	msg := &domain.Message{
		ID:         domain.NewMessageID(now),
		RoomID:     roomID,
		AuthorID:   authorID,
		AuthorName: authorName,
		Body:       trimmed,
		CreatedAt:  now,
	}
	if err := uc.repo.Insert(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Get looks a message up by id.
func (uc *MessageUseCase) Get(ctx context.Context, messageID string) (*domain.Message, error) {
	return uc.repo.FindByID(ctx, messageID)
}

// Edit replaces the body of the requester's own, non-tombstoned message.
func (uc *MessageUseCase) Edit(ctx context.Context, messageID, requesterID, newBody string) (*domain.Message, error) {
	trimmed, err := uc.validateBody(newBody)
	if err != nil {
		return nil, err
	}
	return uc.repo.Edit(ctx, messageID, requesterID, trimmed, time.Now())
}

// Delete tombstones the requester's own message.
func (uc *MessageUseCase) Delete(ctx context.Context, messageID, requesterID string) (*domain.Message, error) {
	return uc.repo.SoftDelete(ctx, messageID, requesterID)
}

// Recent returns the most recent limit messages of the room in
// chronological order, tombstones excluded.
func (uc *MessageUseCase) Recent(ctx context.Context, roomID string, limit int) ([]domain.Message, error) {
	return uc.repo.ListByRoom(ctx, roomID, repository.ListOptions{Limit: limit})
}

// ListByRoom exposes full listing control, including tombstones for audit
// and cleanup callers.
func (uc *MessageUseCase) ListByRoom(ctx context.Context, roomID string, opt repository.ListOptions) ([]domain.Message, error) {
	return uc.repo.ListByRoom(ctx, roomID, opt)
}

// Search matches query case-insensitively against bodies and author names.
func (uc *MessageUseCase) Search(ctx context.Context, roomID, query string) ([]domain.Message, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil, domain.ErrEmptyQuery
	}
	return uc.repo.Search(ctx, roomID, trimmed)
}

// RoomStats aggregates the room's visible messages.
func (uc *MessageUseCase) RoomStats(ctx context.Context, roomID string) (*domain.RoomStats, error) {
	return uc.repo.RoomStats(ctx, roomID)
}

// Sweep physically removes tombstoned messages older than maxAge.
func (uc *MessageUseCase) Sweep(ctx context.Context, maxAge time.Duration, now time.Time) (int, error) {
	return uc.repo.Sweep(ctx, now.Add(-maxAge))
}
