package app

import (
	"errors"
	"strings"
	"time"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/internal/chat/repository"
	"realtime_chat_service/pkg/logger"
	"realtime_chat_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ChatRoomHandler handles room metadata HTTP requests
type ChatRoomHandler struct {
	rooms repository.RoomRepository
}

// NewChatRoomHandler create ChatRoomHandler
func NewChatRoomHandler(rooms repository.RoomRepository) *ChatRoomHandler {
	return &ChatRoomHandler{rooms: rooms}
}

// CreateRoom create a chat room
func (h *ChatRoomHandler) CreateRoom(c *fiber.Ctx) error {
	type request struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}

	var req request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name is required"})
	}

	creator, _ := c.Locals(middlewares.TokenUserID).(string)

	room := &domain.ChatRoom{
		ID:          uuid.New().String(),
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		CreatedBy:   creator,
		IsActive:    true,
		CreatedAt:   time.Now().UnixMilli(),
	}

	if err := h.rooms.CreateRoom(c.Context(), room); err != nil {
		logger.Log.Errorf("create room:", err, zap.String("name", name))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "create room failed"})
	}

	logger.Log.Info("room created", zap.String("roomID", room.ID), zap.String("name", name))
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"room": room})
}

// ListRooms list active chat rooms
func (h *ChatRoomHandler) ListRooms(c *fiber.Ctx) error {
	rooms, err := h.rooms.ListRooms(c.Context())
	if err != nil {
		logger.Log.Errorf("list rooms:", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "list rooms failed"})
	}
	return c.JSON(fiber.Map{"rooms": rooms, "count": len(rooms)})
}

// GetRoom find one chat room by id
func (h *ChatRoomHandler) GetRoom(c *fiber.Ctx) error {
	roomID := c.Params("id")
	if roomID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "id is required"})
	}

	room, err := h.rooms.FindByID(c.Context(), roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "room not found"})
		}
		logger.Log.Errorf("find room:", err, zap.String("roomID", roomID))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "find room failed"})
	}
	return c.JSON(fiber.Map{"room": room})
}
