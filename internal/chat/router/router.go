package router

import (
	"context"

	"realtime_chat_service/internal/chat/app"
	"realtime_chat_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// RegisterRoutes register the websocket gateway and the room metadata API.
// Everything here requires a valid token.
func RegisterRoutes(r *fiber.App, chatWebsocket *app.ChatWebsocketHandler, roomHandler *app.ChatRoomHandler) {
	r.Use(middlewares.JWTMiddleware())

	r.Get("/ws", websocket.New(func(c *websocket.Conn) {
		chatWebsocket.HandleConnection(context.Background(), c)
	}))

	chatRoutes := r.Group("/chats")
	chatRoutes.Post("/", roomHandler.CreateRoom)
	chatRoutes.Get("/", roomHandler.ListRooms)
	chatRoutes.Get("/:id", roomHandler.GetRoom)
}
