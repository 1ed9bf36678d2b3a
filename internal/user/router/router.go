package router

import (
	"realtime_chat_service/internal/user/app"
	"realtime_chat_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes register account routes. Register and login stay open,
// the rest sits behind the token middleware.
func RegisterRoutes(r *fiber.App, userHandler *app.UserHandler) {
	userRoutes := r.Group("/users")
	userRoutes.Post("/register", userHandler.Register)
	userRoutes.Post("/login", userHandler.Login)

	userRoutes.Use(middlewares.JWTMiddleware())
	userRoutes.Post("/logout", userHandler.Logout)
	userRoutes.Get("/me", userHandler.Profile)
	userRoutes.Put("/me", userHandler.UpdateProfile)
}
