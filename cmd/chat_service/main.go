package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	chatapp "realtime_chat_service/internal/chat/app"
	chatrepo "realtime_chat_service/internal/chat/repository"
	chatrouter "realtime_chat_service/internal/chat/router"
	userapp "realtime_chat_service/internal/user/app"
	userdomain "realtime_chat_service/internal/user/domain"
	userrepo "realtime_chat_service/internal/user/repository"
	userrouter "realtime_chat_service/internal/user/router"
	"realtime_chat_service/pkg/config"
	"realtime_chat_service/pkg/database"
	"realtime_chat_service/pkg/logger"

	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.ChatService, config.EnvConfig.ChatServiceLogPath)
	cfg := config.LoadConfig[config.Chat](config.EnvConfig.ChatService, config.EnvConfig.ChatServiceYAMLPath)

	ctx := context.Background()

	// postgres holds the accounts
	pgConn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.PostgreSQL.Host, cfg.PostgreSQL.Port, cfg.PostgreSQL.User, cfg.PostgreSQL.Password, cfg.PostgreSQL.Database)
	pg, err := database.NewPGConnection(database.Connection{
		ConnectStr:    pgConn,
		RetryCount:    cfg.PostgreSQL.RetryCount,
		RetryInterval: time.Duration(cfg.PostgreSQL.RetryInterval) * time.Second,
	})
	if err != nil {
		logger.Log.Fatal("Unable to connect to postgres after retries", zap.Error(err))
	}

	// redis caches login sessions
	masterName, sentinel := config.GetRedisSetting()
	redisClient, err := database.NewRedisClient(masterName, sentinel, cfg.Redis.RedisDB)
	if err != nil {
		logger.Log.Fatal(fmt.Sprintf("connect redis err : %v", err))
	}

	userRepository, err := userrepo.NewUserRepository(pg)
	if err != nil {
		logger.Log.Fatal("migrate user schema", zap.Error(err))
	}
	userUC := userapp.NewUserUseCase(
		userRepository,
		cfg.SessionTTL,
		database.NewRedisRepository[userdomain.UserSession](redisClient),
	)

	// message and room storage, mongo when durability is wanted
	var (
		msgRepo  chatrepo.MessageRepository
		roomRepo chatrepo.RoomRepository
	)
	switch cfg.Storage {
	case "mongo":
		uri := fmt.Sprintf("mongodb://%s:%s@%s:%d", cfg.MongoSQL.User, cfg.MongoSQL.Password, cfg.MongoSQL.Host, cfg.MongoSQL.Port)
		mongo, err := database.NewMongoDB(ctx,
			database.Connection{
				ConnectStr:    uri,
				RetryCount:    cfg.MongoSQL.RetryCount,
				RetryInterval: time.Duration(cfg.MongoSQL.RetryInterval) * time.Second,
			},
			cfg.MongoSQL.Database)
		if err != nil {
			logger.Log.Fatal(
				"Unable to connect to mongoDB database after retries",
				zap.String("address", fmt.Sprintf("[%s]", uri)),
				zap.Error(err),
			)
		}
		defer mongo.Close(ctx)

		msgRepo = chatrepo.NewMongoMessageRepository(mongo.Database)
		roomRepo = chatrepo.NewMongoRoomRepository(mongo.Database)
	default:
		msgRepo = chatrepo.NewMemoryMessageRepository()
		roomRepo = chatrepo.NewMemoryRoomRepository()
	}

	messageUC := chatapp.NewMessageUseCase(msgRepo, cfg.Message.MaxLength)
	hub := chatapp.NewHub(cfg.Message.SendQueueSize)
	gateway := chatapp.NewChatWebsocketHandler(
		userapp.NewTokenAuthenticator(userUC),
		chatapp.NewSessionRegistry(),
		chatapp.NewRoomManager(),
		chatapp.NewSlidingWindowLimiter(cfg.RateLimit.Window, cfg.RateLimit.MaxMessages),
		messageUC,
		hub,
		cfg.Message.HistoryLimit,
	)

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go chatapp.NewRetentionSweeper(messageUC, cfg.Retention.SweepInterval, cfg.Retention.MaxAge).Run(sweepCtx)

	r := fiber.New()
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.ChatServiceLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	r.Use(fiber_log.New(fiber_log.Config{
		Output: file,
	}))

	userrouter.RegisterRoutes(r, userapp.NewUserHandler(userUC))
	chatrouter.RegisterRoutes(r, gateway, chatapp.NewChatRoomHandler(roomRepo))

	port := ":" + cfg.Port
	log.Printf("Chat Service listening on %s", port)
	if err := r.Listen(port); err != nil {
		log.Fatalf("Failed to start Fiber: %v", err)
	}
}
