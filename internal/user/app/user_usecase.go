package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"realtime_chat_service/internal/user/domain"
	"realtime_chat_service/internal/user/repository"
	"realtime_chat_service/pkg/config"
	"realtime_chat_service/pkg/database"
	"realtime_chat_service/pkg/encrypt"
	"realtime_chat_service/pkg/logger"
	token "realtime_chat_service/pkg/token"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrEmailTaken email already registered
var ErrEmailTaken = errors.New("email already exists")

// UserUseCase account level application services
type UserUseCase interface {
	Register(ctx context.Context, email, password, username string) error
	Login(ctx context.Context, email, password string) (string, error)
	Logout(ctx context.Context, token string) error
	Profile(ctx context.Context, userID string) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID, username, avatarRef string) (*domain.User, error)
	FindUser(ctx context.Context, query *domain.UserQuery) (*domain.User, error)
}

type userUseCase struct {
	userRepo   repository.UserRepository
	sessionTTL time.Duration
	redisRepo  database.RedisRepository[domain.UserSession]
}

// NewUserUseCase create a UserUseCase
func NewUserUseCase(userRepo repository.UserRepository,
	sessionTTL time.Duration,
	redisRepo database.RedisRepository[domain.UserSession],
) UserUseCase {
	return &userUseCase{
		userRepo:   userRepo,
		sessionTTL: sessionTTL,
		redisRepo:  redisRepo,
	}
}

// Register
func (u *userUseCase) Register(ctx context.Context, email, password, username string) error {
	if _, err := u.userRepo.FindUser(ctx, &domain.UserQuery{Email: &email}); err == nil {
		return ErrEmailTaken
	}

	if err := encrypt.ValidatePasswordStrength(password); err != nil {
		return err
	}
	pw, err := encrypt.HashPassword(password)
	if err != nil {
		return err
	}

	user := domain.User{
		UserID:   uuid.New().String(),
		Email:    email,
		Password: pw,
		Username: strings.TrimSpace(username),
	}

	logger.Log.Info("register user", zap.String("email", email), zap.String("userID", user.UserID))

	return u.userRepo.CreateUser(ctx, &user)
}

// Login issues a JWT and caches the session with a TTL.
func (u *userUseCase) Login(ctx context.Context, email, password string) (string, error) {
	user, err := u.userRepo.FindUser(ctx, &domain.UserQuery{Email: &email})
	if err != nil {
		logger.Log.Error("login failed, email unknown", zap.String("email", email))
		return "", repository.ErrUserNotFound
	}

	if err = user.IsPasswordMatch(password); err != nil {
		logger.Log.Error("login failed, password mismatch", zap.String("email", email))
		return "", err
	}

	t, err := token.GenerateJWT(user.UserID, string(token.RoleUser), config.EnvConfig.ChatService)
	if err != nil {
		return "", err
	}

	now := time.Now()
	session := domain.UserSession{
		Token:        t,
		UserID:       user.UserID,
		CreatedAt:    now,
		LastActivity: now,
		ExpiredAt:    now.Add(u.sessionTTL),
	}
	if err := u.redisRepo.Set(ctx, user.UserID, session, u.sessionTTL); err != nil {
		logger.Log.Errorf("cache session:", err, zap.String("userID", user.UserID))
	}

	if err := u.userRepo.UpdateUserStatus(ctx, user.UserID, domain.UserStatusOnline); err != nil {
		return "", err
	}

	return t, nil
}

// Logout
func (u *userUseCase) Logout(ctx context.Context, t string) error {
	claims, err := token.ParseJWT(t)
	if err != nil {
		logger.Log.Errorf("logout, parse token:", err)
		return err
	}

	if err := u.redisRepo.Del(ctx, claims.UserID); err != nil {
		logger.Log.Errorf("drop session:", err, zap.String("userID", claims.UserID))
	}

	return u.userRepo.UpdateUserStatus(ctx, claims.UserID, domain.UserStatusOffline)
}

// Profile
func (u *userUseCase) Profile(ctx context.Context, userID string) (*domain.User, error) {
	return u.userRepo.FindUser(ctx, &domain.UserQuery{UserID: &userID})
}

// UpdateProfile replaces the display name and avatar reference.
func (u *userUseCase) UpdateProfile(ctx context.Context, userID, username, avatarRef string) (*domain.User, error) {
	user, err := u.userRepo.FindUser(ctx, &domain.UserQuery{UserID: &userID})
	if err != nil {
		return nil, err
	}

	if name := strings.TrimSpace(username); name != "" {
		user.Username = name
	}
	if avatarRef != "" {
		user.AvatarRef = avatarRef
	}

	if err := u.userRepo.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// FindUser
func (u *userUseCase) FindUser(ctx context.Context, query *domain.UserQuery) (*domain.User, error) {
	return u.userRepo.FindUser(ctx, query)
}
