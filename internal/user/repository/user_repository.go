package repository

import (
	"context"
	"errors"
	"fmt"

	"realtime_chat_service/internal/user/domain"

	"gorm.io/gorm"
)

// ErrUserNotFound no user matched the query conditions
var ErrUserNotFound = errors.New("user not found")

// UserRepository definition get User info
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	UpdateUser(ctx context.Context, user *domain.User) error
	UpdateUserStatus(ctx context.Context, userID string, status domain.UserStatus) error
	FindUser(ctx context.Context, query *domain.UserQuery) (*domain.User, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository create a UserRepository and migrate the schema
func NewUserRepository(db *gorm.DB) (UserRepository, error) {
	if err := db.AutoMigrate(&domain.User{}); err != nil {
		return nil, fmt.Errorf("migrate users: %w", err)
	}
	return &userRepository{db: db}, nil
}

func (r *userRepository) CreateUser(ctx context.Context, user *domain.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) UpdateUser(ctx context.Context, user *domain.User) error {
	return r.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("user_id = ?", user.UserID).
		Updates(map[string]interface{}{
			"username":   user.Username,
			"avatar_ref": user.AvatarRef,
		}).Error
}

func (r *userRepository) UpdateUserStatus(ctx context.Context, userID string, status domain.UserStatus) error {
	return r.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("user_id = ?", userID).
		Update("status", status).Error
}

func (r *userRepository) FindUser(ctx context.Context, query *domain.UserQuery) (*domain.User, error) {
	tx := r.db.WithContext(ctx).Model(&domain.User{})
	if query.ID != nil {
		tx = tx.Where("id = ?", *query.ID)
	}
	if query.UserID != nil {
		tx = tx.Where("user_id = ?", *query.UserID)
	}
	if query.Email != nil {
		tx = tx.Where("email = ?", *query.Email)
	}

	var user domain.User
	err := tx.First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
