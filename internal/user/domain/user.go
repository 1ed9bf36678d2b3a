package domain

import (
	"time"

	"realtime_chat_service/pkg/encrypt"
)

// UserStatus account state
type UserStatus int

const (
	// UserStatusOffline user has no live session
	UserStatusOffline UserStatus = iota
	// UserStatusOnline user logged in
	UserStatusOnline
	// UserStatusBanned user blocked from logging in
	UserStatusBanned
	// UserStatusDeleted account removed, kept for audit
	UserStatusDeleted
)

// User chat account stored in postgres
type User struct {
	ID        int64      `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID    string     `gorm:"uniqueIndex;size:36" json:"user_id"`
	Email     string     `gorm:"uniqueIndex;size:255" json:"email"`
	Password  string     `gorm:"size:255" json:"-"`
	Username  string     `gorm:"size:64" json:"username"`
	AvatarRef string     `gorm:"size:255" json:"avatar_ref"`
	Status    UserStatus `gorm:"default:0" json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TableName gorm table name
func (User) TableName() string { return "users" }

// IsPasswordMatch verify the given plaintext against the stored hash
func (u *User) IsPasswordMatch(inputPwd string) error {
	return encrypt.CheckPassword(u.Password, inputPwd)
}

// UserSession login session cached in redis keyed by user id
type UserSession struct {
	Token        string    `json:"Token"`
	UserID       string    `json:"UserID"`
	CreatedAt    time.Time `json:"CreatedAt"`
	LastActivity time.Time `json:"LastActivity"`
	ExpiredAt    time.Time `json:"ExpiredAt"`
}

// IsExpired check the session passed its expiry
func (s *UserSession) IsExpired() bool {
	return time.Now().After(s.ExpiredAt)
}

// UserQuery join conditions are used to query users
type UserQuery struct {
	ID     *int64
	UserID *string
	Email  *string
}
