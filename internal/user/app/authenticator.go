package app

import (
	"context"

	chatdomain "realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/pkg/token"
)

// TokenAuthenticator verifies a handshake token and resolves the account
// behind it into a chat principal.
type TokenAuthenticator struct {
	usecase UserUseCase
}

// NewTokenAuthenticator create TokenAuthenticator
func NewTokenAuthenticator(usecase UserUseCase) *TokenAuthenticator {
	return &TokenAuthenticator{usecase: usecase}
}

// Authenticate parse the JWT and look up the account. The display name
// here is only a default; the chat identity is chosen at room join.
func (a *TokenAuthenticator) Authenticate(ctx context.Context, raw string) (chatdomain.Principal, error) {
	claims, err := token.ParseJWT(raw)
	if err != nil {
		return chatdomain.Principal{}, chatdomain.ErrAuthenticationFailed
	}

	user, err := a.usecase.Profile(ctx, claims.UserID)
	if err != nil {
		return chatdomain.Principal{}, chatdomain.ErrAuthenticationFailed
	}

	return chatdomain.Principal{
		ID:          user.UserID,
		DisplayName: user.Username,
		AvatarRef:   user.AvatarRef,
	}, nil
}
