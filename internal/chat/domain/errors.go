package domain

import "errors"

// Kind classifies a handler failure for reporting back to the originating
// connection. Only authentication failures are fatal to the connection.
type Kind string

const (
	// KindValidation bad input shape, length, or charset
	KindValidation Kind = "validation"
	// KindAuthorization actor is not allowed to touch the target
	KindAuthorization Kind = "authorization"
	// KindNotFound unknown message or room id
	KindNotFound Kind = "not_found"
	// KindRateLimit transient, caller should back off
	KindRateLimit Kind = "rate_limit"
	// KindState action attempted from the wrong connection state
	KindState Kind = "state"
	// KindAuthentication handshake failure, connection is terminated
	KindAuthentication Kind = "authentication"
	// KindInternal anything the taxonomy does not name
	KindInternal Kind = "internal"
)

var (
	// ErrUsernameRequired join without a usable username
	ErrUsernameRequired = errors.New("username is required")
	// ErrUsernameTooLong username over the 20 character cap
	ErrUsernameTooLong = errors.New("username must be 20 characters or less")
	// ErrInvalidUsername username outside [A-Za-z0-9_]
	ErrInvalidUsername = errors.New("username can only contain letters, numbers, and underscores")
	// ErrDuplicateUsername username already present in the target room
	ErrDuplicateUsername = errors.New("username already taken in this room")

	// ErrEmptyBody message body blank after trimming
	ErrEmptyBody = errors.New("message cannot be empty")
	// ErrBodyTooLong message body over the configured cap
	ErrBodyTooLong = errors.New("message is too long")
	// ErrEmptyQuery search query blank after trimming
	ErrEmptyQuery = errors.New("search query is required")

	// ErrMessageNotFound unknown message id
	ErrMessageNotFound = errors.New("message not found")
	// ErrNotMessageOwner requester is not the author
	ErrNotMessageOwner = errors.New("you can only modify your own messages")
	// ErrAlreadyDeleted message is tombstoned, no further mutation
	ErrAlreadyDeleted = errors.New("message already deleted")

	// ErrRateLimited sender exceeded the sliding window ceiling
	ErrRateLimited = errors.New("message rate limit exceeded, please slow down")

	// ErrNotJoined room-scoped action before any join
	ErrNotJoined = errors.New("please join a room first")
	// ErrNotParticipant room override names a room the session is not in
	ErrNotParticipant = errors.New("not a participant of this room")
	// ErrAlreadyBound connection already carries a session
	ErrAlreadyBound = errors.New("connection already has a session")

	// ErrAuthenticationFailed handshake token did not resolve to a principal
	ErrAuthenticationFailed = errors.New("authentication failed")
)

// KindOf maps an error to its taxonomy kind.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUsernameRequired),
		errors.Is(err, ErrUsernameTooLong),
		errors.Is(err, ErrInvalidUsername),
		errors.Is(err, ErrDuplicateUsername),
		errors.Is(err, ErrEmptyBody),
		errors.Is(err, ErrBodyTooLong),
		errors.Is(err, ErrEmptyQuery):
		return KindValidation
	case errors.Is(err, ErrNotMessageOwner),
		errors.Is(err, ErrNotParticipant):
		return KindAuthorization
	case errors.Is(err, ErrMessageNotFound):
		return KindNotFound
	case errors.Is(err, ErrRateLimited):
		return KindRateLimit
	case errors.Is(err, ErrNotJoined),
		errors.Is(err, ErrAlreadyBound),
		errors.Is(err, ErrAlreadyDeleted):
		return KindState
	case errors.Is(err, ErrAuthenticationFailed):
		return KindAuthentication
	default:
		return KindInternal
	}
}
