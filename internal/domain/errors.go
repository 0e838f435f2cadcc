package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrTokenNotFound      = errors.New("token not found")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenAlreadyUsed   = errors.New("token already used")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidTokenKind   = errors.New("invalid token kind")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrSessionInvalid     = errors.New("invalid session")
)

// ExpiredTokenError is returned when a presented token is past its expiry.
// It matches ErrTokenExpired and carries enough to run the renewal path.
type ExpiredTokenError struct {
	Kind      TokenKind
	UserID    UserID
	Email     string
	ExpiresAt time.Time
}

func (e *ExpiredTokenError) Error() string {
	return fmt.Sprintf("%s token expired at %s", e.Kind, e.ExpiresAt.Format(time.RFC3339))
}

func (e *ExpiredTokenError) Is(target error) bool { return target == ErrTokenExpired }

// NeedsRenewal reports whether the caller should send a renewal reminder.
func (e *ExpiredTokenError) NeedsRenewal() bool { return e.Kind.RemindsOnExpiry() }
