package service

import "linkauth/internal/domain"

// SessionService mints and reads stateless session credentials.
type SessionService interface {
	Mint(user *domain.User) (string, error)
	Read(credential string) (*domain.SessionClaims, error)
}
