package service

import (
	"context"

	"linkauth/internal/domain"
)

// AuthService is the passwordless surface used by the web layer.
type AuthService interface {
	// IssueMagicLink finds or creates the account for email and returns a
	// fresh magic link token for it.
	IssueMagicLink(ctx context.Context, email string, origin domain.Origin) (*domain.AuthToken, error)
	// RequestMagicLink issues a magic link and hands it to the notifier.
	RequestMagicLink(ctx context.Context, email string, origin domain.Origin) error
	IssueOrReuseQRKey(ctx context.Context, userID domain.UserID) (*domain.QRKey, error)
	EmailQRKey(ctx context.Context, userID domain.UserID) error
	VerifyToken(ctx context.Context, value string) (*domain.VerifiedToken, error)
	MintSession(ctx context.Context, identity *domain.VerifiedToken) (string, error)
	ReadSession(credential string) (*domain.SessionClaims, error)
	RemindQRRenewal(ctx context.Context, expired *domain.ExpiredTokenError) error
}
