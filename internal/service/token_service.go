package service

import (
	"context"

	"linkauth/internal/domain"
)

type TokenIssuer interface {
	Issue(ctx context.Context, userID domain.UserID, kind domain.TokenKind) (*domain.AuthToken, error)
}

type TokenVerifier interface {
	Verify(ctx context.Context, value string) (*domain.VerifiedToken, error)
}

type QRKeyService interface {
	GetOrCreate(ctx context.Context, userID domain.UserID) (*domain.QRKey, error)
}

type SweeperService interface {
	Sweep(ctx context.Context) (int64, error)
}
