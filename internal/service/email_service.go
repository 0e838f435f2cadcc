package service

import (
	"context"
	"time"

	"linkauth/internal/domain"
)

// Notifier delivers login material to a user's mailbox.
type Notifier interface {
	SendMagicLink(ctx context.Context, to string, link string) error
	SendQRKey(ctx context.Context, to string, key *domain.QRKey) error
	SendQRRenewal(ctx context.Context, to string, expiredAt time.Time) error
}
