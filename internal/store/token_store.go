package store

import (
	"context"
	"time"

	"linkauth/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TokenStore struct{ db *gorm.DB }

func (s *Store) Tokens() *TokenStore { return &TokenStore{db: s.DB} }

func (t *TokenStore) Create(ctx context.Context, tok *domain.AuthToken) error {
	return translate(t.db.WithContext(ctx).Create(tok).Error)
}

func (t *TokenStore) GetByValue(ctx context.Context, value string) (*domain.AuthToken, error) {
	var tok domain.AuthToken
	if err := t.db.WithContext(ctx).First(&tok, "value = ?", value).Error; err != nil {
		return nil, translate(err)
	}
	return &tok, nil
}

// ConsumeMagicLink claims an unused, unexpired magic link in a single
// conditional update. Of any number of concurrent callers for the same value
// at most one gets true.
func (t *TokenStore) ConsumeMagicLink(ctx context.Context, value string, now time.Time) (bool, error) {
	tx := t.db.WithContext(ctx).Model(&domain.AuthToken{}).
		Where("value = ? AND kind = ? AND used_at IS NULL AND expires_at > ?", value, domain.TokenKindMagicLink, now).
		Update("used_at", now)
	if tx.Error != nil {
		return false, translate(tx.Error)
	}
	return tx.RowsAffected == 1, nil
}

// FindActiveQR returns the longest-lived unexpired QR token of a user.
func (t *TokenStore) FindActiveQR(ctx context.Context, userID uuid.UUID, now time.Time) (*domain.AuthToken, error) {
	var tok domain.AuthToken
	err := t.db.WithContext(ctx).
		Where("user_id = ? AND kind = ? AND expires_at > ?", userID, domain.TokenKindQRCode, now).
		Order("expires_at DESC").
		First(&tok).Error
	if err != nil {
		return nil, translate(err)
	}
	return &tok, nil
}

// ExpiredQR is an expired QR token together with its owner's address.
type ExpiredQR struct {
	Value     string
	UserID    uuid.UUID
	Email     string
	ExpiresAt time.Time
}

func (t *TokenStore) ListExpiredQR(ctx context.Context, now time.Time) ([]ExpiredQR, error) {
	var out []ExpiredQR
	err := t.db.WithContext(ctx).
		Table("auth_tokens").
		Select("auth_tokens.value, auth_tokens.user_id, users.email, auth_tokens.expires_at").
		Joins("JOIN users ON users.id = auth_tokens.user_id").
		Where("auth_tokens.kind = ? AND auth_tokens.expires_at <= ?", domain.TokenKindQRCode, now).
		Order("auth_tokens.expires_at ASC").
		Scan(&out).Error
	if err != nil {
		return nil, translate(err)
	}
	return out, nil
}

// DeleteExpired removes every token of any kind whose expiry is at or before now.
func (t *TokenStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tx := t.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&domain.AuthToken{})
	return tx.RowsAffected, translate(tx.Error)
}
