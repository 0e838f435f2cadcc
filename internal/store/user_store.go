package store

import (
	"context"
	"time"

	"linkauth/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserStore struct{ db *gorm.DB }

func (s *Store) Users() *UserStore { return &UserStore{db: s.DB} }

func (u *UserStore) Create(ctx context.Context, usr *domain.User) error {
	if usr.ID == uuid.Nil {
		usr.ID = uuid.New()
	}
	return translate(u.db.WithContext(ctx).Create(usr).Error)
}

func (u *UserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var user domain.User
	if err := u.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// GetByEmail matches the email exactly as stored.
func (u *UserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	if err := u.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// MarkEmailVerified stamps email_verified_at unless it is already set.
// It reports whether this call did the stamping.
func (u *UserStore) MarkEmailVerified(ctx context.Context, userID uuid.UUID, at time.Time) (bool, error) {
	tx := u.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ? AND email_verified_at IS NULL", userID).
		Update("email_verified_at", at)
	if tx.Error != nil {
		return false, translate(tx.Error)
	}
	return tx.RowsAffected == 1, nil
}

// Promote raises the given flags to true. Flags that are false in f are left
// untouched, so a user is never demoted.
func (u *UserStore) Promote(ctx context.Context, userID uuid.UUID, f domain.RoleFlags) error {
	if f.IsAdmin {
		if err := u.db.WithContext(ctx).Model(&domain.User{}).
			Where("id = ? AND is_admin = ?", userID, false).
			Update("is_admin", true).Error; err != nil {
			return translate(err)
		}
	}
	if f.CommunityVerified {
		if err := u.db.WithContext(ctx).Model(&domain.User{}).
			Where("id = ? AND community_verified = ?", userID, false).
			Update("community_verified", true).Error; err != nil {
			return translate(err)
		}
	}
	return nil
}

// Lock takes the row lock of a user for the rest of the surrounding
// transaction by touching updated_at. It returns ErrRecordNotFound for an
// unknown id.
func (u *UserStore) Lock(ctx context.Context, userID uuid.UUID) error {
	tx := u.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ?", userID).
		Update("updated_at", time.Now().UTC())
	if tx.Error != nil {
		return translate(tx.Error)
	}
	if tx.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}
