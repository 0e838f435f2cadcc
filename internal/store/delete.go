package store

import (
	"context"

	"linkauth/internal/domain"

	"github.com/google/uuid"
)

// purgeLabels names the per-kind counts DeleteUserData reports.
var purgeLabels = map[domain.TokenKind]string{
	domain.TokenKindMagicLink: "magicLinks",
	domain.TokenKindQRCode:    "qrKeys",
}

// DeleteUserData removes a user together with every token they own. The
// returned map reports how many rows went, keyed users, magicLinks and qrKeys.
func (s *Store) DeleteUserData(ctx context.Context, userID uuid.UUID) (map[string]int64, error) {
	deleted := map[string]int64{"users": 0}
	for _, label := range purgeLabels {
		deleted[label] = 0
	}

	err := s.WithTx(ctx, func(tx *Store) error {
		db := tx.DB.WithContext(ctx)

		var perKind []struct {
			Kind  domain.TokenKind
			Total int64
		}
		if err := db.Model(&domain.AuthToken{}).
			Select("kind, count(*) AS total").
			Where("user_id = ?", userID).
			Group("kind").
			Scan(&perKind).Error; err != nil {
			return err
		}
		for _, row := range perKind {
			if label, ok := purgeLabels[row.Kind]; ok {
				deleted[label] = row.Total
			}
		}

		if err := db.Where("user_id = ?", userID).Delete(&domain.AuthToken{}).Error; err != nil {
			return err
		}
		res := db.Where("id = ?", userID).Delete(&domain.User{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Rolls back the token delete too, which is a no-op for an unknown id.
			return ErrRecordNotFound
		}
		deleted["users"] = res.RowsAffected
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return deleted, nil
}
