// Package store persists users and their auth tokens with gorm.
package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// Store is a handle on the identity tables. Inside WithTx it is bound to the
// transaction.
type Store struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *Store { return &Store{DB: db} }

// WithTx runs fn in one transaction; any error returned by fn rolls it back.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	return s.DB.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(New(db))
	})
}

// Ping reports whether the underlying pool can reach the database.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return fmt.Errorf("pool: %w", err)
	}
	return sqlDB.PingContext(ctx)
}
