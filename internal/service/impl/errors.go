package impl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"linkauth/internal/domain"
	"linkauth/internal/observability/middleware"
)

const DefaultStoreTimeout = 5 * time.Second

var (
	ErrNilStore       = errors.New("nil store")
	ErrValueCollision = errors.New("token value collided repeatedly")
)

// storageErr marks err as a storage failure while keeping the cause
// reachable through errors.Is.
func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorageUnavailable, err)
}

func withStoreTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultStoreTimeout
	}
	return context.WithTimeout(ctx, d)
}

func utcNow() time.Time { return time.Now().UTC() }

func requestAttrs(ctx context.Context) []any {
	return []any{
		"request_id", middleware.RequestIDFromContext(ctx),
		"trace_id", middleware.TraceIDFromContext(ctx),
	}
}
