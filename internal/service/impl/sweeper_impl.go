package impl

import (
	"context"
	"log/slog"
	"time"

	"linkauth/internal/domain"
	"linkauth/internal/observability/metrics"
	"linkauth/internal/observability/middleware"
	"linkauth/internal/service"
	"linkauth/internal/store"

	"github.com/google/uuid"
)

const (
	DefaultSweepInterval   = 10 * time.Minute
	DefaultReminderTimeout = 30 * time.Second
)

var _ service.SweeperService = (*SweeperImpl)(nil)

type SweeperImpl struct {
	store    *store.Store
	notifier service.Notifier
	timeout  time.Duration
	now      func() time.Time

	// reminderTimeout bounds each renewal reminder so a stalled mail relay
	// cannot hold up deletion.
	reminderTimeout time.Duration
}

func NewSweeperImpl(st *store.Store, notifier service.Notifier, timeout time.Duration) *SweeperImpl {
	return &SweeperImpl{
		store:           st,
		notifier:        notifier,
		timeout:         timeout,
		now:             utcNow,
		reminderTimeout: DefaultReminderTimeout,
	}
}

// Sweep reminds owners of expired QR tokens and then deletes every expired
// token. A single instant is used for both steps so nothing that lapses in
// between is deleted without its reminder.
func (s *SweeperImpl) Sweep(ctx context.Context) (int64, error) {
	if s.store == nil {
		return 0, storageErr("sweep", ErrNilStore)
	}
	now := s.now()

	expired, err := s.listExpired(ctx, now)
	if err != nil {
		return 0, err
	}

	reminded := map[domain.UserID]struct{}{}
	for _, e := range expired {
		if _, done := reminded[e.UserID]; done {
			continue
		}
		reminded[e.UserID] = struct{}{}
		s.remind(ctx, e)
	}

	deleted, err := s.deleteExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	metrics.TokensSweptTotal.Add(float64(deleted))

	slog.InfoContext(ctx, "swept expired tokens",
		append([]any{"deleted", deleted, "reminded", len(reminded), "cutoff", now}, requestAttrs(ctx)...)...)
	return deleted, nil
}

func (s *SweeperImpl) listExpired(ctx context.Context, now time.Time) ([]store.ExpiredQR, error) {
	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()
	expired, err := s.store.Tokens().ListExpiredQR(ctx, now)
	if err != nil {
		return nil, storageErr("list expired qr", err)
	}
	return expired, nil
}

func (s *SweeperImpl) deleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()
	n, err := s.store.Tokens().DeleteExpired(ctx, now)
	if err != nil {
		return 0, storageErr("delete expired", err)
	}
	return n, nil
}

func (s *SweeperImpl) remind(ctx context.Context, e store.ExpiredQR) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.reminderTimeout)
	defer cancel()
	if err := s.notifier.SendQRRenewal(ctx, e.Email, e.ExpiresAt); err != nil {
		metrics.RenewalRemindersTotal.WithLabelValues("failure").Inc()
		slog.WarnContext(ctx, "qr renewal reminder failed", "user_id", e.UserID, "error", err)
		return
	}
	metrics.RenewalRemindersTotal.WithLabelValues("success").Inc()
}

// Run sweeps every interval until ctx is cancelled.
func (s *SweeperImpl) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			passCtx := middleware.WithIDs(ctx, "", uuid.NewString())
			if _, err := s.Sweep(passCtx); err != nil {
				slog.ErrorContext(passCtx, "sweep failed", append([]any{"error", err}, requestAttrs(passCtx)...)...)
			}
		}
	}
}
