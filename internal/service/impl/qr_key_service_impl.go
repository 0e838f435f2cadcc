package impl

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"linkauth/internal/domain"
	"linkauth/internal/observability/metrics"
	"linkauth/internal/qrcode"
	"linkauth/internal/service"
	"linkauth/internal/store"
)

var _ service.QRKeyService = (*QRKeyServiceImpl)(nil)

type QRKeyServiceImpl struct {
	store    *store.Store
	issuer   *TokenIssuerImpl
	renderer *qrcode.Renderer
	baseURL  string
	timeout  time.Duration
	now      func() time.Time
}

func NewQRKeyServiceImpl(st *store.Store, issuer *TokenIssuerImpl, renderer *qrcode.Renderer, baseURL string, timeout time.Duration) *QRKeyServiceImpl {
	return &QRKeyServiceImpl{
		store:    st,
		issuer:   issuer,
		renderer: renderer,
		baseURL:  baseURL,
		timeout:  timeout,
		now:      utcNow,
	}
}

// GetOrCreate returns the user's unexpired QR token, issuing one only when
// none exists. Concurrent callers for the same user serialise on the user row
// and end up with the same token.
func (q *QRKeyServiceImpl) GetOrCreate(ctx context.Context, userID domain.UserID) (*domain.QRKey, error) {
	if q.store == nil {
		return nil, storageErr("qr key", ErrNilStore)
	}

	tok, reused, err := q.activeOrNew(ctx, userID)
	result := "success"
	if reused {
		result = "reused"
	}
	if err != nil {
		result = "failure"
	}
	metrics.TokensIssuedTotal.WithLabelValues(string(domain.TokenKindQRCode), result).Inc()
	if err != nil {
		return nil, err
	}

	url := domain.VerifyURL(q.baseURL, tok.Value)
	png, err := q.renderer.PNG(url)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "qr key ready",
		append([]any{"user_id", userID, "reused", reused, "expires_at", tok.ExpiresAt}, requestAttrs(ctx)...)...)
	return &domain.QRKey{Token: tok, URL: url, PNG: png}, nil
}

func (q *QRKeyServiceImpl) activeOrNew(ctx context.Context, userID domain.UserID) (*domain.AuthToken, bool, error) {
	ctx, cancel := withStoreTimeout(ctx, q.timeout)
	defer cancel()
	now := q.now()

	var (
		tok    *domain.AuthToken
		reused bool
	)
	err := q.store.WithTx(ctx, func(tx *store.Store) error {
		if err := tx.Users().Lock(ctx, userID); err != nil {
			return err
		}
		active, err := tx.Tokens().FindActiveQR(ctx, userID, now)
		switch {
		case err == nil:
			tok, reused = active, true
			return nil
		case !errors.Is(err, store.ErrRecordNotFound):
			return err
		}
		tok, err = q.issuer.issue(ctx, tx, userID, domain.TokenKindQRCode, now)
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, false, domain.ErrUserNotFound
		}
		return nil, false, storageErr("get or create qr key", err)
	}
	return tok, reused, nil
}
