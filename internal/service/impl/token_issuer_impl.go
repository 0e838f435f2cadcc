package impl

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"linkauth/internal/domain"
	"linkauth/internal/observability/metrics"
	"linkauth/internal/service"
	"linkauth/internal/store"
)

const (
	tokenValueBytes  = 32
	maxValueAttempts = 3
)

var _ service.TokenIssuer = (*TokenIssuerImpl)(nil)

type TokenIssuerImpl struct {
	store   *store.Store
	policy  domain.TokenPolicy
	timeout time.Duration
	now     func() time.Time
	random  io.Reader
}

func NewTokenIssuerImpl(st *store.Store, policy domain.TokenPolicy, timeout time.Duration) *TokenIssuerImpl {
	return &TokenIssuerImpl{
		store:   st,
		policy:  policy,
		timeout: timeout,
		now:     utcNow,
		random:  rand.Reader,
	}
}

// Issue persists a fresh token of kind for userID and returns it. No value is
// handed out unless its row has been written.
func (t *TokenIssuerImpl) Issue(ctx context.Context, userID domain.UserID, kind domain.TokenKind) (*domain.AuthToken, error) {
	result := "success"
	defer func() {
		metrics.TokensIssuedTotal.WithLabelValues(string(kind), result).Inc()
	}()

	if !kind.Valid() {
		result = "invalid"
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidTokenKind, kind)
	}
	if t.store == nil {
		result = "failure"
		return nil, ErrNilStore
	}

	ctx, cancel := withStoreTimeout(ctx, t.timeout)
	defer cancel()

	if _, err := t.store.Users().GetByID(ctx, userID); err != nil {
		result = "failure"
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, storageErr("load user", err)
	}

	tok, err := t.issue(ctx, t.store, userID, kind, t.now())
	if err != nil {
		result = "failure"
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, storageErr("insert token", err)
	}

	slog.InfoContext(ctx, "issued token",
		append([]any{"user_id", userID, "kind", kind, "expires_at", tok.ExpiresAt}, requestAttrs(ctx)...)...)
	return tok, nil
}

// issue writes a new token through st, regenerating the value on a primary
// key collision. It is shared with callers that already hold a transaction.
func (t *TokenIssuerImpl) issue(ctx context.Context, st *store.Store, userID domain.UserID, kind domain.TokenKind, now time.Time) (*domain.AuthToken, error) {
	for attempt := 0; attempt < maxValueAttempts; attempt++ {
		value, err := t.newValue()
		if err != nil {
			return nil, err
		}
		tok := &domain.AuthToken{
			Value:     value,
			UserID:    userID,
			Kind:      kind,
			ExpiresAt: now.Add(kind.TTL(t.policy)),
			CreatedAt: now,
		}
		err = st.Tokens().Create(ctx, tok)
		if err == nil {
			return tok, nil
		}
		if !errors.Is(err, store.ErrDuplicate) {
			return nil, err
		}
		slog.WarnContext(ctx, "token value collision, regenerating", "attempt", attempt+1, "kind", kind)
	}
	return nil, ErrValueCollision
}

func (t *TokenIssuerImpl) newValue() (string, error) {
	buf := make([]byte, tokenValueBytes)
	if _, err := io.ReadFull(t.random, buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
