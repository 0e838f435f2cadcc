package impl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"linkauth/internal/domain"
	"linkauth/internal/observability/metrics"
	"linkauth/internal/service"
	"linkauth/internal/store"
)

const (
	outcomeSuccess      = "success"
	outcomeNotFound     = "not_found"
	outcomeExpired      = "expired"
	outcomeAlreadyUsed  = "already_used"
	outcomeStorageError = "storage_error"
)

var _ service.TokenVerifier = (*TokenVerifierImpl)(nil)

// errClaimLost rolls back a verification whose conditional update matched
// nothing.
var errClaimLost = errors.New("claim lost")

type TokenVerifierImpl struct {
	store   *store.Store
	timeout time.Duration
	now     func() time.Time
}

func NewTokenVerifierImpl(st *store.Store, timeout time.Duration) *TokenVerifierImpl {
	return &TokenVerifierImpl{store: st, timeout: timeout, now: utcNow}
}

// Verify checks a presented token value. Failures are, in order of
// precedence: ErrTokenNotFound, *domain.ExpiredTokenError, ErrTokenAlreadyUsed.
// Single-use kinds are consumed by the call that succeeds; QR tokens are not.
func (v *TokenVerifierImpl) Verify(ctx context.Context, value string) (*domain.VerifiedToken, error) {
	kind, outcome := "unknown", outcomeSuccess
	defer func() {
		metrics.TokenVerificationsTotal.WithLabelValues(kind, outcome).Inc()
	}()

	if v.store == nil {
		outcome = outcomeStorageError
		return nil, storageErr("verify", ErrNilStore)
	}

	ctx, cancel := withStoreTimeout(ctx, v.timeout)
	defer cancel()
	now := v.now()

	vt, err := v.verify(ctx, value, now, &kind)
	if err != nil {
		outcome = classify(err)
		slog.InfoContext(ctx, "token verification failed",
			append([]any{"kind", kind, "outcome", outcome, "error", err}, requestAttrs(ctx)...)...)
		return nil, err
	}

	slog.InfoContext(ctx, "token verified",
		append([]any{"kind", kind, "user_id", vt.UserID}, requestAttrs(ctx)...)...)
	return vt, nil
}

func (v *TokenVerifierImpl) verify(ctx context.Context, value string, now time.Time, kind *string) (*domain.VerifiedToken, error) {
	if value == "" {
		return nil, domain.ErrTokenNotFound
	}
	tok, err := v.store.Tokens().GetByValue(ctx, value)
	if err != nil {
		return nil, lookupErr(err)
	}
	*kind = string(tok.Kind)

	user, err := v.store.Users().GetByID(ctx, tok.UserID)
	if err != nil {
		return nil, lookupErr(err)
	}

	if tok.Expired(now) {
		return nil, expiredErr(tok, user)
	}

	if !tok.Kind.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidTokenKind, tok.Kind)
	}
	if tok.Kind.SingleUse() && tok.Used() {
		return nil, domain.ErrTokenAlreadyUsed
	}

	// The claim and the verification stamp commit together, so a failed stamp
	// leaves a magic link unspent for the caller's retry.
	var stamped bool
	err = v.store.WithTx(ctx, func(tx *store.Store) error {
		if tok.Kind.SingleUse() {
			claimed, err := tx.Tokens().ConsumeMagicLink(ctx, tok.Value, now)
			if err != nil {
				return storageErr("consume token", err)
			}
			if !claimed {
				return errClaimLost
			}
		}
		ok, err := tx.Users().MarkEmailVerified(ctx, user.ID, now)
		if err != nil {
			return storageErr("mark email verified", err)
		}
		stamped = ok
		return nil
	})
	switch {
	case errors.Is(err, errClaimLost):
		return nil, v.lostClaim(ctx, tok.Value, user, now)
	case errors.Is(err, domain.ErrStorageUnavailable):
		return nil, err
	case err != nil:
		return nil, storageErr("verify", err)
	}
	if stamped {
		at := now
		user.EmailVerifiedAt = &at
	}

	return &domain.VerifiedToken{
		UserID:    user.ID,
		Email:     user.Email,
		Kind:      tok.Kind,
		ExpiresAt: tok.ExpiresAt,
		User:      user,
	}, nil
}

// lostClaim explains why the conditional update matched nothing: another
// caller consumed the token, it lapsed, or the sweeper removed it.
func (v *TokenVerifierImpl) lostClaim(ctx context.Context, value string, user *domain.User, now time.Time) error {
	tok, err := v.store.Tokens().GetByValue(ctx, value)
	if err != nil {
		return lookupErr(err)
	}
	if tok.Expired(now) {
		return expiredErr(tok, user)
	}
	return domain.ErrTokenAlreadyUsed
}

func lookupErr(err error) error {
	if errors.Is(err, store.ErrRecordNotFound) {
		return domain.ErrTokenNotFound
	}
	return storageErr("lookup token", err)
}

func expiredErr(tok *domain.AuthToken, user *domain.User) error {
	return &domain.ExpiredTokenError{
		Kind:      tok.Kind,
		UserID:    user.ID,
		Email:     user.Email,
		ExpiresAt: tok.ExpiresAt,
	}
}

func classify(err error) string {
	switch {
	case errors.Is(err, domain.ErrTokenNotFound):
		return outcomeNotFound
	case errors.Is(err, domain.ErrTokenExpired):
		return outcomeExpired
	case errors.Is(err, domain.ErrTokenAlreadyUsed):
		return outcomeAlreadyUsed
	case errors.Is(err, domain.ErrStorageUnavailable):
		return outcomeStorageError
	default:
		return "invalid"
	}
}
