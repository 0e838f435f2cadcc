package impl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"linkauth/internal/domain"
	"linkauth/internal/service"
	"linkauth/internal/store"

	"github.com/google/uuid"
)

var _ service.AuthService = (*AuthServiceImpl)(nil)

type AuthServiceImpl struct {
	Store    *store.Store
	Issuer   service.TokenIssuer
	Verifier service.TokenVerifier
	QRKeys   service.QRKeyService
	Sessions service.SessionService
	Roles    service.RoleResolver
	Notifier service.Notifier

	BaseURL string
	Timeout time.Duration
	now     func() time.Time
}

func NewAuthServiceImpl(
	st *store.Store,
	issuer service.TokenIssuer,
	verifier service.TokenVerifier,
	qrKeys service.QRKeyService,
	sessions service.SessionService,
	roles service.RoleResolver,
	notifier service.Notifier,
	baseURL string,
	timeout time.Duration,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		Store:    st,
		Issuer:   issuer,
		Verifier: verifier,
		QRKeys:   qrKeys,
		Sessions: sessions,
		Roles:    roles,
		Notifier: notifier,
		BaseURL:  baseURL,
		Timeout:  timeout,
		now:      utcNow,
	}
}

func (a *AuthServiceImpl) IssueMagicLink(ctx context.Context, email string, origin domain.Origin) (*domain.AuthToken, error) {
	addr, err := parseEmail(email)
	if err != nil {
		return nil, err
	}
	user, err := a.findOrCreate(ctx, addr, origin)
	if err != nil {
		return nil, err
	}
	return a.Issuer.Issue(ctx, user.ID, domain.TokenKindMagicLink)
}

func (a *AuthServiceImpl) RequestMagicLink(ctx context.Context, email string, origin domain.Origin) error {
	tok, err := a.IssueMagicLink(ctx, email, origin)
	if err != nil {
		return err
	}
	addr, _ := parseEmail(email)
	if err := a.Notifier.SendMagicLink(ctx, addr, domain.VerifyURL(a.BaseURL, tok.Value)); err != nil {
		return fmt.Errorf("deliver magic link: %w", err)
	}
	return nil
}

func (a *AuthServiceImpl) IssueOrReuseQRKey(ctx context.Context, userID domain.UserID) (*domain.QRKey, error) {
	return a.QRKeys.GetOrCreate(ctx, userID)
}

func (a *AuthServiceImpl) EmailQRKey(ctx context.Context, userID domain.UserID) error {
	key, err := a.QRKeys.GetOrCreate(ctx, userID)
	if err != nil {
		return err
	}
	user, err := a.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := a.Notifier.SendQRKey(ctx, user.Email, key); err != nil {
		return fmt.Errorf("deliver qr key: %w", err)
	}
	return nil
}

func (a *AuthServiceImpl) VerifyToken(ctx context.Context, value string) (*domain.VerifiedToken, error) {
	return a.Verifier.Verify(ctx, value)
}

// MintSession reloads the user so the credential carries current flags rather
// than whatever the verified identity saw.
func (a *AuthServiceImpl) MintSession(ctx context.Context, identity *domain.VerifiedToken) (string, error) {
	if identity == nil {
		return "", domain.ErrUserNotFound
	}
	user, err := a.loadUser(ctx, identity.UserID)
	if err != nil {
		return "", err
	}
	return a.Sessions.Mint(user)
}

func (a *AuthServiceImpl) ReadSession(credential string) (*domain.SessionClaims, error) {
	return a.Sessions.Read(credential)
}

// RemindQRRenewal sends the renewal reminder for an expired QR presentation.
// Other expired kinds are ignored.
func (a *AuthServiceImpl) RemindQRRenewal(ctx context.Context, expired *domain.ExpiredTokenError) error {
	if expired == nil || !expired.NeedsRenewal() || expired.Email == "" {
		return nil
	}
	if err := a.Notifier.SendQRRenewal(ctx, expired.Email, expired.ExpiresAt); err != nil {
		return fmt.Errorf("deliver qr renewal: %w", err)
	}
	slog.InfoContext(ctx, "qr renewal reminder sent",
		append([]any{"user_id", expired.UserID}, requestAttrs(ctx)...)...)
	return nil
}

func (a *AuthServiceImpl) findOrCreate(ctx context.Context, email string, origin domain.Origin) (*domain.User, error) {
	ctx, cancel := withStoreTimeout(ctx, a.Timeout)
	defer cancel()

	user, err := a.Store.Users().GetByEmail(ctx, email)
	switch {
	case err == nil:
		return a.promote(ctx, user, origin)
	case !errors.Is(err, store.ErrRecordNotFound):
		return nil, storageErr("find user", err)
	}

	now := a.now()
	flags := a.Roles.ResolveOnCreate(email, origin)
	user = &domain.User{
		ID:                uuid.New(),
		Email:             email,
		CommunityVerified: flags.CommunityVerified,
		IsAdmin:           flags.IsAdmin,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	err = a.Store.Users().Create(ctx, user)
	switch {
	case err == nil:
		slog.InfoContext(ctx, "user created",
			append([]any{"user_id", user.ID, "community_verified", user.CommunityVerified, "is_admin", user.IsAdmin}, requestAttrs(ctx)...)...)
		return user, nil
	case errors.Is(err, store.ErrDuplicate):
		// Lost a concurrent first sign-in for the same address.
		existing, err := a.Store.Users().GetByEmail(ctx, email)
		if err != nil {
			return nil, storageErr("reload user", err)
		}
		return a.promote(ctx, existing, origin)
	default:
		return nil, storageErr("create user", err)
	}
}

func (a *AuthServiceImpl) promote(ctx context.Context, user *domain.User, origin domain.Origin) (*domain.User, error) {
	gains := a.Roles.ResolveOnLogin(user, origin).Gains(user.Flags())
	if !gains.Any() {
		return user, nil
	}
	if err := a.Store.Users().Promote(ctx, user.ID, gains); err != nil {
		return nil, storageErr("promote user", err)
	}
	user.IsAdmin = user.IsAdmin || gains.IsAdmin
	user.CommunityVerified = user.CommunityVerified || gains.CommunityVerified
	slog.InfoContext(ctx, "user promoted",
		append([]any{"user_id", user.ID, "community_verified", gains.CommunityVerified, "is_admin", gains.IsAdmin}, requestAttrs(ctx)...)...)
	return user, nil
}

func (a *AuthServiceImpl) loadUser(ctx context.Context, id domain.UserID) (*domain.User, error) {
	ctx, cancel := withStoreTimeout(ctx, a.Timeout)
	defer cancel()
	user, err := a.Store.Users().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, storageErr("load user", err)
	}
	return user, nil
}

// parseEmail accepts a bare address only; display-name forms are rejected.
func parseEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", domain.ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidEmail, raw)
	}
	return addr.Address, nil
}
