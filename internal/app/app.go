// Package app assembles the identity store, token services and notifier
// from a Config. Both the server and authctl build on it.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"linkauth/internal/config"
	"linkauth/internal/domain"
	"linkauth/internal/jwtsigner"
	"linkauth/internal/mailer"
	"linkauth/internal/qrcode"
	"linkauth/internal/service"
	impl "linkauth/internal/service/impl"
	"linkauth/internal/store"
	"linkauth/internal/store/migrations"
	httpx "linkauth/internal/transport/http"
)

type Services struct {
	Store    *store.Store
	Auth     *impl.AuthServiceImpl
	Sweeper  *impl.SweeperImpl
	Notifier service.Notifier
}

// Open connects to postgres and applies pending migrations.
func Open(ctx context.Context, cfg config.Config) (*store.Store, *sql.DB, error) {
	gdb, sqlDB, err := store.OpenPostgres(ctx, store.Config{DSN: cfg.DatabaseURL, LogSQL: cfg.LogSQL})
	if err != nil {
		return nil, nil, err
	}
	if err := migrations.Up(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return store.New(gdb), sqlDB, nil
}

// Wire builds the service graph on top of st.
func Wire(st *store.Store, cfg config.Config, logger *slog.Logger) (*Services, error) {
	ring, err := jwtsigner.ParseRing(cfg.SessionKeys)
	if err != nil {
		return nil, fmt.Errorf("SESSION_KEYS: %w", err)
	}

	notifier := NewNotifier(cfg, logger)
	policy := domain.TokenPolicy{MagicLinkTTL: cfg.MagicLinkTTL, QRCodeTTL: cfg.QRKeyTTL}

	issuer := impl.NewTokenIssuerImpl(st, policy, cfg.StoreTimeout)
	verifier := impl.NewTokenVerifierImpl(st, cfg.StoreTimeout)
	qrKeys := impl.NewQRKeyServiceImpl(st, issuer, qrcode.NewRenderer(0), cfg.BaseURL, cfg.StoreTimeout)
	sessions := impl.NewSessionServiceImpl(impl.SessionConfig{
		Issuer:   cfg.Issuer,
		Audience: cfg.Audience,
		TTL:      cfg.SessionTTL,
	}, ring)
	roles := impl.NewRoleResolverImpl(cfg.AdminEmails, cfg.CommunityNetworks)

	return &Services{
		Store:    st,
		Auth:     impl.NewAuthServiceImpl(st, issuer, verifier, qrKeys, sessions, roles, notifier, cfg.BaseURL, cfg.StoreTimeout),
		Sweeper:  impl.NewSweeperImpl(st, notifier, cfg.StoreTimeout),
		Notifier: notifier,
	}, nil
}

// NewNotifier delivers over SMTP when SMTP_ADDR is set and logs otherwise.
func NewNotifier(cfg config.Config, logger *slog.Logger) service.Notifier {
	if cfg.SMTPAddr == "" {
		return mailer.LogNotifier{Logger: logger}
	}
	return mailer.NewSMTPNotifier(mailer.SMTPConfig{
		Addr:     cfg.SMTPAddr,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
		LoginURL: cfg.LoginURL,
		Timeout:  cfg.SMTPTimeout,
	})
}

// RouterOptions maps cfg onto the HTTP layer, with readiness tied to the store.
func (s *Services) RouterOptions(cfg config.Config) httpx.Options {
	return httpx.Options{
		Ready:              s.Store.Ping,
		CookieName:         cfg.CookieName,
		CookieSecure:       cfg.CookieSecure,
		SessionTTL:         cfg.SessionTTL,
		AfterLoginURL:      cfg.AfterLoginURL,
		LoginURL:           cfg.LoginURL,
		TrustProxy:         cfg.TrustProxy,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		CORSOrigins:        cfg.CORSOrigins,
	}
}
