package impl

import (
	"fmt"
	"time"

	"linkauth/internal/domain"
	"linkauth/internal/jwtsigner"
	"linkauth/internal/observability/metrics"
	"linkauth/internal/service"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const DefaultSessionTTL = time.Hour

type SessionConfig struct {
	Issuer   string
	Audience string
	TTL      time.Duration // lifetime counted from iat
}

type SessionTokenClaims struct {
	Email             string `json:"email"`
	CommunityVerified bool   `json:"cv"`
	IsAdmin           bool   `json:"adm"`
	jwt.RegisteredClaims
}

var _ service.SessionService = (*SessionServiceImpl)(nil)

type SessionServiceImpl struct {
	cfg  SessionConfig
	ring *jwtsigner.Ring
	now  func() time.Time
}

func NewSessionServiceImpl(cfg SessionConfig, ring *jwtsigner.Ring) *SessionServiceImpl {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultSessionTTL
	}
	return &SessionServiceImpl{cfg: cfg, ring: ring, now: utcNow}
}

// Mint signs a credential asserting the user's current identity and flags.
func (s *SessionServiceImpl) Mint(user *domain.User) (string, error) {
	result := "success"
	defer func() {
		metrics.SessionsMintedTotal.WithLabelValues(result).Inc()
	}()
	if user == nil {
		result = "failure"
		return "", domain.ErrUserNotFound
	}

	now := s.now()
	claims := SessionTokenClaims{
		Email:             user.Email,
		CommunityVerified: user.CommunityVerified,
		IsAdmin:           user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   user.ID.String(),
			Audience:  jwt.ClaimStrings{s.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TTL)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := s.ring.Sign(claims)
	if err != nil {
		result = "failure"
		return "", fmt.Errorf("sign session: %w", err)
	}
	return signed, nil
}

// Read verifies a credential without touching the store. Any defect,
// including age beyond the TTL, yields ErrSessionInvalid.
func (s *SessionServiceImpl) Read(credential string) (*domain.SessionClaims, error) {
	now := s.now()
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithAudience(s.cfg.Audience),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)

	claims := &SessionTokenClaims{}
	if _, err := parser.ParseWithClaims(credential, claims, s.ring.Keyfunc); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSessionInvalid, err)
	}
	if claims.IssuedAt == nil {
		return nil, fmt.Errorf("%w: missing iat", domain.ErrSessionInvalid)
	}
	issuedAt := claims.IssuedAt.Time.UTC()
	if now.Sub(issuedAt) > s.cfg.TTL {
		return nil, fmt.Errorf("%w: older than %s", domain.ErrSessionInvalid, s.cfg.TTL)
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: bad subject", domain.ErrSessionInvalid)
	}

	return &domain.SessionClaims{
		UserID:            userID,
		Email:             claims.Email,
		CommunityVerified: claims.CommunityVerified,
		IsAdmin:           claims.IsAdmin,
		IssuedAt:          issuedAt,
	}, nil
}
