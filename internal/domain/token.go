package domain

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// TokenKind is the closed set of bearer token kinds.
type TokenKind string

const (
	TokenKindMagicLink TokenKind = "magic_link"
	TokenKindQRCode    TokenKind = "qr_code"
)

func ParseTokenKind(s string) (TokenKind, error) {
	switch k := TokenKind(s); k {
	case TokenKindMagicLink, TokenKindQRCode:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTokenKind, s)
	}
}

func (k TokenKind) Valid() bool {
	switch k {
	case TokenKindMagicLink, TokenKindQRCode:
		return true
	default:
		return false
	}
}

// TTL returns the lifetime of a freshly issued token of kind k.
func (k TokenKind) TTL(p TokenPolicy) time.Duration {
	switch k {
	case TokenKindMagicLink:
		return p.MagicLinkTTL
	case TokenKindQRCode:
		return p.QRCodeTTL
	default:
		return 0
	}
}

// SingleUse reports whether a successful verification consumes the token.
func (k TokenKind) SingleUse() bool {
	switch k {
	case TokenKindMagicLink:
		return true
	case TokenKindQRCode:
		return false
	default:
		return true
	}
}

// RemindsOnExpiry reports whether an expired token of kind k triggers a
// renewal reminder to its owner.
func (k TokenKind) RemindsOnExpiry() bool {
	switch k {
	case TokenKindQRCode:
		return true
	case TokenKindMagicLink:
		return false
	default:
		return false
	}
}

const (
	DefaultMagicLinkTTL = 15 * time.Minute
	DefaultQRCodeTTL    = 30 * 24 * time.Hour
)

type TokenPolicy struct {
	MagicLinkTTL time.Duration
	QRCodeTTL    time.Duration
}

func DefaultTokenPolicy() TokenPolicy {
	return TokenPolicy{MagicLinkTTL: DefaultMagicLinkTTL, QRCodeTTL: DefaultQRCodeTTL}
}

type AuthToken struct {
	Value     string     `gorm:"type:text;primaryKey" db:"value"`
	UserID    UserID     `gorm:"type:uuid;not null;index:ix_auth_tokens_owner,priority:1" db:"user_id"`
	Kind      TokenKind  `gorm:"type:text;not null;index:ix_auth_tokens_owner,priority:2" db:"kind"`
	ExpiresAt time.Time  `gorm:"not null;index:ix_auth_tokens_owner,priority:3;index:ix_auth_tokens_expires_at" db:"expires_at"`
	UsedAt    *time.Time `db:"used_at"`
	CreatedAt time.Time  `gorm:"not null" db:"created_at"`
}

func (AuthToken) TableName() string { return "auth_tokens" }

// Expired reports whether the token is past its expiry at now.
// A token whose expires_at equals now is already expired.
func (t *AuthToken) Expired(now time.Time) bool { return !now.Before(t.ExpiresAt) }

func (t *AuthToken) Used() bool { return t.UsedAt != nil }

// VerifiedToken is the identity behind a successfully verified token.
type VerifiedToken struct {
	UserID    UserID
	Email     string
	Kind      TokenKind
	ExpiresAt time.Time
	User      *User
}

// QRKey is a reusable QR token plus its rendered artifact.
type QRKey struct {
	Token *AuthToken
	URL   string
	PNG   []byte
}

// VerifyURL is the link a token value is delivered as, whether mailed or
// encoded into a QR image.
func VerifyURL(baseURL, value string) string {
	return strings.TrimRight(baseURL, "/") + "/verify?token=" + url.QueryEscape(value)
}
