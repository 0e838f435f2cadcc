package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTokenKind(t *testing.T) {
	k, err := ParseTokenKind("magic_link")
	require.NoError(t, err)
	assert.Equal(t, TokenKindMagicLink, k)

	k, err = ParseTokenKind("qr_code")
	require.NoError(t, err)
	assert.Equal(t, TokenKindQRCode, k)

	_, err = ParseTokenKind("password")
	assert.ErrorIs(t, err, ErrInvalidTokenKind)
	assert.False(t, TokenKind("password").Valid())
}

func TestTokenKindBehaviour(t *testing.T) {
	p := TokenPolicy{MagicLinkTTL: time.Minute, QRCodeTTL: time.Hour}

	tests := []struct {
		kind      TokenKind
		ttl       time.Duration
		singleUse bool
		reminds   bool
	}{
		{kind: TokenKindMagicLink, ttl: time.Minute, singleUse: true, reminds: false},
		{kind: TokenKindQRCode, ttl: time.Hour, singleUse: false, reminds: true},
	}
	for _, tc := range tests {
		t.Run(string(tc.kind), func(t *testing.T) {
			assert.Equal(t, tc.ttl, tc.kind.TTL(p))
			assert.Equal(t, tc.singleUse, tc.kind.SingleUse())
			assert.Equal(t, tc.reminds, tc.kind.RemindsOnExpiry())
		})
	}

	d := DefaultTokenPolicy()
	assert.Equal(t, 15*time.Minute, d.MagicLinkTTL)
	assert.Equal(t, 30*24*time.Hour, d.QRCodeTTL)
}

func TestAuthTokenExpiredAtBoundary(t *testing.T) {
	exp := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tok := &AuthToken{ExpiresAt: exp}

	assert.False(t, tok.Expired(exp.Add(-time.Nanosecond)))
	assert.True(t, tok.Expired(exp), "expires_at == now is expired")
	assert.True(t, tok.Expired(exp.Add(time.Second)))
}

func TestExpiredTokenError(t *testing.T) {
	e := &ExpiredTokenError{Kind: TokenKindQRCode, UserID: uuid.New(), Email: "a@b.c", ExpiresAt: time.Now()}
	wrapped := fmt.Errorf("verify: %w", e)

	assert.ErrorIs(t, wrapped, ErrTokenExpired)
	assert.NotErrorIs(t, wrapped, ErrTokenAlreadyUsed)

	var got *ExpiredTokenError
	require.True(t, errors.As(wrapped, &got))
	assert.True(t, got.NeedsRenewal())

	ml := &ExpiredTokenError{Kind: TokenKindMagicLink}
	assert.False(t, ml.NeedsRenewal())
}

func TestRoleFlags(t *testing.T) {
	none := RoleFlags{}
	admin := RoleFlags{IsAdmin: true}
	community := RoleFlags{CommunityVerified: true}

	assert.Equal(t, RoleFlags{IsAdmin: true, CommunityVerified: true}, admin.Merge(community))
	assert.Equal(t, admin, admin.Merge(none))
	assert.False(t, none.Any())

	assert.Equal(t, community, admin.Merge(community).Gains(admin))
	assert.False(t, none.Gains(admin).Any(), "losing a flag is never a gain")
}

func TestVerifyURL(t *testing.T) {
	assert.Equal(t, "https://example.org/verify?token=abc-_9", VerifyURL("https://example.org/", "abc-_9"))
	assert.Equal(t, "http://x/verify?token=a%2Bb", VerifyURL("http://x", "a+b"))
}

func TestClaimsFor(t *testing.T) {
	u := &User{ID: uuid.New(), Email: "u@example.com", IsAdmin: true}
	at := time.Unix(1700000000, 0).UTC()
	c := ClaimsFor(u, at)
	assert.Equal(t, SessionClaims{UserID: u.ID, Email: u.Email, IsAdmin: true, IssuedAt: at}, c)
}
