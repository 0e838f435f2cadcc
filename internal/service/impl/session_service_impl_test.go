package impl

import (
	"strings"
	"testing"
	"time"

	"linkauth/internal/domain"
	"linkauth/internal/jwtsigner"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSessions(t *testing.T, keys string, clock *testClock) *SessionServiceImpl {
	t.Helper()
	ring, err := jwtsigner.ParseRing(keys)
	require.NoError(t, err)
	s := NewSessionServiceImpl(SessionConfig{Issuer: "linkauth", Audience: "community-web", TTL: time.Hour}, ring)
	s.now = clock.Now
	return s
}

func TestSession_RoundTrip(t *testing.T) {
	clock := newTestClock()
	s := newTestSessions(t, "k1:0123456789abcdef0123", clock)
	u := &domain.User{ID: uuid.New(), Email: "alice@example.com", CommunityVerified: true}

	cred, err := s.Mint(u)
	require.NoError(t, err)

	clock.Advance(59 * time.Minute)
	got, err := s.Read(cred)
	require.NoError(t, err)

	want := domain.ClaimsFor(u, clock.Now().Add(-59*time.Minute))
	if diff := cmp.Diff(want, *got); diff != "" {
		t.Fatalf("claims mismatch (-want +got):\n%s", diff)
	}
}

func TestSession_Lifetime(t *testing.T) {
	tests := []struct {
		name    string
		advance time.Duration
		ok      bool
	}{
		{name: "fresh", advance: 0, ok: true},
		{name: "just inside", advance: 59*time.Minute + 59*time.Second, ok: true},
		{name: "past ttl", advance: time.Hour + time.Minute, ok: false},
		{name: "issued in the future", advance: -time.Minute, ok: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clock := newTestClock()
			s := newTestSessions(t, "k1:0123456789abcdef0123", clock)
			cred, err := s.Mint(&domain.User{ID: uuid.New(), Email: "u@example.com"})
			require.NoError(t, err)

			clock.Advance(tc.advance)
			_, err = s.Read(cred)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, domain.ErrSessionInvalid)
			}
		})
	}
}

func TestSession_RejectsForgeries(t *testing.T) {
	clock := newTestClock()
	s := newTestSessions(t, "k1:0123456789abcdef0123", clock)
	u := &domain.User{ID: uuid.New(), Email: "mallory@example.com"}
	cred, err := s.Mint(u)
	require.NoError(t, err)

	parts := strings.Split(cred, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	otherKey := newTestSessions(t, "k1:ffffffffffffffffffff", clock)
	forged, err := otherKey.Mint(u)
	require.NoError(t, err)

	otherAud := NewSessionServiceImpl(SessionConfig{Issuer: "linkauth", Audience: "other-app", TTL: time.Hour}, s.ring)
	otherAud.now = clock.Now
	wrongAud, err := otherAud.Mint(u)
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Issuer: "linkauth", Subject: u.ID.String(), Audience: jwt.ClaimStrings{"community-web"},
		IssuedAt: jwt.NewNumericDate(clock.Now()), ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
	})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, c := range map[string]string{
		"tampered":       tampered,
		"other key":      forged,
		"wrong audience": wrongAud,
		"alg none":       unsigned,
		"garbage":        "not-a-jwt",
		"empty":          "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := s.Read(c)
			assert.ErrorIs(t, err, domain.ErrSessionInvalid)
		})
	}
}

func TestSession_RotationKeepsOldCredentials(t *testing.T) {
	clock := newTestClock()
	old := newTestSessions(t, "k1:0123456789abcdef-old", clock)
	cred, err := old.Mint(&domain.User{ID: uuid.New(), Email: "u@example.com"})
	require.NoError(t, err)

	rotated := newTestSessions(t, "k2:0123456789abcdef-new,k1:0123456789abcdef-old", clock)
	_, err = rotated.Read(cred)
	assert.NoError(t, err)

	fresh, err := rotated.Mint(&domain.User{ID: uuid.New(), Email: "v@example.com"})
	require.NoError(t, err)
	_, err = old.Read(fresh)
	assert.ErrorIs(t, err, domain.ErrSessionInvalid, "old ring does not know k2")
}
