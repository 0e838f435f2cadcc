package impl

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"linkauth/internal/domain"
	"linkauth/internal/jwtsigner"
	"linkauth/internal/netutil"
	"linkauth/internal/qrcode"
	"linkauth/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testBaseURL = "https://community.example"

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type sentMail struct {
	To   string
	Body string
	At   time.Time
}

type recordingNotifier struct {
	mu       sync.Mutex
	links    []sentMail
	qrKeys   []sentMail
	renewals []sentMail
	failFor  map[string]bool
}

var errMailbox = errors.New("mailbox unavailable")

func (n *recordingNotifier) SendMagicLink(_ context.Context, to, link string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failFor[to] {
		return errMailbox
	}
	n.links = append(n.links, sentMail{To: to, Body: link})
	return nil
}

func (n *recordingNotifier) SendQRKey(_ context.Context, to string, key *domain.QRKey) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failFor[to] {
		return errMailbox
	}
	n.qrKeys = append(n.qrKeys, sentMail{To: to, Body: key.URL})
	return nil
}

func (n *recordingNotifier) SendQRRenewal(_ context.Context, to string, expiredAt time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failFor[to] {
		return errMailbox
	}
	n.renewals = append(n.renewals, sentMail{To: to, At: expiredAt})
	return nil
}

func (n *recordingNotifier) renewalsTo() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.renewals))
	for _, m := range n.renewals {
		out = append(out, m.To)
	}
	return out
}

type testEnv struct {
	db       *gorm.DB
	store    *store.Store
	clock    *testClock
	notifier *recordingNotifier
	issuer   *TokenIssuerImpl
	verifier *TokenVerifierImpl
	qr       *QRKeyServiceImpl
	sessions *SessionServiceImpl
	roles    *RoleResolverImpl
	sweeper  *SweeperImpl
	auth     *AuthServiceImpl
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), store.GormConfig(false))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// A single connection serialises the goroutines in the concurrency tests,
	// so those exercise the claim's outcome handling rather than the race.
	// Atomicity rests on the conditional UPDATE pinned in
	// store/token_store_sql_test.go.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&domain.User{}, &domain.AuthToken{}))
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	st := store.New(db)
	clock := newTestClock()
	notifier := &recordingNotifier{failFor: map[string]bool{}}

	ring, err := jwtsigner.ParseRing("test:0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	community, err := netutil.ParseNetworks([]string{"203.0.113.0/24"})
	require.NoError(t, err)

	issuer := NewTokenIssuerImpl(st, domain.DefaultTokenPolicy(), time.Second)
	issuer.now = clock.Now
	verifier := NewTokenVerifierImpl(st, time.Second)
	verifier.now = clock.Now
	qr := NewQRKeyServiceImpl(st, issuer, qrcode.NewRenderer(128), testBaseURL, time.Second)
	qr.now = clock.Now
	sessions := NewSessionServiceImpl(SessionConfig{Issuer: "linkauth", Audience: "community-web", TTL: time.Hour}, ring)
	sessions.now = clock.Now
	roles := NewRoleResolverImpl([]string{"Admin@Example.com"}, community)
	sweeper := NewSweeperImpl(st, notifier, time.Second)
	sweeper.now = clock.Now
	auth := NewAuthServiceImpl(st, issuer, verifier, qr, sessions, roles, notifier, testBaseURL, time.Second)
	auth.now = clock.Now

	return &testEnv{
		db: db, store: st, clock: clock, notifier: notifier,
		issuer: issuer, verifier: verifier, qr: qr, sessions: sessions,
		roles: roles, sweeper: sweeper, auth: auth,
	}
}

func (e *testEnv) user(t *testing.T, email string) *domain.User {
	t.Helper()
	now := e.clock.Now()
	u := &domain.User{Email: email, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, e.store.Users().Create(context.Background(), u))
	return u
}

func (e *testEnv) countTokens(t *testing.T, userID domain.UserID, kind domain.TokenKind) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&domain.AuthToken{}).Where("user_id = ? AND kind = ?", userID, kind).Count(&n).Error)
	return n
}
