package impl

import (
	"context"
	"testing"
	"time"

	"linkauth/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweep_RemindsThenDeletes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.user(t, "alice@example.com")
	bob := env.user(t, "bob@example.com")

	// alice ends up with two expired QR tokens, bob with one live one.
	_, err := env.issuer.Issue(ctx, alice.ID, domain.TokenKindQRCode)
	require.NoError(t, err)
	_, err = env.issuer.Issue(ctx, alice.ID, domain.TokenKindMagicLink)
	require.NoError(t, err)
	env.clock.Advance(24 * time.Hour)
	_, err = env.issuer.Issue(ctx, alice.ID, domain.TokenKindQRCode)
	require.NoError(t, err)

	env.clock.Advance(30 * 24 * time.Hour)
	live, err := env.issuer.Issue(ctx, bob.ID, domain.TokenKindQRCode)
	require.NoError(t, err)

	deleted, err := env.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
	assert.Equal(t, []string{"alice@example.com"}, env.notifier.renewalsTo())

	assert.Zero(t, env.countTokens(t, alice.ID, domain.TokenKindQRCode))
	assert.Zero(t, env.countTokens(t, alice.ID, domain.TokenKindMagicLink))
	_, err = env.store.Tokens().GetByValue(ctx, live.Value)
	assert.NoError(t, err)

	deleted, err = env.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, deleted)
	assert.Len(t, env.notifier.renewalsTo(), 1, "no second reminder once swept")
}

func TestSweep_NotifierFailureIsNotFatal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.user(t, "broken@example.com")
	b := env.user(t, "fine@example.com")
	env.notifier.failFor["broken@example.com"] = true

	for _, u := range []*domain.User{a, b} {
		_, err := env.issuer.Issue(ctx, u.ID, domain.TokenKindQRCode)
		require.NoError(t, err)
	}
	env.clock.Advance(31 * 24 * time.Hour)

	deleted, err := env.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
	assert.Equal(t, []string{"fine@example.com"}, env.notifier.renewalsTo())
}

func TestSweep_BoundaryTokenIsSwept(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.user(t, "edge@example.com")

	_, err := env.issuer.Issue(ctx, u.ID, domain.TokenKindMagicLink)
	require.NoError(t, err)
	env.clock.Advance(15 * time.Minute)

	deleted, err := env.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		env.sweeper.Run(ctx, time.Millisecond)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

// stallingNotifier holds every renewal reminder until its context ends.
type stallingNotifier struct {
	*recordingNotifier
}

func (s stallingNotifier) SendQRRenewal(ctx context.Context, to string, expiredAt time.Time) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestSweep_StalledReminderDoesNotBlockDeletion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for _, email := range []string{"one@example.com", "two@example.com"} {
		u := env.user(t, email)
		_, err := env.issuer.Issue(ctx, u.ID, domain.TokenKindQRCode)
		require.NoError(t, err)
	}
	env.clock.Advance(31 * 24 * time.Hour)

	sweeper := NewSweeperImpl(env.store, stallingNotifier{env.notifier}, time.Second)
	sweeper.now = env.clock.Now
	sweeper.reminderTimeout = 20 * time.Millisecond

	start := time.Now()
	deleted, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
	assert.Less(t, time.Since(start), 5*time.Second)
}
