package renewal

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/genesis/internal/common"
	"github.com/dmitrijs2005/genesis/internal/logging"
	"github.com/dmitrijs2005/genesis/internal/server/credentials"
	"github.com/dmitrijs2005/genesis/internal/server/shutdown"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type fakeAuth struct {
	mu         sync.Mutex
	ttl        time.Duration
	loginErr   error
	renewErr   error
	block      bool
	logins     int
	renewals   int
	renewedAll chan struct{}
	want       int
}

func (f *fakeAuth) Login(ctx context.Context) (*credentials.Lease, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins++
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &credentials.Lease{Token: "t0", TTL: f.ttl, Renewable: true, IssuedAt: time.Now()}, nil
}

func (f *fakeAuth) Renew(ctx context.Context, prev *credentials.Lease) (*credentials.Lease, error) {
	f.mu.Lock()
	f.renewals++
	n := f.renewals
	block, err := f.block, f.renewErr
	if f.renewedAll != nil && n == f.want {
		close(f.renewedAll)
	}
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return &credentials.Lease{Token: prev.Token + "+", TTL: f.ttl, Renewable: true, IssuedAt: time.Now()}, nil
}

func (f *fakeAuth) renewCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.renewals
}

func waitDone(t *testing.T, h *Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("renewal loop did not exit")
	}
}

func TestStart_InitialLoginFailure(t *testing.T) {
	auth := &fakeAuth{loginErr: errors.New("approle login failed")}
	store := credentials.NewStore()
	sd := shutdown.New(context.Background())

	h, err := Start(context.Background(), Config{MaxAttempts: 3, Backoff: time.Millisecond}, auth, store, sd.Trigger, discardLogger())

	require.Error(t, err)
	assert.Nil(t, h)
	assert.Nil(t, store.Current())
	assert.False(t, sd.Fired())
}

func TestStart_RenewsBeforeExpiry(t *testing.T) {
	auth := &fakeAuth{ttl: 60 * time.Millisecond, renewedAll: make(chan struct{}), want: 3}
	store := credentials.NewStore()
	sd := shutdown.New(context.Background())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h, err := Start(ctx, Config{Margin: 20 * time.Millisecond, MaxAttempts: 3, Backoff: time.Millisecond, AttemptTimeout: time.Second}, auth, store, sd.Trigger, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, "t0", store.Current().Token)

	select {
	case <-auth.renewedAll:
	case <-time.After(2 * time.Second):
		t.Fatal("lease was not renewed")
	}

	cancel()
	waitDone(t, h)

	assert.False(t, sd.Fired(), "cancellation must not request shutdown")
	assert.GreaterOrEqual(t, len(store.Current().Token), len("t0++"))
	assert.Equal(t, 1, auth.logins)
}

func TestStart_ExhaustionTriggersShutdownOnce(t *testing.T) {
	auth := &fakeAuth{ttl: 20 * time.Millisecond, renewErr: errors.New("vault unavailable")}
	store := credentials.NewStore()
	sd := shutdown.New(context.Background())

	var mu sync.Mutex
	var causes []error
	trigger := func(cause error) bool {
		mu.Lock()
		causes = append(causes, cause)
		mu.Unlock()
		return sd.Trigger(cause)
	}

	h, err := Start(context.Background(), Config{MaxAttempts: 3, Backoff: time.Millisecond, AttemptTimeout: time.Second}, auth, store, trigger, discardLogger())
	require.NoError(t, err)
	waitDone(t, h)

	assert.Equal(t, 3, auth.renewCount())
	require.Len(t, causes, 1)
	assert.ErrorIs(t, causes[0], common.ErrRenewalExhausted)
	assert.True(t, sd.Fired())
	assert.ErrorIs(t, sd.Cause(), common.ErrRenewalExhausted)

	// a later failure report after shutdown has fired is a no-op
	assert.NotPanics(t, func() {
		assert.False(t, sd.Trigger(errors.New("late failure")))
	})
	assert.ErrorIs(t, sd.Cause(), common.ErrRenewalExhausted)
}

func TestStart_AttemptTimeoutCountsAsFailure(t *testing.T) {
	auth := &fakeAuth{ttl: 10 * time.Millisecond, block: true}
	store := credentials.NewStore()
	sd := shutdown.New(context.Background())

	h, err := Start(context.Background(), Config{MaxAttempts: 2, Backoff: time.Millisecond, AttemptTimeout: 10 * time.Millisecond}, auth, store, sd.Trigger, discardLogger())
	require.NoError(t, err)
	waitDone(t, h)

	assert.Equal(t, 2, auth.renewCount())
	assert.True(t, sd.Fired())
	assert.ErrorIs(t, sd.Cause(), context.DeadlineExceeded)
}

func TestStart_ZeroTTLWaitsForCancellation(t *testing.T) {
	auth := &fakeAuth{ttl: 0}
	store := credentials.NewStore()
	sd := shutdown.New(context.Background())
	ctx, cancel := context.WithCancel(context.Background())

	h, err := Start(ctx, Config{MaxAttempts: 1, Backoff: time.Millisecond}, auth, store, sd.Trigger, discardLogger())
	require.NoError(t, err)

	select {
	case <-h.Done():
		t.Fatal("loop exited without cancellation")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Zero(t, auth.renewCount())

	cancel()
	waitDone(t, h)
	assert.False(t, sd.Fired())
}

func TestUntilRenewal(t *testing.T) {
	issued := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := &coordinator{cfg: Config{Margin: 5 * time.Minute}, now: func() time.Time { return issued }}

	tests := []struct {
		name  string
		lease *credentials.Lease
		want  time.Duration
	}{
		{name: "nil lease", lease: nil, want: -1},
		{name: "no expiry", lease: &credentials.Lease{IssuedAt: issued}, want: -1},
		{name: "margin applied", lease: &credentials.Lease{IssuedAt: issued, TTL: time.Hour}, want: 55 * time.Minute},
		{name: "margin capped to half ttl", lease: &credentials.Lease{IssuedAt: issued, TTL: 4 * time.Minute}, want: 2 * time.Minute},
		{name: "already due", lease: &credentials.Lease{IssuedAt: issued.Add(-time.Hour), TTL: time.Minute}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.untilRenewal(tt.lease))
		})
	}
}
