package services

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/genesis/internal/common"
	"github.com/dmitrijs2005/genesis/internal/dbx"
	"github.com/dmitrijs2005/genesis/internal/server/config"
	"github.com/dmitrijs2005/genesis/internal/server/models"
	"github.com/dmitrijs2005/genesis/internal/server/repositories/clients"
	"github.com/dmitrijs2005/genesis/internal/server/repositories/metadata"
	"github.com/dmitrijs2005/genesis/internal/server/repositories/tokens"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory database with a bounded connection pool and a
// controllable clock. Writes made inside InTx are staged and applied on
// commit only.
type memStore struct {
	mu       sync.Mutex
	clients  map[uuid.UUID]int32
	tokens   map[uuid.UUID]memToken
	metadata map[uuid.UUID]models.Metadata
	now      time.Time

	pool     chan struct{}
	inflight atomic.Int32
	peak     atomic.Int32

	failMetadata bool
}

type memToken struct {
	clientID  *int32
	expiresAt *time.Time
}

func newMemStore(poolSize int) *memStore {
	return &memStore{
		clients:  map[uuid.UUID]int32{},
		tokens:   map[uuid.UUID]memToken{},
		metadata: map[uuid.UUID]models.Metadata{},
		now:      time.Now(),
		pool:     make(chan struct{}, poolSize),
	}
}

func (m *memStore) setNow(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}

func (m *memStore) Exec(context.Context, string, ...any) (int64, error) {
	return 0, errors.New("not supported")
}

func (m *memStore) QueryOne(context.Context, string, []any, ...any) error {
	return errors.New("not supported")
}

func (m *memStore) QueryOptional(context.Context, string, []any, ...any) (bool, error) {
	return false, errors.New("not supported")
}

func (m *memStore) InTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	select {
	case m.pool <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-m.pool }()

	n := m.inflight.Add(1)
	defer m.inflight.Add(-1)
	for {
		p := m.peak.Load()
		if n <= p || m.peak.CompareAndSwap(p, n) {
			break
		}
	}

	tx := &memTx{store: m, tokens: map[uuid.UUID]memToken{}, metadata: map[uuid.UUID]models.Metadata{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range tx.tokens {
		m.tokens[id] = t
	}
	for id, md := range tx.metadata {
		m.metadata[id] = md
	}
	return nil
}

type memTx struct {
	store    *memStore
	tokens   map[uuid.UUID]memToken
	metadata map[uuid.UUID]models.Metadata
}

func (t *memTx) Exec(context.Context, string, ...any) (int64, error) {
	return 0, sql.ErrTxDone
}

func (t *memTx) QueryOne(context.Context, string, []any, ...any) error {
	return sql.ErrTxDone
}

func (t *memTx) QueryOptional(context.Context, string, []any, ...any) (bool, error) {
	return false, sql.ErrTxDone
}

// memManager hands out repositories over memStore, writing to the staged
// maps when bound to a memTx.
type memManager struct {
	store *memStore
}

func (m *memManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *memManager) Clients(dbx.DBTX) clients.Repository {
	return &memClients{store: m.store}
}

func (m *memManager) Tokens(db dbx.DBTX) tokens.Repository {
	tx, _ := db.(*memTx)
	return &memTokens{store: m.store, tx: tx}
}

func (m *memManager) Metadata(db dbx.DBTX) metadata.Repository {
	tx, _ := db.(*memTx)
	return &memMetadata{store: m.store, tx: tx}
}

type memClients struct{ store *memStore }

func (r *memClients) GetIDByUUID(_ context.Context, id uuid.UUID) (int32, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	v, ok := r.store.clients[id]
	if !ok {
		return 0, common.ErrorNotFound
	}
	return v, nil
}

type memTokens struct {
	store *memStore
	tx    *memTx
}

func (r *memTokens) Create(_ context.Context, token *models.Token) error {
	r.tx.tokens[token.ID] = memToken{clientID: token.ClientID}
	return nil
}

func (r *memTokens) CreateWithExpiry(_ context.Context, token *models.Token, ttl time.Duration) (time.Time, error) {
	r.store.mu.Lock()
	at := r.store.now.Add(ttl)
	r.store.mu.Unlock()
	r.tx.tokens[token.ID] = memToken{clientID: token.ClientID, expiresAt: &at}
	return at, nil
}

func (r *memTokens) IsValidUntilExpiry(_ context.Context, id uuid.UUID) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	t, ok := r.store.tokens[id]
	return ok && t.expiresAt != nil && t.expiresAt.After(r.store.now), nil
}

func (r *memTokens) IsValidWithinWindow(_ context.Context, id uuid.UUID, window time.Duration) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.tokens[id]; !ok {
		return false, nil
	}
	created := (&models.Token{ID: id}).CreatedAt()
	return created.After(r.store.now.Add(-window)), nil
}

type memMetadata struct {
	store *memStore
	tx    *memTx
}

func (r *memMetadata) Create(_ context.Context, m *models.Metadata) error {
	if r.store.failMetadata {
		return errors.New("metadata insert failed")
	}
	r.tx.metadata[m.TokenID] = *m
	return nil
}

func newMemService(t *testing.T, store *memStore, policy string) *TokenService {
	t.Helper()
	return NewTokenService(store, &memManager{store: store}, testConfig(policy), discardLogger())
}

func TestRoundTrip_WindowPolicy(t *testing.T) {
	store := newMemStore(5)
	svc := newMemService(t, store, config.PolicyWindow)

	issued, err := svc.Issue(context.Background(), nil, Origin{})
	require.NoError(t, err)

	outcome, err := svc.Verify(context.Background(), issued.Token)
	require.NoError(t, err)
	assert.Equal(t, VerifyValid, outcome)
}

func TestRoundTrip_ExplicitPolicy(t *testing.T) {
	store := newMemStore(5)
	svc := newMemService(t, store, config.PolicyExplicit)

	issued, err := svc.Issue(context.Background(), nil, Origin{})
	require.NoError(t, err)
	require.NotNil(t, issued.ExpiresAt)

	outcome, err := svc.Verify(context.Background(), issued.Token)
	require.NoError(t, err)
	assert.Equal(t, VerifyValid, outcome)

	store.setNow(issued.ExpiresAt.Add(time.Millisecond))
	outcome, err = svc.Verify(context.Background(), issued.Token)
	require.NoError(t, err)
	assert.Equal(t, VerifyInvalid, outcome)
}

func TestIssue_AssociatesKnownClient(t *testing.T) {
	store := newMemStore(5)
	known := uuid.New()
	store.clients[known] = 42
	svc := newMemService(t, store, config.PolicyWindow)

	issued, err := svc.Issue(context.Background(), strPtr(known.String()), Origin{})
	require.NoError(t, err)

	id, err := models.ParseToken(issued.Token)
	require.NoError(t, err)
	require.NotNil(t, store.tokens[id].clientID)
	assert.Equal(t, int32(42), *store.tokens[id].clientID)

	issued, err = svc.Issue(context.Background(), strPtr(uuid.NewString()), Origin{})
	require.NoError(t, err)
	id, err = models.ParseToken(issued.Token)
	require.NoError(t, err)
	assert.Nil(t, store.tokens[id].clientID)
}

func TestVerify_WindowBoundary(t *testing.T) {
	store := newMemStore(5)
	svc := newMemService(t, store, config.PolicyWindow)
	window := testConfig(config.PolicyWindow).TokenWindow

	issued, err := svc.Issue(context.Background(), nil, Origin{})
	require.NoError(t, err)
	id, err := models.ParseToken(issued.Token)
	require.NoError(t, err)
	created := (&models.Token{ID: id}).CreatedAt()

	tests := []struct {
		name string
		now  time.Time
		want VerifyOutcome
	}{
		{name: "just inside", now: created.Add(window - time.Millisecond), want: VerifyValid},
		{name: "at boundary", now: created.Add(window), want: VerifyInvalid},
		{name: "just outside", now: created.Add(window + time.Millisecond), want: VerifyInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store.setNow(tt.now)
			got, err := svc.Verify(context.Background(), issued.Token)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVerify_ExplicitBoundary(t *testing.T) {
	store := newMemStore(5)
	svc := newMemService(t, store, config.PolicyExplicit)

	issued, err := svc.Issue(context.Background(), nil, Origin{})
	require.NoError(t, err)
	require.NotNil(t, issued.ExpiresAt)
	expires := *issued.ExpiresAt

	tests := []struct {
		name string
		now  time.Time
		want VerifyOutcome
	}{
		{name: "just inside", now: expires.Add(-time.Millisecond), want: VerifyValid},
		{name: "at expiry", now: expires, want: VerifyInvalid},
		{name: "just outside", now: expires.Add(time.Millisecond), want: VerifyInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store.setNow(tt.now)
			got, err := svc.Verify(context.Background(), issued.Token)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVerify_UnknownToken(t *testing.T) {
	store := newMemStore(5)
	svc := newMemService(t, store, config.PolicyWindow)

	tok, err := models.NewToken(nil)
	require.NoError(t, err)

	got, err := svc.Verify(context.Background(), tok.String())
	require.NoError(t, err)
	assert.Equal(t, VerifyInvalid, got)
}

func TestIssue_AtomicOnMetadataFailure(t *testing.T) {
	store := newMemStore(5)
	store.failMetadata = true
	svc := newMemService(t, store, config.PolicyWindow)

	_, err := svc.Issue(context.Background(), nil, Origin{})
	require.ErrorIs(t, err, common.ErrPersistence)

	assert.Empty(t, store.tokens)
	assert.Empty(t, store.metadata)
}

func TestIssue_ConcurrentBurst(t *testing.T) {
	const n = 1000
	const poolSize = 5

	store := newMemStore(poolSize)
	svc := newMemService(t, store, config.PolicyWindow)

	var wg sync.WaitGroup
	results := make(chan string, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			issued, err := svc.Issue(context.Background(), nil, Origin{})
			if err != nil {
				errs <- err
				return
			}
			results <- issued.Token
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		t.Fatalf("issue failed: %v", err)
	}

	seen := make(map[string]struct{}, n)
	for tok := range results {
		_, dup := seen[tok]
		require.False(t, dup, "duplicate token %s", tok)
		seen[tok] = struct{}{}
	}
	assert.Len(t, seen, n)
	assert.Len(t, store.tokens, n)
	assert.Len(t, store.metadata, n)
	assert.LessOrEqual(t, store.peak.Load(), int32(poolSize))
}
