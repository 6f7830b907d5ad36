package tenant

import (
	"context"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// countingResolver tracks how many times each store id was resolved. Ids
// listed in unmigrated route to the shared master target.
type countingResolver struct {
	mu         sync.Mutex
	resolved   map[int64]int
	unmigrated map[int64]bool
	err        error
}

func newCountingResolver() *countingResolver {
	return &countingResolver{resolved: make(map[int64]int), unmigrated: make(map[int64]bool)}
}

func (r *countingResolver) Resolve(ctx context.Context, storeID int64) (Target, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return Target{}, r.err
	}
	r.resolved[storeID]++
	if r.unmigrated[storeID] {
		return Target{
			StoreID:    storeID,
			SchemaName: "public",
			ConnString: testMasterURL,
			Dedicated:  false,
		}, nil
	}
	conn, err := BuildConnString(testMasterURL, BuildSchemaName(storeID))
	if err != nil {
		return Target{}, err
	}
	return Target{
		StoreID:    storeID,
		SchemaName: BuildSchemaName(storeID),
		ConnString: conn,
		Dedicated:  true,
	}, nil
}

func (r *countingResolver) count(storeID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolved[storeID]
}

// recordingOpener hands out nil pools and records open/close calls per target.
type recordingOpener struct {
	mu     sync.Mutex
	opened map[string]int
	closed map[string]int
}

func newRecordingOpener() *recordingOpener {
	return &recordingOpener{opened: make(map[string]int), closed: make(map[string]int)}
}

func (o *recordingOpener) Get(ctx context.Context, target string) (*pgxpool.Pool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened[target]++
	return nil, nil
}

func (o *recordingOpener) CloseTarget(target string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed[target]++
}

func (o *recordingOpener) closedTotal() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	total := 0
	for _, n := range o.closed {
		total += n
	}
	return total
}

func TestCacheGetMemoizesResolution(t *testing.T) {
	resolver := newCountingResolver()
	opener := newRecordingOpener()
	cache := NewConnCache(resolver, opener, zap.NewNop())

	first, err := cache.Get(context.Background(), 5)
	require.NoError(t, err)
	require.Equal(t, "store_5", first.Target.SchemaName)

	second, err := cache.Get(context.Background(), 5)
	require.NoError(t, err)
	require.Equal(t, first.Target, second.Target)

	require.Equal(t, 1, resolver.count(5))
	require.Equal(t, 1, cache.Len())
}

func TestCacheGetPropagatesResolutionFailure(t *testing.T) {
	resolver := newCountingResolver()
	resolver.err = ErrStoreNotFound
	cache := NewConnCache(resolver, newRecordingOpener(), zap.NewNop())

	_, err := cache.Get(context.Background(), 5)
	require.ErrorIs(t, err, ErrStoreNotFound)
	// Failed resolutions are never cached.
	require.Equal(t, 0, cache.Len())
}

func TestInvalidateClosesPoolAndForcesReResolve(t *testing.T) {
	resolver := newCountingResolver()
	opener := newRecordingOpener()
	cache := NewConnCache(resolver, opener, zap.NewNop())

	conn, err := cache.Get(context.Background(), 8)
	require.NoError(t, err)

	cache.Invalidate(8)
	require.Equal(t, 0, cache.Len())
	require.Equal(t, 1, opener.closed[conn.Target.ConnString])

	_, err = cache.Get(context.Background(), 8)
	require.NoError(t, err)
	require.Equal(t, 2, resolver.count(8))
}

func TestInvalidateEvictsEveryEntrySharingTheTarget(t *testing.T) {
	resolver := newCountingResolver()
	resolver.unmigrated[1] = true
	resolver.unmigrated[2] = true
	opener := newRecordingOpener()
	cache := NewConnCache(resolver, opener, zap.NewNop())

	for _, id := range []int64{1, 2, 3} {
		_, err := cache.Get(context.Background(), id)
		require.NoError(t, err)
	}
	require.Equal(t, 3, cache.Len())

	// Stores 1 and 2 share the master pool. Closing it under store 2 would
	// leave its entry serving a dead pool, so invalidating 1 evicts both.
	cache.Invalidate(1)
	require.Equal(t, 1, cache.Len())
	require.Equal(t, 1, opener.closed[testMasterURL])

	// Each original miss hit the opener once; the re-fetch makes a third call.
	_, err := cache.Get(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, 2, resolver.count(2))
	require.Equal(t, 3, opener.opened[testMasterURL])

	// The dedicated store keeps its entry untouched.
	require.Equal(t, 1, resolver.count(3))
}

func TestInvalidateUnknownStoreIsNoop(t *testing.T) {
	opener := newRecordingOpener()
	cache := NewConnCache(newCountingResolver(), opener, zap.NewNop())

	cache.Invalidate(99)
	require.Equal(t, 0, opener.closedTotal())
}

func TestInvalidateAll(t *testing.T) {
	resolver := newCountingResolver()
	opener := newRecordingOpener()
	cache := NewConnCache(resolver, opener, zap.NewNop())

	for _, id := range []int64{1, 2, 3} {
		_, err := cache.Get(context.Background(), id)
		require.NoError(t, err)
	}
	require.Equal(t, 3, cache.Len())

	cache.InvalidateAll()
	require.Equal(t, 0, cache.Len())
	require.Equal(t, 3, opener.closedTotal())
}

func TestConcurrentGetsShareOneTarget(t *testing.T) {
	resolver := newCountingResolver()
	opener := newRecordingOpener()
	cache := NewConnCache(resolver, opener, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Get(context.Background(), 7)
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	// Racing misses may resolve more than once but must collapse to one entry.
	require.Equal(t, 1, cache.Len())
	require.GreaterOrEqual(t, resolver.count(7), 1)
}
