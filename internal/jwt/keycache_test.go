package jwt

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingObserver struct {
	mu      sync.Mutex
	results []bool
	keys    []int
}

func (o *recordingObserver) ObserveKeyRefresh(ok bool, keys int, _ time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results = append(o.results, ok)
	o.keys = append(o.keys, keys)
}

// scriptedFetcher devuelve los resultados en orden; el último se repite.
type scriptedFetcher struct {
	mu    sync.Mutex
	steps []func() (*KeySet, error)
	calls atomic.Int32
}

func (f *scriptedFetcher) Fetch(context.Context) (*KeySet, error) {
	n := int(f.calls.Add(1)) - 1
	f.mu.Lock()
	defer f.mu.Unlock()
	if n >= len(f.steps) {
		n = len(f.steps) - 1
	}
	return f.steps[n]()
}

func returns(set *KeySet) func() (*KeySet, error) {
	return func() (*KeySet, error) { return set, nil }
}

func fails(msg string) func() (*KeySet, error) {
	return func() (*KeySet, error) { return nil, errors.New(msg) }
}

func TestKeyCache_RefreshReplacesSnapshot(t *testing.T) {
	a := newTestKey(t, 0, "kid-A")
	b := newTestKey(t, 1, "kid-B")
	f := &scriptedFetcher{steps: []func() (*KeySet, error){
		returns(NewKeySet([]PublicKey{a.public()}, time.Now())),
		returns(NewKeySet([]PublicKey{b.public()}, time.Now())),
	}}
	obs := &recordingObserver{}
	c := NewKeyCache(f, KeyCacheConfig{}, obs)

	_, ok := c.Lookup("kid-A")
	assert.False(t, ok, "empty cache must not resolve anything")

	require.NoError(t, c.Refresh(context.Background()))
	_, ok = c.Lookup("kid-A")
	assert.True(t, ok)

	require.NoError(t, c.Refresh(context.Background()))
	_, ok = c.Lookup("kid-A")
	assert.False(t, ok, "full replace: kid-A is gone")
	_, ok = c.Lookup("kid-B")
	assert.True(t, ok)

	assert.Equal(t, []bool{true, true}, obs.results)
}

func TestKeyCache_FailedRefreshKeepsPreviousSet(t *testing.T) {
	a := newTestKey(t, 0, "kid-A")
	f := &scriptedFetcher{steps: []func() (*KeySet, error){
		returns(NewKeySet([]PublicKey{a.public()}, time.Now())),
		fails("connection refused"),
		returns(nil),
	}}
	obs := &recordingObserver{}
	c := NewKeyCache(f, KeyCacheConfig{}, obs)

	require.NoError(t, c.Refresh(context.Background()))
	before := c.Snapshot()

	require.Error(t, c.Refresh(context.Background()))
	assert.Same(t, before, c.Snapshot())

	require.ErrorIs(t, c.Refresh(context.Background()), errNoUsableKeys)
	assert.Same(t, before, c.Snapshot())

	_, ok := c.Lookup("kid-A")
	assert.True(t, ok)
	assert.Equal(t, []bool{true, false, false}, obs.results)
	assert.Equal(t, []int{1, 1, 1}, obs.keys)
}

func TestKeyCache_ConcurrentRefreshIsCoalesced(t *testing.T) {
	a := newTestKey(t, 0, "kid-A")
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	f := FetcherFunc(func(context.Context) (*KeySet, error) {
		if calls.Add(1) == 1 {
			close(entered)
		}
		<-release
		return NewKeySet([]PublicKey{a.public()}, time.Now()), nil
	})
	c := NewKeyCache(f, KeyCacheConfig{}, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, c.Refresh(context.Background()))
	}()
	<-entered

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.Refresh(context.Background()))
		}()
	}
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, 1, c.Snapshot().Len())
}

func TestKeyCache_MissJoinsInFlightRefresh(t *testing.T) {
	a := newTestKey(t, 0, "kid-A")
	b := newTestKey(t, 1, "kid-B")
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	f := FetcherFunc(func(context.Context) (*KeySet, error) {
		if calls.Add(1) == 1 {
			close(entered)
		}
		<-release
		return NewKeySet([]PublicKey{a.public(), b.public()}, time.Now()), nil
	})
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := NewKeyCache(f, KeyCacheConfig{RefreshOnMiss: true, MinRefreshInterval: 30 * time.Second}, nil)
	c.now = clock.Now

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, c.Refresh(context.Background()))
	}()
	<-entered

	// Fuera del throttle: el miss tiene permitido refrescar, pero debe sumarse al fetch en vuelo.
	clock.Advance(time.Minute)
	var found atomic.Bool
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, ok := c.LookupOrRefresh(context.Background(), "kid-B")
		found.Store(ok)
	}()
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load())
	assert.True(t, found.Load())
	assert.Equal(t, 2, c.Snapshot().Len())
}

func TestKeyCache_ReadersNeverSeeMixedSnapshot(t *testing.T) {
	a := newTestKey(t, 0, "kid-A")
	b := newTestKey(t, 1, "kid-B")
	setOld := NewKeySet([]PublicKey{a.public(), {KeyID: "old-2", Key: &a.priv.PublicKey}}, time.Now())
	setNew := NewKeySet([]PublicKey{b.public(), {KeyID: "new-2", Key: &b.priv.PublicKey}}, time.Now())

	var flip atomic.Bool
	f := FetcherFunc(func(context.Context) (*KeySet, error) {
		if flip.Load() {
			flip.Store(false)
			return setNew, nil
		}
		flip.Store(true)
		return setOld, nil
	})
	c := NewKeyCache(f, KeyCacheConfig{}, nil)
	require.NoError(t, c.Refresh(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				s := c.Snapshot()
				_, hasA := s.Lookup("kid-A")
				_, hasOld := s.Lookup("old-2")
				_, hasB := s.Lookup("kid-B")
				_, hasNew := s.Lookup("new-2")
				if !((hasA && hasOld && !hasB && !hasNew) || (hasB && hasNew && !hasA && !hasOld)) {
					t.Errorf("mixed snapshot: A=%v old=%v B=%v new=%v", hasA, hasOld, hasB, hasNew)
					return
				}
			}
		}()
	}
	for i := 0; i < 50; i++ {
		_ = c.Refresh(context.Background())
	}
	cancel()
	wg.Wait()
}

func TestKeyCache_RefreshOnMiss(t *testing.T) {
	a := newTestKey(t, 0, "kid-A")
	b := newTestKey(t, 1, "kid-B")
	f := &scriptedFetcher{steps: []func() (*KeySet, error){
		returns(NewKeySet([]PublicKey{a.public()}, time.Now())),
		returns(NewKeySet([]PublicKey{a.public(), b.public()}, time.Now())),
	}}
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := NewKeyCache(f, KeyCacheConfig{RefreshOnMiss: true, MinRefreshInterval: time.Minute}, nil)
	c.now = clock.Now
	ctx := context.Background()

	require.NoError(t, c.Refresh(ctx))
	require.EqualValues(t, 1, f.calls.Load())

	// Dentro del intervalo mínimo: no hay fetch.
	_, ok := c.LookupOrRefresh(ctx, "kid-B")
	assert.False(t, ok)
	assert.EqualValues(t, 1, f.calls.Load())

	clock.Advance(2 * time.Minute)
	k, ok := c.LookupOrRefresh(ctx, "kid-B")
	require.True(t, ok)
	assert.Equal(t, "kid-B", k.KeyID)
	assert.EqualValues(t, 2, f.calls.Load())

	// Kid conocido: nunca va a la red.
	clock.Advance(2 * time.Minute)
	_, ok = c.LookupOrRefresh(ctx, "kid-A")
	assert.True(t, ok)
	assert.EqualValues(t, 2, f.calls.Load())

	// Kid inexistente tras el throttle: un fetch, sigue sin resolverse.
	_, ok = c.LookupOrRefresh(ctx, "kid-Z")
	assert.False(t, ok)
	assert.EqualValues(t, 3, f.calls.Load())
	_, ok = c.LookupOrRefresh(ctx, "kid-Z")
	assert.False(t, ok)
	assert.EqualValues(t, 3, f.calls.Load())
}

func TestKeyCache_RefreshOnMissDisabled(t *testing.T) {
	f := &scriptedFetcher{steps: []func() (*KeySet, error){fails("should not be called")}}
	c := NewKeyCache(f, KeyCacheConfig{RefreshOnMiss: false}, nil)

	_, ok := c.LookupOrRefresh(context.Background(), "kid-A")
	assert.False(t, ok)
	assert.Zero(t, f.calls.Load())
}

func TestKeyCache_WarmupRetriesWithBackoff(t *testing.T) {
	a := newTestKey(t, 0, "kid-A")
	f := &scriptedFetcher{steps: []func() (*KeySet, error){
		fails("dial tcp: connection refused"),
		fails("dial tcp: connection refused"),
		returns(NewKeySet([]PublicKey{a.public()}, time.Now())),
	}}
	c := NewKeyCache(f, KeyCacheConfig{
		StartupRetries:    5,
		StartupBackoff:    time.Millisecond,
		StartupMaxBackoff: 5 * time.Millisecond,
	}, nil)

	require.NoError(t, c.Warmup(context.Background()))
	assert.EqualValues(t, 3, f.calls.Load())
	assert.Equal(t, 1, c.Snapshot().Len())
}

func TestKeyCache_WarmupGivesUpWithoutPanicking(t *testing.T) {
	f := &scriptedFetcher{steps: []func() (*KeySet, error){fails("no route to host")}}
	c := NewKeyCache(f, KeyCacheConfig{
		StartupRetries:    2,
		StartupBackoff:    time.Millisecond,
		StartupMaxBackoff: 2 * time.Millisecond,
	}, nil)

	err := c.Warmup(context.Background())
	require.Error(t, err)
	assert.EqualValues(t, 3, f.calls.Load(), "one attempt plus two retries")
	assert.Nil(t, c.Snapshot())

	// Fail-closed: todo kid es desconocido.
	_, ok := c.Lookup("kid-A")
	assert.False(t, ok)
}

func TestKeyCache_RunRefreshesPeriodically(t *testing.T) {
	a := newTestKey(t, 0, "kid-A")
	f := &scriptedFetcher{steps: []func() (*KeySet, error){
		returns(NewKeySet([]PublicKey{a.public()}, time.Now())),
	}}
	c := NewKeyCache(f, KeyCacheConfig{
		RefreshInterval:    20 * time.Millisecond,
		MinRefreshInterval: 5 * time.Millisecond,
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return f.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	assert.Equal(t, 1, c.Snapshot().Len())
}

func TestKeyCache_RunDisabledWithoutInterval(t *testing.T) {
	c := NewKeyCache(&scriptedFetcher{steps: []func() (*KeySet, error){fails("x")}}, KeyCacheConfig{}, nil)
	done := make(chan struct{})
	go func() {
		c.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run should return immediately when RefreshInterval is 0")
	}
}
