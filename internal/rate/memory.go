package rate

import (
	"context"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryLimiter es un fixed window en memoria sobre go-cache. Cada réplica cuenta
// por su cuenta: usar Redis cuando hay más de una instancia.
type MemoryLimiter struct {
	mu     sync.Mutex
	c      *gocache.Cache
	max    int
	window time.Duration
}

var (
	_ Limiter      = (*MemoryLimiter)(nil)
	_ MultiLimiter = (*MemoryLimiter)(nil)
)

// NewMemoryLimiter crea un limiter con límite default max por window.
func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	cleanup := window
	if cleanup < time.Minute {
		cleanup = time.Minute
	}
	return &MemoryLimiter{
		c:      gocache.New(window, cleanup),
		max:    max,
		window: window,
	}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string) (Result, error) {
	return l.AllowWithLimits(ctx, key, l.max, l.window)
}

func (l *MemoryLimiter) AllowWithLimits(_ context.Context, key string, limit int, window time.Duration) (Result, error) {
	k := fmt.Sprintf("%d:%s:%s", limit, window, key)

	l.mu.Lock()
	defer l.mu.Unlock()

	hits, err := l.c.IncrementInt64(k, 1)
	if err != nil {
		// No existe o expiró: abre ventana nueva.
		l.c.Set(k, int64(1), window)
		hits = 1
	}
	var ttl time.Duration
	if _, exp, ok := l.c.GetWithExpiration(k); ok && !exp.IsZero() {
		ttl = time.Until(exp)
	}
	return buildResult(hits, int64(limit), ttl, window), nil
}
