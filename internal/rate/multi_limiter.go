package rate

import (
	"context"
	"fmt"
	"sync"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

// MultiRedisLimiter permite usar diferentes límites dinámicamente
// manteniendo el algoritmo fixed-window del RedisLimiter.
type MultiRedisLimiter struct {
	client rdb.UniversalClient
	prefix string
	mu     sync.RWMutex
	// Cache de limiters por configuración
	limiters map[string]*RedisLimiter
}

var _ MultiLimiter = (*MultiRedisLimiter)(nil)

func NewMultiRedisLimiter(client rdb.UniversalClient, prefix string) *MultiRedisLimiter {
	if prefix == "" {
		prefix = "rl:"
	}
	return &MultiRedisLimiter{
		client:   client,
		prefix:   prefix,
		limiters: make(map[string]*RedisLimiter),
	}
}

// AllowWithLimits implementa MultiLimiter.
func (m *MultiRedisLimiter) AllowWithLimits(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	configKey := fmt.Sprintf("%d:%s", limit, window.String())

	m.mu.RLock()
	limiter, exists := m.limiters[configKey]
	m.mu.RUnlock()

	if !exists {
		m.mu.Lock()
		if limiter, exists = m.limiters[configKey]; !exists {
			// El prefijo incluye la configuración: dos límites sobre la misma key no comparten contador.
			limiter = NewRedisLimiter(m.client, m.prefix+configKey+":", limit, window)
			m.limiters[configKey] = limiter
		}
		m.mu.Unlock()
	}

	return limiter.Allow(ctx, key)
}
