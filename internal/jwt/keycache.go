package jwt

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/hellotasks/internal/observability/logger"
)

// Defaults del cache de claves.
const (
	DefaultRefreshInterval    = 1 * time.Hour
	DefaultMinRefreshInterval = 30 * time.Second
	DefaultStartupRetries     = 4
	DefaultStartupBackoff     = 500 * time.Millisecond
	DefaultStartupMaxBackoff  = 5 * time.Second
)

// KeyCacheConfig configura refresh periódico, refresh-on-miss y warmup de arranque.
type KeyCacheConfig struct {
	// RefreshInterval entre refresh periódicos. 0 deshabilita el loop de Run.
	RefreshInterval time.Duration
	// MinRefreshInterval es el mínimo entre dos fetch disparados por un kid desconocido.
	// También es el intervalo de reintento de Run mientras el cache está vacío.
	MinRefreshInterval time.Duration
	// RefreshOnMiss habilita el refresh cuando un token declara un kid desconocido.
	RefreshOnMiss bool

	StartupRetries    uint64
	StartupBackoff    time.Duration
	StartupMaxBackoff time.Duration
}

func (c KeyCacheConfig) withDefaults() KeyCacheConfig {
	if c.MinRefreshInterval <= 0 {
		c.MinRefreshInterval = DefaultMinRefreshInterval
	}
	if c.StartupRetries == 0 {
		c.StartupRetries = DefaultStartupRetries
	}
	if c.StartupBackoff <= 0 {
		c.StartupBackoff = DefaultStartupBackoff
	}
	if c.StartupMaxBackoff <= 0 {
		c.StartupMaxBackoff = DefaultStartupMaxBackoff
	}
	return c
}

// RefreshObserver recibe el resultado de cada fetch (métricas).
type RefreshObserver interface {
	ObserveKeyRefresh(ok bool, keys int, at time.Time)
}

// sfRefresh es la única key de singleflight: refresh periódico, explícito y por
// kid desconocido comparten el mismo fetch en vuelo.
const sfRefresh = "refresh"

// KeyCache mantiene el snapshot vigente de claves públicas del identity provider.
//
// Lectores (Verify) leen el snapshot con un Load atómico; Refresh construye un
// KeySet nuevo fuera de línea y lo publica con un único Store. Nunca hay un
// snapshot a medio actualizar. Un refresh fallido conserva el snapshot anterior.
type KeyCache struct {
	fetcher  Fetcher
	cfg      KeyCacheConfig
	observer RefreshObserver

	current     atomic.Pointer[KeySet]
	lastAttempt atomic.Int64 // unix nanos del último fetch (ok o no)
	sf          singleflight.Group

	now func() time.Time
}

// NewKeyCache crea un cache vacío; llamar Warmup o Refresh para poblarlo.
func NewKeyCache(f Fetcher, cfg KeyCacheConfig, observer RefreshObserver) *KeyCache {
	return &KeyCache{
		fetcher:  f,
		cfg:      cfg.withDefaults(),
		observer: observer,
		now:      time.Now,
	}
}

// Snapshot devuelve el KeySet vigente (nil si nunca hubo un refresh exitoso).
func (c *KeyCache) Snapshot() *KeySet {
	return c.current.Load()
}

// Lookup busca kid en el snapshot vigente, sin red.
func (c *KeyCache) Lookup(kid string) (PublicKey, bool) {
	return c.current.Load().Lookup(kid)
}

// LookupOrRefresh busca kid y, si no está y RefreshOnMiss lo permite, hace un
// refresh (coalescido y acotado por MinRefreshInterval) antes de reintentar.
func (c *KeyCache) LookupOrRefresh(ctx context.Context, kid string) (PublicKey, bool) {
	if k, ok := c.Lookup(kid); ok {
		return k, true
	}
	if !c.cfg.RefreshOnMiss {
		return PublicKey{}, false
	}

	// El throttle aplica solo a este camino: Refresh y Run no se limitan.
	if c.sinceLastAttempt() < c.cfg.MinRefreshInterval {
		return PublicKey{}, false
	}
	if err := c.coalescedRefresh(ctx, "miss"); err != nil {
		logger.From(ctx).Debug("refresh on unknown kid failed", logger.KeyID(kid), logger.Err(err))
	}
	return c.Lookup(kid)
}

// Refresh descarga el key set y reemplaza el snapshot de forma atómica.
// Llamadas concurrentes (incluido el refresh por kid desconocido) comparten un único fetch.
func (c *KeyCache) Refresh(ctx context.Context) error {
	return c.coalescedRefresh(ctx, "explicit")
}

func (c *KeyCache) coalescedRefresh(ctx context.Context, trigger string) error {
	_, err, _ := c.sf.Do(sfRefresh, func() (any, error) {
		return nil, c.refresh(ctx, trigger)
	})
	return err
}

func (c *KeyCache) refresh(ctx context.Context, trigger string) error {
	log := logger.From(ctx).With(logger.Component("jwks"), logger.Op("refresh"), logger.String("trigger", trigger))

	// Un request cancelado no debe abortar un fetch compartido; el fetcher ya tiene timeout.
	ctx = context.WithoutCancel(ctx)

	start := c.now()
	c.lastAttempt.Store(start.UnixNano())

	set, err := c.fetcher.Fetch(ctx)
	if err == nil && set == nil {
		err = errNoUsableKeys
	}
	if err != nil {
		prev := c.current.Load().Len()
		log.Warn("jwks refresh failed, keeping previous key set",
			logger.Err(err),
			logger.Count(prev),
		)
		if c.observer != nil {
			c.observer.ObserveKeyRefresh(false, prev, start)
		}
		return err
	}

	c.current.Store(set)
	log.Info("jwks refreshed",
		logger.Count(set.Len()),
		logger.Any("kids", set.KeyIDs()),
		logger.Duration(c.now().Sub(start)),
	)
	if c.observer != nil {
		c.observer.ObserveKeyRefresh(true, set.Len(), start)
	}
	return nil
}

func (c *KeyCache) sinceLastAttempt() time.Duration {
	last := c.lastAttempt.Load()
	if last == 0 {
		return time.Duration(1<<63 - 1)
	}
	return c.now().Sub(time.Unix(0, last))
}

// Warmup intenta poblar el cache al arranque con reintentos acotados y backoff
// exponencial. Nunca es fatal: si falla, el proceso sigue con el cache vacío y
// todos los tokens se rechazan con ErrUnknownKey hasta el próximo refresh exitoso.
func (c *KeyCache) Warmup(ctx context.Context) error {
	log := logger.From(ctx).With(logger.Component("jwks"), logger.Op("warmup"))

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.StartupBackoff
	b.MaxInterval = c.cfg.StartupMaxBackoff
	b.MaxElapsedTime = 0

	attempt := 0
	err := backoff.RetryNotify(
		func() error {
			attempt++
			return c.Refresh(ctx)
		},
		backoff.WithContext(backoff.WithMaxRetries(b, c.cfg.StartupRetries), ctx),
		func(err error, next time.Duration) {
			log.Warn("jwks warmup attempt failed", logger.Attempt(attempt), logger.Err(err), logger.Duration(next))
		},
	)
	if err != nil {
		log.Error("jwks warmup gave up; continuing with empty key set (fail-closed)",
			logger.Attempt(attempt), logger.Err(err))
		return fmt.Errorf("jwks warmup after %d attempts: %w", attempt, err)
	}
	return nil
}

// Run refresca el cache periódicamente hasta que ctx se cancele.
// Mientras el cache esté vacío reintenta cada MinRefreshInterval.
func (c *KeyCache) Run(ctx context.Context) {
	if c.cfg.RefreshInterval <= 0 {
		return
	}
	timer := time.NewTimer(c.nextDelay())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			_ = c.coalescedRefresh(ctx, "periodic")
			timer.Reset(c.nextDelay())
		}
	}
}

func (c *KeyCache) nextDelay() time.Duration {
	if c.current.Load().Len() == 0 && c.cfg.MinRefreshInterval < c.cfg.RefreshInterval {
		return c.cfg.MinRefreshInterval
	}
	return c.cfg.RefreshInterval
}
