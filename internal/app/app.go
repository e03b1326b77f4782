// Package app es el composition root del servicio: arma store, key cache,
// verifier, rate limiting, presigner y router a partir de la config, y maneja
// el ciclo de vida (warmup, refresh en background, shutdown).
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	rdb "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/hellotasks/internal/config"
	"github.com/dropDatabas3/hellotasks/internal/domain/repository"
	"github.com/dropDatabas3/hellotasks/internal/http/controllers"
	mw "github.com/dropDatabas3/hellotasks/internal/http/middlewares"
	"github.com/dropDatabas3/hellotasks/internal/http/router"
	"github.com/dropDatabas3/hellotasks/internal/http/services"
	"github.com/dropDatabas3/hellotasks/internal/http/services/health"
	"github.com/dropDatabas3/hellotasks/internal/http/services/tasks"
	jwtx "github.com/dropDatabas3/hellotasks/internal/jwt"
	"github.com/dropDatabas3/hellotasks/internal/metrics"
	"github.com/dropDatabas3/hellotasks/internal/observability/logger"
	"github.com/dropDatabas3/hellotasks/internal/rate"
	"github.com/dropDatabas3/hellotasks/internal/storage"
	"github.com/dropDatabas3/hellotasks/internal/store/memory"
	"github.com/dropDatabas3/hellotasks/internal/store/pg"
	migrations "github.com/dropDatabas3/hellotasks/migrations/postgres"
)

// App es el servicio armado.
type App struct {
	cfg *config.Config

	Handler http.Handler
	Keys    *jwtx.KeyCache
	Metrics *metrics.Metrics

	pg      *pg.Store
	redis   rdb.UniversalClient
	closers []func() error
}

// Option permite reemplazar colaboradores (tests, embedding).
type Option func(*options)

type options struct {
	fetcher   jwtx.Fetcher
	repo      repository.TaskRepository
	presigner storage.Presigner
	redis     rdb.UniversalClient
	metrics   *metrics.Metrics
}

// WithFetcher reemplaza el fetch HTTP del JWKS.
func WithFetcher(f jwtx.Fetcher) Option { return func(o *options) { o.fetcher = f } }

// WithTaskRepository reemplaza el store configurado.
func WithTaskRepository(r repository.TaskRepository) Option {
	return func(o *options) { o.repo = r }
}

// WithPresigner reemplaza el presigner S3 (habilita adjuntos).
func WithPresigner(p storage.Presigner) Option { return func(o *options) { o.presigner = p } }

// WithRedis usa un cliente Redis ya creado para el rate limiting.
func WithRedis(c rdb.UniversalClient) Option { return func(o *options) { o.redis = c } }

// WithMetrics usa un registry de métricas ya creado.
func WithMetrics(m *metrics.Metrics) Option { return func(o *options) { o.metrics = m } }

// New arma el servicio. No hace I/O contra el identity provider: eso es Warmup.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	log := logger.From(ctx).With(logger.Component("app"), logger.Op("New"))

	a := &App{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	// 1. Métricas
	a.Metrics = o.metrics
	if a.Metrics == nil {
		m, err := metrics.New()
		if err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
		a.Metrics = m
	}

	// 2. Store de tareas
	repo, dbCheck, err := a.buildStore(ctx, o.repo)
	if err != nil {
		return nil, err
	}

	// 3. Key cache + verifier
	fetcher := o.fetcher
	if fetcher == nil {
		fetcher = jwtx.NewHTTPFetcher(cfg.Auth.JWKSURL, &http.Client{}, cfg.Auth.FetchTimeout)
	}
	a.Keys = jwtx.NewKeyCache(fetcher, jwtx.KeyCacheConfig{
		RefreshInterval:    cfg.Auth.RefreshInterval,
		MinRefreshInterval: cfg.Auth.MinRefreshInterval,
		RefreshOnMiss:      !cfg.Auth.DisableRefreshOnMiss,
		StartupRetries:     uint64(cfg.Auth.StartupRetries),
	}, a.Metrics)
	verifier := jwtx.NewVerifier(a.Keys, jwtx.VerifierConfig{
		Issuer:      cfg.Auth.Issuer,
		Audiences:   cfg.Auth.Audiences,
		TokenUse:    cfg.Auth.TokenUse,
		AllowedAlgs: cfg.Auth.AllowedAlgs,
		Leeway:      cfg.Auth.Leeway,
	})

	// 4. Rate limiting
	limiter, routeLimiter, redisCheck := a.buildLimiters(o.redis)

	// 5. Adjuntos
	presigner := o.presigner
	if presigner == nil && cfg.Attachments.Enabled {
		p, err := storage.NewS3Presigner(ctx, storage.S3Config{
			Bucket:          cfg.Attachments.Bucket,
			Region:          cfg.Attachments.Region,
			Endpoint:        cfg.Attachments.Endpoint,
			UsePathStyle:    cfg.Attachments.UsePathStyle,
			AccessKeyID:     cfg.Attachments.AccessKeyID,
			SecretAccessKey: cfg.Attachments.SecretAccessKey,
			PublicBaseURL:   cfg.Attachments.PublicBaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("attachments: %w", err)
		}
		presigner = p
	}

	// 6. Services → controllers → router
	svcs := services.New(services.Deps{
		Tasks: tasks.Deps{
			Repo:                repo,
			Presigner:           presigner,
			UploadURLTTL:        cfg.Attachments.UploadURLTTL,
			AllowedContentTypes: cfg.Attachments.AllowedContentTypes,
		},
		HealthDeps: health.Deps{
			Keys:       a.Keys,
			DBCheck:    dbCheck,
			RedisCheck: redisCheck,
		},
	})
	ctrls := controllers.New(svcs)

	a.Handler = router.New(router.Deps{
		Controllers:  ctrls,
		Verifier:     verifier,
		Metrics:      a.Metrics,
		Limiter:      limiter,
		RateKey:      mw.IPRateKey(cfg.Server.TrustProxy),
		RouteLimiter: routeLimiter,
		UploadLimit:  cfg.Rate.Upload.Limit,
		UploadWindow: cfg.Rate.Upload.Window,
		CORSOrigins:  cfg.Server.CORSAllowedOrigins,
	})

	log.Info("app wired",
		logger.String("storage", cfg.Storage.Driver),
		logger.Bool("attachments", presigner != nil),
		logger.Bool("rate_limit", limiter != nil),
		logger.Bool("redis", a.redis != nil),
	)
	ok = true
	return a, nil
}

func (a *App) buildStore(ctx context.Context, override repository.TaskRepository) (repository.TaskRepository, func(context.Context) error, error) {
	if override != nil {
		return override, nil, nil
	}
	if a.cfg.Storage.Driver != "postgres" {
		return memory.NewTaskStore(), nil, nil
	}

	st, err := pg.New(ctx, a.cfg.Storage.DSN, pg.Config{
		MaxConns:        a.cfg.Storage.Postgres.MaxConns,
		MinConns:        a.cfg.Storage.Postgres.MinConns,
		ConnMaxLifetime: a.cfg.Storage.Postgres.ConnMaxLifetime,
		ConnMaxIdleTime: a.cfg.Storage.Postgres.ConnMaxIdleTime,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: %w", err)
	}
	a.pg = st
	a.closers = append(a.closers, func() error { st.Close(); return nil })

	if err := a.Metrics.RegisterPgPool(st.Pool); err != nil {
		return nil, nil, fmt.Errorf("metrics: %w", err)
	}
	if a.cfg.Storage.AutoMigrate {
		n, err := st.Migrate(ctx, migrations.FS)
		if err != nil {
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		logger.From(ctx).Info("migrations applied", logger.Component("app"), logger.Count(n))
	}
	return st.Tasks(), st.Ping, nil
}

// buildLimiters elige Redis (compartido entre réplicas) o memoria.
// Devuelve interfaces nil cuando el rate limiting está apagado.
func (a *App) buildLimiters(client rdb.UniversalClient) (rate.Limiter, rate.MultiLimiter, func(context.Context) error) {
	cfg := a.cfg
	if client == nil && cfg.Redis.Addr != "" {
		c := rdb.NewClient(&rdb.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, c.Close)
		client = c
	}
	a.redis = client

	var redisCheck func(context.Context) error
	if client != nil {
		redisCheck = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}

	if !cfg.Rate.Enabled {
		return nil, nil, redisCheck
	}
	if client != nil {
		return rate.NewRedisLimiter(client, cfg.Redis.Prefix+"rl:global:", cfg.Rate.MaxRequests, cfg.Rate.Window),
			rate.NewMultiRedisLimiter(client, cfg.Redis.Prefix+"rl:route:"),
			redisCheck
	}
	return rate.NewMemoryLimiter(cfg.Rate.MaxRequests, cfg.Rate.Window),
		rate.NewMemoryLimiter(cfg.Rate.Upload.Limit, cfg.Rate.Upload.Window),
		nil
}

// Warmup carga las claves al arranque (best-effort, nunca fatal).
func (a *App) Warmup(ctx context.Context) {
	if err := a.Keys.Warmup(ctx); err != nil {
		logger.From(ctx).Warn("starting without signing keys; protected routes will reject every token",
			logger.Component("app"), logger.Err(err))
	}
}

// Run sirve HTTP en cfg.Server.Addr hasta que ctx se cancele y luego drena
// conexiones con ShutdownTimeout. El refresh de claves corre en paralelo.
func (a *App) Run(ctx context.Context) error {
	log := logger.From(ctx).With(logger.Component("app"))

	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           a.Handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       a.cfg.Server.ReadTimeout,
		WriteTimeout:      a.cfg.Server.WriteTimeout,
		IdleTimeout:       a.cfg.Server.IdleTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Keys.Run(gctx)
		return nil
	})

	g.Go(func() error {
		log.Info("http server listening", logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down", logger.Duration(a.cfg.Server.ShutdownTimeout))
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Close libera pool de Postgres y cliente Redis. Idempotente.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
