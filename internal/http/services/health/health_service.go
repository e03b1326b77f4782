package health

import (
	"context"
	"os"
	"time"

	dto "github.com/dropDatabas3/hellotasks/internal/http/dto/health"
	jwtx "github.com/dropDatabas3/hellotasks/internal/jwt"
	"github.com/dropDatabas3/hellotasks/internal/observability/logger"
)

// HealthService define las operaciones de health check.
type HealthService interface {
	Check(ctx context.Context) dto.HealthResponse
}

// KeySource expone el snapshot actual de claves (implementado por jwt.KeyCache).
type KeySource interface {
	Snapshot() *jwtx.KeySet
}

// Deps contiene las dependencias inyectables para el health service.
type Deps struct {
	Keys       KeySource
	DBCheck    func(ctx context.Context) error // nil = store en memoria
	RedisCheck func(ctx context.Context) error // nil = rate limit en memoria
	Timeout    time.Duration                   // por check, default 2s
}

type healthService struct {
	deps Deps
}

// NewHealthService crea un nuevo service de health check.
func NewHealthService(deps Deps) HealthService {
	if deps.Timeout <= 0 {
		deps.Timeout = 2 * time.Second
	}
	return &healthService{deps: deps}
}

const componentHealth = "health"

// Check arma el estado de readiness.
//   - keys (crítico): sin claves todo token es rechazado.
//   - db, redis (no críticos): reportan "degraded".
func (s *healthService) Check(ctx context.Context) dto.HealthResponse {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component(componentHealth),
		logger.Op("Check"),
	)

	response := dto.HealthResponse{
		Components: make(map[string]dto.HealthStatus),
		Timestamp:  time.Now().UTC(),
		Version:    os.Getenv("SERVICE_VERSION"),
		Commit:     os.Getenv("SERVICE_COMMIT"),
	}

	hasErrors := false
	hasCriticalErrors := false

	// 1) Signing keys (crítico)
	var ks *jwtx.KeySet
	if s.deps.Keys != nil {
		ks = s.deps.Keys.Snapshot()
	}
	n := ks.Len()
	if n > 0 {
		response.Components["keys"] = dto.HealthStatus{Status: "ok", Count: &n}
		at := ks.FetchedAt().UTC()
		response.KeysRefreshed = &at
	} else {
		response.Components["keys"] = dto.HealthStatus{
			Status:  "error",
			Message: "no signing keys loaded",
			Count:   &n,
		}
		hasCriticalErrors = true
		log.Warn("readiness: key cache is empty")
	}

	// 2) DB (no crítico)
	st, failed := s.probe(ctx, "db", s.deps.DBCheck, "memory store")
	response.Components["db"] = st
	hasErrors = hasErrors || failed

	// 3) Redis (no crítico)
	st, failed = s.probe(ctx, "redis", s.deps.RedisCheck, "memory rate limiter")
	response.Components["redis"] = st
	hasErrors = hasErrors || failed

	// Status final
	switch {
	case hasCriticalErrors:
		response.Status = "unavailable"
	case hasErrors:
		response.Status = "degraded"
	default:
		response.Status = "ready"
	}
	return response
}

func (s *healthService) probe(ctx context.Context, name string, check func(context.Context) error, disabledMsg string) (dto.HealthStatus, bool) {
	if check == nil {
		return dto.HealthStatus{Status: "disabled", Message: disabledMsg}, false
	}

	cctx, cancel := context.WithTimeout(ctx, s.deps.Timeout)
	defer cancel()

	if err := check(cctx); err != nil {
		logger.From(ctx).Error(name+" unavailable", logger.Component(componentHealth), logger.Err(err))
		return dto.HealthStatus{Status: "error", Message: "unavailable"}, true
	}
	return dto.HealthStatus{Status: "ok"}, false
}
