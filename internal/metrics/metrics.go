// Package metrics agrupa las métricas Prometheus del servicio: HTTP, gate de
// autenticación, cache de claves y pool de Postgres.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics es dueño de los collectors y del registry donde viven.
// Un nil *Metrics es válido: todos los métodos son no-op.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpInflight        *prometheus.GaugeVec

	authRejectionsTotal *prometheus.CounterVec
	rateLimitedTotal    *prometheus.CounterVec

	jwksRefreshTotal *prometheus.CounterVec
	jwksKeys         prometheus.Gauge
	jwksLastSuccess  prometheus.Gauge
}

// New crea las métricas sobre un registry propio con los collectors de Go y proceso.
func New() (*Metrics, error) {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Número total de requests procesadas",
		}, []string{"method", "path", "status"}),

		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latencia de los requests HTTP",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),

		httpInflight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Requests en vuelo por método y ruta",
		}, []string{"method", "path"}),

		authRejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_rejections_total",
			Help: "Requests rechazadas por el gate de autenticación, por motivo",
		}, []string{"reason"}), // missing_token|malformed_token|unknown_key|invalid_token|internal

		rateLimitedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rate_limited_total",
			Help: "Requests rechazadas por rate limit",
		}, []string{"scope"}),

		jwksRefreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jwks_refresh_total",
			Help: "Intentos de refresh del key set por resultado",
		}, []string{"result"}), // success|failure

		jwksKeys: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "jwks_keys",
			Help: "Claves en el snapshot vigente",
		}),

		jwksLastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "jwks_last_success_timestamp_seconds",
			Help: "Unix timestamp del último refresh exitoso",
		}),
	}

	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.httpInflight,
		m.authRejectionsTotal,
		m.rateLimitedTotal,
		m.jwksRefreshTotal,
		m.jwksKeys,
		m.jwksLastSuccess,
	} {
		if err := registerCollector(reg, c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Handler expone /metrics para este registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry devuelve el registry subyacente (tests).
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RegisterPgPool agrega gauges del pool de Postgres. pool puede devolver nil.
func (m *Metrics) RegisterPgPool(pool func() *pgxpool.Pool) error {
	if m == nil || pool == nil {
		return nil
	}
	return registerCollector(m.registry, newDBPoolCollector(pool))
}

// InflightInc / InflightDec siguen los requests en vuelo.
func (m *Metrics) InflightInc(method, path string) {
	if m == nil {
		return
	}
	m.httpInflight.WithLabelValues(strings.ToUpper(method), path).Inc()
}

func (m *Metrics) InflightDec(method, path string) {
	if m == nil {
		return
	}
	m.httpInflight.WithLabelValues(strings.ToUpper(method), path).Dec()
}

// ObserveHTTP registra un request terminado.
func (m *Metrics) ObserveHTTP(method, path string, status int, d time.Duration) {
	if m == nil {
		return
	}
	if status == 0 {
		status = http.StatusOK
	}
	method = strings.ToUpper(method)
	m.httpRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
	m.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}

// ObserveAuthRejection cuenta un rechazo del gate.
func (m *Metrics) ObserveAuthRejection(reason string) {
	if m == nil {
		return
	}
	m.authRejectionsTotal.WithLabelValues(reason).Inc()
}

// ObserveRateLimited cuenta un 429.
func (m *Metrics) ObserveRateLimited(scope string) {
	if m == nil {
		return
	}
	m.rateLimitedTotal.WithLabelValues(scope).Inc()
}

// ObserveKeyRefresh implementa jwt.RefreshObserver.
func (m *Metrics) ObserveKeyRefresh(ok bool, keys int, at time.Time) {
	if m == nil {
		return
	}
	m.jwksKeys.Set(float64(keys))
	if !ok {
		m.jwksRefreshTotal.WithLabelValues("failure").Inc()
		return
	}
	m.jwksRefreshTotal.WithLabelValues("success").Inc()
	m.jwksLastSuccess.Set(float64(at.Unix()))
}

// registerCollector registra el collector en el registry indicado, ignorando duplicados.
func registerCollector(reg prometheus.Registerer, collector prometheus.Collector) error {
	if err := reg.Register(collector); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}
