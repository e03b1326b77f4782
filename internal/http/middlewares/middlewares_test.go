package middlewares

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jwtx "github.com/dropDatabas3/hellotasks/internal/jwt"
	"github.com/dropDatabas3/hellotasks/internal/rate"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestChain_Order(t *testing.T) {
	var order []string
	mk := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(mk("a"), nil, mk("b"), mk("c"))(okHandler)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestWithRequestID(t *testing.T) {
	var seen string
	h := WithRequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	t.Run("propagates", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "req-123")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, "req-123", seen)
		assert.Equal(t, "req-123", rr.Header().Get("X-Request-ID"))
	})

	t.Run("replaces invalid", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "bad id\twith spaces")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.NotEqual(t, "bad id\twith spaces", seen)
		assert.Len(t, seen, 36)
		assert.Equal(t, seen, rr.Header().Get("X-Request-ID"))
	})
}

func TestWithRecover(t *testing.T) {
	h := WithRecover()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "INTERNAL_SERVER_ERROR")
	assert.NotContains(t, rr.Body.String(), "boom")
}

func TestWithCORS(t *testing.T) {
	h := WithCORS([]string{"https://app.example.com/"})(okHandler)

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/tasks", nil)
		req.Header.Set("Origin", "https://app.example.com")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, "https://app.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, rr.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("foreign origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/tasks", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/v1/tasks", nil)
		req.Header.Set("Origin", "https://app.example.com")
		req.Header.Set("Access-Control-Request-Method", "POST")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), "Authorization")
	})

	t.Run("wildcard", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://any.example.com")
		rr := httptest.NewRecorder()
		WithCORS([]string{"*"})(okHandler).ServeHTTP(rr, req)
		assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestWithSecurityHeaders(t *testing.T) {
	h := WithSecurityHeaders()(okHandler)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Empty(t, rr.Header().Get("Strict-Transport-Security"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.True(t, strings.HasPrefix(rr.Header().Get("Strict-Transport-Security"), "max-age="))
}

type stubLimiter struct {
	res rate.Result
	err error
	key string
}

func (s *stubLimiter) Allow(_ context.Context, key string) (rate.Result, error) {
	s.key = key
	return s.res, s.err
}

func (s *stubLimiter) AllowWithLimits(_ context.Context, key string, limit int, window time.Duration) (rate.Result, error) {
	s.key = key
	return s.res, s.err
}

type scopes []string

func (s *scopes) ObserveRateLimited(scope string) { *s = append(*s, scope) }

func TestWithRateLimit(t *testing.T) {
	t.Run("allowed sets headers", func(t *testing.T) {
		l := &stubLimiter{res: rate.Result{Allowed: true, Limit: 10, Remaining: 9, WindowTTL: time.Minute}}
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/tasks", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		WithRateLimit(RateLimitConfig{Limiter: l})(okHandler).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "10", rr.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "9", rr.Header().Get("X-RateLimit-Remaining"))
		assert.Equal(t, "ip:10.0.0.1", l.key)
	})

	t.Run("blocked", func(t *testing.T) {
		l := &stubLimiter{res: rate.Result{Allowed: false, Limit: 10, RetryAfter: 1500 * time.Millisecond}}
		var obs scopes
		rr := httptest.NewRecorder()
		WithRateLimit(RateLimitConfig{Limiter: l, Observer: &obs})(okHandler).
			ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/tasks", nil))

		assert.Equal(t, http.StatusTooManyRequests, rr.Code)
		assert.Equal(t, "2", rr.Header().Get("Retry-After"))
		assert.Equal(t, []string{"global"}, []string(obs))
	})

	t.Run("whitelist", func(t *testing.T) {
		l := &stubLimiter{res: rate.Result{Allowed: false}}
		rr := httptest.NewRecorder()
		WithRateLimit(RateLimitConfig{Limiter: l, Whitelist: []string{"/healthz"}})(okHandler).
			ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Empty(t, l.key)
	})

	t.Run("fail open", func(t *testing.T) {
		l := &stubLimiter{err: errors.New("redis down")}
		rr := httptest.NewRecorder()
		WithRateLimit(RateLimitConfig{Limiter: l})(okHandler).
			ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/tasks", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

func TestWithRouteRateLimit_UsesSubject(t *testing.T) {
	l := &stubLimiter{res: rate.Result{Allowed: true, Limit: 5, Remaining: 4}}
	mw := WithRouteRateLimit(RouteRateLimitConfig{Limiter: l, Limit: 5, Window: time.Minute, Scope: "upload_url"})

	req := httptest.NewRequest(http.MethodPost, "/v1/tasks/attachments/upload-url", nil)
	req = req.WithContext(WithIdentity(req.Context(), &jwtx.Identity{Subject: "user-9"}))
	rr := httptest.NewRecorder()
	mw(okHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "sub:user-9|/v1/tasks/attachments/upload-url", l.key)
}

func TestIPRateKey_TrustProxy(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.2")

	assert.Equal(t, "ip:10.0.0.1", IPRateKey(false)(req))
	assert.Equal(t, "ip:203.0.113.7", IPRateKey(true)(req))
}
