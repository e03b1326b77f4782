package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ---- Helpers env ----

// envReader acumula errores de parseo: un valor inválido en env es un error de
// arranque, no se ignora en silencio.
type envReader struct {
	errs []error
}

func (e *envReader) str(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func (e *envReader) int(key string) (int, bool) {
	s, ok := e.str(key)
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not an integer", key, s))
		return 0, false
	}
	return i, true
}

func (e *envReader) bool(key string) (bool, bool) {
	s, ok := e.str(key)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a boolean", key, s))
		return false, false
	}
	return b, true
}

func (e *envReader) dur(key string) (time.Duration, bool) {
	s, ok := e.str(key)
	if !ok {
		return 0, false
	}
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a duration", key, s))
		return 0, false
	}
	return d, true
}

func (e *envReader) csv(key string) ([]string, bool) {
	s, ok := e.str(key)
	if !ok {
		return nil, false
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, true
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() error {
	env := &envReader{}

	// APP
	if v, ok := env.str("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := env.str("LOG_LEVEL"); ok {
		c.Log.Level = strings.ToLower(v)
	}

	// SERVER: PORT es el atajo de PaaS; SERVER_ADDR gana si están ambos.
	if v, ok := env.int("PORT"); ok {
		c.Server.Addr = ":" + strconv.Itoa(v)
	}
	if v, ok := env.str("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := env.csv("SERVER_CORS_ALLOWED_ORIGINS"); ok {
		c.Server.CORSAllowedOrigins = v
	}
	if v, ok := env.bool("SERVER_TRUST_PROXY"); ok {
		c.Server.TrustProxy = v
	}
	if v, ok := env.dur("SERVER_SHUTDOWN_TIMEOUT"); ok {
		c.Server.ShutdownTimeout = v
	}

	// AUTH
	if v, ok := env.str("AUTH_JWKS_URL"); ok {
		c.Auth.JWKSURL = v
	}
	if v, ok := env.str("AUTH_ISSUER"); ok {
		c.Auth.Issuer = v
	}
	if v, ok := env.csv("AUTH_AUDIENCES"); ok {
		c.Auth.Audiences = v
	}
	if v, ok := env.str("AUTH_TOKEN_USE"); ok {
		c.Auth.TokenUse = v
	}
	if v, ok := env.csv("AUTH_ALLOWED_ALGS"); ok {
		c.Auth.AllowedAlgs = v
	}
	if v, ok := env.dur("AUTH_LEEWAY"); ok {
		c.Auth.Leeway = v
	}
	if v, ok := env.dur("AUTH_REFRESH_INTERVAL"); ok {
		c.Auth.RefreshInterval = v
	}
	if v, ok := env.dur("AUTH_MIN_REFRESH_INTERVAL"); ok {
		c.Auth.MinRefreshInterval = v
	}
	if v, ok := env.dur("AUTH_FETCH_TIMEOUT"); ok {
		c.Auth.FetchTimeout = v
	}
	if v, ok := env.bool("AUTH_REFRESH_ON_MISS"); ok {
		c.Auth.DisableRefreshOnMiss = !v
	}
	if v, ok := env.int("AUTH_STARTUP_RETRIES"); ok {
		c.Auth.StartupRetries = v
	}
	if v, ok := env.str("AUTH_COGNITO_REGION"); ok {
		c.Auth.Cognito.Region = v
	}
	if v, ok := env.str("AUTH_COGNITO_USER_POOL_ID"); ok {
		c.Auth.Cognito.UserPoolID = v
	}

	// STORAGE
	if v, ok := env.str("STORAGE_DRIVER"); ok {
		c.Storage.Driver = strings.ToLower(v)
	}
	if v, ok := env.str("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := env.bool("STORAGE_AUTO_MIGRATE"); ok {
		c.Storage.AutoMigrate = v
	}
	if v, ok := env.int("POSTGRES_MAX_CONNS"); ok {
		c.Storage.Postgres.MaxConns = int32(v)
	}
	if v, ok := env.int("POSTGRES_MIN_CONNS"); ok {
		c.Storage.Postgres.MinConns = int32(v)
	}
	if v, ok := env.dur("POSTGRES_CONN_MAX_LIFETIME"); ok {
		c.Storage.Postgres.ConnMaxLifetime = v
	}

	// ATTACHMENTS
	if v, ok := env.bool("ATTACHMENTS_ENABLED"); ok {
		c.Attachments.Enabled = v
	}
	if v, ok := env.str("ATTACHMENTS_BUCKET"); ok {
		c.Attachments.Bucket = v
	}
	if v, ok := env.str("ATTACHMENTS_REGION"); ok {
		c.Attachments.Region = v
	}
	if v, ok := env.str("ATTACHMENTS_ENDPOINT"); ok {
		c.Attachments.Endpoint = v
	}
	if v, ok := env.bool("ATTACHMENTS_PATH_STYLE"); ok {
		c.Attachments.UsePathStyle = v
	}
	if v, ok := env.str("ATTACHMENTS_ACCESS_KEY_ID"); ok {
		c.Attachments.AccessKeyID = v
	}
	if v, ok := env.str("ATTACHMENTS_SECRET_ACCESS_KEY"); ok {
		c.Attachments.SecretAccessKey = v
	}
	if v, ok := env.str("ATTACHMENTS_PUBLIC_BASE_URL"); ok {
		c.Attachments.PublicBaseURL = v
	}
	if v, ok := env.dur("ATTACHMENTS_UPLOAD_URL_TTL"); ok {
		c.Attachments.UploadURLTTL = v
	}
	if v, ok := env.csv("ATTACHMENTS_ALLOWED_CONTENT_TYPES"); ok {
		c.Attachments.AllowedContentTypes = v
	}

	// RATE
	if v, ok := env.bool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := env.dur("RATE_WINDOW"); ok {
		c.Rate.Window = v
	}
	if v, ok := env.int("RATE_MAX_REQUESTS"); ok {
		c.Rate.MaxRequests = v
	}
	if v, ok := env.int("RATE_UPLOAD_LIMIT"); ok {
		c.Rate.Upload.Limit = v
	}
	if v, ok := env.dur("RATE_UPLOAD_WINDOW"); ok {
		c.Rate.Upload.Window = v
	}

	// REDIS
	if v, ok := env.str("REDIS_ADDR"); ok {
		c.Redis.Addr = v
	}
	if v, ok := env.str("REDIS_PASSWORD"); ok {
		c.Redis.Password = v
	}
	if v, ok := env.int("REDIS_DB"); ok {
		c.Redis.DB = v
	}
	if v, ok := env.str("REDIS_PREFIX"); ok {
		c.Redis.Prefix = v
	}

	if len(env.errs) > 0 {
		return fmt.Errorf("config: invalid environment: %w", errors.Join(env.errs...))
	}
	return nil
}
