package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env string `yaml:"app_env" validate:"omitempty,oneof=dev staging prod"`
	} `yaml:"app"`

	Server struct {
		Addr               string        `yaml:"addr" validate:"required"`
		CORSAllowedOrigins []string      `yaml:"cors_allowed_origins"`
		ReadTimeout        time.Duration `yaml:"read_timeout"`
		WriteTimeout       time.Duration `yaml:"write_timeout"`
		IdleTimeout        time.Duration `yaml:"idle_timeout"`
		ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
		// TrustProxy: usar X-Forwarded-For para el rate limit por IP.
		// Solo activar detrás de un proxy que sobrescriba el header.
		TrustProxy bool `yaml:"trust_proxy"`
	} `yaml:"server"`

	Log struct {
		Level       string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
		ServiceName string `yaml:"service_name"`
	} `yaml:"log"`

	// Auth: verificación de bearer tokens contra el JWKS del proveedor de identidad.
	Auth struct {
		JWKSURL     string   `yaml:"jwks_url" validate:"required,http_url"`
		Issuer      string   `yaml:"issuer"`
		Audiences   []string `yaml:"audiences"` // aud o client_id deben estar acá (vacío = no se chequea)
		TokenUse    string   `yaml:"token_use" validate:"omitempty,oneof=access id"`
		AllowedAlgs []string `yaml:"allowed_algs" validate:"dive,oneof=RS256 RS384 RS512"`

		Leeway             time.Duration `yaml:"leeway" validate:"min=0"`
		RefreshInterval    time.Duration `yaml:"refresh_interval" validate:"min=0"`
		MinRefreshInterval time.Duration `yaml:"min_refresh_interval" validate:"min=0"`
		FetchTimeout       time.Duration `yaml:"fetch_timeout" validate:"min=0"`
		// DisableRefreshOnMiss apaga el refresh ante un kid desconocido.
		DisableRefreshOnMiss bool `yaml:"disable_refresh_on_miss"`
		StartupRetries       int  `yaml:"startup_retries" validate:"min=0,max=20"`

		// Atajo para Cognito: deriva Issuer y JWKSURL si están vacíos.
		Cognito struct {
			Region     string `yaml:"region"`
			UserPoolID string `yaml:"user_pool_id"`
		} `yaml:"cognito"`
	} `yaml:"auth"`

	Storage struct {
		Driver      string `yaml:"driver" validate:"oneof=postgres memory"`
		DSN         string `yaml:"dsn"`
		AutoMigrate bool   `yaml:"auto_migrate"`
		Postgres    struct {
			MaxConns        int32         `yaml:"max_conns" validate:"min=0"`
			MinConns        int32         `yaml:"min_conns" validate:"min=0"`
			ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
			ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	// Attachments: URLs pre-firmadas de subida a S3 (o compatible).
	Attachments struct {
		Enabled             bool          `yaml:"enabled"`
		Bucket              string        `yaml:"bucket"`
		Region              string        `yaml:"region"`
		Endpoint            string        `yaml:"endpoint" validate:"omitempty,http_url"`
		UsePathStyle        bool          `yaml:"use_path_style"`
		AccessKeyID         string        `yaml:"access_key_id"`
		SecretAccessKey     string        `yaml:"secret_access_key"`
		PublicBaseURL       string        `yaml:"public_base_url" validate:"omitempty,http_url"`
		UploadURLTTL        time.Duration `yaml:"upload_url_ttl" validate:"min=0,max=15m"`
		AllowedContentTypes []string      `yaml:"allowed_content_types"`
	} `yaml:"attachments"`

	Rate struct {
		Enabled     bool          `yaml:"enabled"`
		Window      time.Duration `yaml:"window"`
		MaxRequests int           `yaml:"max_requests" validate:"min=0"`

		// Límite propio para POST /v1/tasks/attachments/upload-url, por subject.
		Upload struct {
			Limit  int           `yaml:"limit" validate:"min=0"`
			Window time.Duration `yaml:"window"`
		} `yaml:"upload"`
	} `yaml:"rate"`

	// Redis: si Addr está vacío el rate limit usa memoria (una sola instancia).
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db" validate:"min=0"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
}

// Load lee el YAML en path (opcional: "" = solo defaults + env), aplica
// defaults, overrides por env y valida.
func Load(path string) (*Config, error) {
	var c Config
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	c.applyDefaults()

	// Overrides por env
	if err := c.applyEnvOverrides(); err != nil {
		return nil, err
	}
	c.applyDerived()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	// sane defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.ServiceName == "" {
		c.Log.ServiceName = "hellotasks"
	}

	if c.Auth.Leeway == 0 {
		c.Auth.Leeway = 30 * time.Second
	}
	if c.Auth.RefreshInterval == 0 {
		c.Auth.RefreshInterval = time.Hour
	}
	if c.Auth.MinRefreshInterval == 0 {
		c.Auth.MinRefreshInterval = 30 * time.Second
	}
	if c.Auth.FetchTimeout == 0 {
		c.Auth.FetchTimeout = 5 * time.Second
	}
	if c.Auth.StartupRetries == 0 {
		c.Auth.StartupRetries = 4
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}

	if c.Attachments.UploadURLTTL == 0 {
		c.Attachments.UploadURLTTL = 5 * time.Minute
	}

	if c.Rate.Window == 0 {
		c.Rate.Window = time.Minute
	}
	if c.Rate.MaxRequests == 0 {
		c.Rate.MaxRequests = 120
	}
	if c.Rate.Upload.Limit == 0 {
		c.Rate.Upload.Limit = 20
	}
	if c.Rate.Upload.Window == 0 {
		c.Rate.Upload.Window = time.Minute
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "hellotasks:"
	}
}

// applyDerived completa valores que dependen de otros (Cognito, región de AWS).
func (c *Config) applyDerived() {
	region := strings.TrimSpace(c.Auth.Cognito.Region)
	pool := strings.TrimSpace(c.Auth.Cognito.UserPoolID)
	if region != "" && pool != "" {
		iss := fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", region, pool)
		if c.Auth.Issuer == "" {
			c.Auth.Issuer = iss
		}
		if c.Auth.JWKSURL == "" {
			c.Auth.JWKSURL = iss + "/.well-known/jwks.json"
		}
	}
	if c.Attachments.Region == "" {
		c.Attachments.Region = os.Getenv("AWS_REGION")
	}
}

// Validate valida tags `validate` y reglas entre campos.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	var errs []error
	if c.Storage.Driver == "postgres" && strings.TrimSpace(c.Storage.DSN) == "" {
		errs = append(errs, errors.New("storage.dsn is required when storage.driver=postgres"))
	}
	if c.Attachments.Enabled {
		if c.Attachments.Bucket == "" {
			errs = append(errs, errors.New("attachments.bucket is required when attachments are enabled"))
		}
		if c.Attachments.Region == "" {
			errs = append(errs, errors.New("attachments.region (or AWS_REGION) is required when attachments are enabled"))
		}
		if (c.Attachments.AccessKeyID == "") != (c.Attachments.SecretAccessKey == "") {
			errs = append(errs, errors.New("attachments.access_key_id and secret_access_key must be set together"))
		}
	}
	if c.Storage.Postgres.MaxConns > 0 && c.Storage.Postgres.MinConns > c.Storage.Postgres.MaxConns {
		errs = append(errs, errors.New("storage.postgres.min_conns must not exceed max_conns"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
