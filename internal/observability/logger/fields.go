package logger

import (
	"time"

	"go.uber.org/zap"
)

// Field es un campo estructurado de log.
type Field = zap.Field

// =================================================================================
// CAMPOS ESTÁNDAR - HTTP
// =================================================================================

func RequestID(v string) zap.Field { return zap.String("request_id", v) }

func Method(v string) zap.Field { return zap.String("method", v) }

func Path(v string) zap.Field { return zap.String("path", v) }

func Status(v int) zap.Field { return zap.Int("status", v) }

func DurationMs(v int64) zap.Field { return zap.Int64("duration_ms", v) }

func Bytes(v int) zap.Field { return zap.Int("bytes", v) }

func ClientIP(v string) zap.Field { return zap.String("client_ip", v) }

// =================================================================================
// CAMPOS ESTÁNDAR - AUTH / NEGOCIO
// =================================================================================

// Subject es el "sub" verificado del token.
func Subject(v string) zap.Field { return zap.String("subject", v) }

// KeyID es el "kid" declarado por el token o publicado en el JWKS.
func KeyID(v string) zap.Field { return zap.String("kid", v) }

// Alg es el algoritmo de firma declarado en el header del token.
func Alg(v string) zap.Field { return zap.String("alg", v) }

// Reason clasifica un rechazo (missing_token, malformed_token, unknown_key, invalid_token).
func Reason(v string) zap.Field { return zap.String("reason", v) }

func TaskID(v string) zap.Field { return zap.String("task_id", v) }

func URL(v string) zap.Field { return zap.String("url", v) }

// =================================================================================
// CAMPOS ESTÁNDAR - SISTEMA
// =================================================================================

func Component(v string) zap.Field { return zap.String("component", v) }

func Op(v string) zap.Field { return zap.String("op", v) }

// Layer: controller, service, repository.
func Layer(v string) zap.Field { return zap.String("layer", v) }

func Err(err error) zap.Field { return zap.Error(err) }

func Count(v int) zap.Field { return zap.Int("count", v) }

func Attempt(v int) zap.Field { return zap.Int("attempt", v) }

func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }

func Any(key string, v any) zap.Field { return zap.Any(key, v) }

func String(key, v string) zap.Field { return zap.String(key, v) }

func Int(key string, v int) zap.Field { return zap.Int(key, v) }

func Bool(key string, v bool) zap.Field { return zap.Bool(key, v) }
