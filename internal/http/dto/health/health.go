// Package health contiene DTOs para endpoints de health check.
package health

import "time"

// HealthStatus representa el estado de un componente específico.
type HealthStatus struct {
	Status  string `json:"status"`            // "ok" | "error" | "disabled"
	Message string `json:"message,omitempty"` // Detalle opcional
	Count   *int   `json:"count,omitempty"`
}

// HealthResponse representa la respuesta de /readyz.
type HealthResponse struct {
	Status        string                  `json:"status"` // "ready" | "degraded" | "unavailable"
	Components    map[string]HealthStatus `json:"components"`
	Version       string                  `json:"version,omitempty"`
	Commit        string                  `json:"commit,omitempty"`
	KeysRefreshed *time.Time              `json:"keys_refreshed_at,omitempty"`
	Timestamp     time.Time               `json:"timestamp"`
}

// LivenessResponse es la respuesta de /healthz.
type LivenessResponse struct {
	Status string `json:"status"`
}
