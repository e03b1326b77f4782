// Package services es el composition root de los services HTTP.
//
//	deps := services.Deps{...}     ← dependencias externas (store, presigner, key cache)
//	svcs := services.New(deps)     ← services por dominio
//	ctrls := controllers.New(svcs) ← controllers con services inyectados
package services

import (
	"github.com/dropDatabas3/hellotasks/internal/http/services/health"
	"github.com/dropDatabas3/hellotasks/internal/http/services/tasks"
)

type Deps struct {
	// ─── Dominio ───
	Tasks tasks.Deps // Repositorio + presigner de adjuntos

	// ─── Health Check ───
	HealthDeps health.Deps // Dependencias específicas para health probes
}

type Services struct {
	Tasks  tasks.Services  // CRUD de tareas y URLs de subida
	Health health.Services // Health checks (readyz)
}

func New(d Deps) *Services {
	return &Services{
		Tasks:  tasks.NewServices(d.Tasks),
		Health: health.NewServices(d.HealthDeps),
	}
}
