// Package controllers agrupa todos los controllers HTTP.
//
//	svcs := services.New(deps)          ← services (ver services/services.go)
//	ctrls := controllers.New(svcs)      ← controllers con services inyectados
//	h := router.New(router.Deps{...})   ← rutas chi con controllers
package controllers

import (
	"github.com/dropDatabas3/hellotasks/internal/http/controllers/health"
	"github.com/dropDatabas3/hellotasks/internal/http/controllers/tasks"
	"github.com/dropDatabas3/hellotasks/internal/http/services"
)

// Controllers agrupa los controllers de todos los dominios.
type Controllers struct {
	Tasks  *tasks.Controllers
	Health *health.Controllers
}

// New crea todos los controllers a partir de los services.
func New(s *services.Services) *Controllers {
	return &Controllers{
		Tasks:  tasks.NewControllers(s.Tasks),
		Health: health.NewControllers(s.Health),
	}
}
