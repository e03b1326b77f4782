// Package repository define las interfaces de repositorio de dominio.
//
// Estas interfaces representan contratos de negocio, independientes del
// almacenamiento subyacente (PostgreSQL o memoria).
//
// Las implementaciones concretas viven en internal/store/pg y internal/store/memory.
//
// Arquitectura:
//
//	┌─────────────────────────────────────────────────────┐
//	│           Services / Controllers                    │
//	└─────────────────────────────────────────────────────┘
//	                        │
//	                        ▼
//	┌─────────────────────────────────────────────────────┐
//	│        domain/repository (interfaces)               │
//	│                 TaskRepository                      │
//	└─────────────────────────────────────────────────────┘
//	                        │
//	               ┌────────┴────────┐
//	               ▼                 ▼
//	        ┌─────────────┐   ┌─────────────┐
//	        │  store/pg   │   │ store/memory│
//	        └─────────────┘   └─────────────┘
//
// Convenciones:
//   - El subject dueño (sub del token verificado) se pasa explícitamente en cada método
//   - Context siempre es el primer parámetro
//   - Un recurso de otro subject es indistinguible de uno inexistente (ErrNotFound)
//   - Errores de dominio están en errors.go
package repository
