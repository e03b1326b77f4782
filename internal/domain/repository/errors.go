package repository

import "errors"

// Errores que devuelven los stores. Los services los propagan envueltos con %w.
var (
	// ErrNotFound: la tarea no existe o pertenece a otro subject.
	ErrNotFound = errors.New("task not found")
	// ErrConflict: colisión de id o violación de constraint.
	ErrConflict = errors.New("task conflict")
	// ErrInvalidInput: campo fuera de rango o con formato inválido.
	ErrInvalidInput = errors.New("invalid input")
)

func IsNotFound(err error) bool     { return errors.Is(err, ErrNotFound) }
func IsConflict(err error) bool     { return errors.Is(err, ErrConflict) }
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }
