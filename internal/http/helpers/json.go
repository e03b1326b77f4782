package helpers

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	httperrors "github.com/dropDatabas3/hellotasks/internal/http/errors"
)

// MaxJSONBody limita el body aceptado por ReadJSON.
const MaxJSONBody = 1 << 20

// ReadJSON decodifica el body JSON en v. Tolerante a campos desconocidos.
// Devuelve un *AppError listo para WriteError.
func ReadJSON(w http.ResponseWriter, r *http.Request, v any) error {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mt != "application/json" {
		return httperrors.ErrUnsupportedMediaType
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxJSONBody)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return httperrors.ErrBodyTooLarge
		case errors.Is(err, io.EOF):
			return httperrors.ErrInvalidJSON.WithDetail("empty body")
		default:
			return httperrors.ErrInvalidJSON.WithCause(err)
		}
	}
	// Un segundo valor JSON en el body es un error de cliente.
	if dec.More() {
		return httperrors.ErrInvalidJSON.WithDetail("unexpected data after JSON value")
	}
	return nil
}

// WriteJSON escribe una respuesta JSON estándar.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// QueryInt lee un entero opcional del query string dentro de [min, max].
func QueryInt(r *http.Request, name string, def, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min || n > max {
		return 0, httperrors.ErrInvalidParameter.WithDetail(name + " must be an integer between " +
			strconv.Itoa(min) + " and " + strconv.Itoa(max))
	}
	return n, nil
}

// QueryBool lee un booleano opcional del query string (nil si no vino).
func QueryBool(r *http.Request, name string) (*bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, httperrors.ErrInvalidParameter.WithDetail(name + " must be true or false")
	}
	return &b, nil
}
