package storage

import (
	"errors"
	"fmt"
	"mime"
	"net/url"
	"path"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// MaxFileNameLen es el largo máximo del nombre saneado (runas).
const MaxFileNameLen = 128

var (
	ErrEmptyFileName      = errors.New("file name is empty")
	ErrInvalidContentType = errors.New("invalid content type")
)

// SanitizeFileName reduce name a su base y reemplaza todo lo que no sea
// [A-Za-z0-9._-] por "_". Devuelve ErrEmptyFileName si no queda nada útil.
func SanitizeFileName(name string) (string, error) {
	name = strings.ReplaceAll(strings.TrimSpace(name), `\`, "/")
	name = path.Base(name)
	if name == "." || name == "/" || name == ".." {
		return "", ErrEmptyFileName
	}

	var b strings.Builder
	n := 0
	for _, r := range name {
		if n == MaxFileNameLen {
			break
		}
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
		n++
	}
	out := strings.TrimLeft(b.String(), ".")
	if strings.Trim(out, "_") == "" {
		return "", ErrEmptyFileName
	}
	return out, nil
}

// ObjectKey arma users/<subject escapado>/<id>-<nombre saneado>.
func ObjectKey(subject, fileName string, id uuid.UUID) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", errors.New("storage: empty subject")
	}
	name, err := SanitizeFileName(fileName)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("users/%s/%s-%s", subjectSegment(subject), id.String(), name), nil
}

// subjectSegment escapa subject como un único segmento de key. Un subject hecho
// solo de puntos ("." o "..") se escapa también: no puede ser un dot-segment.
func subjectSegment(subject string) string {
	seg := url.PathEscape(subject)
	if strings.Trim(seg, ".") == "" {
		seg = strings.ReplaceAll(seg, ".", "%2E")
	}
	return seg
}

// NormalizeContentType valida ct como media type y lo devuelve en minúsculas sin
// parámetros. Si allowed no está vacío, ct debe pertenecer a la lista.
func NormalizeContentType(ct string, allowed []string) (string, error) {
	mt, _, err := mime.ParseMediaType(strings.TrimSpace(ct))
	if err != nil || !strings.Contains(mt, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidContentType, ct)
	}
	if len(allowed) == 0 {
		return mt, nil
	}
	for _, a := range allowed {
		if strings.EqualFold(a, mt) {
			return mt, nil
		}
	}
	return "", fmt.Errorf("%w: %q not allowed", ErrInvalidContentType, mt)
}

// escapeKey escapa cada segmento de key para usarlo en un path de URL.
func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
