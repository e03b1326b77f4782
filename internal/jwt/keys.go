package jwt

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	jose "github.com/go-jose/go-jose/v4"
)

// PublicKey es una clave pública de firma publicada por el identity provider.
type PublicKey struct {
	KeyID     string
	Algorithm string // "alg" declarado en el JWK (puede venir vacío)
	Use       string // "sig" | "enc" | ""
	Key       crypto.PublicKey
}

// KeySet es un snapshot inmutable kid -> clave.
// Nunca se muta después de construido: un refresh construye uno nuevo y lo publica entero.
type KeySet struct {
	keys      map[string]PublicKey
	fetchedAt time.Time
}

// NewKeySet indexa keys por kid. Los kid duplicados conservan la primera aparición.
func NewKeySet(keys []PublicKey, fetchedAt time.Time) *KeySet {
	m := make(map[string]PublicKey, len(keys))
	for _, k := range keys {
		if k.KeyID == "" {
			continue
		}
		if _, dup := m[k.KeyID]; dup {
			continue
		}
		m[k.KeyID] = k
	}
	return &KeySet{keys: m, fetchedAt: fetchedAt}
}

// Lookup busca la clave por kid.
func (s *KeySet) Lookup(kid string) (PublicKey, bool) {
	if s == nil {
		return PublicKey{}, false
	}
	k, ok := s.keys[kid]
	return k, ok
}

// Len devuelve la cantidad de claves del snapshot.
func (s *KeySet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// KeyIDs devuelve los kid del snapshot (orden no definido).
func (s *KeySet) KeyIDs() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.keys))
	for kid := range s.keys {
		out = append(out, kid)
	}
	return out
}

// FetchedAt es el instante en que se obtuvo el documento.
func (s *KeySet) FetchedAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.fetchedAt
}

var errNoUsableKeys = errors.New("jwks: no usable signing keys")

// ParseJWKS decodifica un documento JWKS y se queda con las claves públicas de firma.
// Ignora claves privadas/simétricas, claves con use != "sig" y entradas sin kid.
// Si no queda ninguna clave utilizable, devuelve error: un documento así no debe
// reemplazar un snapshot bueno.
func ParseJWKS(b []byte, fetchedAt time.Time) (*KeySet, int, error) {
	// Cada entrada se decodifica por separado: un kty desconocido no invalida el documento.
	var doc struct {
		Keys []json.RawMessage `json:"keys"`
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, 0, fmt.Errorf("jwks: decode: %w", err)
	}

	keys := make([]PublicKey, 0, len(doc.Keys))
	skipped := 0
	for _, raw := range doc.Keys {
		var k jose.JSONWebKey
		if err := k.UnmarshalJSON(raw); err != nil {
			skipped++
			continue
		}
		if k.KeyID == "" || !k.Valid() || !k.IsPublic() {
			skipped++
			continue
		}
		if k.Use != "" && k.Use != "sig" {
			skipped++
			continue
		}
		switch k.Key.(type) {
		case *rsa.PublicKey, *ecdsa.PublicKey:
		default:
			skipped++
			continue
		}
		keys = append(keys, PublicKey{
			KeyID:     k.KeyID,
			Algorithm: k.Algorithm,
			Use:       k.Use,
			Key:       k.Key,
		})
	}

	set := NewKeySet(keys, fetchedAt)
	skipped += len(keys) - set.Len()
	if set.Len() == 0 {
		return nil, skipped, errNoUsableKeys
	}
	return set, skipped, nil
}
