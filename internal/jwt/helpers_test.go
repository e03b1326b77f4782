package jwt

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

type testKey struct {
	kid  string
	alg  string
	priv *rsa.PrivateKey
}

var (
	keyPoolMu sync.Mutex
	keyPool   []*rsa.PrivateKey
)

// newTestKey reutiliza claves RSA entre tests; generarlas es lento.
func newTestKey(t *testing.T, idx int, kid string) testKey {
	t.Helper()
	keyPoolMu.Lock()
	defer keyPoolMu.Unlock()
	for len(keyPool) <= idx {
		priv, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		keyPool = append(keyPool, priv)
	}
	return testKey{kid: kid, alg: "RS256", priv: keyPool[idx]}
}

func (k testKey) public() PublicKey {
	return PublicKey{KeyID: k.kid, Algorithm: k.alg, Use: "sig", Key: &k.priv.PublicKey}
}

func jwksJSON(t *testing.T, keys ...testKey) []byte {
	t.Helper()
	set := jose.JSONWebKeySet{}
	for _, k := range keys {
		set.Keys = append(set.Keys, jose.JSONWebKey{
			Key:       &k.priv.PublicKey,
			KeyID:     k.kid,
			Algorithm: k.alg,
			Use:       "sig",
		})
	}
	b, err := json.Marshal(set)
	require.NoError(t, err)
	return b
}

func signToken(t *testing.T, k testKey, claims jwtv5.MapClaims) string {
	t.Helper()
	tok := jwtv5.NewWithClaims(jwtv5.SigningMethodRS256, claims)
	tok.Header["kid"] = k.kid
	s, err := tok.SignedString(k.priv)
	require.NoError(t, err)
	return s
}

func baseClaims(sub string) jwtv5.MapClaims {
	now := time.Now()
	return jwtv5.MapClaims{
		"sub":       sub,
		"email":     sub + "@example.com",
		"iss":       testIssuer,
		"client_id": testClientID,
		"token_use": "access",
		"iat":       now.Unix(),
		"exp":       now.Add(10 * time.Minute).Unix(),
	}
}

const (
	testIssuer   = "https://idp.example.com/pool-1"
	testClientID = "tasks-web"
)

// jwksServer sirve un documento intercambiable y cuenta los GET.
type jwksServer struct {
	*httptest.Server
	hits   atomic.Int32
	body   atomic.Pointer[[]byte]
	status atomic.Int32
}

func newJWKSServer(t *testing.T, body []byte) *jwksServer {
	t.Helper()
	s := &jwksServer{}
	s.setBody(body)
	s.status.Store(http.StatusOK)
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		code := int(s.status.Load())
		if code != http.StatusOK {
			http.Error(w, "unavailable", code)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(*s.body.Load())
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *jwksServer) setBody(b []byte) { s.body.Store(&b) }

// staticResolver resuelve contra un KeySet fijo.
type staticResolver struct{ set *KeySet }

func (r staticResolver) LookupOrRefresh(_ context.Context, kid string) (PublicKey, bool) {
	return r.set.Lookup(kid)
}
