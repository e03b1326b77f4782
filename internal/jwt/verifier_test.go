package jwt

import (
	"context"
	"errors"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVerifier(t *testing.T, cfg VerifierConfig, keys ...testKey) *Verifier {
	t.Helper()
	pks := make([]PublicKey, 0, len(keys))
	for _, k := range keys {
		pks = append(pks, k.public())
	}
	return NewVerifier(staticResolver{set: NewKeySet(pks, time.Now())}, cfg)
}

func defaultVerifierConfig() VerifierConfig {
	return VerifierConfig{
		Issuer:    testIssuer,
		Audiences: []string{testClientID},
		TokenUse:  "access",
	}
}

func TestVerifier_ValidToken(t *testing.T) {
	a := newTestKey(t, 0, "kid-A")
	v := newTestVerifier(t, defaultVerifierConfig(), a)

	claims := baseClaims("user-1")
	claims["username"] = "ana"
	claims["scope"] = "tasks/read tasks/write"
	id, err := v.Verify(context.Background(), "Bearer "+signToken(t, a, claims))
	require.NoError(t, err)
	assert.Equal(t, "user-1", id.Subject)
	assert.Equal(t, "user-1@example.com", id.Email)
	assert.Equal(t, "ana", id.Username)
	assert.Equal(t, testClientID, id.ClientID)
	assert.Equal(t, []string{"tasks/read", "tasks/write"}, id.Scopes)
	assert.False(t, id.ExpiresAt.IsZero())
}

func TestVerifier_CognitoUsernameFallback(t *testing.T) {
	a := newTestKey(t, 0, "kid-A")
	v := newTestVerifier(t, defaultVerifierConfig(), a)

	claims := baseClaims("user-1")
	claims["cognito:username"] = "ana"
	id, err := v.Verify(context.Background(), "Bearer "+signToken(t, a, claims))
	require.NoError(t, err)
	assert.Equal(t, "ana", id.Username)
}

func TestVerifier_AudienceClaimAlsoAccepted(t *testing.T) {
	a := newTestKey(t, 0, "kid-A")
	v := newTestVerifier(t, VerifierConfig{Audiences: []string{testClientID}}, a)

	claims := baseClaims("user-1")
	delete(claims, "client_id")
	claims["aud"] = testClientID
	_, err := v.Verify(context.Background(), "Bearer "+signToken(t, a, claims))
	require.NoError(t, err)
}

func TestVerifier_Rejections(t *testing.T) {
	a := newTestKey(t, 0, "kid-A")
	b := newTestKey(t, 1, "kid-B")
	rogue := newTestKey(t, 1, "kid-A") // kid conocido, clave equivocada
	v := newTestVerifier(t, defaultVerifierConfig(), a)

	with := func(mut func(jwtv5.MapClaims)) jwtv5.MapClaims {
		c := baseClaims("user-1")
		mut(c)
		return c
	}

	hsToken := func() string {
		tok := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, baseClaims("user-1"))
		tok.Header["kid"] = "kid-A"
		s, err := tok.SignedString([]byte("guessable-secret"))
		require.NoError(t, err)
		return s
	}
	noneToken := func() string {
		tok := jwtv5.NewWithClaims(jwtv5.SigningMethodNone, baseClaims("user-1"))
		tok.Header["kid"] = "kid-A"
		s, err := tok.SignedString(jwtv5.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		return s
	}
	noKid := func() string {
		tok := jwtv5.NewWithClaims(jwtv5.SigningMethodRS256, baseClaims("user-1"))
		s, err := tok.SignedString(a.priv)
		require.NoError(t, err)
		return s
	}

	tests := []struct {
		name   string
		header string
		want   error
	}{
		{"empty header", "", ErrMissingToken},
		{"basic scheme", "Basic dXNlcjpwYXNz", ErrMissingToken},
		{"bearer without token", "Bearer ", ErrMissingToken},
		{"not a jws", "Bearer abc", ErrMalformedToken},
		{"garbage segments", "Bearer not.a.jwt", ErrMalformedToken},
		{"no kid", "Bearer " + noKid(), ErrMalformedToken},
		{"kid not in cache", "Bearer " + signToken(t, b, baseClaims("user-1")), ErrUnknownKey},
		{"hs256 with known kid", "Bearer " + hsToken(), ErrInvalidToken},
		{"alg none", "Bearer " + noneToken(), ErrInvalidToken},
		{"wrong signing key", "Bearer " + signToken(t, rogue, baseClaims("user-1")), ErrInvalidToken},
		{"expired", "Bearer " + signToken(t, a, with(func(c jwtv5.MapClaims) {
			c["exp"] = time.Now().Add(-2 * time.Minute).Unix()
		})), ErrInvalidToken},
		{"no exp", "Bearer " + signToken(t, a, with(func(c jwtv5.MapClaims) { delete(c, "exp") })), ErrInvalidToken},
		{"not yet valid", "Bearer " + signToken(t, a, with(func(c jwtv5.MapClaims) {
			c["nbf"] = time.Now().Add(5 * time.Minute).Unix()
		})), ErrInvalidToken},
		{"issued in the future", "Bearer " + signToken(t, a, with(func(c jwtv5.MapClaims) {
			c["iat"] = time.Now().Add(5 * time.Minute).Unix()
		})), ErrInvalidToken},
		{"wrong issuer", "Bearer " + signToken(t, a, with(func(c jwtv5.MapClaims) {
			c["iss"] = "https://evil.example.com"
		})), ErrInvalidToken},
		{"wrong client", "Bearer " + signToken(t, a, with(func(c jwtv5.MapClaims) {
			c["client_id"] = "other-app"
		})), ErrInvalidToken},
		{"id token where access expected", "Bearer " + signToken(t, a, with(func(c jwtv5.MapClaims) {
			c["token_use"] = "id"
		})), ErrInvalidToken},
		{"no subject", "Bearer " + signToken(t, a, with(func(c jwtv5.MapClaims) { delete(c, "sub") })), ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := v.Verify(context.Background(), tt.header)
			require.Error(t, err)
			assert.Nil(t, id)
			assert.True(t, errors.Is(err, tt.want), "got %v, want %v", err, tt.want)
		})
	}
}

func TestVerifier_LeewayToleratesClockSkew(t *testing.T) {
	a := newTestKey(t, 0, "kid-A")
	v := newTestVerifier(t, VerifierConfig{Leeway: time.Minute}, a)

	claims := baseClaims("user-1")
	claims["exp"] = time.Now().Add(-20 * time.Second).Unix()
	_, err := v.Verify(context.Background(), "Bearer "+signToken(t, a, claims))
	require.NoError(t, err)
}

func TestVerifier_KeyAlgorithmMustMatch(t *testing.T) {
	a := newTestKey(t, 0, "kid-A")
	a.alg = "RS384"
	v := newTestVerifier(t, VerifierConfig{}, a)

	_, err := v.Verify(context.Background(), "Bearer "+signToken(t, a, baseClaims("user-1")))
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifier_AllowListCannotEnableSymmetricAlgs(t *testing.T) {
	v := NewVerifier(staticResolver{}, VerifierConfig{AllowedAlgs: []string{"HS256", "none", "rs512"}})
	assert.Equal(t, []string{"RS512"}, v.algs)

	v = NewVerifier(staticResolver{}, VerifierConfig{AllowedAlgs: []string{"HS256"}})
	assert.Equal(t, DefaultAllowedAlgs, v.algs)
}

func TestVerifier_EmptyCacheIsFailClosed(t *testing.T) {
	a := newTestKey(t, 0, "kid-A")
	c := NewKeyCache(FetcherFunc(func(context.Context) (*KeySet, error) {
		return nil, errors.New("idp down")
	}), KeyCacheConfig{RefreshOnMiss: true}, nil)
	v := NewVerifier(c, VerifierConfig{})

	_, err := v.Verify(context.Background(), "Bearer "+signToken(t, a, baseClaims("user-1")))
	require.ErrorIs(t, err, ErrUnknownKey)
}

func TestVerifier_RotationPickedUpOnMiss(t *testing.T) {
	a := newTestKey(t, 0, "kid-A")
	b := newTestKey(t, 1, "kid-B")
	srv := newJWKSServer(t, jwksJSON(t, a))

	c := NewKeyCache(NewHTTPFetcher(srv.URL, srv.Client(), time.Second),
		KeyCacheConfig{RefreshOnMiss: true, MinRefreshInterval: time.Millisecond}, nil)
	require.NoError(t, c.Refresh(context.Background()))
	v := NewVerifier(c, VerifierConfig{Issuer: testIssuer})

	_, err := v.Verify(context.Background(), "Bearer "+signToken(t, a, baseClaims("user-1")))
	require.NoError(t, err)

	srv.setBody(jwksJSON(t, a, b))
	time.Sleep(5 * time.Millisecond)
	id, err := v.Verify(context.Background(), "Bearer "+signToken(t, b, baseClaims("user-2")))
	require.NoError(t, err)
	assert.Equal(t, "user-2", id.Subject)
	assert.EqualValues(t, 2, srv.hits.Load())
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"bearer abc", "abc", true},
		{"  BEARER   abc  ", "abc", true},
		{"Bearer", "", false},
		{"Bearer a b", "", false},
		{"Token abc", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := BearerToken(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestReason(t *testing.T) {
	assert.Equal(t, "", Reason(nil))
	assert.Equal(t, "missing_token", Reason(ErrMissingToken))
	assert.Equal(t, "malformed_token", Reason(errors.Join(errors.New("x"), ErrMalformedToken)))
	assert.Equal(t, "unknown_key", Reason(ErrUnknownKey))
	assert.Equal(t, "invalid_token", Reason(ErrInvalidToken))
	assert.Equal(t, "internal", Reason(errors.New("boom")))
}
