package jwt

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// DefaultAllowedAlgs: solo firmas RSA. HS* y "none" nunca se aceptan.
var DefaultAllowedAlgs = []string{"RS256", "RS384", "RS512"}

// DefaultLeeway tolera pequeñas diferencias de reloj en exp/nbf/iat.
const DefaultLeeway = 30 * time.Second

// KeyResolver resuelve la clave pública para un kid.
type KeyResolver interface {
	LookupOrRefresh(ctx context.Context, kid string) (PublicKey, bool)
}

// VerifierConfig define qué tokens se aceptan.
type VerifierConfig struct {
	// Issuer esperado en "iss". Vacío = no se valida.
	Issuer string
	// Audiences aceptadas: alcanza con que "aud" o "client_id" coincida con alguna.
	// Vacío = no se valida.
	Audiences []string
	// TokenUse esperado en "token_use" ("access" | "id"). Vacío = no se valida.
	TokenUse string
	// AllowedAlgs se intersecta con DefaultAllowedAlgs; nunca habilita algoritmos simétricos.
	AllowedAlgs []string
	Leeway      time.Duration
}

// Identity es la identidad verificada que se adjunta al request.
type Identity struct {
	Subject   string
	Email     string
	Username  string
	ClientID  string
	Scopes    []string
	ExpiresAt time.Time
}

type tokenClaims struct {
	jwtv5.RegisteredClaims
	Email           string `json:"email,omitempty"`
	Username        string `json:"username,omitempty"`
	CognitoUsername string `json:"cognito:username,omitempty"`
	ClientID        string `json:"client_id,omitempty"`
	TokenUse        string `json:"token_use,omitempty"`
	Scope           string `json:"scope,omitempty"`
}

// Verifier valida bearer tokens contra el cache de claves.
// Es seguro para uso concurrente: no muta estado compartido.
type Verifier struct {
	keys   KeyResolver
	cfg    VerifierConfig
	algs   []string
	parser *jwtv5.Parser
}

// NewVerifier arma el verifier con su allow-list de algoritmos ya resuelta.
func NewVerifier(keys KeyResolver, cfg VerifierConfig) *Verifier {
	return newVerifier(keys, cfg, nil)
}

func newVerifier(keys KeyResolver, cfg VerifierConfig, now func() time.Time) *Verifier {
	if cfg.Leeway <= 0 {
		cfg.Leeway = DefaultLeeway
	}
	algs := allowedAlgs(cfg.AllowedAlgs)

	opts := []jwtv5.ParserOption{
		jwtv5.WithValidMethods(algs),
		jwtv5.WithExpirationRequired(),
		jwtv5.WithIssuedAt(),
		jwtv5.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwtv5.WithIssuer(cfg.Issuer))
	}
	if now != nil {
		opts = append(opts, jwtv5.WithTimeFunc(now))
	}

	return &Verifier{
		keys:   keys,
		cfg:    cfg,
		algs:   algs,
		parser: jwtv5.NewParser(opts...),
	}
}

func allowedAlgs(requested []string) []string {
	if len(requested) == 0 {
		return slices.Clone(DefaultAllowedAlgs)
	}
	out := make([]string, 0, len(requested))
	for _, a := range requested {
		a = strings.ToUpper(strings.TrimSpace(a))
		if slices.Contains(DefaultAllowedAlgs, a) && !slices.Contains(out, a) {
			out = append(out, a)
		}
	}
	if len(out) == 0 {
		return slices.Clone(DefaultAllowedAlgs)
	}
	return out
}

// BearerToken extrae el token de un header "Authorization: Bearer <token>".
func BearerToken(header string) (string, bool) {
	h := strings.TrimSpace(header)
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(h[len(prefix):])
	if tok == "" || strings.ContainsAny(tok, " \t") {
		return "", false
	}
	return tok, true
}

// Verify decide si el valor del header Authorization trae un token auténtico y vigente.
// Los errores envuelven ErrMissingToken, ErrMalformedToken, ErrUnknownKey o ErrInvalidToken.
func (v *Verifier) Verify(ctx context.Context, authorization string) (*Identity, error) {
	raw, ok := BearerToken(authorization)
	if !ok {
		return nil, ErrMissingToken
	}

	// 1) Header sin verificar: kid + alg.
	unverified, _, err := jwtv5.NewParser().ParseUnverified(raw, &tokenClaims{})
	if unverified == nil || (err != nil && errors.Is(err, jwtv5.ErrTokenMalformed)) {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	kid, _ := unverified.Header["kid"].(string)
	if kid == "" {
		return nil, fmt.Errorf("%w: header has no kid", ErrMalformedToken)
	}
	alg, _ := unverified.Header["alg"].(string)

	// 2) Clave por kid (fail-closed si no está).
	key, ok := v.keys.LookupOrRefresh(ctx, kid)
	if !ok {
		return nil, fmt.Errorf("%w: kid %q", ErrUnknownKey, kid)
	}

	// 3) Algoritmo: allow-list y coherencia con el JWK.
	if !slices.Contains(v.algs, alg) {
		return nil, fmt.Errorf("%w: algorithm %q not allowed", ErrInvalidToken, alg)
	}
	if key.Algorithm != "" && key.Algorithm != alg {
		return nil, fmt.Errorf("%w: token alg %q does not match key alg %q", ErrInvalidToken, alg, key.Algorithm)
	}

	// 4) Firma + exp/nbf/iat/iss.
	var claims tokenClaims
	tok, err := v.parser.ParseWithClaims(raw, &claims, func(*jwtv5.Token) (any, error) {
		return key.Key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tok.Valid {
		return nil, fmt.Errorf("%w: token not valid", ErrInvalidToken)
	}

	// 5) Audiencia / client y token_use.
	if err := v.checkAudience(&claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if v.cfg.TokenUse != "" && claims.TokenUse != v.cfg.TokenUse {
		return nil, fmt.Errorf("%w: token_use %q, want %q", ErrInvalidToken, claims.TokenUse, v.cfg.TokenUse)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrInvalidToken)
	}

	id := &Identity{
		Subject:  claims.Subject,
		Email:    claims.Email,
		Username: claims.Username,
		ClientID: claims.ClientID,
		Scopes:   strings.Fields(claims.Scope),
	}
	if id.Username == "" {
		id.Username = claims.CognitoUsername
	}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}

func (v *Verifier) checkAudience(c *tokenClaims) error {
	if len(v.cfg.Audiences) == 0 {
		return nil
	}
	for _, a := range c.Audience {
		if slices.Contains(v.cfg.Audiences, a) {
			return nil
		}
	}
	if c.ClientID != "" && slices.Contains(v.cfg.Audiences, c.ClientID) {
		return nil
	}
	return fmt.Errorf("audience %v / client_id %q not in %v", []string(c.Audience), c.ClientID, v.cfg.Audiences)
}
