package jwt

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"slices"
	"time"
)

// Fetcher obtiene el key set publicado por el identity provider.
type Fetcher interface {
	Fetch(ctx context.Context) (*KeySet, error)
}

// DefaultFetchTimeout acota cada GET al endpoint de claves.
const DefaultFetchTimeout = 5 * time.Second

// maxJWKSBytes limita el tamaño del documento aceptado.
const maxJWKSBytes = 1 << 20

var validJWKSContentTypes = []string{
	"application/json",
	"application/jwk-set+json",
}

// HTTPFetcher descarga el JWKS por HTTP GET.
type HTTPFetcher struct {
	URL        string
	HTTPClient *http.Client
	Timeout    time.Duration

	// now es inyectable para tests.
	now func() time.Time
}

// NewHTTPFetcher crea un fetcher con timeout acotado.
func NewHTTPFetcher(url string, client *http.Client, timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &HTTPFetcher{URL: url, HTTPClient: client, Timeout: timeout, now: time.Now}
}

func (f *HTTPFetcher) Fetch(ctx context.Context) (*KeySet, error) {
	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("jwks: creating request for %s: %w", f.URL, err)
	}
	req.Header.Set("Accept", "application/json")

	hc := f.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	res, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jwks: get %s: %w", f.URL, err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jwks: expected status %d, got %d", http.StatusOK, res.StatusCode)
	}
	if ct := res.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || !slices.Contains(validJWKSContentTypes, mt) {
			return nil, fmt.Errorf("jwks: unexpected content type %q", ct)
		}
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, maxJWKSBytes+1))
	if err != nil {
		return nil, fmt.Errorf("jwks: reading body: %w", err)
	}
	if len(body) > maxJWKSBytes {
		return nil, fmt.Errorf("jwks: document exceeds %d bytes", maxJWKSBytes)
	}

	now := time.Now
	if f.now != nil {
		now = f.now
	}
	set, _, err := ParseJWKS(body, now())
	if err != nil {
		return nil, err
	}
	return set, nil
}

// FetcherFunc adapta una función a Fetcher.
type FetcherFunc func(ctx context.Context) (*KeySet, error)

func (fn FetcherFunc) Fetch(ctx context.Context) (*KeySet, error) { return fn(ctx) }
