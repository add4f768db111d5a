package backend

import (
	"net/http"
	"net/url"
	"strings"
)

// TokenSource yields the session bearer token at request time. The token is
// read per request, not captured when the client is built, so a re-login is
// picked up by in-flight flows.
type TokenSource interface {
	Token() string
}

// StaticToken is a fixed-token TokenSource, used by the binaries and tests.
type StaticToken string

func (s StaticToken) Token() string { return string(s) }

// authTransport attaches the bearer token to every request except the
// configured allow-list of unauthenticated paths (login and friends). The
// allow-list names paths relative to the client's base URL, so its path
// prefix is stripped before matching.
type authTransport struct {
	base     http.RoundTripper
	tokens   TokenSource
	open     map[string]struct{}
	basePath string
}

// newAuthTransport builds the transport for a client rooted at baseURL.
func newAuthTransport(baseURL string, tokens TokenSource) *authTransport {
	open := make(map[string]struct{}, len(unauthenticatedPaths))
	for _, p := range unauthenticatedPaths {
		open[p] = struct{}{}
	}
	basePath := ""
	if u, err := url.Parse(baseURL); err == nil {
		basePath = strings.TrimSuffix(u.Path, "/")
	}
	return &authTransport{tokens: tokens, open: open, basePath: basePath}
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	path := req.URL.Path
	if t.basePath != "" {
		path = strings.TrimPrefix(path, t.basePath)
	}
	if _, unauthenticated := t.open[path]; !unauthenticated {
		if tok := t.tokens.Token(); tok != "" {
			req = req.Clone(req.Context())
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}
