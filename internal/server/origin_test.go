package server

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func requestWithOrigin(origin string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	if origin != "" {
		r.Header.Set("Origin", origin)
	}
	return r
}

func TestOriginPolicy(t *testing.T) {
	req := require.New(t)
	p := newOriginPolicy([]string{"http://localhost:9300", "HTTPS://App.Example"}, slog.Default())

	req.True(p.check(requestWithOrigin("http://localhost:9300")))
	req.True(p.check(requestWithOrigin("https://app.example")), "matching is case-insensitive")
	req.True(p.check(requestWithOrigin("HTTP://LOCALHOST:9300")))

	req.False(p.check(requestWithOrigin("http://evil.example")))
	req.False(p.check(requestWithOrigin("")), "missing origin header is rejected")
	req.False(p.check(requestWithOrigin("not a url")))
}

func TestOriginPolicyWildcard(t *testing.T) {
	req := require.New(t)
	p := newOriginPolicy([]string{"*"}, slog.Default())

	req.True(p.check(requestWithOrigin("http://anywhere.example")))
	req.False(p.check(requestWithOrigin("")), "wildcard still requires a parseable origin")
}

func TestOriginPolicySkipsInvalidEntries(t *testing.T) {
	p := newOriginPolicy([]string{"", "not a url", "http://ok.example"}, slog.Default())

	require.True(t, p.check(requestWithOrigin("http://ok.example")))
	require.False(t, p.check(requestWithOrigin("http://other.example")))
}

func TestNormalizeOrigin(t *testing.T) {
	req := require.New(t)

	normalized, ok := normalizeOrigin("HTTPS://Example.COM/some/path")
	req.True(ok)
	req.Equal("https://example.com", normalized)

	_, ok = normalizeOrigin("example.com")
	req.False(ok, "scheme is required")
}
