package main

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/damacus/iron-studio/internal/config"
	"github.com/damacus/iron-studio/internal/profiles"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		ListenAddr:       ":0",
		LogLevel:         "error",
		LogFormat:        "json",
		DefaultEndpoint:  "localhost:9000",
		MaxUploadSize:    1 << 20,
		ShareLinkMaxTTL:  24 * time.Hour,
		MetricsEnabled:   true,
		LocalStorageRoot: t.TempDir(),
	}
}

func testServer(t *testing.T) (*server, *profiles.Store, *config.Config) {
	t.Helper()
	cfg := testConfig(t)
	store := profiles.NewMemoryStore()
	srv := newServer(cfg, zerolog.Nop(), store)
	t.Cleanup(func() { _ = srv.sessions.CloseAll() })
	return srv, store, cfg
}

const (
	loopbackAddr = "127.0.0.1:51000"
	remoteAddr   = "203.0.113.7:40000"
)

// browser replays cookies between requests and echoes the CSRF cookie
// into the header on unsafe requests, as the htmx hook does.
type browser struct {
	t       *testing.T
	h       http.Handler
	addr    string
	cookies map[string]*http.Cookie
}

// newBrowser is a client on the server's own machine.
func newBrowser(t *testing.T, h http.Handler) *browser {
	return &browser{t: t, h: h, addr: loopbackAddr, cookies: map[string]*http.Cookie{}}
}

// newRemoteBrowser is a client somewhere else on the network.
func newRemoteBrowser(t *testing.T, h http.Handler) *browser {
	return &browser{t: t, h: h, addr: remoteAddr, cookies: map[string]*http.Cookie{}}
}

func (b *browser) do(req *http.Request) *httptest.ResponseRecorder {
	b.t.Helper()
	req.RemoteAddr = b.addr
	for _, c := range b.cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	if tok, ok := b.cookies["csrf"]; ok && req.Method != http.MethodGet {
		req.Header.Set("X-CSRF-Token", tok.Value)
	}
	rec := httptest.NewRecorder()
	b.h.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 || c.Value == "" {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}
	return rec
}

func (b *browser) get(target string) *httptest.ResponseRecorder {
	return b.do(httptest.NewRequest(http.MethodGet, target, nil))
}

func (b *browser) postForm(target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func TestRoutes_PublicPages(t *testing.T) {
	srv, _, _ := testServer(t)
	b := newBrowser(t, srv.echo)

	rec := b.get("/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = b.get("/profiles")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Connection profiles")
	assert.Contains(t, rec.Body.String(), "Sign Out")

	rec = b.get("/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ironstudio_sessions_active")
}

func TestRoutes_MetricsDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.MetricsEnabled = false
	srv := newServer(cfg, zerolog.Nop(), profiles.NewMemoryStore())

	rec := newBrowser(t, srv.echo).get("/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoutes_ProtectedPagesNeedASession(t *testing.T) {
	srv, _, _ := testServer(t)
	b := newBrowser(t, srv.echo)

	for _, path := range []string{"/", "/browse", "/api/listing", "/files/download?key=a", "/api/storage/widget"} {
		rec := b.get(path)
		assert.Equal(t, http.StatusSeeOther, rec.Code, path)
		assert.Equal(t, "/profiles", rec.Header().Get("Location"), path)
	}
}

func TestRoutes_ProfileExportAndImport(t *testing.T) {
	srv, store, _ := testServer(t)
	b := newBrowser(t, srv.echo)
	b.get("/profiles")

	rec := b.postForm("/profiles", url.Values{"name": {"Local"}, "provider": {"local"}, "root": {"."}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, 1, store.Len())

	rec = b.get("/profiles/export")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "iron-studio-profiles.json")
	exported := rec.Body.String()

	rec = b.postForm("/profiles/import", url.Values{"strategy": {"rename"}, "data": {exported}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Imported 1 profile")
	assert.Equal(t, 2, store.Len())
}
