package handlers

import (
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/damacus/iron-studio/internal/profiles"
	"github.com/damacus/iron-studio/internal/services"
	"github.com/damacus/iron-studio/internal/storage"
	"github.com/damacus/iron-studio/internal/utils"
)

type sessionFixture struct {
	h        *SessionHandler
	auth     *services.AuthService
	sessions *services.SessionManager
	store    *profiles.Store
}

func newSessionFixture(t *testing.T) *sessionFixture {
	auth := services.NewAuthService(nil)
	sessions := services.NewSessionManager(newTestFactory(t), zerolog.Nop())
	t.Cleanup(func() { _ = sessions.CloseAll() })
	store := profiles.NewMemoryStore()
	return &sessionFixture{
		h:        NewSessionHandler(auth, sessions, store),
		auth:     auth,
		sessions: sessions,
		store:    store,
	}
}

func (f *sessionFixture) addLocal(t *testing.T, name string) profiles.Profile {
	p, err := f.store.Add(name, profiles.Config{Provider: storage.ProviderLocal, Root: "."})
	require.NoError(t, err)
	return p
}

func sessionCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == utils.CookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie set", utils.CookieName)
	return nil
}

func TestConnect_OpensSessionAndSetsCookie(t *testing.T) {
	f := newSessionFixture(t)
	p := f.addLocal(t, "Scratch")

	c, rec, _ := newContext(http.MethodPost, "/profiles/"+p.ID+"/connect", "", nil)
	c.SetParamNames("id")
	c.SetParamValues(p.ID)
	require.NoError(t, f.h.Connect(c))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/browse", rec.Header().Get("Location"))
	assert.Equal(t, 1, f.sessions.Count())

	cookie := sessionCookie(t, rec.Result())
	assert.True(t, cookie.HttpOnly)
	ticket, err := f.auth.Open(cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, p.ID, ticket.ProfileID)

	active, ok := f.store.Active()
	require.True(t, ok)
	assert.Equal(t, p.ID, active.ID)
}

func TestConnect_SwitchesExistingSession(t *testing.T) {
	f := newSessionFixture(t)
	first := f.addLocal(t, "First")
	second := f.addLocal(t, "Second")

	c, rec, _ := newContext(http.MethodPost, "/", "", nil)
	c.SetParamNames("id")
	c.SetParamValues(first.ID)
	require.NoError(t, f.h.Connect(c))
	cookie := sessionCookie(t, rec.Result())
	ticket, err := f.auth.Open(cookie.Value)
	require.NoError(t, err)

	c, rec, _ = newContext(http.MethodPost, "/", "", nil)
	c.Request().AddCookie(cookie)
	c.SetParamNames("id")
	c.SetParamValues(second.ID)
	require.NoError(t, f.h.Connect(c))

	assert.Equal(t, 1, f.sessions.Count())
	next, err := f.auth.Open(sessionCookie(t, rec.Result()).Value)
	require.NoError(t, err)
	assert.Equal(t, ticket.SessionID, next.SessionID)
	assert.Equal(t, second.ID, next.ProfileID)

	sess, err := f.sessions.Get(ticket.SessionID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, sess.Profile().ID)
}

func TestConnect_UnknownProfile(t *testing.T) {
	f := newSessionFixture(t)

	c, _, _ := newContext(http.MethodPost, "/", "", nil)
	c.SetParamNames("id")
	c.SetParamValues("missing")

	assert.Equal(t, http.StatusNotFound, httpCode(t, f.h.Connect(c)))
	assert.Equal(t, 0, f.sessions.Count())
}

func TestConnect_StoreFailureClearsCookie(t *testing.T) {
	f := newSessionFixture(t)
	p := f.addLocal(t, "Outside")
	_, err := f.store.Update(p.ID, "Outside", profiles.Config{Provider: storage.ProviderLocal, Root: "/etc"})
	require.NoError(t, err)

	c, rec, _ := newContext(http.MethodPost, "/", "", nil)
	c.SetParamNames("id")
	c.SetParamValues(p.ID)

	assert.Equal(t, http.StatusForbidden, httpCode(t, f.h.Connect(c)))
	assert.Equal(t, -1, sessionCookie(t, rec.Result()).MaxAge)
	assert.Equal(t, 0, f.sessions.Count())
}

func TestLogout_ClosesSession(t *testing.T) {
	f := newSessionFixture(t)
	p := f.addLocal(t, "Scratch")

	c, rec, _ := newContext(http.MethodPost, "/", "", nil)
	c.SetParamNames("id")
	c.SetParamValues(p.ID)
	require.NoError(t, f.h.Connect(c))
	cookie := sessionCookie(t, rec.Result())

	c, rec, _ = newContext(http.MethodGet, "/logout", "", nil)
	c.Request().AddCookie(cookie)
	require.NoError(t, f.h.Logout(c))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/profiles", rec.Header().Get("Location"))
	assert.Equal(t, 0, f.sessions.Count())
	assert.Equal(t, -1, sessionCookie(t, rec.Result()).MaxAge)
}
