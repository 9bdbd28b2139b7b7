package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/damacus/iron-studio/internal/logger"
	"github.com/damacus/iron-studio/internal/profiles"
	"github.com/damacus/iron-studio/internal/services"
	"github.com/damacus/iron-studio/internal/utils"
)

// sessionCookieTTL bounds how long a browser keeps the session cookie.
const sessionCookieTTL = 24 * time.Hour

type SessionHandler struct {
	authService *services.AuthService
	sessions    *services.SessionManager
	profiles    *profiles.Store
}

func NewSessionHandler(authService *services.AuthService, sessions *services.SessionManager, store *profiles.Store) *SessionHandler {
	return &SessionHandler{
		authService: authService,
		sessions:    sessions,
		profiles:    store,
	}
}

// current returns the session named by the request cookie, if still open.
func (h *SessionHandler) current(c echo.Context) *services.Session {
	cookie, err := c.Cookie(utils.CookieName)
	if err != nil {
		return nil
	}
	ticket, err := h.authService.Open(cookie.Value)
	if err != nil {
		return nil
	}
	sess, err := h.sessions.Get(ticket.SessionID)
	if err != nil {
		return nil
	}
	return sess
}

// Connect activates profile :id. A browser with an open session has its
// store handle swapped; otherwise a new session is opened.
func (h *SessionHandler) Connect(c echo.Context) error {
	p, err := h.profiles.Get(c.Param("id"))
	if err != nil {
		return failure(c, err)
	}

	ctx := c.Request().Context()
	var sess *services.Session
	if cur := h.current(c); cur != nil {
		sess, err = h.sessions.Switch(ctx, cur.ID, p)
	} else {
		sess, err = h.sessions.Open(ctx, p)
	}
	if err != nil {
		clearSessionCookie(c)
		logger.FromContext(ctx).Warn().Err(err).Str("profile", p.Name).Msg("connect failed")
		return echo.NewHTTPError(StatusFor(err), "Failed to connect: "+err.Error())
	}

	sealed, err := h.authService.Seal(services.SessionTicket{
		SessionID: sess.ID,
		ProfileID: p.ID,
		IssuedAt:  time.Now(),
	})
	if err != nil {
		_ = h.sessions.Close(sess.ID)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create session")
	}
	setSessionCookie(c, sealed)

	if err := h.profiles.SetActive(p.ID); err != nil {
		logger.FromContext(ctx).Warn().Err(err).Str("profile", p.ID).Msg("failed to persist active profile")
	}
	return redirect(c, "/browse")
}

// Logout closes the session and clears the session and operator cookies
func (h *SessionHandler) Logout(c echo.Context) error {
	if sess := h.current(c); sess != nil {
		if err := h.sessions.Close(sess.ID); err != nil {
			logger.FromContext(c.Request().Context()).Warn().Err(err).Str("session", sess.ID).Msg("closing store failed")
		}
	}
	clearSessionCookie(c)
	if _, err := c.Cookie(utils.OperatorCookieName); err == nil {
		clearCookie(c, utils.OperatorCookieName)
	}
	return c.Redirect(http.StatusSeeOther, "/profiles")
}

func setSessionCookie(c echo.Context, value string) {
	cookie := new(http.Cookie)
	cookie.Name = utils.CookieName
	cookie.Value = value
	cookie.Expires = time.Now().Add(sessionCookieTTL)
	cookie.Path = "/"
	cookie.HttpOnly = true
	cookie.SameSite = http.SameSiteStrictMode
	cookie.Secure = requestIsSecure(c)
	c.SetCookie(cookie)
}

func clearSessionCookie(c echo.Context) {
	clearCookie(c, utils.CookieName)
}

func clearCookie(c echo.Context, name string) {
	cookie := new(http.Cookie)
	cookie.Name = name
	cookie.Value = ""
	cookie.Expires = time.Now().Add(-1 * time.Hour)
	cookie.MaxAge = -1
	cookie.Path = "/"
	cookie.HttpOnly = true
	cookie.SameSite = http.SameSiteStrictMode
	cookie.Secure = requestIsSecure(c)
	c.SetCookie(cookie)
}
