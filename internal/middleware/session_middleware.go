package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/damacus/iron-studio/internal/services"
	"github.com/damacus/iron-studio/internal/utils"
)

// isPublic reports whether path is served without an open session.
func isPublic(path string) bool {
	switch path {
	case "/health", "/metrics", "/login", "/logout", "/profiles":
		return true
	}
	return strings.HasPrefix(path, "/profiles/")
}

// SessionMiddleware resolves the session cookie to an open session and
// stores it in the context. Requests without one go to the profile list.
func SessionMiddleware(authService *services.AuthService, sessions *services.SessionManager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if isPublic(c.Request().URL.Path) {
				return next(c)
			}

			cookie, err := c.Cookie(utils.CookieName)
			if err != nil {
				return toProfiles(c)
			}

			ticket, err := authService.Open(cookie.Value)
			if err != nil {
				expire(c, cookie)
				return toProfiles(c)
			}

			// The server may have restarted or the user logged out elsewhere.
			sess, err := sessions.Get(ticket.SessionID)
			if err != nil || sess.Profile().ID != ticket.ProfileID {
				expire(c, cookie)
				return toProfiles(c)
			}

			c.Set(utils.ContextKeySession, sess)
			return next(c)
		}
	}
}

// expire clears an unusable cookie to prevent redirect loops.
func expire(c echo.Context, cookie *http.Cookie) {
	cookie.Value = ""
	cookie.Path = "/"
	cookie.MaxAge = -1
	c.SetCookie(cookie)
}

func toProfiles(c echo.Context) error {
	if c.Request().Header.Get("HX-Request") == "true" {
		c.Response().Header().Set("HX-Redirect", "/profiles")
		return c.NoContent(http.StatusUnauthorized)
	}
	return c.Redirect(http.StatusSeeOther, "/profiles")
}
