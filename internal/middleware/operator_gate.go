package middleware

import (
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/damacus/iron-studio/internal/services"
	"github.com/damacus/iron-studio/internal/utils"
)

// OperatorTTL bounds how long an operator cookie is accepted.
const OperatorTTL = 24 * time.Hour

// LoginPath is where operators present the admin token.
const LoginPath = "/login"

// OperatorGate keeps profiles, credentials and stores away from anyone who
// is not the operator. With an admin token configured a sealed operator
// cookie is required; without one only loopback peers are served.
func OperatorGate(adminToken string, authService *services.AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			if path == "/health" || path == "/metrics" {
				return next(c)
			}

			if adminToken == "" {
				if !isLoopback(c.Request().RemoteAddr) {
					return echo.NewHTTPError(http.StatusForbidden, "Remote access requires IRON_ADMIN_TOKEN")
				}
				return next(c)
			}

			if path == LoginPath {
				return next(c)
			}
			cookie, err := c.Cookie(utils.OperatorCookieName)
			if err != nil {
				return toLogin(c)
			}
			if _, err := authService.OpenOperator(cookie.Value, time.Now(), OperatorTTL); err != nil {
				expire(c, cookie)
				return toLogin(c)
			}
			return next(c)
		}
	}
}

// isLoopback looks at the TCP peer only. Forwarding headers are ignored, a
// proxy in front of the server needs the admin token.
func isLoopback(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func toLogin(c echo.Context) error {
	if c.Request().Header.Get("HX-Request") == "true" {
		c.Response().Header().Set("HX-Redirect", LoginPath)
		return c.NoContent(http.StatusUnauthorized)
	}
	return c.Redirect(http.StatusSeeOther, LoginPath)
}
