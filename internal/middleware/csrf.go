package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
)

// CSRFCookieName is readable by the page script, which echoes it back in
// the X-CSRF-Token header of every HTMX request.
const CSRFCookieName = "csrf"

// CSRF guards every unsafe request. The token travels in the X-CSRF-Token
// header or, for plain forms, in a _csrf field.
func CSRF() echo.MiddlewareFunc {
	return echoMiddleware.CSRFWithConfig(echoMiddleware.CSRFConfig{
		TokenLookup:    "header:X-CSRF-Token,form:_csrf",
		CookieName:     CSRFCookieName,
		CookiePath:     "/",
		CookieSameSite: http.SameSiteStrictMode,
	})
}
