package handlers

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/damacus/iron-studio/internal/logger"
	"github.com/damacus/iron-studio/internal/services"
	"github.com/damacus/iron-studio/internal/utils"
)

// LoginHandler exchanges the admin token for an operator cookie.
type LoginHandler struct {
	adminToken  string
	authService *services.AuthService
	ttl         time.Duration
}

func NewLoginHandler(adminToken string, authService *services.AuthService, ttl time.Duration) *LoginHandler {
	return &LoginHandler{adminToken: adminToken, authService: authService, ttl: ttl}
}

func (h *LoginHandler) page(c echo.Context, status int, errMsg string) error {
	data := map[string]interface{}{
		"ActiveNav": "login",
		"CSRF":      c.Get("csrf"),
	}
	if errMsg != "" {
		data["Error"] = errMsg
	}
	return c.Render(status, "login", data)
}

// Page renders the token form
func (h *LoginHandler) Page(c echo.Context) error {
	if h.adminToken == "" {
		return c.Redirect(http.StatusSeeOther, "/profiles")
	}
	return h.page(c, http.StatusOK, "")
}

// Submit checks the posted token and sets the operator cookie
func (h *LoginHandler) Submit(c echo.Context) error {
	if h.adminToken == "" {
		return c.Redirect(http.StatusSeeOther, "/profiles")
	}

	given := c.FormValue("token")
	if subtle.ConstantTimeCompare([]byte(given), []byte(h.adminToken)) != 1 {
		logger.FromContext(c.Request().Context()).Warn().Str("remote", c.Request().RemoteAddr).Msg("rejected admin token")
		return h.page(c, http.StatusUnauthorized, "Invalid admin token")
	}

	sealed, err := h.authService.SealOperator(time.Now())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to sign in")
	}
	cookie := new(http.Cookie)
	cookie.Name = utils.OperatorCookieName
	cookie.Value = sealed
	cookie.Expires = time.Now().Add(h.ttl)
	cookie.Path = "/"
	cookie.HttpOnly = true
	cookie.SameSite = http.SameSiteStrictMode
	cookie.Secure = requestIsSecure(c)
	c.SetCookie(cookie)

	return redirect(c, "/profiles")
}
