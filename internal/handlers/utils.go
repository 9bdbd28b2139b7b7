package handlers

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/damacus/iron-studio/internal/errs"
	"github.com/damacus/iron-studio/internal/logger"
	"github.com/damacus/iron-studio/internal/services"
	"github.com/damacus/iron-studio/internal/utils"
)

// GetSession retrieves the open session placed in the context by the
// session middleware
func GetSession(c echo.Context) (*services.Session, error) {
	val := c.Get(utils.ContextKeySession)
	if val == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}
	sess, ok := val.(*services.Session)
	if !ok || sess == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}
	return sess, nil
}

// HTMXRedirect sets the HX-Redirect header and returns a 200 OK response.
// This is used for HTMX requests that should trigger a client-side redirect.
func HTMXRedirect(c echo.Context, url string) error {
	c.Response().Header().Set("HX-Redirect", url)
	return c.NoContent(http.StatusOK)
}

func isHTMX(c echo.Context) bool {
	return c.Request().Header.Get("HX-Request") == "true"
}

// redirect sends HTMX clients an HX-Redirect and everyone else a 303.
func redirect(c echo.Context, to string) error {
	if isHTMX(c) {
		return HTMXRedirect(c, to)
	}
	return c.Redirect(http.StatusSeeOther, to)
}

func browseURL(prefix string) string {
	if prefix == "" {
		return "/browse"
	}
	return "/browse?prefix=" + url.QueryEscape(prefix)
}

// StatusFor maps an error kind to the HTTP status the UI receives.
func StatusFor(err error) int {
	if errs.IsPartialFailure(err) {
		return http.StatusMultiStatus
	}
	switch {
	case errs.HasKind(err, errs.KindInvalidName), errs.IsInvalidInput(err):
		return http.StatusBadRequest
	case errs.HasKind(err, errs.KindConflict):
		return http.StatusConflict
	case errs.IsNotFound(err):
		return http.StatusNotFound
	case errs.IsPermissionDenied(err):
		return http.StatusForbidden
	case errs.IsSessionClosed(err):
		return http.StatusUnauthorized
	case errs.HasKind(err, errs.KindTimeout):
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

// failure turns a non-result error into a response. A closed session sends
// the user back to the profile list.
func failure(c echo.Context, err error) error {
	if errs.IsSessionClosed(err) {
		return redirect(c, "/profiles")
	}
	logger.FromContext(c.Request().Context()).Warn().Err(err).Str("path", c.Path()).Msg("request failed")
	return echo.NewHTTPError(StatusFor(err), err.Error())
}

// resultView is the template data for an operation outcome.
func resultView(res *services.Result, err error) map[string]interface{} {
	data := map[string]interface{}{
		"Op":        string(res.Op),
		"Key":       res.Key,
		"Target":    res.Target,
		"State":     res.State().String(),
		"Succeeded": res.Succeeded,
		"Skipped":   res.Skipped,
		"Created":   res.Created,
		"Total":     res.Total(),
	}
	if f := res.Failed; f != nil {
		data["FailedKey"] = f.Key
		data["FailedStep"] = f.Index + 1
		data["FailedAction"] = string(f.Action)
	}
	if err != nil {
		data["Error"] = err.Error()
	}
	return data
}

// respond reports the outcome of a tracked operation. Success reloads the
// listing at back; a failure renders the result with its status.
func respond(c echo.Context, back string, res *services.Result, runErr error) error {
	if runErr != nil {
		return failure(c, runErr)
	}
	if err := res.Err(); err != nil {
		return c.Render(StatusFor(err), "operation_result", resultView(res, err))
	}
	return redirect(c, browseURL(back))
}

func requestIsSecure(c echo.Context) bool {
	req := c.Request()
	if req.TLS != nil {
		return true
	}

	return req.Header.Get("X-Forwarded-Proto") == "https"
}
