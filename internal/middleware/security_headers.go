package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

const contentSecurityPolicy = "default-src 'self'; " +
	"script-src 'self' 'unsafe-inline' https://cdn.tailwindcss.com https://unpkg.com; " +
	"style-src 'self' 'unsafe-inline' https://fonts.googleapis.com; " +
	"img-src 'self' data: blob: https:; " +
	"media-src 'self' blob:; " +
	"font-src 'self' https://fonts.gstatic.com; " +
	"connect-src 'self'; " +
	"frame-src 'self'; " +
	"base-uri 'self'; " +
	"form-action 'self'"

// inlinePreviewPath serves file bytes into the preview iframe, which must be
// framable by our own pages.
const inlinePreviewPath = "/files/preview"

func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			headers := c.Response().Header()
			frameAncestors := "'none'"
			frameOptions := "DENY"
			if c.Request().URL.Path == inlinePreviewPath {
				frameAncestors = "'self'"
				frameOptions = "SAMEORIGIN"
			}
			headers.Set("X-Frame-Options", frameOptions)
			headers.Set("X-Content-Type-Options", "nosniff")
			headers.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			headers.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
			headers.Set("Content-Security-Policy", contentSecurityPolicy+"; frame-ancestors "+frameAncestors)
			// Listings and file bytes are per-session.
			headers.Set("Cache-Control", "no-store")

			if isSecureRequest(c) {
				headers.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			return next(c)
		}
	}
}

func isSecureRequest(c echo.Context) bool {
	req := c.Request()
	if req.TLS != nil {
		return true
	}

	return strings.EqualFold(req.Header.Get("X-Forwarded-Proto"), "https")
}
