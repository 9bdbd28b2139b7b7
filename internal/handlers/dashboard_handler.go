package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/damacus/iron-studio/internal/services"
	"github.com/damacus/iron-studio/internal/storage"
)

type DashboardHandler struct {
	usage *services.UsageService
}

func NewDashboardHandler(usage *services.UsageService) *DashboardHandler {
	return &DashboardHandler{usage: usage}
}

// GetStorageWidget returns cluster and bucket usage for MinIO profiles
func (h *DashboardHandler) GetStorageWidget(c echo.Context) error {
	sess, err := GetSession(c)
	if err != nil {
		return c.Render(http.StatusOK, "storage_widget", map[string]interface{}{
			"Error": true,
		})
	}

	cfg := services.StorageConfigFor(sess.Profile())
	if cfg.Provider != storage.ProviderMinIO {
		return c.Render(http.StatusOK, "storage_widget", map[string]interface{}{
			"Unsupported": true,
		})
	}

	u, err := h.usage.Usage(c.Request().Context(), cfg)
	if err != nil {
		return c.Render(http.StatusOK, "storage_widget", map[string]interface{}{
			"Error": true,
		})
	}

	return c.Render(http.StatusOK, "storage_widget", map[string]interface{}{
		"Bucket":        u.Bucket,
		"BucketSize":    u.BucketSize,
		"BucketObjects": u.BucketObjects,
		"UsedSpace":     u.UsedSpace,
		"TotalSpace":    u.TotalSpace,
		"UsedPercent":   u.UsedPercent,
		"BucketsCount":  u.BucketsCount,
	})
}

// GetServerWidget returns version and uptime of the MinIO server
func (h *DashboardHandler) GetServerWidget(c echo.Context) error {
	sess, err := GetSession(c)
	if err != nil {
		return c.Render(http.StatusOK, "server_widget", map[string]interface{}{
			"Error": true,
		})
	}

	cfg := services.StorageConfigFor(sess.Profile())
	if cfg.Provider != storage.ProviderMinIO {
		return c.Render(http.StatusOK, "server_widget", map[string]interface{}{
			"Unsupported": true,
		})
	}

	s, err := h.usage.Server(c.Request().Context(), cfg)
	if err != nil {
		return c.Render(http.StatusOK, "server_widget", map[string]interface{}{
			"Error": true,
		})
	}

	return c.Render(http.StatusOK, "server_widget", map[string]interface{}{
		"Version":     s.Version,
		"Uptime":      s.Uptime,
		"ServerCount": s.ServerCount,
		"Mode":        s.Mode,
		"Region":      s.Region,
	})
}
