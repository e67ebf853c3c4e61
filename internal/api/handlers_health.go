// handlers_health.go - Health check handlers
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/chat-upload-api/backend/internal/models"
	"github.com/labstack/echo/v4"
)

// Pinger is the part of the store the health check needs.
type Pinger interface {
	Ping(ctx context.Context) error
	Backend() string
}

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	store   Pinger
	version string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store Pinger, version string) HealthHandler {
	return &HealthHandlerImpl{
		store:   store,
		version: version,
	}
}

// HandleHealth returns server health status
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	resp := models.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   h.version,
	}
	if h.store == nil {
		return c.JSON(http.StatusOK, resp)
	}

	resp.Storage = h.store.Backend()
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		c.Logger().Errorf("[Health] storage ping failed: %v", err)
		resp.Status = "unhealthy"
		return c.JSON(http.StatusServiceUnavailable, resp)
	}
	return c.JSON(http.StatusOK, resp)
}
