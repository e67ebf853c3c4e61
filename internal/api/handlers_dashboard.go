// handlers_dashboard.go - Per-customer dashboard summary
package api

import (
	"net/http"
	"time"

	"github.com/chat-upload-api/backend/internal/dashboard"
	"github.com/labstack/echo/v4"
)

// DashboardHandlerImpl implements the DashboardHandler interface
type DashboardHandlerImpl struct {
	store dashboard.Lister
	now   func() time.Time
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(store dashboard.Lister) DashboardHandler {
	return &DashboardHandlerImpl{
		store: store,
		now:   time.Now,
	}
}

// HandleSummary returns upload counts and total size for one customer
func (h *DashboardHandlerImpl) HandleSummary(c echo.Context) error {
	customerID, err := requireCustomer(c)
	if err != nil {
		return err
	}

	summary, err := dashboard.Summarize(c.Request().Context(), h.store, customerID, h.now())
	if err != nil {
		return NewInternalError("failed to build dashboard summary", err)
	}
	return c.JSON(http.StatusOK, summary)
}
