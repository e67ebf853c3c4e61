// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/labstack/echo/v4"
)

// UploadHandler handles upload submission and per-upload operations
type UploadHandler interface {
	HandleCreateUploads(c echo.Context) error
	HandleListUploads(c echo.Context) error
	HandleGetStatus(c echo.Context) error
	HandleGetResults(c echo.Context) error
	HandleGetResultsMsgpack(c echo.Context) error
	HandleProcessUpload(c echo.Context) error
	HandleDeleteUpload(c echo.Context) error
}

// DashboardHandler handles customer summaries
type DashboardHandler interface {
	HandleSummary(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// WatchHandler streams status changes over a websocket
type WatchHandler interface {
	HandleWatchUpload(c echo.Context) error
}

// Processor starts background processing of an upload
type Processor interface {
	Trigger(ctx context.Context, uploadID, customerID string) (bool, error)
}
