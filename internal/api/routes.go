// routes.go - Route registration helpers
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/chat-upload-api/backend/internal/config"
	"github.com/chat-upload-api/backend/internal/events"
	"github.com/chat-upload-api/backend/internal/metrics"
	"github.com/chat-upload-api/backend/internal/parser"
	"github.com/chat-upload-api/backend/internal/storage"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// APIPrefix is the path every API route is mounted under
const APIPrefix = "/api/v1"

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store         storage.Store
	Gate          *parser.Gate
	Processor     Processor
	Publisher     events.Publisher
	Metrics       *metrics.Metrics
	WatchInterval time.Duration
	Version       string
	Logger        *log.Logger
}

// Handlers holds all handler instances
type Handlers struct {
	Health    HealthHandler
	Upload    UploadHandler
	Dashboard DashboardHandler
	Watch     WatchHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	logger := deps.Logger
	if logger == nil {
		logger = log.New("api")
	}
	return &Handlers{
		Health:    NewHealthHandler(deps.Store, deps.Version),
		Upload:    NewUploadHandler(deps.Store, deps.Gate, deps.Processor, deps.Publisher, deps.Metrics, logger),
		Dashboard: NewDashboardHandler(deps.Store),
		Watch:     NewWatchHandler(deps.Store, deps.WatchInterval, logger),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	v1 := e.Group(APIPrefix)

	v1.GET("/health", handlers.Health.HandleHealth)

	uploads := v1.Group("/uploads")
	uploads.POST("", handlers.Upload.HandleCreateUploads)
	uploads.GET("", handlers.Upload.HandleListUploads)
	uploads.GET("/:id/status", handlers.Upload.HandleGetStatus)
	uploads.GET("/:id/results", handlers.Upload.HandleGetResults)
	uploads.GET("/:id/results/msgpack", handlers.Upload.HandleGetResultsMsgpack)
	uploads.GET("/:id/watch", handlers.Watch.HandleWatchUpload)
	uploads.POST("/:id/process", handlers.Upload.HandleProcessUpload)
	uploads.DELETE("/:id", handlers.Upload.HandleDeleteUpload)

	v1.GET("/dashboard/summary", handlers.Dashboard.HandleSummary)
}

// RegisterMetricsRoute exposes the Prometheus registry at path
func RegisterMetricsRoute(e *echo.Echo, path string, gatherer prometheus.Gatherer) {
	e.GET(path, echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}

// isStreamPath reports whether the request holds its connection open.
func isStreamPath(c echo.Context) bool {
	return strings.HasSuffix(c.Request().URL.Path, "/watch")
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, cfg config.ServerConfig, logger *log.Logger, exposeDetails bool) {
	e.HTTPErrorHandler = NewErrorHandler(logger, exposeDetails)

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !cfg.EnableRequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return strings.HasSuffix(path, "/status") ||
				strings.HasSuffix(path, "/health")
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 * 1024,
	}))

	if cfg.ReadTimeout > 0 {
		e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
			Timeout: time.Duration(cfg.ReadTimeout) * time.Second,
			Skipper: func(c echo.Context) bool {
				return isStreamPath(c) || c.Request().Method == http.MethodPost
			},
			ErrorMessage: "Request timeout",
		}))
	}

	if cfg.EnableCompression {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
			Level:   cfg.CompressionLevel,
			Skipper: isStreamPath,
		}))
	}

	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}

	if cfg.EnableCORS {
		origins := cfg.AllowOrigins
		if len(origins) == 0 {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		}))
	}
}
