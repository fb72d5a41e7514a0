// Package api exposes the operator and observer HTTP surface: camera
// lifecycle control, alert history, pipeline stats, an SSE event stream
// and prometheus metrics.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tphakala/sentinel-go/internal/alerthistory"
	"github.com/tphakala/sentinel-go/internal/camera"
	"github.com/tphakala/sentinel-go/internal/cooldown"
	"github.com/tphakala/sentinel-go/internal/errors"
	"github.com/tphakala/sentinel-go/internal/hub"
	"github.com/tphakala/sentinel-go/internal/logging"
	"github.com/tphakala/sentinel-go/internal/notification"
	"github.com/tphakala/sentinel-go/internal/observability"
)

// Server wires the HTTP routes to the pipeline collaborators.
type Server struct {
	echo       *echo.Echo
	registry   *camera.Registry
	history    *alerthistory.Store
	hub        *hub.Hub
	gate       *cooldown.Gate
	dispatcher *notification.Dispatcher
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewServer builds the server and registers all routes. dispatcher and
// metrics may be nil.
func NewServer(registry *camera.Registry, history *alerthistory.Store, h *hub.Hub,
	gate *cooldown.Gate, dispatcher *notification.Dispatcher, metrics *observability.Metrics) *Server {

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:       e,
		registry:   registry,
		history:    history,
		hub:        h,
		gate:       gate,
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     logging.ForService("api"),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	v1 := s.echo.Group("/api/v1")

	v1.GET("/health", s.handleHealth)

	v1.GET("/cameras", s.handleListCameras)
	v1.POST("/cameras", s.handleAddCamera)
	v1.POST("/cameras/start", s.handleStartAll)
	v1.POST("/cameras/stop", s.handleStopAll)
	v1.GET("/cameras/:id", s.handleCameraStatus)
	v1.DELETE("/cameras/:id", s.handleRemoveCamera)
	v1.POST("/cameras/:id/start", s.handleStartCamera)
	v1.POST("/cameras/:id/stop", s.handleStopCamera)
	v1.GET("/cameras/:id/frame", s.handleLatestFrame)

	v1.GET("/history", s.handleHistory)
	v1.GET("/history/latest", s.handleHistoryLatest)
	v1.DELETE("/history", s.handleClearHistory)

	v1.GET("/stats", s.handleStats)
	v1.GET("/events", s.handleEvents)

	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(
			promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})))
	}
}

// Start serves until Shutdown is called.
func (s *Server) Start(port string) error {
	s.logger.Info("http server starting", "port", port)
	if err := s.echo.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.New(err).
			Component("api").
			Category(errors.CategoryNetwork).
			Build()
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// httpError maps pipeline error categories onto HTTP status codes.
func httpError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.IsNotFound(err):
		status = http.StatusNotFound
	case errors.IsCategory(err, errors.CategoryConflict):
		status = http.StatusConflict
	case errors.IsCategory(err, errors.CategoryValidation):
		status = http.StatusBadRequest
	case errors.IsCategory(err, errors.CategoryTimeout):
		status = http.StatusGatewayTimeout
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}
