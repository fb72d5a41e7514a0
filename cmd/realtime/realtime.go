// Package realtime runs the full surveillance pipeline until interrupted.
package realtime

import (
	"context"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/sentinel-go/internal/alerthistory"
	"github.com/tphakala/sentinel-go/internal/api"
	"github.com/tphakala/sentinel-go/internal/camera"
	"github.com/tphakala/sentinel-go/internal/conf"
	"github.com/tphakala/sentinel-go/internal/cooldown"
	"github.com/tphakala/sentinel-go/internal/detection"
	"github.com/tphakala/sentinel-go/internal/hub"
	"github.com/tphakala/sentinel-go/internal/logging"
	"github.com/tphakala/sentinel-go/internal/notification"
	"github.com/tphakala/sentinel-go/internal/observability"
)

const (
	statsInterval   = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Command creates the realtime subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "realtime",
		Short: "Run the surveillance pipeline",
		Long:  "Start every configured camera worker, the notification dispatcher and the HTTP surface, and run until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(settings)
		},
	}

	cmd.Flags().StringVar(&settings.WebServer.Port, "port", settings.WebServer.Port, "HTTP listen port")
	cmd.Flags().StringVar(&settings.Detector.Endpoint, "detector", settings.Detector.Endpoint, "detection oracle endpoint URL")
	return cmd
}

func run(settings *conf.Settings) error {
	logger := logging.ForService("realtime")

	metrics := observability.NewMetrics()
	h := hub.New()

	artifacts, err := alerthistory.NewFileArtifactStore(settings.History.ArtifactDir)
	if err != nil {
		return err
	}
	history := alerthistory.NewStore(settings.History.MaxEntries, artifacts)
	gate := cooldown.New(settings.Cooldown.Window, settings.Cooldown.GridSize)
	detector := detection.NewClient(&settings.Detector)

	providers := notification.BuildProviders(settings.Notification.Providers)
	limiter := notification.NewRateLimiter(
		settings.Notification.RateLimit.PerMinute,
		settings.Notification.RateLimit.Burst)
	dispatcher := notification.NewDispatcher(providers, settings.Notification.QueueSize, limiter, metrics)
	dispatcher.Start()

	registry := camera.NewRegistry(camera.Pipeline{
		Detector:   detector,
		Gate:       gate,
		History:    history,
		Artifacts:  artifacts,
		Dispatcher: dispatcher,
		Hub:        h,
		Metrics:    metrics,
	}, settings.Worker, nil)

	for _, cam := range settings.Cameras {
		if err := registry.AddCamera(cam); err != nil {
			return err
		}
	}
	if err := registry.StartAll(); err != nil {
		logger.Error("some cameras failed to start", "error", err)
	}

	var server *api.Server
	if settings.WebServer.Enabled {
		server = api.NewServer(registry, history, h, gate, dispatcher, metrics)
		go func() {
			if err := server.Start(settings.WebServer.Port); err != nil {
				logger.Error("http server exited", "error", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if settings.Log.Dir != "" {
		alertLog, closeLog, err := logging.NewFileLogger(
			filepath.Join(settings.Log.Dir, "alerts.log"), "alerts", slog.LevelInfo,
			logging.FileLoggerOptions{
				MaxSizeMB:  settings.Log.MaxSizeMB,
				MaxBackups: settings.Log.MaxBackups,
				MaxAgeDays: settings.Log.MaxAgeDays,
			})
		if err != nil {
			return err
		}
		defer func() {
			_ = closeLog()
		}()
		go logAlerts(ctx, h, alertLog)
	}

	go publishStats(ctx, h)

	logger.Info("sentinel running",
		"cameras", len(settings.Cameras),
		"providers", len(providers),
		"detector", settings.Detector.Endpoint)
	<-ctx.Done()

	logger.Info("shutting down")
	if err := registry.StopAll(); err != nil {
		logger.Error("camera shutdown incomplete", "error", err)
	}
	dispatcher.Stop()
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown failed", "error", err)
		}
		cancel()
	}
	h.Close()

	logger.Info("shutdown complete")
	return nil
}

// logAlerts appends every accepted alert to the rotated alert log.
func logAlerts(ctx context.Context, h *hub.Hub, logger *slog.Logger) {
	id, events := h.Subscribe()
	defer h.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Type != hub.EventAlert || ev.Alert == nil {
				continue
			}
			logger.Info("alert",
				"alert_id", ev.Alert.ID,
				"camera_id", ev.Alert.Detection.CameraID,
				"camera_name", ev.Alert.CameraName,
				"class", ev.Alert.Detection.Class,
				"confidence", ev.Alert.Detection.Confidence,
				"severity", ev.Alert.Severity,
				"artifact", ev.Alert.ArtifactPath)
		}
	}
}

// publishStats periodically pushes a stats snapshot to hub subscribers so
// dashboards refresh even when nothing is detected.
func publishStats(ctx context.Context, h *hub.Hub) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.PublishStats()
		}
	}
}
