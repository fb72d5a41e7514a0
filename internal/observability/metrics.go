// Package observability exposes prometheus metrics for the surveillance
// pipeline.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all pipeline collectors, registered on one registry so
// tests can use isolated registries.
type Metrics struct {
	FramesProcessed   *prometheus.CounterVec
	FrameReadFailures *prometheus.CounterVec
	DetectorCalls     *prometheus.CounterVec
	DetectorFailures  *prometheus.CounterVec
	Detections        *prometheus.CounterVec
	AlertsCreated     *prometheus.CounterVec

	NotificationsDelivered *prometheus.CounterVec
	NotificationsFailed    *prometheus.CounterVec
	NotificationQueueDepth prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates and registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		FramesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_frames_processed_total",
			Help: "Frames pulled and processed per camera.",
		}, []string{"camera_id"}),
		FrameReadFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_frame_read_failures_total",
			Help: "Transient frame acquisition failures per camera.",
		}, []string{"camera_id"}),
		DetectorCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_detector_calls_total",
			Help: "Detector oracle invocations per camera.",
		}, []string{"camera_id"}),
		DetectorFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_detector_failures_total",
			Help: "Detector oracle failures and timeouts per camera.",
		}, []string{"camera_id"}),
		Detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_detections_total",
			Help: "Raw detections per camera and class.",
		}, []string{"camera_id", "class"}),
		AlertsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_alerts_created_total",
			Help: "Alerts accepted past the cooldown gate.",
		}, []string{"camera_id", "severity"}),
		NotificationsDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_notifications_delivered_total",
			Help: "Successful channel deliveries per provider.",
		}, []string{"provider"}),
		NotificationsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_notifications_failed_total",
			Help: "Failed channel deliveries per provider.",
		}, []string{"provider"}),
		NotificationQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentinel_notification_queue_depth",
			Help: "Current depth of the notification queue.",
		}),
	}

	registry.MustRegister(
		m.FramesProcessed,
		m.FrameReadFailures,
		m.DetectorCalls,
		m.DetectorFailures,
		m.Detections,
		m.AlertsCreated,
		m.NotificationsDelivered,
		m.NotificationsFailed,
		m.NotificationQueueDepth,
	)

	return m
}

// Registry returns the backing registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
