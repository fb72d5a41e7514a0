// Package hub fans pipeline events out to live consumers such as SSE
// dashboard streams. Publishing never blocks the pipeline: slow
// subscribers lose events, and per-camera frames are a latest-wins slot
// rather than a queue.
package hub

import (
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/sentinel-go/internal/alerthistory"
	"github.com/tphakala/sentinel-go/internal/detection"
	"github.com/tphakala/sentinel-go/internal/logging"
)

// EventType discriminates hub events.
type EventType string

const (
	EventFrame     EventType = "frame"
	EventDetection EventType = "detection"
	EventAlert     EventType = "alert"
	EventStats     EventType = "stats"
)

// DefaultSubscriberBuffer is the per-subscriber channel depth.
const DefaultSubscriberBuffer = 16

// Event is a single broadcast item. Exactly one of the payload pointers
// is set, according to Type. Frame events carry no pixel data; consumers
// fetch the latest frame from the per-camera slot.
type Event struct {
	Type      EventType            `json:"type"`
	CameraID  string               `json:"camera_id,omitempty"`
	Detection *detection.Detection `json:"detection,omitempty"`
	Alert     *alerthistory.Alert  `json:"alert,omitempty"`
	Stats     *Stats               `json:"stats,omitempty"`
	Timestamp time.Time            `json:"timestamp"`
}

// Stats is a point-in-time snapshot of pipeline counters.
type Stats struct {
	TotalDetections   uint64            `json:"total_detections"`
	PerClass          map[string]uint64 `json:"per_class"`
	LastDetectionTime *time.Time        `json:"last_detection_time,omitempty"`
	AlertsSent        uint64            `json:"alerts_sent"`
}

type frameSlot struct {
	data     []byte
	captured time.Time
}

// Hub is safe for concurrent use by workers and API handlers.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]chan Event
	frames      map[string]frameSlot
	closed      bool

	totalDetections uint64
	perClass        map[string]uint64
	lastDetection   time.Time
	alertsSent      uint64

	bufferSize int
	dropped    atomic.Uint64
	logger     *slog.Logger
}

// New creates an empty hub.
func New() *Hub {
	return &Hub{
		subscribers: make(map[string]chan Event),
		frames:      make(map[string]frameSlot),
		perClass:    make(map[string]uint64),
		bufferSize:  DefaultSubscriberBuffer,
		logger:      logging.ForService("hub"),
	}
}

// Subscribe registers a new consumer and returns its id and receive
// channel. The channel is closed by Unsubscribe or Close.
func (h *Hub) Subscribe() (string, <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := uuid.NewString()
	ch := make(chan Event, h.bufferSize)
	if h.closed {
		close(ch)
		return id, ch
	}
	h.subscribers[id] = ch

	h.logger.Debug("subscriber added", "id", id, "total", len(h.subscribers))
	return id, ch
}

// Unsubscribe removes a consumer and closes its channel. Unknown ids are
// ignored.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.subscribers[id]
	if !ok {
		return
	}
	delete(h.subscribers, id)
	close(ch)

	h.logger.Debug("subscriber removed", "id", id, "total", len(h.subscribers))
}

// Close shuts the hub down, closing every subscriber channel. Publishes
// after Close are no-ops.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subscribers {
		delete(h.subscribers, id)
		close(ch)
	}
}

// PublishFrame stores the newest frame for a camera, replacing any
// previous one, and notifies subscribers that a fresh frame exists.
func (h *Hub) PublishFrame(cameraID string, data []byte, captured time.Time) {
	h.mu.Lock()
	h.frames[cameraID] = frameSlot{data: data, captured: captured}
	h.mu.Unlock()

	h.broadcast(Event{
		Type:      EventFrame,
		CameraID:  cameraID,
		Timestamp: captured,
	})
}

// LatestFrame returns the most recent frame for a camera, if any.
func (h *Hub) LatestFrame(cameraID string) ([]byte, time.Time, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	slot, ok := h.frames[cameraID]
	if !ok {
		return nil, time.Time{}, false
	}
	return slot.data, slot.captured, true
}

// DropFrame discards the stored frame for a camera, used when a camera
// is removed.
func (h *Hub) DropFrame(cameraID string) {
	h.mu.Lock()
	delete(h.frames, cameraID)
	h.mu.Unlock()
}

// PublishDetection records a detection in the stats counters and
// broadcasts it.
func (h *Hub) PublishDetection(det detection.Detection) {
	h.mu.Lock()
	h.totalDetections++
	h.perClass[det.Class]++
	if det.Timestamp.After(h.lastDetection) {
		h.lastDetection = det.Timestamp
	}
	h.mu.Unlock()

	h.broadcast(Event{
		Type:      EventDetection,
		CameraID:  det.CameraID,
		Detection: &det,
		Timestamp: time.Now(),
	})
}

// PublishAlert counts and broadcasts an accepted alert.
func (h *Hub) PublishAlert(alert *alerthistory.Alert) {
	h.mu.Lock()
	h.alertsSent++
	h.mu.Unlock()

	h.broadcast(Event{
		Type:      EventAlert,
		CameraID:  alert.Detection.CameraID,
		Alert:     alert,
		Timestamp: time.Now(),
	})
}

// PublishStats broadcasts a snapshot of the current counters.
func (h *Hub) PublishStats() {
	stats := h.GetStats()
	h.broadcast(Event{
		Type:      EventStats,
		Stats:     &stats,
		Timestamp: time.Now(),
	})
}

// GetStats returns a copy of the pipeline counters.
func (h *Hub) GetStats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := Stats{
		TotalDetections: h.totalDetections,
		PerClass:        maps.Clone(h.perClass),
		AlertsSent:      h.alertsSent,
	}
	if !h.lastDetection.IsZero() {
		last := h.lastDetection
		stats.LastDetectionTime = &last
	}
	return stats
}

// ResetStats zeroes the counters, used together with clearing history.
func (h *Hub) ResetStats() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.totalDetections = 0
	h.perClass = make(map[string]uint64)
	h.lastDetection = time.Time{}
	h.alertsSent = 0
}

// SubscriberCount reports the number of live subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// DroppedEvents reports events discarded because a subscriber buffer was
// full.
func (h *Hub) DroppedEvents() uint64 {
	return h.dropped.Load()
}

// broadcast sends the event to every subscriber without blocking. A full
// subscriber buffer drops the event for that subscriber only.
func (h *Hub) broadcast(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return
	}
	for id, ch := range h.subscribers {
		select {
		case ch <- ev:
		default:
			h.dropped.Add(1)
			h.logger.Debug("subscriber buffer full, dropping event",
				"id", id, "type", ev.Type)
		}
	}
}
