package camera

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tphakala/sentinel-go/internal/alerthistory"
	"github.com/tphakala/sentinel-go/internal/conf"
	"github.com/tphakala/sentinel-go/internal/cooldown"
	"github.com/tphakala/sentinel-go/internal/detection"
	"github.com/tphakala/sentinel-go/internal/errors"
	"github.com/tphakala/sentinel-go/internal/hub"
	"github.com/tphakala/sentinel-go/internal/logging"
	"github.com/tphakala/sentinel-go/internal/notification"
	"github.com/tphakala/sentinel-go/internal/observability"
)

// State is the lifecycle phase of a camera worker.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateFailed   State = "failed"
)

// Worker timeout defaults, applied when the config leaves them zero.
const (
	defaultReadTimeout    = 2 * time.Second
	defaultFailureWindow  = 2 * time.Second
	defaultStopTimeout    = 5 * time.Second
	defaultOpenTimeout    = 10 * time.Second
	defaultDetectorBudget = 10 * time.Second
)

// Pipeline bundles the shared collaborators every worker feeds. Detector,
// Gate, History and Hub are required; the rest may be nil.
type Pipeline struct {
	Detector   detection.Detector
	Gate       *cooldown.Gate
	History    *alerthistory.Store
	Artifacts  alerthistory.ArtifactStore
	Dispatcher *notification.Dispatcher
	Hub        *hub.Hub
	Metrics    *observability.Metrics
}

// Status is a point-in-time snapshot of a worker, safe to hand to API
// callers.
type Status struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Source            string     `json:"source"`
	State             State      `json:"state"`
	LastError         string     `json:"last_error,omitempty"`
	LastDetectionTime *time.Time `json:"last_detection_time,omitempty"`
	DetectionCount    uint64     `json:"detection_count"`
}

// Worker owns one camera's read loop. All state transitions happen under
// its mutex; the loop itself runs in a single goroutine per Start.
type Worker struct {
	cfg  conf.CameraConfig
	wcfg conf.WorkerConfig
	pipe Pipeline

	source Source
	logger *slog.Logger

	mu            sync.Mutex
	state         State
	lastErr       string
	lastDetection time.Time
	detections    uint64
	cancel        context.CancelFunc
	done          chan struct{}
}

// NewWorker creates a stopped worker. The source must be unopened.
func NewWorker(cfg conf.CameraConfig, wcfg conf.WorkerConfig, source Source, pipe Pipeline) *Worker {
	if wcfg.ReadTimeout <= 0 {
		wcfg.ReadTimeout = defaultReadTimeout
	}
	if wcfg.FailureWindow <= 0 {
		wcfg.FailureWindow = defaultFailureWindow
	}
	if wcfg.StopTimeout <= 0 {
		wcfg.StopTimeout = defaultStopTimeout
	}
	if wcfg.OpenTimeout <= 0 {
		wcfg.OpenTimeout = defaultOpenTimeout
	}
	if wcfg.DetectorBudget <= 0 {
		wcfg.DetectorBudget = defaultDetectorBudget
	}
	return &Worker{
		cfg:    cfg,
		wcfg:   wcfg,
		pipe:   pipe,
		source: source,
		state:  StateStopped,
		logger: logging.ForService("camera").With("camera_id", cfg.ID),
	}
}

// ID returns the camera id.
func (w *Worker) ID() string { return w.cfg.ID }

// State returns the current lifecycle state.
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// GetStatus returns a snapshot of the worker.
func (w *Worker) GetStatus() Status {
	w.mu.Lock()
	defer w.mu.Unlock()

	st := Status{
		ID:             w.cfg.ID,
		Name:           w.cfg.Name,
		Source:         w.cfg.Source,
		State:          w.state,
		LastError:      w.lastErr,
		DetectionCount: w.detections,
	}
	if !w.lastDetection.IsZero() {
		last := w.lastDetection
		st.LastDetectionTime = &last
	}
	return st
}

// Start launches the read loop. Starting an already Starting or Running
// worker is a no-op. A Failed or Stopped worker may be started again.
func (w *Worker) Start() error {
	w.mu.Lock()
	switch w.state {
	case StateStarting, StateRunning:
		w.mu.Unlock()
		return nil
	case StateStopping:
		w.mu.Unlock()
		return errors.Newf("camera %s is stopping", w.cfg.ID).
			Component("camera").
			Category(errors.CategoryConflict).
			Build()
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})
	w.state = StateStarting
	w.lastErr = ""
	done := w.done
	w.mu.Unlock()

	go w.run(ctx, done)
	return nil
}

// Stop asks the loop to exit and waits bounded. A worker that misses the
// deadline is marked Failed and an error returned; the supervisor never
// blocks on it again.
func (w *Worker) Stop() error {
	w.mu.Lock()
	switch w.state {
	case StateStopped, StateFailed:
		w.mu.Unlock()
		return nil
	}
	w.state = StateStopping
	cancel := w.cancel
	done := w.done
	w.mu.Unlock()

	cancel()

	select {
	case <-done:
		return nil
	case <-time.After(w.wcfg.StopTimeout):
		w.fail("worker did not stop within " + w.wcfg.StopTimeout.String())
		return errors.Newf("camera %s did not stop within %s", w.cfg.ID, w.wcfg.StopTimeout).
			Component("camera").
			Category(errors.CategoryTimeout).
			Build()
	}
}

// fail records the reason and moves to Failed.
func (w *Worker) fail(reason string) {
	w.mu.Lock()
	w.state = StateFailed
	w.lastErr = reason
	w.mu.Unlock()

	w.logger.Error("camera worker failed", "reason", reason)
}

// finishStopped moves to Stopped unless a late Stop already marked the
// worker Failed.
func (w *Worker) finishStopped() {
	w.mu.Lock()
	if w.state != StateFailed {
		w.state = StateStopped
	}
	w.mu.Unlock()

	w.logger.Info("camera worker stopped")
}

func (w *Worker) setRunning() {
	w.mu.Lock()
	w.state = StateRunning
	w.mu.Unlock()
}

func (w *Worker) recordDetection(ts time.Time) {
	w.mu.Lock()
	w.detections++
	if ts.After(w.lastDetection) {
		w.lastDetection = ts
	}
	w.mu.Unlock()
}

// run is the worker goroutine: open the source, then pull frames until
// cancelled or the stream degrades past the failure window.
func (w *Worker) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	openCtx, cancel := context.WithTimeout(ctx, w.wcfg.OpenTimeout)
	err := w.source.Open(openCtx)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			_ = w.source.Close()
			w.finishStopped()
			return
		}
		w.fail("source open failed: " + err.Error())
		return
	}

	w.setRunning()
	w.logger.Info("camera worker running", "source", w.cfg.Source)

	var failingSince time.Time
	for {
		select {
		case <-ctx.Done():
			_ = w.source.Close()
			w.finishStopped()
			return
		default:
		}

		readCtx, cancel := context.WithTimeout(ctx, w.wcfg.ReadTimeout)
		frame, err := w.source.Read(readCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				_ = w.source.Close()
				w.finishStopped()
				return
			}
			if w.pipe.Metrics != nil {
				w.pipe.Metrics.FrameReadFailures.WithLabelValues(w.cfg.ID).Inc()
			}
			if failingSince.IsZero() {
				failingSince = time.Now()
				w.logger.Warn("frame read failed", "error", err)
				continue
			}
			if time.Since(failingSince) > w.wcfg.FailureWindow {
				_ = w.source.Close()
				w.fail("stream lost: " + err.Error())
				return
			}
			continue
		}
		failingSince = time.Time{}

		if w.pipe.Metrics != nil {
			w.pipe.Metrics.FramesProcessed.WithLabelValues(w.cfg.ID).Inc()
		}

		w.process(ctx, frame)
		w.pipe.Hub.PublishFrame(w.cfg.ID, frame.Data, frame.Captured)
	}
}

// process runs one frame through the detector and turns accepted
// detections into alerts. A detector failure or timeout skips the frame.
func (w *Worker) process(ctx context.Context, frame *detection.Frame) {
	detCtx, cancel := context.WithTimeout(ctx, w.wcfg.DetectorBudget)
	dets, err := w.pipe.Detector.Detect(detCtx, frame)
	cancel()

	if w.pipe.Metrics != nil {
		w.pipe.Metrics.DetectorCalls.WithLabelValues(w.cfg.ID).Inc()
	}
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		if w.pipe.Metrics != nil {
			w.pipe.Metrics.DetectorFailures.WithLabelValues(w.cfg.ID).Inc()
		}
		w.logger.Warn("detector call failed, skipping frame", "error", err)
		return
	}

	for i := range dets {
		det := dets[i]

		if w.pipe.Metrics != nil {
			w.pipe.Metrics.Detections.WithLabelValues(w.cfg.ID, det.Class).Inc()
		}
		w.recordDetection(det.Timestamp)
		w.pipe.Hub.PublishDetection(det)

		if !w.pipe.Gate.ShouldAlert(&det) {
			w.logger.Debug("detection suppressed by cooldown",
				"class", det.Class,
				"bbox", det.BBox.String())
			continue
		}
		w.raiseAlert(&det, frame)
	}
}

// raiseAlert saves the frame artifact, appends to history, enqueues the
// notification and broadcasts the alert. An artifact save failure is
// logged and the alert proceeds without one.
func (w *Worker) raiseAlert(det *detection.Detection, frame *detection.Frame) {
	artifactPath := ""
	if w.pipe.Artifacts != nil {
		path, err := w.pipe.Artifacts.Save(w.cfg.ID, frame.Data)
		if err != nil {
			w.logger.Error("artifact save failed", "error", err)
		} else {
			artifactPath = path
		}
	}

	alert := alerthistory.NewAlert(*det, w.cfg.Name, artifactPath)
	w.pipe.History.Append(alert)

	if w.pipe.Metrics != nil {
		w.pipe.Metrics.AlertsCreated.WithLabelValues(w.cfg.ID, string(alert.Severity)).Inc()
	}
	if w.pipe.Dispatcher != nil {
		w.pipe.Dispatcher.Enqueue(notification.NewNotification(alert))
	}
	w.pipe.Hub.PublishAlert(alert)

	w.logger.Info("alert raised",
		"alert_id", alert.ID,
		"class", det.Class,
		"confidence", det.Confidence,
		"severity", alert.Severity)
}
