package camera

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/sentinel-go/internal/alerthistory"
	"github.com/tphakala/sentinel-go/internal/conf"
	"github.com/tphakala/sentinel-go/internal/cooldown"
	"github.com/tphakala/sentinel-go/internal/detection"
	"github.com/tphakala/sentinel-go/internal/hub"
)

// fakeSource serves canned frames, then waits on the context. It records
// open and close so tests can assert handle release.
type fakeSource struct {
	mu      sync.Mutex
	opened  bool
	closed  bool
	openErr error
	readErr error
	frames  [][]byte
	idx     int
	stuck   bool // Read ignores the context and never returns
}

func (f *fakeSource) Open(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return f.openErr
	}
	f.opened = true
	return nil
}

func (f *fakeSource) Read(ctx context.Context) (*detection.Frame, error) {
	if f.stuck {
		select {}
	}

	f.mu.Lock()
	if f.readErr != nil {
		err := f.readErr
		f.mu.Unlock()
		return nil, err
	}
	if f.idx < len(f.frames) {
		data := f.frames[f.idx]
		f.idx++
		f.mu.Unlock()
		return &detection.Frame{CameraID: "cam1", Data: data, Captured: time.Now()}, nil
	}
	f.mu.Unlock()

	<-ctx.Done()
	return nil, ctx.Err()
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSource) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeDetector returns the same detections for every frame.
type fakeDetector struct {
	dets []detection.Detection
	err  error
}

func (f *fakeDetector) Detect(_ context.Context, frame *detection.Frame) ([]detection.Detection, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]detection.Detection, len(f.dets))
	for i, d := range f.dets {
		d.CameraID = frame.CameraID
		d.Timestamp = frame.Captured
		out[i] = d
	}
	return out, nil
}

// memArtifacts is an in-memory artifact store.
type memArtifacts struct {
	mu      sync.Mutex
	saves   int
	deleted []string
}

func (m *memArtifacts) Save(cameraID string, _ []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	return fmt.Sprintf("alerts/alert_%s_%d.jpg", cameraID, m.saves), nil
}

func (m *memArtifacts) Delete(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, path)
	return nil
}

func fastWorkerConfig() conf.WorkerConfig {
	return conf.WorkerConfig{
		ReadTimeout:    50 * time.Millisecond,
		FailureWindow:  10 * time.Second,
		StopTimeout:    2 * time.Second,
		OpenTimeout:    time.Second,
		DetectorBudget: time.Second,
	}
}

func testPipeline(artifacts alerthistory.ArtifactStore, det detection.Detector) Pipeline {
	return Pipeline{
		Detector:  det,
		Gate:      cooldown.New(30*time.Second, 50),
		History:   alerthistory.NewStore(10, artifacts),
		Artifacts: artifacts,
		Hub:       hub.New(),
	}
}

func TestWorkerStopReleasesSourceAndStops(t *testing.T) {
	src := &fakeSource{}
	pipe := testPipeline(&memArtifacts{}, &fakeDetector{})
	w := NewWorker(conf.CameraConfig{ID: "cam1", Name: "Front"}, fastWorkerConfig(), src, pipe)

	require.NoError(t, w.Start())
	require.Eventually(t, func() bool {
		return w.State() == StateRunning
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, w.Stop())
	assert.Equal(t, StateStopped, w.State())
	assert.True(t, src.isClosed(), "source handle must be released on stop")
}

func TestWorkerStartIdempotent(t *testing.T) {
	src := &fakeSource{}
	pipe := testPipeline(&memArtifacts{}, &fakeDetector{})
	w := NewWorker(conf.CameraConfig{ID: "cam1"}, fastWorkerConfig(), src, pipe)

	require.NoError(t, w.Start())
	require.NoError(t, w.Start())
	require.NoError(t, w.Start())

	require.Eventually(t, func() bool {
		return w.State() == StateRunning
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, w.Stop())
}

func TestWorkerOpenFailureBecomesFailed(t *testing.T) {
	src := &fakeSource{openErr: fmt.Errorf("connection refused")}
	pipe := testPipeline(&memArtifacts{}, &fakeDetector{})
	w := NewWorker(conf.CameraConfig{ID: "cam1"}, fastWorkerConfig(), src, pipe)

	require.NoError(t, w.Start())
	require.Eventually(t, func() bool {
		return w.State() == StateFailed
	}, 2*time.Second, 5*time.Millisecond)

	st := w.GetStatus()
	assert.Contains(t, st.LastError, "connection refused")
}

func TestWorkerPersistentReadFailureBecomesFailed(t *testing.T) {
	src := &fakeSource{readErr: fmt.Errorf("stream reset")}
	cfg := fastWorkerConfig()
	cfg.FailureWindow = 50 * time.Millisecond

	pipe := testPipeline(&memArtifacts{}, &fakeDetector{})
	w := NewWorker(conf.CameraConfig{ID: "cam1"}, cfg, src, pipe)

	require.NoError(t, w.Start())
	require.Eventually(t, func() bool {
		return w.State() == StateFailed
	}, 2*time.Second, 5*time.Millisecond)

	assert.True(t, src.isClosed())
	assert.Contains(t, w.GetStatus().LastError, "stream lost")
}

// Five frames of the same knife in the same spot must produce exactly one
// alert; the cooldown gate suppresses the rest.
func TestFiveFrameSameDetectionSingleAlert(t *testing.T) {
	frames := make([][]byte, 5)
	for i := range frames {
		frames[i] = []byte("jpeg-frame")
	}
	src := &fakeSource{frames: frames}
	det := &fakeDetector{dets: []detection.Detection{{
		Class:      "knife",
		Confidence: 0.92,
		BBox:       detection.BoundingBox{X1: 100, Y1: 100, X2: 200, Y2: 200},
	}}}

	artifacts := &memArtifacts{}
	pipe := testPipeline(artifacts, det)
	w := NewWorker(conf.CameraConfig{ID: "cam1", Name: "Front"}, fastWorkerConfig(), src, pipe)

	require.NoError(t, w.Start())
	require.Eventually(t, func() bool {
		return pipe.Hub.GetStats().TotalDetections == 5
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, w.Stop())

	assert.Equal(t, 1, pipe.History.Len(), "exactly one alert expected")
	assert.Equal(t, uint64(1), pipe.Hub.GetStats().AlertsSent)
	assert.Equal(t, 1, artifacts.saves)

	latest, ok := pipe.History.Latest()
	require.True(t, ok)
	assert.Equal(t, "knife", latest.Detection.Class)
	assert.Equal(t, detection.SeverityHigh, latest.Severity)
	assert.Equal(t, "Front", latest.CameraName)

	st := w.GetStatus()
	assert.Equal(t, uint64(5), st.DetectionCount)
	require.NotNil(t, st.LastDetectionTime)
}

func TestWorkerDetectorFailureSkipsFrame(t *testing.T) {
	src := &fakeSource{frames: [][]byte{[]byte("f1"), []byte("f2")}}
	det := &fakeDetector{err: fmt.Errorf("oracle overloaded")}

	pipe := testPipeline(&memArtifacts{}, det)
	w := NewWorker(conf.CameraConfig{ID: "cam1"}, fastWorkerConfig(), src, pipe)

	require.NoError(t, w.Start())
	require.Eventually(t, func() bool {
		_, _, ok := pipe.Hub.LatestFrame("cam1")
		return ok
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, w.Stop())

	// Frames still reach the hub; no alerts are raised.
	assert.Zero(t, pipe.History.Len())
	assert.Equal(t, StateStopped, w.State())
}

func TestWorkerStopTimeoutMarksFailed(t *testing.T) {
	src := &fakeSource{stuck: true}
	cfg := fastWorkerConfig()
	cfg.StopTimeout = 100 * time.Millisecond

	pipe := testPipeline(&memArtifacts{}, &fakeDetector{})
	w := NewWorker(conf.CameraConfig{ID: "cam1"}, cfg, src, pipe)

	require.NoError(t, w.Start())
	require.Eventually(t, func() bool {
		return w.State() == StateRunning
	}, 2*time.Second, 5*time.Millisecond)

	err := w.Stop()
	require.Error(t, err)
	assert.Equal(t, StateFailed, w.State())
}
