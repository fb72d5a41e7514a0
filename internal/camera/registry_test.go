package camera

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/sentinel-go/internal/conf"
	"github.com/tphakala/sentinel-go/internal/errors"
)

// sourceMap hands out pre-built fakes keyed by camera id.
func sourceMap(sources map[string]*fakeSource) SourceFactory {
	return func(cfg conf.CameraConfig) (Source, error) {
		if src, ok := sources[cfg.ID]; ok {
			return src, nil
		}
		return &fakeSource{}, nil
	}
}

func testRegistry(t *testing.T, sources map[string]*fakeSource) *Registry {
	t.Helper()
	pipe := testPipeline(&memArtifacts{}, &fakeDetector{})
	return NewRegistry(pipe, fastWorkerConfig(), sourceMap(sources))
}

func TestRegistryAddDuplicateRejected(t *testing.T) {
	r := testRegistry(t, nil)

	require.NoError(t, r.AddCamera(conf.CameraConfig{ID: "cam1", Source: "x"}))
	err := r.AddCamera(conf.CameraConfig{ID: "cam1", Source: "y"})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConflict))

	require.Error(t, r.AddCamera(conf.CameraConfig{Source: "no-id"}))
}

func TestRegistryAddDefaultsName(t *testing.T) {
	r := testRegistry(t, nil)

	require.NoError(t, r.AddCamera(conf.CameraConfig{ID: "cam7", Source: "x"}))
	st, err := r.CameraStatus("cam7")
	require.NoError(t, err)
	assert.Equal(t, "Camera cam7", st.Name)
	assert.Equal(t, StateStopped, st.State)
}

func TestRegistryRemoveRejectsActiveCamera(t *testing.T) {
	r := testRegistry(t, nil)
	require.NoError(t, r.AddCamera(conf.CameraConfig{ID: "cam1", Source: "x"}))
	require.NoError(t, r.StartCamera("cam1"))

	require.Eventually(t, func() bool {
		st, err := r.CameraStatus("cam1")
		return err == nil && st.State == StateRunning
	}, 2*time.Second, 5*time.Millisecond)

	err := r.RemoveCamera("cam1")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConflict))

	require.NoError(t, r.StopCamera("cam1"))
	require.NoError(t, r.RemoveCamera("cam1"))

	err = r.StartCamera("cam1")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestRegistryStartStopAll(t *testing.T) {
	r := testRegistry(t, nil)
	for _, id := range []string{"cam1", "cam2", "cam3"} {
		require.NoError(t, r.AddCamera(conf.CameraConfig{ID: id, Source: "x"}))
	}

	require.NoError(t, r.StartAll())
	require.Eventually(t, func() bool {
		for _, st := range r.Status() {
			if st.State != StateRunning {
				return false
			}
		}
		return true
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, r.StopAll())
	for _, st := range r.Status() {
		assert.Equal(t, StateStopped, st.State)
	}
}

func TestRegistryStopAllWithStuckWorker(t *testing.T) {
	sources := map[string]*fakeSource{
		"stuck": {stuck: true},
		"ok":    {},
	}
	pipe := testPipeline(&memArtifacts{}, &fakeDetector{})
	cfg := fastWorkerConfig()
	cfg.StopTimeout = 100 * time.Millisecond
	r := NewRegistry(pipe, cfg, sourceMap(sources))

	require.NoError(t, r.AddCamera(conf.CameraConfig{ID: "stuck", Source: "x"}))
	require.NoError(t, r.AddCamera(conf.CameraConfig{ID: "ok", Source: "x"}))
	require.NoError(t, r.StartAll())

	require.Eventually(t, func() bool {
		for _, st := range r.Status() {
			if st.State != StateRunning {
				return false
			}
		}
		return true
	}, 2*time.Second, 5*time.Millisecond)

	start := time.Now()
	err := r.StopAll()
	elapsed := time.Since(start)

	require.Error(t, err, "the stuck worker must surface a stop error")
	assert.Less(t, elapsed, time.Second, "StopAll must return at the bound")

	stuck, errStatus := r.CameraStatus("stuck")
	require.NoError(t, errStatus)
	assert.Equal(t, StateFailed, stuck.State)

	ok, errStatus := r.CameraStatus("ok")
	require.NoError(t, errStatus)
	assert.Equal(t, StateStopped, ok.State)
}

func TestRegistryStatusSorted(t *testing.T) {
	r := testRegistry(t, nil)
	for _, id := range []string{"cam3", "cam1", "cam2"} {
		require.NoError(t, r.AddCamera(conf.CameraConfig{ID: id, Source: "x"}))
	}

	statuses := r.Status()
	require.Len(t, statuses, 3)
	assert.Equal(t, "cam1", statuses[0].ID)
	assert.Equal(t, "cam2", statuses[1].ID)
	assert.Equal(t, "cam3", statuses[2].ID)
}
