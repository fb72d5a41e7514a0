package camera

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/tphakala/sentinel-go/internal/conf"
	"github.com/tphakala/sentinel-go/internal/errors"
	"github.com/tphakala/sentinel-go/internal/logging"
)

// Registry owns the set of camera workers and supervises their
// lifecycles. Callers only ever see status snapshots, never live worker
// references.
type Registry struct {
	mu      sync.Mutex
	workers map[string]*Worker

	pipe      Pipeline
	workerCfg conf.WorkerConfig
	newSource SourceFactory
	logger    *slog.Logger
}

// NewRegistry creates an empty registry. factory may be nil, in which
// case NewSource picks implementations from each camera's config.
func NewRegistry(pipe Pipeline, workerCfg conf.WorkerConfig, factory SourceFactory) *Registry {
	if factory == nil {
		factory = NewSource
	}
	return &Registry{
		workers:   make(map[string]*Worker),
		pipe:      pipe,
		workerCfg: workerCfg,
		newSource: factory,
		logger:    logging.ForService("camera-registry"),
	}
}

// AddCamera registers a camera in the Stopped state. Duplicate ids are
// rejected.
func (r *Registry) AddCamera(cfg conf.CameraConfig) error {
	if cfg.ID == "" {
		return errors.Newf("camera id is required").
			Component("camera-registry").
			Category(errors.CategoryValidation).
			Build()
	}
	if cfg.Name == "" {
		cfg.Name = "Camera " + cfg.ID
	}

	source, err := r.newSource(cfg)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.workers[cfg.ID]; exists {
		return errors.Newf("camera %s already exists", cfg.ID).
			Component("camera-registry").
			Category(errors.CategoryConflict).
			Build()
	}
	r.workers[cfg.ID] = NewWorker(cfg, r.workerCfg, source, r.pipe)

	r.logger.Info("camera added", "camera_id", cfg.ID, "source", cfg.Source)
	return nil
}

// RemoveCamera unregisters a camera. A Running or Starting camera must be
// stopped first.
func (r *Registry) RemoveCamera(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.workers[id]
	if !ok {
		return r.notFound(id)
	}
	switch w.State() {
	case StateRunning, StateStarting, StateStopping:
		return errors.Newf("camera %s is active, stop it first", id).
			Component("camera-registry").
			Category(errors.CategoryConflict).
			Build()
	}
	delete(r.workers, id)
	if r.pipe.Hub != nil {
		r.pipe.Hub.DropFrame(id)
	}

	r.logger.Info("camera removed", "camera_id", id)
	return nil
}

// StartCamera starts one camera's worker. Starting an already running
// camera is a no-op.
func (r *Registry) StartCamera(id string) error {
	w, err := r.worker(id)
	if err != nil {
		return err
	}
	return w.Start()
}

// StopCamera stops one camera's worker, waiting bounded.
func (r *Registry) StopCamera(id string) error {
	w, err := r.worker(id)
	if err != nil {
		return err
	}
	return w.Stop()
}

// StartAll starts every registered camera, collecting failures.
func (r *Registry) StartAll() error {
	var errs []error
	for _, w := range r.snapshot() {
		if err := w.Start(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StopAll stops every camera concurrently. Each worker gets the bounded
// stop wait; one stuck worker is marked Failed without delaying the
// others beyond the shared bound.
func (r *Registry) StopAll() error {
	workers := r.snapshot()

	var wg sync.WaitGroup
	errCh := make(chan error, len(workers))
	for _, w := range workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			if err := w.Stop(); err != nil {
				errCh <- err
			}
		}(w)
	}
	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Status returns a snapshot of every camera, sorted by id.
func (r *Registry) Status() []Status {
	workers := r.snapshot()

	statuses := make([]Status, 0, len(workers))
	for _, w := range workers {
		statuses = append(statuses, w.GetStatus())
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].ID < statuses[j].ID })
	return statuses
}

// CameraStatus returns the snapshot for one camera.
func (r *Registry) CameraStatus(id string) (Status, error) {
	w, err := r.worker(id)
	if err != nil {
		return Status{}, err
	}
	return w.GetStatus(), nil
}

func (r *Registry) worker(id string) (*Worker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.workers[id]
	if !ok {
		return nil, r.notFound(id)
	}
	return w, nil
}

func (r *Registry) snapshot() []*Worker {
	r.mu.Lock()
	defer r.mu.Unlock()

	workers := make([]*Worker, 0, len(r.workers))
	for _, w := range r.workers {
		workers = append(workers, w)
	}
	return workers
}

func (r *Registry) notFound(id string) error {
	return errors.Newf("camera %s not found", id).
		Component("camera-registry").
		Category(errors.CategoryNotFound).
		Build()
}
