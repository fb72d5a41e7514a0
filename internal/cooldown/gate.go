// Package cooldown implements keyed alert suppression. A detection is
// accepted at most once per cooldown window for a given key, where the
// key combines camera id, detection class and the quantized bounding box
// origin. One Gate instance is shared by all camera workers, so the key
// carries the camera id and cross-camera decisions stay independent.
package cooldown

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/tphakala/sentinel-go/internal/detection"
	"github.com/tphakala/sentinel-go/internal/logging"
)

const (
	// DefaultWindow is the minimum time between two accepted alerts
	// sharing a key.
	DefaultWindow = 30 * time.Second

	// DefaultGridSize quantizes bbox origins so small jitter of the same
	// real-world object maps to one key.
	DefaultGridSize = 50

	// ttlWindows controls how long idle keys survive before the cache
	// sweeps them. Eviction only widens acceptance, never suppresses:
	// a missing key is always accepted.
	ttlWindows = 3
)

// Gate suppresses repeat alerts per key within the cooldown window.
// Safe for concurrent use. State is in-memory only; a process restart
// resets cooldown memory, which is accepted best-effort behavior.
type Gate struct {
	window   time.Duration
	gridSize int
	entries  *gocache.Cache
	mu       sync.Mutex
	now      func() time.Time
	logger   *slog.Logger

	accepted   atomic.Uint64
	suppressed atomic.Uint64
}

// Stats reports gate counters since construction.
type Stats struct {
	Accepted   uint64
	Suppressed uint64
	ActiveKeys int
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock injects a time source, used by tests to step through window
// boundaries deterministically.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// New creates a gate with the given window and quantization grid.
// Non-positive arguments fall back to the defaults.
func New(window time.Duration, gridSize int, opts ...Option) *Gate {
	if window <= 0 {
		window = DefaultWindow
	}
	if gridSize <= 0 {
		gridSize = DefaultGridSize
	}

	g := &Gate{
		window:   window,
		gridSize: gridSize,
		entries:  gocache.New(ttlWindows*window, window),
		now:      time.Now,
		logger:   logging.ForService("cooldown"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Key computes the cooldown key for a detection.
func (g *Gate) Key(det *detection.Detection) string {
	qx := (det.BBox.X1 / g.gridSize) * g.gridSize
	qy := (det.BBox.Y1 / g.gridSize) * g.gridSize
	return fmt.Sprintf("%s|%s|%d:%d", det.CameraID, det.Class, qx, qy)
}

// ShouldAlert reports whether the detection may become an alert, and on
// acceptance records the accept time for its key. The check and the
// record are one atomic step, so concurrent workers sharing a key cannot
// both be accepted inside one window.
func (g *Gate) ShouldAlert(det *detection.Detection) bool {
	key := g.Key(det)
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	if v, found := g.entries.Get(key); found {
		last := v.(time.Time)
		if now.Sub(last) < g.window {
			g.suppressed.Add(1)
			g.logger.Debug("alert suppressed by cooldown",
				"key", key,
				"since_last", now.Sub(last),
				"window", g.window)
			return false
		}
	}

	g.entries.Set(key, now, gocache.DefaultExpiration)
	g.accepted.Add(1)
	return true
}

// Window returns the configured cooldown window.
func (g *Gate) Window() time.Duration {
	return g.window
}

// GetStats returns acceptance counters and the live key count.
func (g *Gate) GetStats() Stats {
	return Stats{
		Accepted:   g.accepted.Load(),
		Suppressed: g.suppressed.Load(),
		ActiveKeys: g.entries.ItemCount(),
	}
}
