package alerthistory

import (
	"log/slog"
	"sync"

	"github.com/tphakala/sentinel-go/internal/logging"
)

const (
	// DefaultMaxEntries bounds the history when no limit is configured.
	DefaultMaxEntries = 100

	// DefaultRecentLimit is the Recent page size when callers pass 0.
	DefaultRecentLimit = 50
)

// Store is a bounded FIFO of alerts shared by all camera workers. All
// mutation happens under one mutex, which also serializes artifact
// deletion on eviction so a reader can never see an alert whose artifact
// was already deleted. Insertion order is global across cameras.
type Store struct {
	mu        sync.Mutex
	entries   []*Alert // oldest first
	maxSize   int
	nextID    int64
	artifacts ArtifactStore
	logger    *slog.Logger
}

// NewStore creates a history store bound to maxSize entries.
func NewStore(maxSize int, artifacts ArtifactStore) *Store {
	if maxSize <= 0 {
		maxSize = DefaultMaxEntries
	}
	return &Store{
		entries:   make([]*Alert, 0, maxSize),
		maxSize:   maxSize,
		artifacts: artifacts,
		logger:    logging.ForService("alert-history"),
	}
}

// Append inserts the alert as the newest entry, assigns its monotonic id,
// and returns the evicted oldest alert when the store was full. The
// evicted alert's artifact has already been deleted on return.
func (s *Store) Append(alert *Alert) *Alert {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	alert.ID = s.nextID

	var evicted *Alert
	if len(s.entries) >= s.maxSize {
		evicted = s.entries[0]
		s.entries = append(s.entries[:0], s.entries[1:]...)
		s.deleteArtifactLocked(evicted)
	}
	s.entries = append(s.entries, alert)

	return evicted
}

// Latest returns a copy of the most recent alert.
func (s *Store) Latest() (Alert, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) == 0 {
		return Alert{}, false
	}
	return *s.entries[len(s.entries)-1], true
}

// Recent returns copies of up to limit alerts, newest first. A limit of 0
// applies DefaultRecentLimit. Repeated calls without mutation yield the
// same sequence.
func (s *Store) Recent(limit int) []Alert {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := min(limit, len(s.entries))
	out := make([]Alert, 0, n)
	for i := len(s.entries) - 1; i >= len(s.entries)-n; i-- {
		out = append(out, *s.entries[i])
	}
	return out
}

// Len returns the current number of alerts.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Clear removes every alert and deletes every artifact. Operator action.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, alert := range s.entries {
		s.deleteArtifactLocked(alert)
	}
	cleared := len(s.entries)
	s.entries = s.entries[:0]

	s.logger.Info("alert history cleared", "removed", cleared)
}

// deleteArtifactLocked deletes an alert's artifact, logging failures
// without failing the caller. History metadata integrity takes priority
// over artifact bookkeeping.
func (s *Store) deleteArtifactLocked(alert *Alert) {
	if alert.ArtifactPath == "" || s.artifacts == nil {
		return
	}
	if err := s.artifacts.Delete(alert.ArtifactPath); err != nil {
		s.logger.Warn("failed to delete alert artifact",
			"alert_id", alert.ID,
			"path", alert.ArtifactPath,
			"error", err)
	}
}
