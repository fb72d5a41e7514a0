package camera

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tphakala/sentinel-go/internal/detection"
	"github.com/tphakala/sentinel-go/internal/errors"
)

// DefaultReplayInterval paces directory replay at roughly 5 fps.
const DefaultReplayInterval = 200 * time.Millisecond

// ReplaySource serves JPEG files from a directory in filename order,
// looping forever. Useful for demos and for exercising the pipeline
// without a live camera.
type ReplaySource struct {
	cameraID string
	dir      string
	interval time.Duration

	files []string
	idx   int
}

// NewReplaySource creates an unopened replay source. interval <= 0 uses
// the default.
func NewReplaySource(cameraID, dir string, interval time.Duration) *ReplaySource {
	if interval <= 0 {
		interval = DefaultReplayInterval
	}
	return &ReplaySource{
		cameraID: cameraID,
		dir:      dir,
		interval: interval,
	}
}

// Open scans the directory for JPEG files.
func (s *ReplaySource) Open(_ context.Context) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return errors.New(err).
			Component("camera").
			Category(errors.CategoryCamera).
			Context("camera_id", s.cameraID).
			Build()
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".jpg" || ext == ".jpeg" {
			files = append(files, filepath.Join(s.dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return errors.Newf("no jpeg files in %s", s.dir).
			Component("camera").
			Category(errors.CategoryCamera).
			Context("camera_id", s.cameraID).
			Build()
	}
	sort.Strings(files)

	s.files = files
	s.idx = 0
	return nil
}

// Read waits one frame interval, then returns the next file, wrapping
// around at the end.
func (s *ReplaySource) Read(ctx context.Context) (*detection.Frame, error) {
	if len(s.files) == 0 {
		return nil, errors.Newf("replay source not open").
			Component("camera").
			Category(errors.CategoryCamera).
			Context("camera_id", s.cameraID).
			Build()
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(s.interval):
	}

	path := s.files[s.idx]
	s.idx = (s.idx + 1) % len(s.files)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(err).
			Component("camera").
			Category(errors.CategoryCamera).
			Context("camera_id", s.cameraID).
			Context("path", path).
			Build()
	}

	return &detection.Frame{
		CameraID: s.cameraID,
		Data:     data,
		Captured: time.Now(),
	}, nil
}

// Close releases nothing; replay holds no handles between reads.
func (s *ReplaySource) Close() error {
	s.files = nil
	return nil
}
