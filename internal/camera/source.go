// Package camera runs one worker goroutine per configured video source,
// feeding frames through the detection pipeline and exposing lifecycle
// control through a registry.
package camera

import (
	"context"
	"strings"

	"github.com/tphakala/sentinel-go/internal/conf"
	"github.com/tphakala/sentinel-go/internal/detection"
	"github.com/tphakala/sentinel-go/internal/errors"
)

// Source is a stream of JPEG frames. Implementations pace Read by frame
// availability; Read blocks until a frame arrives, the context is done,
// or the stream ends.
type Source interface {
	Open(ctx context.Context) error
	Read(ctx context.Context) (*detection.Frame, error)
	Close() error
}

// SourceFactory builds a Source for a camera config. The registry takes
// one so tests can substitute fakes.
type SourceFactory func(cfg conf.CameraConfig) (Source, error)

// NewSource picks a source implementation from the config: http(s) URLs
// stream MJPEG, anything else is treated as a directory of JPEG files
// replayed in order.
func NewSource(cfg conf.CameraConfig) (Source, error) {
	switch {
	case cfg.Source == "":
		return nil, errors.Newf("camera %s has no source", cfg.ID).
			Component("camera").
			Category(errors.CategoryValidation).
			Build()
	case strings.HasPrefix(cfg.Source, "http://"), strings.HasPrefix(cfg.Source, "https://"):
		return NewMJPEGSource(cfg.ID, cfg.Source), nil
	default:
		return NewReplaySource(cfg.ID, cfg.Source, 0), nil
	}
}
