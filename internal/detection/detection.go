// Package detection defines the detection data model and the client for
// the external object-detection oracle. Detections are consumed as
// opaque, already-validated data; this package never inspects image
// contents beyond forwarding them.
package detection

import (
	"context"
	"fmt"
	"time"
)

// Severity classifies how urgent an alert derived from a detection is.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
)

// highConfidenceThreshold is the confidence above which a detection is
// considered high severity.
const highConfidenceThreshold = 0.8

// BoundingBox is a pixel-coordinate box with X1<=X2 and Y1<=Y2.
type BoundingBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Valid reports whether the box coordinates are ordered.
func (b BoundingBox) Valid() bool {
	return b.X1 <= b.X2 && b.Y1 <= b.Y2
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("[%d,%d,%d,%d]", b.X1, b.Y1, b.X2, b.Y2)
}

// Detection is a single oracle result. Immutable once created.
type Detection struct {
	CameraID   string      `json:"camera_id"`
	Class      string      `json:"class"`
	Confidence float64     `json:"confidence"`
	BBox       BoundingBox `json:"bbox"`
	Timestamp  time.Time   `json:"timestamp"`
}

// Severity derives the alert severity from the detection confidence.
func (d *Detection) Severity() Severity {
	if d.Confidence > highConfidenceThreshold {
		return SeverityHigh
	}
	return SeverityMedium
}

// Frame is a single captured image owned by one worker iteration. Data is
// an encoded JPEG buffer; this package never decodes it.
type Frame struct {
	CameraID string
	Data     []byte
	Captured time.Time
}

// Detector is the external oracle capability. Implementations must not
// mutate the input frame and are expected to honor ctx cancellation.
type Detector interface {
	Detect(ctx context.Context, frame *Frame) ([]Detection, error)
}
