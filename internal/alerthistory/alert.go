// Package alerthistory keeps a bounded, append-only log of alerts and
// owns the lifecycle of their saved image artifacts. Eviction of an alert
// and deletion of its artifact happen in one logical step, so readers
// never observe an alert whose artifact is already gone.
package alerthistory

import (
	"time"

	"github.com/tphakala/sentinel-go/internal/detection"
)

// Alert is a detection that passed the cooldown gate. Created by a camera
// worker, owned by the Store after Append.
type Alert struct {
	// ID is assigned by the store on append and increases monotonically.
	ID int64 `json:"id"`
	// Detection is the single originating detection.
	Detection detection.Detection `json:"detection"`
	// Severity is derived from the detection confidence at creation.
	Severity detection.Severity `json:"severity"`
	// CameraName is the display name of the source camera.
	CameraName string `json:"camera_name"`
	// ArtifactPath references the saved alert image, empty if the save
	// failed.
	ArtifactPath string `json:"artifact_path,omitempty"`
	// CreatedAt is when the alert was constructed.
	CreatedAt time.Time `json:"created_at"`
}

// NewAlert builds an unappended alert from an accepted detection.
func NewAlert(det detection.Detection, cameraName, artifactPath string) *Alert {
	return &Alert{
		Detection:    det,
		Severity:     det.Severity(),
		CameraName:   cameraName,
		ArtifactPath: artifactPath,
		CreatedAt:    time.Now(),
	}
}
