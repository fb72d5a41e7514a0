// Package notification delivers security alerts to external channels. A
// single background consumer drains a bounded FIFO queue and fans each
// notification out to every enabled provider; a failing channel never
// blocks the others or the queue.
package notification

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/sentinel-go/internal/alerthistory"
)

// Notification is the channel-agnostic envelope wrapping an alert plus
// camera display metadata. Each enqueued notification is consumed exactly
// once by the dispatcher.
type Notification struct {
	ID        string             `json:"id"`
	Alert     alerthistory.Alert `json:"alert"`
	Title     string             `json:"title"`
	Message   string             `json:"message"`
	Timestamp time.Time          `json:"timestamp"`
}

// NewNotification builds the envelope for an alert. Title and message are
// rendered once here so every channel sends identical content.
func NewNotification(alert *alerthistory.Alert) *Notification {
	det := &alert.Detection

	title := fmt.Sprintf("WEAPON DETECTED - %s", alert.CameraName)

	var b strings.Builder
	fmt.Fprintf(&b, "Security alert on %s (%s)\n", alert.CameraName, det.CameraID)
	fmt.Fprintf(&b, "Weapon: %s\n", strings.ToUpper(det.Class))
	fmt.Fprintf(&b, "Confidence: %.0f%%\n", det.Confidence*100)
	fmt.Fprintf(&b, "Severity: %s\n", alert.Severity)
	fmt.Fprintf(&b, "Location: %s\n", det.BBox.String())
	fmt.Fprintf(&b, "Time: %s", alert.CreatedAt.Format(time.RFC3339))

	return &Notification{
		ID:        uuid.NewString(),
		Alert:     *alert,
		Title:     title,
		Message:   b.String(),
		Timestamp: time.Now(),
	}
}
