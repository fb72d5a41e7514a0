// Package notify sends a test alert through the configured channels.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/sentinel-go/internal/alerthistory"
	"github.com/tphakala/sentinel-go/internal/conf"
	"github.com/tphakala/sentinel-go/internal/detection"
	"github.com/tphakala/sentinel-go/internal/errors"
	"github.com/tphakala/sentinel-go/internal/notification"
)

const sendTimeout = 30 * time.Second

// Command creates the notify subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "notify",
		Short: "Send a test alert through every configured channel",
		Long:  "Build a synthetic weapon detection alert and deliver it synchronously on each enabled notification provider, reporting per-channel results.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, settings)
		},
	}
}

func run(cmd *cobra.Command, settings *conf.Settings) error {
	providers := notification.BuildProviders(settings.Notification.Providers)
	if len(providers) == 0 {
		return errors.Newf("no valid notification providers configured").
			Component("notify").
			Category(errors.CategoryConfiguration).
			Build()
	}

	alert := alerthistory.NewAlert(detection.Detection{
		CameraID:   "test",
		Class:      "knife",
		Confidence: 0.99,
		BBox:       detection.BoundingBox{X1: 100, Y1: 100, X2: 200, Y2: 200},
		Timestamp:  time.Now(),
	}, "Test Camera", "")
	n := notification.NewNotification(alert)
	n.Title = "TEST - " + n.Title

	failures := 0
	for _, prov := range providers {
		if !prov.IsEnabled() {
			cmd.Printf("%-20s skipped (disabled)\n", prov.GetName())
			continue
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), sendTimeout)
		err := prov.Send(ctx, n)
		cancel()

		if err != nil {
			failures++
			cmd.Printf("%-20s FAILED: %v\n", prov.GetName(), err)
			continue
		}
		cmd.Printf("%-20s ok\n", prov.GetName())
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d channels failed", failures, len(providers))
	}
	return nil
}
