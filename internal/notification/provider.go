package notification

import (
	"context"

	"github.com/tphakala/sentinel-go/internal/conf"
	"github.com/tphakala/sentinel-go/internal/errors"
	"github.com/tphakala/sentinel-go/internal/logging"
)

// Provider is a single delivery channel. Implementations must be safe for
// concurrent use; the dispatcher has no channel-specific logic beyond the
// enabled flag.
type Provider interface {
	GetName() string
	IsEnabled() bool
	ValidateConfig() error
	Send(ctx context.Context, n *Notification) error
}

// BuildProviders constructs providers from configuration, skipping any
// whose configuration fails validation so one bad channel cannot prevent
// the rest from starting.
func BuildProviders(configs []conf.ProviderConfig) []Provider {
	logger := logging.ForService("notification")

	providers := make([]Provider, 0, len(configs))
	for i := range configs {
		pc := &configs[i]

		var prov Provider
		switch pc.Type {
		case "shoutrrr":
			prov = NewShoutrrrProvider(pc)
		case "webhook":
			prov = NewWebhookProvider(pc)
		case "mqtt":
			prov = NewMQTTProvider(pc)
		default:
			logger.Error("unknown provider type", "name", pc.Name, "type", pc.Type)
			continue
		}

		if err := prov.ValidateConfig(); err != nil {
			logger.Error("provider config invalid, skipping",
				"name", pc.Name,
				"type", pc.Type,
				"error", err)
			continue
		}
		providers = append(providers, prov)
	}
	return providers
}

// validationError is a helper for provider config failures.
func validationError(provider, format string, args ...any) error {
	return errors.Newf(format, args...).
		Component(provider).
		Category(errors.CategoryConfiguration).
		Build()
}
