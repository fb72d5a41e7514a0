package notification

import (
	"context"
	"io"
	"log"
	"slices"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/tphakala/sentinel-go/internal/conf"
	"github.com/tphakala/sentinel-go/internal/errors"
)

// ShoutrrrProvider delivers through shoutrrr service URLs, which cover
// email (smtp://), SMS gateways and chat services with one sender. One
// provider instance may fan out to multiple URLs.
type ShoutrrrProvider struct {
	name    string
	enabled bool
	urls    []string
	timeout time.Duration
	sender  *router.ServiceRouter
}

// NewShoutrrrProvider builds the provider from config. The sender is
// created during ValidateConfig so bad URLs are caught at startup.
func NewShoutrrrProvider(pc *conf.ProviderConfig) *ShoutrrrProvider {
	name := pc.Name
	if name == "" {
		name = "shoutrrr"
	}
	return &ShoutrrrProvider{
		name:    name,
		enabled: pc.Enabled,
		urls:    slices.Clone(pc.URLs),
		timeout: pc.Timeout,
	}
}

func (s *ShoutrrrProvider) GetName() string { return s.name }
func (s *ShoutrrrProvider) IsEnabled() bool { return s.enabled }

// ValidateConfig builds the sender, which validates every URL.
func (s *ShoutrrrProvider) ValidateConfig() error {
	if !s.enabled {
		return nil
	}
	if len(s.urls) == 0 {
		return validationError(s.name, "at least one service URL is required")
	}

	sender, err := shoutrrr.CreateSender(s.urls...)
	if err != nil {
		return errors.New(err).
			Component(s.name).
			Category(errors.CategoryConfiguration).
			Build()
	}
	if s.timeout > 0 {
		sender.Timeout = s.timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	s.sender = sender
	return nil
}

// Send delivers the notification to every configured service URL.
func (s *ShoutrrrProvider) Send(ctx context.Context, n *Notification) error {
	if s.sender == nil {
		return errors.Newf("shoutrrr sender not initialized").
			Component(s.name).
			Category(errors.CategoryNotification).
			Build()
	}
	_ = ctx // the router applies its own configured timeout

	params := stypes.Params{}
	params.SetTitle(n.Title)

	errs := s.sender.Send(n.Message, &params)
	for _, err := range errs {
		if err != nil {
			return errors.New(err).
				Component(s.name).
				Category(errors.CategoryNotification).
				Context("notification_id", n.ID).
				Build()
		}
	}
	return nil
}
