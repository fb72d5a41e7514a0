package notification

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tphakala/sentinel-go/internal/logging"
	"github.com/tphakala/sentinel-go/internal/observability"
)

const (
	// DefaultQueueSize bounds the notification queue. On overflow the
	// newest notification is dropped: a queue this deep means delivery is
	// already failing, and the alert history retains the alert anyway.
	DefaultQueueSize = 256

	// defaultSendTimeout bounds a single provider delivery attempt.
	defaultSendTimeout = 30 * time.Second
)

// DispatcherStats reports queue counters since construction.
type DispatcherStats struct {
	Enqueued    uint64
	Dropped     uint64
	RateLimited uint64
	Delivered   uint64
	Failed      uint64
}

// Dispatcher consumes queued notifications strictly in FIFO order with a
// single background consumer and attempts delivery on every enabled
// provider independently. Queue entries are not durable; stopping the
// process discards them.
type Dispatcher struct {
	queue     chan *Notification
	providers []Provider
	limiter   *RateLimiter
	metrics   *observability.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *slog.Logger

	enqueued    atomic.Uint64
	dropped     atomic.Uint64
	rateLimited atomic.Uint64
	delivered   atomic.Uint64
	failed      atomic.Uint64
}

// NewDispatcher creates a dispatcher over the given providers. metrics
// may be nil.
func NewDispatcher(providers []Provider, queueSize int, limiter *RateLimiter, metrics *observability.Metrics) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Dispatcher{
		queue:     make(chan *Notification, queueSize),
		providers: providers,
		limiter:   limiter,
		metrics:   metrics,
		ctx:       ctx,
		cancel:    cancel,
		logger:    logging.ForService("notification-dispatcher"),
	}
}

// Start launches the consumer goroutine.
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go d.consume()

	d.logger.Info("notification dispatcher started",
		"providers", len(d.providers),
		"queue_size", cap(d.queue))
}

// Enqueue appends a notification without blocking. When the queue is
// full the notification is dropped and counted.
func (d *Dispatcher) Enqueue(n *Notification) {
	select {
	case d.queue <- n:
		d.enqueued.Add(1)
		if d.metrics != nil {
			d.metrics.NotificationQueueDepth.Set(float64(len(d.queue)))
		}
	default:
		d.dropped.Add(1)
		d.logger.Warn("notification queue full, dropping",
			"notification_id", n.ID,
			"camera_id", n.Alert.Detection.CameraID)
	}
}

// Stop shuts the consumer down. The in-flight delivery attempt finishes;
// queued-but-undelivered notifications are discarded.
func (d *Dispatcher) Stop() {
	d.cancel()
	d.wg.Wait()

	discarded := len(d.queue)
	if discarded > 0 {
		d.logger.Info("notification dispatcher stopped", "discarded", discarded)
	} else {
		d.logger.Info("notification dispatcher stopped")
	}
}

// GetStats returns dispatch counters.
func (d *Dispatcher) GetStats() DispatcherStats {
	return DispatcherStats{
		Enqueued:    d.enqueued.Load(),
		Dropped:     d.dropped.Load(),
		RateLimited: d.rateLimited.Load(),
		Delivered:   d.delivered.Load(),
		Failed:      d.failed.Load(),
	}
}

// consume drains the queue one notification at a time, preserving FIFO
// enqueue order. Delivery-completion order across channels is not
// guaranteed.
func (d *Dispatcher) consume() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return
		case n := <-d.queue:
			d.deliver(n)
			if d.metrics != nil {
				d.metrics.NotificationQueueDepth.Set(float64(len(d.queue)))
			}
		}
	}
}

// deliver attempts every enabled provider. Failures are logged per
// channel and never prevent the remaining channels or the next queued
// notification. The attempt context derives from Background so an
// in-flight send survives dispatcher shutdown.
func (d *Dispatcher) deliver(n *Notification) {
	if d.limiter != nil && !d.limiter.Allow() {
		d.rateLimited.Add(1)
		d.logger.Warn("notification rate limit exceeded, dropping",
			"notification_id", n.ID)
		return
	}

	for _, prov := range d.providers {
		if !prov.IsEnabled() {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), defaultSendTimeout)
		err := prov.Send(ctx, n)
		cancel()

		if err != nil {
			d.failed.Add(1)
			if d.metrics != nil {
				d.metrics.NotificationsFailed.WithLabelValues(prov.GetName()).Inc()
			}
			d.logger.Error("notification delivery failed",
				"provider", prov.GetName(),
				"notification_id", n.ID,
				"error", err)
			continue
		}

		d.delivered.Add(1)
		if d.metrics != nil {
			d.metrics.NotificationsDelivered.WithLabelValues(prov.GetName()).Inc()
		}
		d.logger.Debug("notification delivered",
			"provider", prov.GetName(),
			"notification_id", n.ID)
	}
}
