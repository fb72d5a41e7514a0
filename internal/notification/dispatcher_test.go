package notification

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/sentinel-go/internal/alerthistory"
	"github.com/tphakala/sentinel-go/internal/detection"
)

// fakeProvider records every notification it receives and can be told to
// fail or block.
type fakeProvider struct {
	name    string
	enabled bool
	sendErr error
	block   chan struct{} // when non-nil, Send waits for it to close

	mu   sync.Mutex
	sent []string
}

func (f *fakeProvider) GetName() string      { return f.name }
func (f *fakeProvider) IsEnabled() bool      { return f.enabled }
func (f *fakeProvider) ValidateConfig() error { return nil }

func (f *fakeProvider) Send(_ context.Context, n *Notification) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.sent = append(f.sent, n.ID)
	f.mu.Unlock()
	return f.sendErr
}

func (f *fakeProvider) sentIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	copy(out, f.sent)
	return out
}

func testNotification(t *testing.T) *Notification {
	t.Helper()
	alert := alerthistory.NewAlert(detection.Detection{
		CameraID:   "cam1",
		Class:      "knife",
		Confidence: 0.9,
		BBox:       detection.BoundingBox{X1: 10, Y1: 20, X2: 110, Y2: 220},
		Timestamp:  time.Now(),
	}, "Front Door", "")
	return NewNotification(alert)
}

func TestDispatcherDeliversToAllChannelsDespiteFailure(t *testing.T) {
	failing := &fakeProvider{name: "failing", enabled: true, sendErr: fmt.Errorf("smtp unreachable")}
	working := &fakeProvider{name: "working", enabled: true}

	d := NewDispatcher([]Provider{failing, working}, 8, nil, nil)
	d.Start()
	defer d.Stop()

	d.Enqueue(testNotification(t))

	require.Eventually(t, func() bool {
		return len(working.sentIDs()) == 1 && len(failing.sentIDs()) == 1
	}, 2*time.Second, 10*time.Millisecond, "both providers should be attempted")

	stats := d.GetStats()
	assert.Equal(t, uint64(1), stats.Delivered)
	assert.Equal(t, uint64(1), stats.Failed)
}

func TestDispatcherSkipsDisabledProvider(t *testing.T) {
	disabled := &fakeProvider{name: "disabled", enabled: false}
	enabled := &fakeProvider{name: "enabled", enabled: true}

	d := NewDispatcher([]Provider{disabled, enabled}, 8, nil, nil)
	d.Start()
	defer d.Stop()

	d.Enqueue(testNotification(t))

	require.Eventually(t, func() bool {
		return len(enabled.sentIDs()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, disabled.sentIDs())
}

func TestDispatcherPreservesFIFOOrder(t *testing.T) {
	prov := &fakeProvider{name: "recorder", enabled: true}

	d := NewDispatcher([]Provider{prov}, 16, nil, nil)
	d.Start()
	defer d.Stop()

	want := make([]string, 0, 5)
	for range 5 {
		n := testNotification(t)
		want = append(want, n.ID)
		d.Enqueue(n)
	}

	require.Eventually(t, func() bool {
		return len(prov.sentIDs()) == 5
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, want, prov.sentIDs())
}

func TestDispatcherDropsWhenQueueFull(t *testing.T) {
	// Not started, so nothing drains the queue.
	d := NewDispatcher([]Provider{}, 1, nil, nil)

	d.Enqueue(testNotification(t))
	d.Enqueue(testNotification(t))
	d.Enqueue(testNotification(t))

	stats := d.GetStats()
	assert.Equal(t, uint64(1), stats.Enqueued)
	assert.Equal(t, uint64(2), stats.Dropped)
}

func TestDispatcherRateLimit(t *testing.T) {
	prov := &fakeProvider{name: "limited", enabled: true}
	limiter := NewRateLimiter(60, 1)

	d := NewDispatcher([]Provider{prov}, 8, limiter, nil)
	d.Start()
	defer d.Stop()

	d.Enqueue(testNotification(t))
	d.Enqueue(testNotification(t))

	require.Eventually(t, func() bool {
		s := d.GetStats()
		return s.Delivered+s.RateLimited == 2
	}, 2*time.Second, 10*time.Millisecond)

	stats := d.GetStats()
	assert.Equal(t, uint64(1), stats.Delivered)
	assert.Equal(t, uint64(1), stats.RateLimited)
	assert.Len(t, prov.sentIDs(), 1)
}

func TestDispatcherStopWaitsForInFlightDelivery(t *testing.T) {
	release := make(chan struct{})
	prov := &fakeProvider{name: "slow", enabled: true, block: release}

	d := NewDispatcher([]Provider{prov}, 8, nil, nil)
	d.Start()

	d.Enqueue(testNotification(t))

	// Wait until the consumer is blocked inside Send.
	require.Eventually(t, func() bool {
		return len(d.queue) == 0
	}, 2*time.Second, 5*time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		d.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a delivery was still in flight")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the delivery completed")
	}
	assert.Len(t, prov.sentIDs(), 1)
}

func TestRateLimiterBurstThenDeny(t *testing.T) {
	rl := NewRateLimiter(60, 3)

	for i := range 3 {
		assert.True(t, rl.Allow(), "burst token %d", i)
	}
	assert.False(t, rl.Allow(), "bucket should be empty after the burst")
}

func TestNewNotificationContent(t *testing.T) {
	n := testNotification(t)

	assert.Equal(t, "WEAPON DETECTED - Front Door", n.Title)
	assert.Contains(t, n.Message, "KNIFE")
	assert.Contains(t, n.Message, "90%")
	assert.Contains(t, n.Message, "cam1")
	assert.NotEmpty(t, n.ID)
}
