package notification

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"github.com/tphakala/sentinel-go/internal/conf"
	"github.com/tphakala/sentinel-go/internal/errors"
)

const (
	defaultWebhookTimeout = 30 * time.Second
	maxErrorBodySize      = 1024
)

// webhookPayload is the JSON body posted to the endpoint. Field names
// match what the original webhook consumers expect.
type webhookPayload struct {
	AlertType  string    `json:"alert_type"`
	Timestamp  time.Time `json:"timestamp"`
	CameraID   string    `json:"camera_id"`
	CameraName string    `json:"camera_name"`
	Class      string    `json:"class"`
	Confidence float64   `json:"confidence"`
	Severity   string    `json:"severity"`
	BBox       [4]int    `json:"bbox"`
	ImagePath  string    `json:"image_path,omitempty"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
}

// WebhookProvider posts alert payloads to a single HTTP endpoint with
// optional static headers (e.g. Authorization).
type WebhookProvider struct {
	name    string
	enabled bool
	url     string
	method  string
	headers map[string]string
	client  *http.Client
}

// NewWebhookProvider builds the provider from config.
func NewWebhookProvider(pc *conf.ProviderConfig) *WebhookProvider {
	name := pc.Name
	if name == "" {
		name = "webhook"
	}
	timeout := pc.Timeout
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	method := pc.Webhook.Method
	if method == "" {
		method = http.MethodPost
	}
	return &WebhookProvider{
		name:    name,
		enabled: pc.Enabled,
		url:     pc.Webhook.URL,
		method:  method,
		headers: pc.Webhook.Headers,
		client:  &http.Client{Timeout: timeout},
	}
}

func (w *WebhookProvider) GetName() string { return w.name }
func (w *WebhookProvider) IsEnabled() bool { return w.enabled }

// ValidateConfig rejects missing or non-HTTP URLs.
func (w *WebhookProvider) ValidateConfig() error {
	if !w.enabled {
		return nil
	}
	if w.url == "" {
		return validationError(w.name, "webhook URL is required")
	}
	parsed, err := url.Parse(w.url)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return validationError(w.name, "webhook URL %q is not a valid http(s) URL", w.url)
	}
	switch w.method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return validationError(w.name, "unsupported webhook method %q", w.method)
	}
	return nil
}

// Send posts the alert payload to the endpoint.
func (w *WebhookProvider) Send(ctx context.Context, n *Notification) error {
	det := &n.Alert.Detection
	payload := webhookPayload{
		AlertType:  "weapon_detected",
		Timestamp:  n.Timestamp,
		CameraID:   det.CameraID,
		CameraName: n.Alert.CameraName,
		Class:      det.Class,
		Confidence: det.Confidence,
		Severity:   string(n.Alert.Severity),
		BBox:       [4]int{det.BBox.X1, det.BBox.Y1, det.BBox.X2, det.BBox.Y2},
		ImagePath:  n.Alert.ArtifactPath,
		Title:      n.Title,
		Message:    n.Message,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return errors.New(err).
			Component(w.name).
			Category(errors.CategoryNotification).
			Context("operation", "encode_payload").
			Build()
	}

	req, err := http.NewRequestWithContext(ctx, w.method, w.url, bytes.NewReader(body))
	if err != nil {
		return errors.New(err).
			Component(w.name).
			Category(errors.CategoryNotification).
			Build()
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return errors.New(err).
			Component(w.name).
			Category(errors.CategoryNetwork).
			Context("notification_id", n.ID).
			Build()
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return errors.Newf("webhook returned status %d: %s", resp.StatusCode, string(respBody)).
			Component(w.name).
			Category(errors.CategoryNotification).
			Context("status", resp.StatusCode).
			Build()
	}
	return nil
}
