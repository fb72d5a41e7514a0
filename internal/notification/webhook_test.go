package notification

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/goccy/go-json"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/sentinel-go/internal/conf"
)

func newTestWebhookProvider(t *testing.T, cfg conf.WebhookConfig) *WebhookProvider {
	t.Helper()
	prov := NewWebhookProvider(&conf.ProviderConfig{
		Name:    "test-webhook",
		Type:    "webhook",
		Enabled: true,
		Webhook: cfg,
	})
	httpmock.ActivateNonDefault(prov.client)
	t.Cleanup(httpmock.DeactivateAndReset)
	return prov
}

func TestWebhookSendPayload(t *testing.T) {
	prov := newTestWebhookProvider(t, conf.WebhookConfig{
		URL:     "http://alerts.local/hook",
		Headers: map[string]string{"Authorization": "Bearer token"},
	})
	require.NoError(t, prov.ValidateConfig())

	var got webhookPayload
	var gotAuth string
	httpmock.RegisterResponder(http.MethodPost, "http://alerts.local/hook",
		func(req *http.Request) (*http.Response, error) {
			gotAuth = req.Header.Get("Authorization")
			body, err := io.ReadAll(req.Body)
			require.NoError(t, err)
			require.NoError(t, json.Unmarshal(body, &got))
			return httpmock.NewStringResponse(http.StatusOK, `{}`), nil
		})

	n := testNotification(t)
	require.NoError(t, prov.Send(context.Background(), n))

	assert.Equal(t, "Bearer token", gotAuth)
	assert.Equal(t, "weapon_detected", got.AlertType)
	assert.Equal(t, "cam1", got.CameraID)
	assert.Equal(t, "Front Door", got.CameraName)
	assert.Equal(t, "knife", got.Class)
	assert.Equal(t, "high", got.Severity)
	assert.Equal(t, [4]int{10, 20, 110, 220}, got.BBox)
}

func TestWebhookSendServerError(t *testing.T) {
	prov := newTestWebhookProvider(t, conf.WebhookConfig{URL: "http://alerts.local/hook"})
	require.NoError(t, prov.ValidateConfig())

	httpmock.RegisterResponder(http.MethodPost, "http://alerts.local/hook",
		httpmock.NewStringResponder(http.StatusBadGateway, "upstream down"))

	err := prov.Send(context.Background(), testNotification(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestWebhookValidateConfig(t *testing.T) {
	cases := []struct {
		name    string
		cfg     conf.WebhookConfig
		wantErr bool
	}{
		{"valid https", conf.WebhookConfig{URL: "https://alerts.local/hook"}, false},
		{"valid put", conf.WebhookConfig{URL: "http://alerts.local/hook", Method: http.MethodPut}, false},
		{"missing url", conf.WebhookConfig{}, true},
		{"bad scheme", conf.WebhookConfig{URL: "ftp://alerts.local/hook"}, true},
		{"bad method", conf.WebhookConfig{URL: "http://alerts.local/hook", Method: http.MethodDelete}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			prov := NewWebhookProvider(&conf.ProviderConfig{Name: "wh", Enabled: true, Webhook: tc.cfg})
			err := prov.ValidateConfig()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBuildProvidersSkipsInvalid(t *testing.T) {
	providers := BuildProviders([]conf.ProviderConfig{
		{Name: "ok", Type: "webhook", Enabled: true, Webhook: conf.WebhookConfig{URL: "http://alerts.local/hook"}},
		{Name: "broken", Type: "webhook", Enabled: true},
		{Name: "mystery", Type: "carrier-pigeon", Enabled: true},
	})

	require.Len(t, providers, 1)
	assert.Equal(t, "ok", providers[0].GetName())
}
