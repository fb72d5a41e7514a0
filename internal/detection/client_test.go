package detection

import (
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/sentinel-go/internal/conf"
)

const testEndpoint = "http://oracle.local/detect-image"

func newTestClient(t *testing.T, threshold float64, classes []string) *Client {
	t.Helper()
	c := NewClient(&conf.DetectorConfig{
		Endpoint:            testEndpoint,
		ConfidenceThreshold: threshold,
		Timeout:             time.Second,
		Classes:             classes,
	})
	httpmock.ActivateNonDefault(c.httpC)
	t.Cleanup(httpmock.DeactivateAndReset)
	return c
}

func testFrame() *Frame {
	return &Frame{CameraID: "cam1", Data: []byte("jpeg-bytes"), Captured: time.Now()}
}

func TestDetectParsesOracleResponse(t *testing.T) {
	c := newTestClient(t, 0.5, []string{"knife", "pistol"})

	httpmock.RegisterResponder(http.MethodPost, testEndpoint,
		httpmock.NewStringResponder(http.StatusOK, `{
			"detections": [
				{"class": "knife", "confidence": 0.9, "bbox": [10, 10, 50, 50]},
				{"class": "pistol", "confidence": 0.6, "bbox": [100, 120, 180, 200]}
			],
			"alert_triggered": true,
			"timestamp": "2026-08-30T12:00:00"
		}`))

	dets, err := c.Detect(t.Context(), testFrame())
	require.NoError(t, err)
	require.Len(t, dets, 2)

	assert.Equal(t, "knife", dets[0].Class)
	assert.Equal(t, "cam1", dets[0].CameraID)
	assert.Equal(t, BoundingBox{X1: 10, Y1: 10, X2: 50, Y2: 50}, dets[0].BBox)
	assert.Equal(t, SeverityHigh, dets[0].Severity())
	assert.Equal(t, SeverityMedium, dets[1].Severity())
}

func TestDetectFiltersBelowThresholdAndUnknownClasses(t *testing.T) {
	c := newTestClient(t, 0.5, []string{"knife", "pistol"})

	httpmock.RegisterResponder(http.MethodPost, testEndpoint,
		httpmock.NewStringResponder(http.StatusOK, `{
			"detections": [
				{"class": "knife", "confidence": 0.3, "bbox": [0, 0, 10, 10]},
				{"class": "scissors", "confidence": 0.95, "bbox": [0, 0, 10, 10]},
				{"class": "pistol", "confidence": 0.7, "bbox": [5, 5, 25, 25]}
			]
		}`))

	dets, err := c.Detect(t.Context(), testFrame())
	require.NoError(t, err)
	require.Len(t, dets, 1)
	assert.Equal(t, "pistol", dets[0].Class)
}

func TestDetectDropsInvalidBoundingBoxes(t *testing.T) {
	c := newTestClient(t, 0.0, nil)

	httpmock.RegisterResponder(http.MethodPost, testEndpoint,
		httpmock.NewStringResponder(http.StatusOK, `{
			"detections": [{"class": "knife", "confidence": 0.9, "bbox": [50, 50, 10, 10]}]
		}`))

	dets, err := c.Detect(t.Context(), testFrame())
	require.NoError(t, err)
	assert.Empty(t, dets)
}

func TestDetectOracleError(t *testing.T) {
	c := newTestClient(t, 0.5, nil)

	httpmock.RegisterResponder(http.MethodPost, testEndpoint,
		httpmock.NewStringResponder(http.StatusInternalServerError, `{"error": "model not loaded"}`))

	_, err := c.Detect(t.Context(), testFrame())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestSeverityBoundary(t *testing.T) {
	t.Parallel()

	d := Detection{Confidence: 0.8}
	assert.Equal(t, SeverityMedium, d.Severity())
	d.Confidence = 0.81
	assert.Equal(t, SeverityHigh, d.Severity())
}
