package detection

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/goccy/go-json"

	"github.com/tphakala/sentinel-go/internal/conf"
	"github.com/tphakala/sentinel-go/internal/errors"
	"github.com/tphakala/sentinel-go/internal/logging"
)

// maxErrorBodySize limits error response body reading.
const maxErrorBodySize = 1024

// detectRequest is the oracle's wire request: a base64 JPEG frame.
type detectRequest struct {
	Image string `json:"image"`
}

// wireDetection mirrors the oracle's response entries. BBox arrives as
// [x1, y1, x2, y2].
type wireDetection struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
	BBox       [4]int  `json:"bbox"`
}

type detectResponse struct {
	Detections []wireDetection `json:"detections"`
}

// Client calls the detection oracle over HTTP. Safe for concurrent use;
// the underlying http.Client pools connections across workers.
type Client struct {
	endpoint  string
	threshold float64
	classes   []string
	httpC     *http.Client
	logger    *slog.Logger
}

// NewClient builds an oracle client from detector settings. The timeout
// bounds each Detect call in addition to any caller-supplied context
// deadline.
func NewClient(cfg *conf.DetectorConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint:  cfg.Endpoint,
		threshold: cfg.ConfidenceThreshold,
		classes:   slices.Clone(cfg.Classes),
		httpC:     &http.Client{Timeout: timeout},
		logger:    logging.ForService("detector-client"),
	}
}

// Detect posts the frame to the oracle and returns detections that pass
// the configured class and confidence filters, in oracle order.
func (c *Client) Detect(ctx context.Context, frame *Frame) ([]Detection, error) {
	payload, err := json.Marshal(detectRequest{
		Image: base64.StdEncoding.EncodeToString(frame.Data),
	})
	if err != nil {
		return nil, errors.New(err).
			Component("detector-client").
			Category(errors.CategoryDetector).
			Context("operation", "encode_request").
			Build()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.New(err).
			Component("detector-client").
			Category(errors.CategoryDetector).
			Context("endpoint", c.endpoint).
			Build()
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpC.Do(req)
	if err != nil {
		category := errors.CategoryNetwork
		if errors.Is(err, context.DeadlineExceeded) {
			category = errors.CategoryTimeout
		}
		return nil, errors.New(err).
			Component("detector-client").
			Category(category).
			Context("endpoint", c.endpoint).
			Build()
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, errors.Newf("detector returned status %d: %s", resp.StatusCode, string(body)).
			Component("detector-client").
			Category(errors.CategoryDetector).
			Context("status", resp.StatusCode).
			Build()
	}

	var wire detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, errors.New(err).
			Component("detector-client").
			Category(errors.CategoryDetector).
			Context("operation", "decode_response").
			Build()
	}

	detections := make([]Detection, 0, len(wire.Detections))
	for i := range wire.Detections {
		w := &wire.Detections[i]
		if w.Confidence < c.threshold {
			continue
		}
		if len(c.classes) > 0 && !slices.Contains(c.classes, w.Class) {
			continue
		}
		box := BoundingBox{X1: w.BBox[0], Y1: w.BBox[1], X2: w.BBox[2], Y2: w.BBox[3]}
		if !box.Valid() {
			c.logger.Warn("dropping detection with invalid bounding box",
				"camera_id", frame.CameraID,
				"class", w.Class,
				"bbox", box.String())
			continue
		}
		detections = append(detections, Detection{
			CameraID:   frame.CameraID,
			Class:      w.Class,
			Confidence: w.Confidence,
			BBox:       box,
			Timestamp:  time.Now(),
		})
	}

	return detections, nil
}
