package camera

import (
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/tphakala/sentinel-go/internal/detection"
	"github.com/tphakala/sentinel-go/internal/errors"
)

// maxFrameSize caps a single MJPEG part so a corrupt stream cannot
// exhaust memory.
const maxFrameSize = 8 << 20

// MJPEGSource reads frames from an HTTP multipart/x-mixed-replace stream,
// the format IP cameras commonly serve.
type MJPEGSource struct {
	cameraID string
	url      string

	client *http.Client
	cancel context.CancelFunc
	body   io.ReadCloser
	reader *multipart.Reader
}

// NewMJPEGSource creates an unopened source for the stream URL.
func NewMJPEGSource(cameraID, url string) *MJPEGSource {
	return &MJPEGSource{
		cameraID: cameraID,
		url:      url,
		// No client timeout: the response body is a stream that stays
		// open for the worker's lifetime.
		client: &http.Client{},
	}
}

// Open connects to the stream and parses the multipart boundary. The
// passed context bounds connection setup only; the stream itself lives
// until Close.
func (s *MJPEGSource) Open(ctx context.Context) error {
	streamCtx, cancel := context.WithCancel(context.Background())

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, s.url, nil)
	if err != nil {
		cancel()
		return errors.New(err).
			Component("camera").
			Category(errors.CategoryCamera).
			Context("camera_id", s.cameraID).
			Build()
	}

	type result struct {
		resp *http.Response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := s.client.Do(req)
		done <- result{resp, err}
	}()

	var resp *http.Response
	select {
	case <-ctx.Done():
		cancel()
		return errors.Newf("timeout opening stream %s", s.url).
			Component("camera").
			Category(errors.CategoryTimeout).
			Context("camera_id", s.cameraID).
			Build()
	case r := <-done:
		if r.err != nil {
			cancel()
			return errors.New(r.err).
				Component("camera").
				Category(errors.CategoryCamera).
				Context("camera_id", s.cameraID).
				Build()
		}
		resp = r.resp
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		cancel()
		return errors.Newf("stream %s returned status %d", s.url, resp.StatusCode).
			Component("camera").
			Category(errors.CategoryCamera).
			Context("camera_id", s.cameraID).
			Build()
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/x-mixed-replace" || params["boundary"] == "" {
		_ = resp.Body.Close()
		cancel()
		return errors.Newf("stream %s is not multipart/x-mixed-replace", s.url).
			Component("camera").
			Category(errors.CategoryCamera).
			Context("camera_id", s.cameraID).
			Context("content_type", resp.Header.Get("Content-Type")).
			Build()
	}

	s.cancel = cancel
	s.body = resp.Body
	s.reader = multipart.NewReader(resp.Body, params["boundary"])
	return nil
}

// Read returns the next frame from the stream. If the context ends first
// the underlying connection is torn down, so a Read interrupted this way
// makes the source unusable; the worker treats that as stream loss.
func (s *MJPEGSource) Read(ctx context.Context) (*detection.Frame, error) {
	if s.reader == nil {
		return nil, errors.Newf("stream not open").
			Component("camera").
			Category(errors.CategoryCamera).
			Context("camera_id", s.cameraID).
			Build()
	}

	type result struct {
		frame *detection.Frame
		err   error
	}
	done := make(chan result, 1)
	go func() {
		frame, err := s.readPart()
		done <- result{frame, err}
	}()

	select {
	case <-ctx.Done():
		// Unblocks the pending part read.
		s.cancel()
		return nil, ctx.Err()
	case r := <-done:
		return r.frame, r.err
	}
}

func (s *MJPEGSource) readPart() (*detection.Frame, error) {
	part, err := s.reader.NextPart()
	if err != nil {
		return nil, errors.New(err).
			Component("camera").
			Category(errors.CategoryCamera).
			Context("camera_id", s.cameraID).
			Build()
	}
	defer func() {
		_ = part.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(part, maxFrameSize))
	if err != nil {
		return nil, errors.New(err).
			Component("camera").
			Category(errors.CategoryCamera).
			Context("camera_id", s.cameraID).
			Build()
	}

	return &detection.Frame{
		CameraID: s.cameraID,
		Data:     data,
		Captured: time.Now(),
	}, nil
}

// Close tears the stream connection down.
func (s *MJPEGSource) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.body != nil {
		_ = s.body.Close()
	}
	s.reader = nil
	s.body = nil
	return nil
}
