// Package camera grabs still frames from the locker's network camera.
package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrNoFrame is returned when the camera answers without a usable image.
var ErrNoFrame = errors.New("no frame")

// maxFrameBytes caps a single snapshot; ESP32-CAM frames are well below this.
const maxFrameBytes = 8 << 20

// Frame is one captured image, both encoded and decoded.
type Frame struct {
	Data       []byte // original encoded bytes (JPEG from the camera)
	Image      image.Image
	CapturedAt time.Time
}

// Bounds returns the pixel bounds of the frame.
func (f Frame) Bounds() image.Rectangle {
	if f.Image == nil {
		return image.Rectangle{}
	}
	return f.Image.Bounds()
}

// Camera captures frames. Implementations must be safe to call from one
// goroutine at a time; the locker engine serializes access.
type Camera interface {
	Capture(ctx context.Context) (Frame, error)
}

// HTTPCamera fetches single JPEG snapshots, e.g. ESP32-CAM's /capture endpoint.
type HTTPCamera struct {
	url    string
	client *http.Client
}

// NewHTTPCamera creates a snapshot camera. timeout bounds each capture.
func NewHTTPCamera(url string, timeout time.Duration) *HTTPCamera {
	return &HTTPCamera{
		url:    strings.TrimSpace(url),
		client: &http.Client{Timeout: timeout},
	}
}

// URL returns the snapshot endpoint.
func (c *HTTPCamera) URL() string {
	return c.url
}

// Capture downloads and decodes one snapshot.
func (c *HTTPCamera) Capture(ctx context.Context) (Frame, error) {
	if c.url == "" {
		return Frame{}, fmt.Errorf("%w: camera URL not configured", ErrNoFrame)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return Frame{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Frame{}, fmt.Errorf("camera request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Frame{}, fmt.Errorf("%w: camera returned status %d", ErrNoFrame, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFrameBytes))
	if err != nil {
		return Frame{}, fmt.Errorf("failed to read frame: %w", err)
	}

	return Decode(data)
}

// Decode builds a Frame from encoded image bytes.
func Decode(data []byte) (Frame, error) {
	if len(data) == 0 {
		return Frame{}, fmt.Errorf("%w: empty body", ErrNoFrame)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Frame{}, fmt.Errorf("%w: failed to decode image: %v", ErrNoFrame, err)
	}
	return Frame{Data: data, Image: img, CapturedAt: time.Now()}, nil
}
