package camera

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestHTTPCamera_Capture(t *testing.T) {
	data := encodeJPEG(t, 64, 48)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(data)
	}))
	defer server.Close()

	cam := NewHTTPCamera(server.URL, time.Second)
	frame, err := cam.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 48), frame.Bounds())
	assert.Equal(t, data, frame.Data)
	assert.False(t, frame.CapturedAt.IsZero())
}

func TestHTTPCamera_BadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewHTTPCamera(server.URL, time.Second).Capture(context.Background())
	assert.ErrorIs(t, err, ErrNoFrame)
}

func TestHTTPCamera_GarbageBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not an image"))
	}))
	defer server.Close()

	_, err := NewHTTPCamera(server.URL, time.Second).Capture(context.Background())
	assert.ErrorIs(t, err, ErrNoFrame)
}

func TestHTTPCamera_NotConfigured(t *testing.T) {
	_, err := NewHTTPCamera("", time.Second).Capture(context.Background())
	assert.ErrorIs(t, err, ErrNoFrame)
}

func TestFrame_BoundsEmpty(t *testing.T) {
	assert.Equal(t, image.Rectangle{}, Frame{}.Bounds())
}
