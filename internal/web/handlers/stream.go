package handlers

import (
	"fmt"
	"net/http"

	"github.com/vusociu/datn/internal/broadcast"
)

const mjpegBoundary = "frame"

// StreamHandler serves the annotated preview as MJPEG.
type StreamHandler struct {
	frames *broadcast.Broadcaster[[]byte]
}

// NewStreamHandler creates a stream handler over the preview frames.
func NewStreamHandler(frames *broadcast.Broadcaster[[]byte]) *StreamHandler {
	return &StreamHandler{frames: frames}
}

// Stream handles GET /stream until the client goes away.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ch := h.frames.AddListener()
	defer h.frames.RemoveListener(ch)

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+mjpegBoundary)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	if frame, ok := h.frames.Last(); ok {
		if err := writeFrame(w, frame); err != nil {
			return
		}
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case frame, ok := <-ch:
			if !ok {
				return
			}
			if err := writeFrame(w, frame); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeFrame(w http.ResponseWriter, jpeg []byte) error {
	if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", mjpegBoundary, len(jpeg)); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	_, err := w.Write([]byte("\r\n"))
	return err
}
