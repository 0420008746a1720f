package faces

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/vusociu/datn/internal/camera"
	"github.com/vusociu/datn/internal/constants"
)

const defaultEmbeddingURL = "http://localhost:8000"

// Client computes face detections and embeddings using the embedding server.
type Client struct {
	baseURL  string
	faceSize int
	client   *http.Client
}

// NewClient creates a new embedding client.
func NewClient(baseURL string, faceSize int) *Client {
	if baseURL == "" {
		baseURL = defaultEmbeddingURL
	}
	if faceSize <= 0 {
		faceSize = constants.DefaultFaceSize
	}
	return &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		faceSize: faceSize,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// detection represents a single detected face
type detection struct {
	BBox     []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore float64   `json:"det_score"`
}

// detectResponse represents the response from the detection endpoint
type detectResponse struct {
	FacesCount int         `json:"faces_count"`
	Faces      []detection `json:"faces"`
}

// embeddingResponse represents the response from the embedding endpoint
type embeddingResponse struct {
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model"`
}

// postMultipartImage constructs a multipart form with the image data and posts it to the given endpoint.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// DetectFaces asks the server for face boxes in frame, keeping the server's order.
func (c *Client) DetectFaces(ctx context.Context, frame camera.Frame) ([]BoundingBox, error) {
	body, err := c.postMultipartImage(ctx, "/detect", frame.Data)
	if err != nil {
		return nil, err
	}

	var resp detectResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	boxes := make([]BoundingBox, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		if len(f.BBox) != 4 {
			continue
		}
		boxes = append(boxes, BoundingBox{
			Rect:  image.Rect(int(f.BBox[0]), int(f.BBox[1]), int(f.BBox[2]), int(f.BBox[3])),
			Score: f.DetScore,
		})
	}
	return boxes, nil
}

// Embed crops the face, scales it to the model input size and requests its embedding.
func (c *Client) Embed(ctx context.Context, frame camera.Frame, box BoundingBox) ([]float32, error) {
	face, err := CropFace(frame.Image, box.Rect, c.faceSize)
	if err != nil {
		return nil, err
	}
	data, err := encodeJPEG(face)
	if err != nil {
		return nil, err
	}

	body, err := c.postMultipartImage(ctx, "/embed/face", data)
	if err != nil {
		return nil, err
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(embResp.Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding returned", ErrNoEmbedding)
	}

	return embResp.Embedding, nil
}

// detectMIMEType detects the MIME type from image data
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	return "application/octet-stream"
}

var _ Provider = (*Client)(nil)
