// Package faces talks to the face detection and embedding service.
package faces

import (
	"context"
	"errors"
	"image"

	"github.com/vusociu/datn/internal/camera"
)

// ErrNoEmbedding is returned when a face region cannot be turned into a vector.
var ErrNoEmbedding = errors.New("no embedding")

// BoundingBox locates one face in frame pixel coordinates.
type BoundingBox struct {
	Rect  image.Rectangle
	Score float64 // detector confidence
}

// Provider detects faces and computes their embeddings.
type Provider interface {
	// DetectFaces returns the faces found in frame, best candidates first.
	DetectFaces(ctx context.Context, frame camera.Frame) ([]BoundingBox, error)
	// Embed computes a fixed-length embedding for the face inside box.
	Embed(ctx context.Context, frame camera.Frame, box BoundingBox) ([]float32, error)
}
