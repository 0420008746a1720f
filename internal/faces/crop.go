package faces

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"

	"github.com/vusociu/datn/internal/constants"
)

// clampBox intersects box with the image bounds.
func clampBox(box image.Rectangle, bounds image.Rectangle) image.Rectangle {
	return box.Canon().Intersect(bounds)
}

// CropFace cuts the face out of img and scales it to a size x size square.
// Regions smaller than MinFaceSizePx on either side are rejected.
func CropFace(img image.Image, box image.Rectangle, size int) (image.Image, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: no image", ErrNoEmbedding)
	}
	r := clampBox(box, img.Bounds())
	if r.Dx() < constants.MinFaceSizePx || r.Dy() < constants.MinFaceSizePx {
		return nil, fmt.Errorf("%w: face region %v too small", ErrNoEmbedding, r)
	}
	if size <= 0 {
		size = constants.DefaultFaceSize
	}

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, r, draw.Over, nil)
	return dst, nil
}

// CropFaceJPEG crops like CropFace but keeps the original resolution and
// returns JPEG bytes, used for keeping enrollment snapshots.
func CropFaceJPEG(img image.Image, box image.Rectangle) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: no image", ErrNoEmbedding)
	}
	r := clampBox(box, img.Bounds())
	if r.Empty() {
		return nil, fmt.Errorf("%w: face region outside frame", ErrNoEmbedding)
	}

	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Copy(dst, image.Point{}, img, r, draw.Src, nil)
	return encodeJPEG(dst)
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: constants.JPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
