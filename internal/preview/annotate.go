// Package preview renders the live camera preview: frames with face boxes
// and identity labels, encoded as JPEG for the MJPEG stream.
package preview

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/vusociu/datn/internal/constants"
	"github.com/vusociu/datn/internal/locker"
)

const (
	boxThickness = 2
	labelPadding = 2
)

var (
	boxColor        = color.RGBA{0, 255, 0, 255}
	textColor       = color.RGBA{255, 255, 255, 255}
	labelBackground = color.RGBA{0, 0, 0, 255}
)

// LabelText is the caption drawn over a face: "ID n", or "?" for strangers.
func LabelText(l locker.Label) string {
	if l.IdentityID == nil {
		return "?"
	}
	return fmt.Sprintf("ID %d", *l.IdentityID)
}

// Annotate returns a copy of src with a box and caption for every label.
func Annotate(src image.Image, labels []locker.Label) *image.RGBA {
	bounds := src.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, src, bounds.Min, draw.Src)

	for _, l := range labels {
		r := l.Box.Rect.Canon().Intersect(bounds)
		if r.Empty() {
			continue
		}
		drawBox(dst, r)
		drawCaption(dst, r, LabelText(l))
	}
	return dst
}

func drawBox(dst *image.RGBA, r image.Rectangle) {
	c := image.NewUniform(boxColor)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+boxThickness),
		image.Rect(r.Min.X, r.Max.Y-boxThickness, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+boxThickness, r.Max.Y),
		image.Rect(r.Max.X-boxThickness, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(r), c, image.Point{}, draw.Src)
	}
}

// drawCaption writes text above the box, or just inside its top edge when
// the box touches the top of the frame.
func drawCaption(dst *image.RGBA, r image.Rectangle, text string) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(textColor),
		Face: face,
	}

	width := d.MeasureString(text).Ceil()
	height := face.Metrics().Height.Ceil()

	top := r.Min.Y - height - 2*labelPadding
	if top < dst.Bounds().Min.Y {
		top = r.Min.Y + boxThickness
	}
	bg := image.Rect(r.Min.X, top, r.Min.X+width+2*labelPadding, top+height+2*labelPadding)
	draw.Draw(dst, bg.Intersect(dst.Bounds()), image.NewUniform(labelBackground), image.Point{}, draw.Src)

	d.Dot = fixed.P(r.Min.X+labelPadding, top+labelPadding+face.Metrics().Ascent.Ceil())
	d.DrawString(text)
}

// Render annotates img and encodes it as JPEG.
func Render(img image.Image, labels []locker.Label) ([]byte, error) {
	var out image.Image = img
	if len(labels) > 0 {
		out = Annotate(img, labels)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: constants.JPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode preview frame: %w", err)
	}
	return buf.Bytes(), nil
}
