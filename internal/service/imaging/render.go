package imaging

import (
	"fmt"
	"hash/fnv"
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"detectserver/internal/model"
)

// BoxThickness is the outline width in pixels; it is drawn inside the box.
const BoxThickness = 2

var palette = []color.RGBA{
	{R: 255, G: 56, B: 56, A: 255},
	{R: 56, G: 56, B: 255, A: 255},
	{R: 255, G: 157, B: 23, A: 255},
	{R: 0, G: 194, B: 255, A: 255},
	{R: 207, G: 210, B: 49, A: 255},
	{R: 255, G: 55, B: 199, A: 255},
	{R: 72, G: 249, B: 10, A: 255},
	{R: 146, G: 204, B: 23, A: 255},
}

// LabelColor returns the colour used for every box carrying label.
func LabelColor(label string) color.RGBA {
	h := fnv.New32a()
	h.Write([]byte(label))
	return palette[h.Sum32()%uint32(len(palette))]
}

// Render returns a copy of src with each detection drawn as a rectangle
// outline and a "label confidence" caption, in the given order. src is never
// modified.
func Render(src *model.PixelBuffer, detections []model.Detection) *model.PixelBuffer {
	dst := src.Clone()
	face := basicfont.Face7x13

	for _, det := range detections {
		c := LabelColor(det.Label)
		box := det.Box.Intersect(dst.Bounds())
		if box.Empty() {
			continue
		}
		drawOutline(dst, box, c)

		caption := fmt.Sprintf("%s %.2f", det.Label, det.Confidence)
		metrics := face.Metrics()
		baseline := box.Min.Y - 4
		if baseline-metrics.Ascent.Ceil() < 0 {
			baseline = box.Min.Y + BoxThickness + metrics.Ascent.Ceil()
		}
		drawer := &font.Drawer{
			Dst:  dst,
			Src:  image.NewUniform(c),
			Face: face,
			Dot:  fixed.P(box.Min.X+BoxThickness, baseline),
		}
		drawer.DrawString(caption)
	}

	return dst
}

// drawOutline paints the BoxThickness-wide border of r.
func drawOutline(dst *model.PixelBuffer, r image.Rectangle, c color.RGBA) {
	t := BoxThickness
	if r.Dx() < 2*t || r.Dy() < 2*t {
		fill(dst, r, c)
		return
	}
	fill(dst, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t), c)
	fill(dst, image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y), c)
	fill(dst, image.Rect(r.Min.X, r.Min.Y+t, r.Min.X+t, r.Max.Y-t), c)
	fill(dst, image.Rect(r.Max.X-t, r.Min.Y+t, r.Max.X, r.Max.Y-t), c)
}

func fill(dst *model.PixelBuffer, r image.Rectangle, c color.RGBA) {
	r = r.Intersect(dst.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			dst.SetRGB(x, y, c.R, c.G, c.B)
		}
	}
}
