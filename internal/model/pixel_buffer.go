package model

import (
	"errors"
	"image"
	"image/color"
)

// Channels is the number of samples stored per pixel (R, G, B).
const Channels = 3

// ErrEmptyBuffer is returned when a PixelBuffer would have no pixels.
var ErrEmptyBuffer = errors.New("pixel buffer dimensions must be positive")

// PixelBuffer is a decoded raster image: Height rows of Width pixels,
// each pixel three 8-bit samples in R, G, B order.
type PixelBuffer struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewPixelBuffer allocates a zeroed buffer of the given size.
func NewPixelBuffer(width, height int) (*PixelBuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrEmptyBuffer
	}
	return &PixelBuffer{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height*Channels),
	}, nil
}

// Clone returns a deep copy of the buffer.
func (b *PixelBuffer) Clone() *PixelBuffer {
	pix := make([]uint8, len(b.Pix))
	copy(pix, b.Pix)
	return &PixelBuffer{Width: b.Width, Height: b.Height, Pix: pix}
}

// Offset returns the index of the first sample of pixel (x, y).
func (b *PixelBuffer) Offset(x, y int) int {
	return (y*b.Width + x) * Channels
}

// RGB returns the samples of pixel (x, y).
func (b *PixelBuffer) RGB(x, y int) (r, g, bl uint8) {
	i := b.Offset(x, y)
	return b.Pix[i], b.Pix[i+1], b.Pix[i+2]
}

// SetRGB overwrites pixel (x, y). Out-of-bounds writes are ignored.
func (b *PixelBuffer) SetRGB(x, y int, r, g, bl uint8) {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return
	}
	i := b.Offset(x, y)
	b.Pix[i], b.Pix[i+1], b.Pix[i+2] = r, g, bl
}

// ColorModel implements image.Image.
func (b *PixelBuffer) ColorModel() color.Model {
	return color.RGBAModel
}

// Bounds implements image.Image.
func (b *PixelBuffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, b.Width, b.Height)
}

// At implements image.Image.
func (b *PixelBuffer) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return color.RGBA{}
	}
	r, g, bl := b.RGB(x, y)
	return color.RGBA{R: r, G: g, B: bl, A: 0xff}
}

// Set implements draw.Image. Colours are composited over the existing
// pixel using their alpha, which is what font rasterizers expect.
func (b *PixelBuffer) Set(x, y int, c color.Color) {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return
	}
	sr, sg, sb, sa := c.RGBA()
	if sa == 0 {
		return
	}
	i := b.Offset(x, y)
	inv := 0xffff - sa
	b.Pix[i] = uint8((sr + uint32(b.Pix[i])*0x101*inv/0xffff) >> 8)
	b.Pix[i+1] = uint8((sg + uint32(b.Pix[i+1])*0x101*inv/0xffff) >> 8)
	b.Pix[i+2] = uint8((sb + uint32(b.Pix[i+2])*0x101*inv/0xffff) >> 8)
}
