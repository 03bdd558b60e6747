// Package imaging converts between encoded images and model.PixelBuffer and
// draws detections onto buffers.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"detectserver/internal/model"
)

// ErrUnsupportedEncoding is returned for bytes that no supported codec accepts.
var ErrUnsupportedEncoding = errors.New("not a JPEG or PNG image")

// ErrImageTooLarge is returned before decoding when the header declares more
// pixels than allowed. It wraps ErrUnsupportedEncoding.
var ErrImageTooLarge = fmt.Errorf("%w: too many pixels", ErrUnsupportedEncoding)

// DefaultMaxPixels bounds the decoded size when no other limit is set.
const DefaultMaxPixels = 50_000_000

// Decode reads an encoded JPEG or PNG image into an RGB PixelBuffer at its
// native resolution, limited to DefaultMaxPixels.
func Decode(r io.Reader) (*model.PixelBuffer, error) {
	return DecodeWithLimit(r, DefaultMaxPixels)
}

// DecodeWithLimit is Decode with an explicit pixel limit; maxPixels <= 0
// disables the check. The codec is sniffed from the bytes; any filename the
// data arrived with is irrelevant here.
func DecodeWithLimit(r io.Reader, maxPixels int) (*model.PixelBuffer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrUnsupportedEncoding)
	}

	header, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedEncoding, err)
	}
	if format != "jpeg" && format != "png" {
		return nil, fmt.Errorf("%w: got %s", ErrUnsupportedEncoding, format)
	}
	if pixels := int64(header.Width) * int64(header.Height); maxPixels > 0 && pixels > int64(maxPixels) {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d", ErrImageTooLarge, header.Width, header.Height, maxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedEncoding, err)
	}

	return FromImage(img)
}

// FromImage copies any image.Image into a PixelBuffer. Alpha is dropped
// without compositing.
func FromImage(img image.Image) (*model.PixelBuffer, error) {
	bounds := img.Bounds()
	buf, err := model.NewPixelBuffer(bounds.Dx(), bounds.Dy())
	if err != nil {
		return nil, err
	}

	switch src := img.(type) {
	case *image.RGBA:
		copyRGBA(buf, src.Pix, bounds, src.PixOffset)
	case *image.NRGBA:
		copyRGBA(buf, src.Pix, bounds, src.PixOffset)
	case *image.YCbCr:
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				yi := src.YOffset(x, y)
				ci := src.COffset(x, y)
				r, g, b := color.YCbCrToRGB(src.Y[yi], src.Cb[ci], src.Cr[ci])
				buf.SetRGB(x-bounds.Min.X, y-bounds.Min.Y, r, g, b)
			}
		}
	default:
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
				buf.SetRGB(x-bounds.Min.X, y-bounds.Min.Y, c.R, c.G, c.B)
			}
		}
	}

	return buf, nil
}

// copyRGBA handles the 4-bytes-per-pixel layouts.
func copyRGBA(buf *model.PixelBuffer, pix []uint8, bounds image.Rectangle, offset func(x, y int) int) {
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		i := offset(bounds.Min.X, y)
		o := buf.Offset(0, y-bounds.Min.Y)
		for x := 0; x < bounds.Dx(); x++ {
			buf.Pix[o] = pix[i]
			buf.Pix[o+1] = pix[i+1]
			buf.Pix[o+2] = pix[i+2]
			i += 4
			o += model.Channels
		}
	}
}
