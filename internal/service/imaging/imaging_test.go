package imaging

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"detectserver/internal/model"
)

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode PNG: %v", err)
	}
	return buf.Bytes()
}

func solid(t *testing.T, w, h int, c color.RGBA) *model.PixelBuffer {
	t.Helper()
	buf, err := model.NewPixelBuffer(w, h)
	if err != nil {
		t.Fatalf("NewPixelBuffer failed: %v", err)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			buf.SetRGB(x, y, c.R, c.G, c.B)
		}
	}
	return buf
}

func TestDecode_PNGExactPixels(t *testing.T) {
	src := gradient(40, 30)

	buf, err := Decode(bytes.NewReader(encodePNG(t, src)))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if buf.Width != 40 || buf.Height != 30 {
		t.Fatalf("Expected 40x30, got %dx%d", buf.Width, buf.Height)
	}
	if len(buf.Pix) != 40*30*3 {
		t.Fatalf("Unexpected sample count %d", len(buf.Pix))
	}
	r, g, b := buf.RGB(17, 9)
	if r != 17 || g != 9 || b != 128 {
		t.Errorf("Pixel (17,9) = %d,%d,%d; expected 17,9,128", r, g, b)
	}
}

func TestDecode_JPEGKeepsNativeSize(t *testing.T) {
	var data bytes.Buffer
	if err := jpeg.Encode(&data, gradient(640, 480), nil); err != nil {
		t.Fatalf("Failed to encode JPEG: %v", err)
	}

	buf, err := Decode(&data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if buf.Width != 640 || buf.Height != 480 {
		t.Errorf("Expected 640x480, got %dx%d", buf.Width, buf.Height)
	}
}

func TestDecode_AlphaIsDropped(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.NRGBA{R: 200, G: 100, B: 50, A: 10})

	buf, err := Decode(bytes.NewReader(encodePNG(t, img)))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	r, g, b := buf.RGB(0, 0)
	if r != 200 || g != 100 || b != 50 {
		t.Errorf("Expected raw colour samples 200,100,50; got %d,%d,%d", r, g, b)
	}
}

func TestDecode_Failures(t *testing.T) {
	var jpg bytes.Buffer
	if err := jpeg.Encode(&jpg, gradient(8, 8), nil); err != nil {
		t.Fatalf("Failed to encode JPEG: %v", err)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"text", []byte("definitely not an image")},
		{"gif header", []byte("GIF89a\x01\x00\x01\x00")},
		{"truncated jpeg", jpg.Bytes()[:len(jpg.Bytes())/3]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(bytes.NewReader(tt.data))
			if !errors.Is(err, ErrUnsupportedEncoding) {
				t.Errorf("Expected ErrUnsupportedEncoding, got %v", err)
			}
		})
	}
}

// pngHeader returns a PNG signature and IHDR chunk declaring w x h, with no
// pixel data following.
func pngHeader(w, h uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], w)
	binary.BigEndian.PutUint32(ihdr[4:], h)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 2 // truecolor

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	chunk := append([]byte("IHDR"), ihdr...)
	buf.Write(chunk)
	binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestDecode_RejectsOversizedHeader(t *testing.T) {
	_, err := Decode(bytes.NewReader(pngHeader(8000, 8000)))
	if !errors.Is(err, ErrImageTooLarge) {
		t.Fatalf("Expected ErrImageTooLarge, got %v", err)
	}
	if !errors.Is(err, ErrUnsupportedEncoding) {
		t.Errorf("ErrImageTooLarge should wrap ErrUnsupportedEncoding: %v", err)
	}
}

func TestDecodeWithLimit(t *testing.T) {
	data := encodePNG(t, gradient(40, 30))

	if _, err := DecodeWithLimit(bytes.NewReader(data), 40*30-1); !errors.Is(err, ErrImageTooLarge) {
		t.Errorf("Expected ErrImageTooLarge below the image size, got %v", err)
	}

	buf, err := DecodeWithLimit(bytes.NewReader(data), 40*30)
	if err != nil {
		t.Fatalf("Expected exact limit to pass, got %v", err)
	}
	if buf.Width != 40 || buf.Height != 30 {
		t.Errorf("Unexpected size %dx%d", buf.Width, buf.Height)
	}

	if _, err := DecodeWithLimit(bytes.NewReader(data), 0); err != nil {
		t.Errorf("Expected no limit with 0, got %v", err)
	}
}

func TestDecode_ReaderError(t *testing.T) {
	_, err := Decode(&failingReader{})
	if err == nil || !strings.Contains(err.Error(), "read") {
		t.Errorf("Expected read error, got %v", err)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestRender_NoDetectionsLeavesPixelsUnchanged(t *testing.T) {
	src, err := FromImage(gradient(64, 48))
	if err != nil {
		t.Fatalf("FromImage failed: %v", err)
	}

	out := Render(src, nil)

	if out == src {
		t.Fatal("Render must return a copy")
	}
	if !bytes.Equal(out.Pix, src.Pix) {
		t.Error("Rendered buffer differs from input with no detections")
	}
}

func TestRender_DrawsOneRectanglePerDetection(t *testing.T) {
	bg := color.RGBA{R: 10, G: 10, B: 10, A: 255}
	src := solid(t, 400, 300, bg)
	before := src.Clone()

	detections := []model.Detection{
		{Box: image.Rect(40, 60, 140, 160), Label: "person", Confidence: 0.91},
		{Box: image.Rect(220, 80, 360, 260), Label: "dog", Confidence: 0.55},
		{Box: image.Rect(10, 0, 60, 40), Label: "car", Confidence: 0.7},
	}

	out := Render(src, detections)

	if !bytes.Equal(src.Pix, before.Pix) {
		t.Fatal("Render modified its input")
	}

	rectangles := 0
	for _, det := range detections {
		c := LabelColor(det.Label)
		b := det.Box
		midX := (b.Min.X + b.Max.X) / 2
		midY := (b.Min.Y + b.Max.Y) / 2

		edges := []image.Point{
			{b.Min.X, midY},
			{b.Min.X + 1, midY},
			{b.Max.X - 1, midY},
			{b.Max.X - 2, midY},
			{midX, b.Max.Y - 1},
			{midX, b.Min.Y},
		}
		ok := true
		for _, p := range edges {
			r, g, bl := out.RGB(p.X, p.Y)
			if r != c.R || g != c.G || bl != c.B {
				t.Errorf("%s: edge pixel %v = %d,%d,%d; expected %v", det.Label, p, r, g, bl, c)
				ok = false
			}
		}

		outside := []image.Point{{b.Min.X - 1, midY}, {b.Max.X, midY}, {midX, b.Max.Y}}
		for _, p := range outside {
			r, g, bl := out.RGB(p.X, p.Y)
			if r != bg.R || g != bg.G || bl != bg.B {
				t.Errorf("%s: pixel %v just outside the box was changed", det.Label, p)
			}
		}

		inner := image.Point{b.Max.X - BoxThickness - 1, b.Max.Y - BoxThickness - 1}
		r, g, bl := out.RGB(inner.X, inner.Y)
		if r != bg.R || g != bg.G || bl != bg.B {
			t.Errorf("%s: interior pixel %v was changed", det.Label, inner)
		}

		if ok {
			rectangles++
		}
	}

	if rectangles != len(detections) {
		t.Errorf("Expected %d rectangles, found %d", len(detections), rectangles)
	}
}

func TestRender_DrawsCaption(t *testing.T) {
	bg := color.RGBA{A: 255}
	src := solid(t, 200, 200, bg)
	det := model.Detection{Box: image.Rect(50, 80, 150, 180), Label: "cat", Confidence: 0.8}

	out := Render(src, []model.Detection{det})

	changed := 0
	for y := 60; y < 80; y++ {
		for x := 50; x < 150; x++ {
			r, g, b := out.RGB(x, y)
			if r != 0 || g != 0 || b != 0 {
				changed++
			}
		}
	}
	if changed == 0 {
		t.Error("Expected caption pixels above the box")
	}
}

func TestRender_ClipsBoxesToBuffer(t *testing.T) {
	src := solid(t, 50, 50, color.RGBA{A: 255})
	det := model.Detection{Box: image.Rect(30, 30, 80, 80), Label: "x", Confidence: 1}

	out := Render(src, []model.Detection{det})
	if out.Width != 50 || out.Height != 50 {
		t.Errorf("Render changed dimensions to %dx%d", out.Width, out.Height)
	}
}

func TestEncodeJPEG_RoundTrip(t *testing.T) {
	src := solid(t, 64, 32, color.RGBA{R: 200, G: 30, B: 30, A: 255})

	var data bytes.Buffer
	if err := EncodeJPEG(&data, src); err != nil {
		t.Fatalf("EncodeJPEG failed: %v", err)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data.Bytes()))
	if err != nil {
		t.Fatalf("DecodeConfig failed: %v", err)
	}
	if format != "jpeg" || cfg.Width != 64 || cfg.Height != 32 {
		t.Errorf("Unexpected output %s %dx%d", format, cfg.Width, cfg.Height)
	}
}
