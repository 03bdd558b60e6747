package imaging

import (
	"image/jpeg"
	"io"

	"detectserver/internal/model"
)

// JPEGQuality is used for every annotated artifact.
const JPEGQuality = 95

// EncodeJPEG writes buf as a baseline JPEG.
func EncodeJPEG(w io.Writer, buf *model.PixelBuffer) error {
	return jpeg.Encode(w, buf, &jpeg.Options{Quality: JPEGQuality})
}
