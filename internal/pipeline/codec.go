package pipeline

import (
	"image"

	"github.com/dunamismax/bgremove/internal/domain"
)

// JPEGQuality is the fixed quality used for JPEG output.
const JPEGQuality = 95

// Codec turns bytes into bitmaps and back. The default build uses pure Go
// decoders and encoders; building with -tags govips switches to libvips.
type Codec interface {
	Decode(data []byte) (image.Image, error)
	Encode(img image.Image, format domain.OutputFormat) ([]byte, error)
}
