//go:build govips && cgo

package pipeline

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/dunamismax/bgremove/internal/domain"
)

type govipsCodec struct{}

func (govipsCodec) Decode(data []byte) (image.Image, error) {
	ref, err := vips.NewImageFromBuffer(data)
	if err != nil {
		return nil, fmt.Errorf("decode source image: %w", err)
	}
	defer ref.Close()

	// Go code works on image.Image, so the pixels come back through PNG.
	decoded, _, err := ref.ExportPng(vips.NewPngExportParams())
	if err != nil {
		return nil, fmt.Errorf("decode source image: %w", err)
	}
	img, err := png.Decode(bytes.NewReader(decoded))
	if err != nil {
		return nil, fmt.Errorf("decode source image: %w", err)
	}
	return img, nil
}

// Encode hands libvips a lossless PNG of the bitmap and exports from there.
// Compositing has already happened for JPEG, so the input is opaque.
func (govipsCodec) Encode(img image.Image, format domain.OutputFormat) ([]byte, error) {
	var staged bytes.Buffer
	encoder := png.Encoder{CompressionLevel: png.NoCompression}
	if err := encoder.Encode(&staged, img); err != nil {
		return nil, fmt.Errorf("stage bitmap for libvips: %w", err)
	}

	ref, err := vips.NewImageFromBuffer(staged.Bytes())
	if err != nil {
		return nil, fmt.Errorf("load bitmap into libvips: %w", err)
	}
	defer ref.Close()

	switch format {
	case domain.FormatJPEG:
		params := vips.NewJpegExportParams()
		params.Quality = JPEGQuality
		data, _, err := ref.ExportJpeg(params)
		if err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
		return data, nil
	case domain.FormatWEBP:
		params := vips.NewWebpExportParams()
		params.Lossless = true
		data, _, err := ref.ExportWebp(params)
		if err != nil {
			return nil, fmt.Errorf("encode webp: %w", err)
		}
		return data, nil
	case domain.FormatPNG:
		data, _, err := ref.ExportPng(vips.NewPngExportParams())
		if err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %d", int(format))
	}
}
