package pipeline

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"testing"

	"github.com/dunamismax/bgremove/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func TestCodecDecodesCommonFormats(t *testing.T) {
	codec := newCodec()
	src := image.NewRGBA(image.Rect(0, 0, 12, 7))
	for i := range src.Pix {
		src.Pix[i] = 0xff
	}

	var jpegBuf, gifBuf, bmpBuf bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpegBuf, src, nil))
	require.NoError(t, gif.Encode(&gifBuf, src, nil))
	require.NoError(t, bmp.Encode(&bmpBuf, src))

	inputs := map[string][]byte{
		"png":  buildTestPNG(t, 12, 7),
		"jpeg": jpegBuf.Bytes(),
		"gif":  gifBuf.Bytes(),
		"bmp":  bmpBuf.Bytes(),
	}
	for name, data := range inputs {
		t.Run(name, func(t *testing.T) {
			img, err := codec.Decode(data)
			require.NoError(t, err)
			assert.Equal(t, image.Pt(12, 7), img.Bounds().Size())
		})
	}
}

func TestCodecDecodeRejectsGarbage(t *testing.T) {
	_, err := newCodec().Decode([]byte{0x00, 0x01, 0x02, 0x03})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode source image")
}

func TestCodecEncodeRoundTrip(t *testing.T) {
	codec := newCodec()
	src := image.NewNRGBA(image.Rect(0, 0, 9, 5))
	src.SetNRGBA(1, 1, color.NRGBA{R: 255, A: 255})

	for _, format := range []domain.OutputFormat{domain.FormatPNG, domain.FormatJPEG, domain.FormatWEBP} {
		t.Run(format.String(), func(t *testing.T) {
			data, err := codec.Encode(src, format)
			require.NoError(t, err)

			img, err := codec.Decode(data)
			require.NoError(t, err)
			assert.Equal(t, image.Pt(9, 5), img.Bounds().Size())
		})
	}
}
