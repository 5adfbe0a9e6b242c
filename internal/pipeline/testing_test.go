package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/dunamismax/bgremove/internal/removal"
)

var (
	backgroundColor = color.NRGBA{R: 0, G: 255, B: 0, A: 255}
	foregroundColor = color.NRGBA{R: 200, G: 30, B: 40, A: 255}
)

// greenScreen clears every pure green pixel and keeps the rest.
var greenScreen = removal.Func(func(_ context.Context, img image.Image) (image.Image, error) {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if c == backgroundColor {
				continue
			}
			out.SetNRGBA(x-b.Min.X, y-b.Min.Y, c)
		}
	}
	return out, nil
})

// buildTestPNG draws a w x h image: green on the left half, red on the right.
func buildTestPNG(t testing.TB, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < w/2 {
				img.Set(x, y, backgroundColor)
			} else {
				img.Set(x, y, foregroundColor)
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode source png: %v", err)
	}
	return buf.Bytes()
}
