package pipeline

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// hasAlphaChannel reports whether img can carry per-pixel opacity. Only the
// colour models that are opaque by construction (gray, YCbCr, CMYK and
// palettes without a translucent entry) are rejected.
func hasAlphaChannel(img image.Image) bool {
	m := img.ColorModel()
	if p, ok := m.(color.Palette); ok {
		return paletteHasAlpha(p)
	}

	switch m {
	case color.GrayModel, color.Gray16Model, color.YCbCrModel, color.CMYKModel:
		return false
	default:
		return true
	}
}

func paletteHasAlpha(p color.Palette) bool {
	for _, c := range p {
		if _, _, _, a := c.RGBA(); a != 0xffff {
			return true
		}
	}
	return false
}

// flattenOnWhite paints img over an opaque white canvas of the same size,
// using its alpha channel as the mask.
func flattenOnWhite(img image.Image) (*image.NRGBA, error) {
	if !hasAlphaChannel(img) {
		return nil, ErrNoAlphaChannel
	}

	b := img.Bounds()
	canvas := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(canvas, img, image.Pt(0, 0), 1.0), nil
}
