package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in   string
		want OutputFormat
	}{
		{in: "png", want: FormatPNG},
		{in: "PNG", want: FormatPNG},
		{in: "Png", want: FormatPNG},
		{in: "jpeg", want: FormatJPEG},
		{in: "jpg", want: FormatJPEG},
		{in: "JPG", want: FormatJPEG},
		{in: " webp ", want: FormatWEBP},
		{in: "WebP", want: FormatWEBP},
		{in: "", want: FormatPNG},
		{in: "bmp", want: FormatPNG},
		{in: "PNG2", want: FormatPNG},
		{in: "gif", want: FormatPNG},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseOutputFormat(tt.in))
		})
	}
}

func TestOutputFormatContentType(t *testing.T) {
	assert.Equal(t, "image/png", FormatPNG.ContentType())
	assert.Equal(t, "image/jpeg", FormatJPEG.ContentType())
	assert.Equal(t, "image/webp", FormatWEBP.ContentType())

	// jpg is only an input alias.
	assert.Equal(t, "image/jpeg", ParseOutputFormat("jpg").ContentType())
}

func TestOutputFormatExtension(t *testing.T) {
	assert.Equal(t, "png", FormatPNG.Extension())
	assert.Equal(t, "jpg", FormatJPEG.Extension())
	assert.Equal(t, "webp", FormatWEBP.Extension())
}

func TestOutputFormatHasAlpha(t *testing.T) {
	assert.True(t, FormatPNG.HasAlpha())
	assert.True(t, FormatWEBP.HasAlpha())
	assert.False(t, FormatJPEG.HasAlpha())
}

func TestUnknownOutputFormatValueFallsBack(t *testing.T) {
	var f OutputFormat = 42
	assert.Equal(t, "png", f.String())
	assert.Equal(t, "image/png", f.ContentType())
}
