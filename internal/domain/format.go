package domain

import "strings"

// OutputFormat is the encoding requested for a background-removed image.
type OutputFormat int

const (
	FormatPNG OutputFormat = iota
	FormatJPEG
	FormatWEBP
)

// DefaultOutputFormat is used when output_format is absent or unrecognized.
const DefaultOutputFormat = FormatPNG

// ParseOutputFormat maps a user-supplied selector onto a supported format.
// Matching is case-insensitive and "jpg" is an alias of "jpeg". Anything
// else falls back to PNG.
func ParseOutputFormat(raw string) OutputFormat {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "jpeg", "jpg":
		return FormatJPEG
	case "webp":
		return FormatWEBP
	default:
		return DefaultOutputFormat
	}
}

func (f OutputFormat) String() string {
	switch f {
	case FormatJPEG:
		return "jpeg"
	case FormatWEBP:
		return "webp"
	default:
		return "png"
	}
}

func (f OutputFormat) ContentType() string {
	return "image/" + f.String()
}

// Extension is the file extension used in download filenames.
func (f OutputFormat) Extension() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return f.String()
}

// HasAlpha reports whether the encoding can carry transparency.
func (f OutputFormat) HasAlpha() bool {
	return f != FormatJPEG
}
