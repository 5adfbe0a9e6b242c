package removal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"
	"time"
)

const (
	BackendHTTP = "http"
	BackendExec = "exec"

	DefaultModel        = "u2net"
	DefaultHTTPEndpoint = "http://localhost:7000/api/remove"
	DefaultExecCommand  = "rembg"
)

var ErrUnsupportedBackend = errors.New("unsupported remover backend")

// Remover turns a bitmap into the same bitmap with its background made
// transparent. Implementations must be safe for concurrent use.
type Remover interface {
	Remove(ctx context.Context, img image.Image) (image.Image, error)
}

// Checker is implemented by removers that can report whether their
// backing model is reachable.
type Checker interface {
	Check(ctx context.Context) error
}

// Func adapts a plain function to the Remover interface.
type Func func(ctx context.Context, img image.Image) (image.Image, error)

func (f Func) Remove(ctx context.Context, img image.Image) (image.Image, error) {
	return f(ctx, img)
}

type Config struct {
	Backend string

	HTTPEndpoint string
	HTTPTimeout  time.Duration

	ExecCommand string
	ExecArgs    []string
	ExecTimeout time.Duration

	Model string
}

// New builds the remover selected by cfg.Backend.
func New(cfg Config) (Remover, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendHTTP:
		return NewHTTPRemover(HTTPConfig{
			Endpoint: cfg.HTTPEndpoint,
			Model:    cfg.Model,
			Timeout:  cfg.HTTPTimeout,
		})
	case BackendExec:
		return NewExecRemover(ExecConfig{
			Command: cfg.ExecCommand,
			Args:    cfg.ExecArgs,
			Model:   cfg.Model,
			Timeout: cfg.ExecTimeout,
		})
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, cfg.Backend)
	}
}

// encodePNG is the wire format for both backends: lossless and alpha-aware.
func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := encoder.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png for remover: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeResult(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, errors.New("remover returned an empty image")
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode remover output: %w", err)
	}
	return img, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
