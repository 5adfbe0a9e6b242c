package api

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dunamismax/bgremove/internal/domain"
	"github.com/dunamismax/bgremove/internal/pipeline"
	"github.com/dunamismax/bgremove/internal/removal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

var (
	screenColor  = color.NRGBA{R: 0, G: 255, B: 0, A: 255}
	subjectColor = color.NRGBA{R: 30, G: 60, B: 200, A: 255}
)

// chromaKey stands in for the model: pure green becomes transparent.
var chromaKey = removal.Func(func(_ context.Context, img image.Image) (image.Image, error) {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if c != screenColor {
				out.SetNRGBA(x-b.Min.X, y-b.Min.Y, c)
			}
		}
	}
	return out, nil
})

func sourcePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < w/2 {
				img.SetNRGBA(x, y, screenColor)
			} else {
				img.SetNRGBA(x, y, subjectColor)
			}
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	processor, err := pipeline.NewProcessor(chromaKey)
	require.NoError(t, err)
	srv, err := NewServer(quietLogger(), processor, opts)
	require.NoError(t, err)
	return srv
}

// uploadRequest builds a multipart POST with data under field. An empty
// format leaves output_format out of the form.
func uploadRequest(t *testing.T, path, field string, data []byte, format string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if format != "" {
		require.NoError(t, mw.WriteField("output_format", format))
	}
	fw, err := mw.CreateFormFile(field, "photo.png")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

type checkerFunc func(ctx context.Context) error

func (f checkerFunc) Check(ctx context.Context) error { return f(ctx) }

// processorFunc fails every request with the error f returns.
type processorFunc func(ctx context.Context, input []byte) error

func (f processorFunc) Process(ctx context.Context, input []byte, _ domain.OutputFormat) (pipeline.Result, error) {
	return pipeline.Result{}, f(ctx, input)
}
