package removal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxRemoverResponseBytes = 256 << 20

type HTTPConfig struct {
	Endpoint string
	Model    string
	Timeout  time.Duration
}

// HTTPRemover talks to a rembg-compatible server ("rembg s"), which accepts
// a multipart upload in the "file" field and answers with a PNG.
type HTTPRemover struct {
	httpClient *http.Client
	endpoint   string
	model      string
}

func NewHTTPRemover(cfg HTTPConfig) (*HTTPRemover, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = DefaultHTTPEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse remover endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("remover endpoint must be http(s): %s", endpoint)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}

	return &HTTPRemover{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   endpoint,
		model:      model,
	}, nil
}

func (r *HTTPRemover) Remove(ctx context.Context, img image.Image) (image.Image, error) {
	if img == nil {
		return nil, errors.New("image is required")
	}

	payload, err := encodePNG(img)
	if err != nil {
		return nil, err
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "image.png")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(payload); err != nil {
		return nil, fmt.Errorf("write form file: %w", err)
	}
	if err := writer.WriteField("model", r.model); err != nil {
		return nil, fmt.Errorf("write model field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build remover request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "image/png")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call remover: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoverResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read remover response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("remover returned status=%d body=%q", resp.StatusCode, truncate(string(data), 200))
	}

	return decodeResult(data)
}

// Check issues a GET against the server root. Any answer below 500 means the
// server is up; the root path itself does not have to exist.
func (r *HTTPRemover) Check(ctx context.Context) error {
	u, err := url.Parse(r.endpoint)
	if err != nil {
		return fmt.Errorf("parse remover endpoint: %w", err)
	}
	u.Path = "/"
	u.RawQuery = ""

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("build remover health request: %w", err)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("remover unreachable: %w", err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("remover unhealthy: status=%d", resp.StatusCode)
	}
	return nil
}

func (r *HTTPRemover) String() string {
	return fmt.Sprintf("http(%s, model=%s)", r.endpoint, r.model)
}
