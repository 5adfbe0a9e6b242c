package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dunamismax/bgremove/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(rembgURL string) config.Config {
	return config.Config{
		API: config.APIConfig{Addr: ":0", MetricsEnabled: true},
		CORS: config.CORSConfig{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"*"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
		},
		Remover: config.RemoverConfig{
			Backend:      "http",
			Model:        "u2net",
			HTTPEndpoint: rembgURL,
			HTTPTimeout:  5 * time.Second,
		},
		Tracing: config.TracingConfig{Exporter: "none"},
	}
}

func TestBuildServesHealthz(t *testing.T) {
	rembg := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer rembg.Close()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	a, err := Build(context.Background(), testConfig(rembg.URL+"/api/remove"), logger)
	require.NoError(t, err)
	defer func() { require.NoError(t, a.Close(context.Background())) }()

	rec := httptest.NewRecorder()
	a.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","remover":"http"}`, rec.Body.String())
}

func TestBuildRejectsBadRemover(t *testing.T) {
	cfg := testConfig("ftp://nowhere")
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	_, err := Build(context.Background(), cfg, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build remover")
}
