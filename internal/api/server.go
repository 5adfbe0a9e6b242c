package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"

	"github.com/dunamismax/bgremove/internal/domain"
	"github.com/dunamismax/bgremove/internal/pipeline"
	"github.com/dunamismax/bgremove/internal/removal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	uploadField       = "file"
	formatField       = "output_format"
	multipartMemory   = 32 << 20
	downloadBaseName  = "no_bg_image"
	processingErrText = "image processing error: "
)

type Processor interface {
	Process(ctx context.Context, input []byte, format domain.OutputFormat) (pipeline.Result, error)
}

// A zero CORS config sends no CORS headers.
type Options struct {
	CORS                   CORSConfig
	RateLimiter            RateLimiter
	RateLimitSubjectHeader string
	MaxUploadBytes         int64
	MetricsEnabled         bool
	RemoverName            string
	Checker                removal.Checker
}

type Server struct {
	logger    logrus.FieldLogger
	processor Processor
	opts      Options
	metrics   *metrics
	tracer    trace.Tracer
	mux       *http.ServeMux
	handler   http.Handler
}

func NewServer(logger logrus.FieldLogger, processor Processor, opts Options) (*Server, error) {
	if processor == nil {
		return nil, errors.New("processor is required")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	s := &Server{
		logger:    logger,
		processor: processor,
		opts:      opts,
		metrics:   newMetrics(),
		tracer:    otel.Tracer("bgremove/api"),
		mux:       http.NewServeMux(),
	}
	s.routes()

	var h http.Handler = s.mux
	h = s.withRateLimit(h)
	h = withCORS(s.opts.CORS, h)
	h = s.withLogging(h)
	h = s.metrics.withHTTPMetrics(h)
	h = s.withTracing(h)
	h = withRequestID(h)
	s.handler = h
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("POST "+routeRemoveBG, s.handleRemoveBackground)
	s.mux.HandleFunc("POST "+routeRemoveBGAlias, s.handleRemoveBackground)
	if s.opts.MetricsEnabled {
		s.mux.Handle("GET /metrics", s.metrics.metricsHandler())
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.opts.Checker != nil {
		if err := s.opts.Checker.Check(r.Context()); err != nil {
			s.requestLogger(r).WithError(err).Warn("remover readiness check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"remover": s.opts.RemoverName,
	})
}

func (s *Server) handleRemoveBackground(w http.ResponseWriter, r *http.Request) {
	logger := s.requestLogger(r)

	if s.opts.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		logger.WithError(err).Info("rejecting malformed upload")
		writeDetail(w, http.StatusBadRequest, "invalid multipart body: "+err.Error())
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			logger.WithError(err).Warn("remove multipart temp files")
		}
	}()

	input, err := readUpload(r.MultipartForm)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	format := domain.ParseOutputFormat(r.FormValue(formatField))
	result, err := s.processor.Process(r.Context(), input, format)
	if err != nil {
		stage := pipeline.StageOf(err)
		s.metrics.processingFailures.WithLabelValues(stageLabel(stage)).Inc()
		logger.WithFields(logrus.Fields{
			"stage":         stageLabel(stage),
			"output_format": format.String(),
			"input_bytes":   len(input),
		}).WithError(err).Error("image processing failed")
		writeDetail(w, http.StatusInternalServerError, processingErrText+err.Error())
		return
	}

	logger.WithFields(logrus.Fields{
		"output_format": result.Format.String(),
		"width":         result.Width,
		"height":        result.Height,
		"output_bytes":  len(result.Data),
	}).Debug("image processed")

	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", downloadBaseName+"."+result.Format.Extension()))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result.Data); err != nil {
		logger.WithError(err).Warn("write response body")
	}
}

// readUpload returns the bytes of the "file" part, or of the first file part
// in field-name order when the client used another field name.
func readUpload(form *multipart.Form) ([]byte, error) {
	if form == nil {
		return nil, errors.New("missing file upload")
	}

	headers := form.File[uploadField]
	if len(headers) == 0 {
		names := make([]string, 0, len(form.File))
		for name, fhs := range form.File {
			if len(fhs) > 0 {
				names = append(names, name)
			}
		}
		if len(names) == 0 {
			return nil, fmt.Errorf("missing file upload: expected multipart field %q", uploadField)
		}
		sort.Strings(names)
		headers = form.File[names[0]]
	}

	f, err := headers[0].Open()
	if err != nil {
		return nil, fmt.Errorf("open uploaded file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read uploaded file: %w", err)
	}
	return data, nil
}

func (s *Server) requestLogger(r *http.Request) logrus.FieldLogger {
	return s.logger.WithField("request_id", RequestIDFromContext(r.Context()))
}

func stageLabel(stage pipeline.Stage) string {
	if stage == "" {
		return "unknown"
	}
	return string(stage)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
