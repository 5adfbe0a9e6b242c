package api

import (
	"net/http"
	"time"

	"github.com/dunamismax/bgremove/internal/ratelimit"
	"github.com/sirupsen/logrus"
)

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		entry := s.requestLogger(r).WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     recorder.status,
			"duration":   time.Since(start),
			"client_ip":  ratelimit.ClientKey("", r.RemoteAddr),
			"user_agent": r.UserAgent(),
		})

		switch {
		case recorder.status >= 500:
			entry.Error("request failed")
		case recorder.status >= 400:
			entry.Warn("request rejected")
		default:
			entry.Info("request processed")
		}
	})
}
