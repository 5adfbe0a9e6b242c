// Package handler is the serverless entry point. The platform calls Handler
// for every request to /api/remove_bg.
package handler

import (
	"context"
	"net/http"
	"sync"

	"github.com/dunamismax/bgremove/internal/app"
	"github.com/dunamismax/bgremove/internal/config"
	"github.com/dunamismax/bgremove/internal/logging"
	"github.com/sirupsen/logrus"
)

var (
	once    sync.Once
	handler http.Handler
	initErr error
)

func build() {
	cfg, err := config.Load()
	if err != nil {
		initErr = err
		return
	}
	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		initErr = err
		return
	}
	a, err := app.Build(context.Background(), cfg, logger)
	if err != nil {
		initErr = err
		return
	}
	handler = a.Handler
}

func Handler(w http.ResponseWriter, r *http.Request) {
	once.Do(build)
	if initErr != nil {
		logrus.WithError(initErr).Error("initialise background removal handler")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail":"image processing error: service is misconfigured"}` + "\n"))
		return
	}
	handler.ServeHTTP(w, r)
}
