// Package app wires configuration into a ready-to-serve HTTP handler.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dunamismax/bgremove/internal/api"
	"github.com/dunamismax/bgremove/internal/config"
	"github.com/dunamismax/bgremove/internal/pipeline"
	"github.com/dunamismax/bgremove/internal/ratelimit"
	"github.com/dunamismax/bgremove/internal/removal"
	"github.com/dunamismax/bgremove/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type App struct {
	Handler http.Handler

	closers []func(context.Context) error
}

// Build assembles tracing, the remover, the processing pipeline, the optional
// Redis rate limiter and the API server.
func Build(ctx context.Context, cfg config.Config, logger logrus.FieldLogger) (*App, error) {
	a := &App{}

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  cfg.Tracing.ServiceName,
		Exporter:     cfg.Tracing.Exporter,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		OTLPInsecure: cfg.Tracing.OTLPInsecure,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}
	a.closers = append(a.closers, shutdownTracing)

	if err := pipeline.Startup(); err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("start image codec: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error {
		pipeline.Shutdown()
		return nil
	})

	remover, err := removal.New(removal.Config{
		Backend:      cfg.Remover.Backend,
		HTTPEndpoint: cfg.Remover.HTTPEndpoint,
		HTTPTimeout:  cfg.Remover.HTTPTimeout,
		ExecCommand:  cfg.Remover.ExecCommand,
		ExecArgs:     cfg.Remover.ExecArgs,
		ExecTimeout:  cfg.Remover.ExecTimeout,
		Model:        cfg.Remover.Model,
	})
	if err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("build remover: %w", err)
	}

	processor, err := pipeline.NewProcessor(remover)
	if err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("build processor: %w", err)
	}

	opts := api.Options{
		CORS: api.CORSConfig{
			AllowedOrigins:   cfg.CORS.AllowedOrigins,
			AllowedMethods:   cfg.CORS.AllowedMethods,
			AllowedHeaders:   cfg.CORS.AllowedHeaders,
			AllowCredentials: cfg.CORS.AllowCredentials,
		},
		RateLimitSubjectHeader: cfg.RateLimit.SubjectHeader,
		MaxUploadBytes:         cfg.API.MaxUploadBytes,
		MetricsEnabled:         cfg.API.MetricsEnabled,
		RemoverName:            cfg.Remover.Backend,
	}
	if checker, ok := remover.(removal.Checker); ok {
		opts.Checker = checker
	}

	if cfg.RateLimit.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RateLimit.RedisAddr,
			Password: cfg.RateLimit.RedisPassword,
			DB:       cfg.RateLimit.RedisDB,
		})
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })

		limiter, err := ratelimit.NewRedisTokenBucket(client, ratelimit.Config{
			Capacity: cfg.RateLimit.Capacity,
			Window:   cfg.RateLimit.Window,
		})
		if err != nil {
			_ = a.Close(ctx)
			return nil, fmt.Errorf("build rate limiter: %w", err)
		}
		opts.RateLimiter = limiter
		logger.WithFields(logrus.Fields{
			"capacity": cfg.RateLimit.Capacity,
			"window":   cfg.RateLimit.Window,
		}).Info("rate limiting enabled")
	}

	server, err := api.NewServer(logger, processor, opts)
	if err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("build api server: %w", err)
	}
	a.Handler = server.Handler()

	logger.WithFields(logrus.Fields{
		"remover": fmt.Sprint(remover),
		"codec":   pipeline.CodecName(),
	}).Info("background removal service ready")
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
