package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/dunamismax/bgremove/internal/ratelimit"
)

type RateLimiter interface {
	Allow(ctx context.Context, scope ratelimit.Scope, client string) (ratelimit.Decision, error)
}

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	if s.opts.RateLimiter == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !shouldRateLimit(r) {
			next.ServeHTTP(w, r)
			return
		}

		client := s.rateLimitClient(r)
		decision, err := s.opts.RateLimiter.Allow(r.Context(), ratelimit.ScopeRemoval, client)
		if err != nil {
			// Fail open: a limiter outage must not take the endpoint down.
			s.requestLogger(r).WithError(err).WithField("client", client).Warn("rate limiter check failed")
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.FormatInt(decision.Limit, 10))
		h.Set("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
		h.Set("X-RateLimit-Reset", strconv.Itoa(ceilSeconds(decision.ResetAfter)))
		if decision.Allowed {
			next.ServeHTTP(w, r)
			return
		}

		h.Set("Retry-After", strconv.Itoa(max(ceilSeconds(decision.RetryAfter), 1)))
		s.metrics.rateLimitRejected.WithLabelValues(routeLabel(r.URL.Path)).Inc()
		writeDetail(w, http.StatusTooManyRequests, "rate limit exceeded")
	})
}

func shouldRateLimit(r *http.Request) bool {
	if r.Method != http.MethodPost {
		return false
	}
	return r.URL.Path == routeRemoveBG || r.URL.Path == routeRemoveBGAlias
}

// rateLimitClient reads the configured proxy header only when one is set.
// Clients control such headers, so it must only be enabled behind a proxy
// that overwrites them.
func (s *Server) rateLimitClient(r *http.Request) string {
	forwarded := ""
	if s.opts.RateLimitSubjectHeader != "" {
		forwarded = r.Header.Get(s.opts.RateLimitSubjectHeader)
	}
	return ratelimit.ClientKey(forwarded, r.RemoteAddr)
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
