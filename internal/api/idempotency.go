package api

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"courtside/internal/models"
	"courtside/internal/service"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"
)

// responseCapture buffers a handler's response so it can be stored for replay.
type responseCapture struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newResponseCapture() *responseCapture {
	return &responseCapture{header: make(http.Header), status: http.StatusOK}
}

func (c *responseCapture) Header() http.Header         { return c.header }
func (c *responseCapture) Write(b []byte) (int, error) { return c.body.Write(b) }
func (c *responseCapture) WriteHeader(status int)      { c.status = status }

func (c *responseCapture) flush(w http.ResponseWriter) {
	for k, vals := range c.header {
		for _, v := range vals {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(c.status)
	_, _ = w.Write(c.body.Bytes())
}

// idempotent makes a POST handler safe to retry: the first response for an
// Idempotency-Key is stored and replayed for later requests with that key.
// Without a request store or a key the handler runs as is.
func (s *HTTPServer) idempotent(scope string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
		if s.store == nil || key == "" {
			next(w, r)
			return
		}
		if len(key) > 128 {
			writeError(w, http.StatusBadRequest, service.CodeInvalidRequest, "Idempotency-Key is too long")
			return
		}

		ctx := r.Context()
		storeKey := scope + ":" + key
		ttl := time.Duration(models.IdempotencyTTL) * time.Second

		reserved, err := s.store.Reserve(ctx, storeKey, ttl)
		if err != nil {
			s.logger.Warn().Err(err).Str("key", storeKey).Msg("idempotency store unavailable, serving without replay")
			next(w, r)
			return
		}

		if !reserved {
			resp, pending, err := s.store.Lookup(ctx, storeKey)
			switch {
			case err != nil:
				s.logger.Warn().Err(err).Str("key", storeKey).Msg("idempotency lookup failed")
				writeError(w, http.StatusServiceUnavailable, service.CodeInternal, "temporarily unavailable, retry the request")
			case resp != nil:
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set(replayedHeader, "true")
				w.WriteHeader(resp.StatusCode)
				_, _ = w.Write(resp.Body)
			case pending:
				writeError(w, http.StatusConflict, service.CodeInvalidRequest, "a request with this Idempotency-Key is still in progress")
			default:
				// Reservation expired between the two calls; treat as new.
				next(w, r)
			}
			return
		}

		capture := newResponseCapture()
		next(capture, r)

		if capture.status >= http.StatusInternalServerError {
			if err := s.store.Release(ctx, storeKey); err != nil {
				s.logger.Warn().Err(err).Str("key", storeKey).Msg("idempotency release failed")
			}
		} else {
			stored := &models.StoredResponse{StatusCode: capture.status, Body: capture.body.Bytes()}
			if err := s.store.Complete(ctx, storeKey, stored, ttl); err != nil {
				s.logger.Warn().Err(err).Str("key", storeKey).Msg("idempotency complete failed")
			}
		}
		capture.flush(w)
	}
}

// allowBooking enforces the per-phone booking quota shared across instances.
// Store failures fail open.
func (s *HTTPServer) allowBooking(r *http.Request, phone string) bool {
	limit := s.cfg.BookingRateLimit.Limit
	if s.store == nil || limit <= 0 {
		return true
	}
	window := time.Duration(s.cfg.BookingRateLimit.WindowSeconds) * time.Second
	allowed, err := s.store.CheckRateLimit(r.Context(), "booking:"+strings.TrimSpace(phone), limit, window)
	if err != nil {
		s.logger.Warn().Err(err).Msg("booking rate limit check failed")
		return true
	}
	return allowed
}
