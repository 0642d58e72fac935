package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"sacco/pkg/logger"
)

// IdempotencyMiddleware replays the first response for a repeated
// Idempotency-Key on unsafe methods. Confirmations and payouts are retried by
// clients on timeouts, and a replay must not post a second transaction.
type IdempotencyMiddleware struct {
	cache  *redis.Client
	ttl    time.Duration
	wait   time.Duration
	logger logger.Logger
}

func NewIdempotencyMiddleware(cache *redis.Client, ttl time.Duration, log logger.Logger) *IdempotencyMiddleware {
	return &IdempotencyMiddleware{
		cache:  cache,
		ttl:    ttl,
		wait:   5 * time.Second,
		logger: log,
	}
}

// Require blocks duplicate POST/PUT/PATCH/DELETE requests with the same key.
// It expects the header: Idempotency-Key.
func (m *IdempotencyMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodPut &&
			r.Method != http.MethodPatch && r.Method != http.MethodDelete {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get("Idempotency-Key")
		if key == "" {
			jsonError(w, http.StatusBadRequest, "Idempotency-Key header required")
			return
		}

		scope := key
		if actorID, ok := ActorIDFromContext(r.Context()); ok {
			scope = actorID.String() + ":" + key
		}
		dataKey := fmt.Sprintf("sacco:idempotency:data:%s:%s", r.Method, scope)
		lockKey := fmt.Sprintf("sacco:idempotency:lock:%s:%s", r.Method, scope)

		if m.replayCached(w, r, dataKey) {
			return
		}

		requestID := RequestIDFromContext(r.Context())
		if requestID == "" {
			requestID = "unknown"
		}

		ok, err := m.cache.SetNX(r.Context(), lockKey, requestID, m.ttl).Result()
		if err != nil {
			m.logger.Error("Idempotency lock failed", map[string]interface{}{
				"key":   key,
				"error": err,
			})
			jsonError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		if !ok {
			// Same request re-entering through an internal redirect.
			if val, err := m.cache.Get(r.Context(), lockKey).Result(); err == nil && val == requestID {
				next.ServeHTTP(w, r)
				return
			}
			// Another request with this key is in flight; wait for its response.
			deadline := time.Now().Add(m.wait)
			for time.Now().Before(deadline) {
				time.Sleep(100 * time.Millisecond)
				if m.replayCached(w, r, dataKey) {
					return
				}
			}
			w.Header().Set("Retry-After", "1")
			jsonError(w, http.StatusConflict, "Request with this Idempotency-Key is still in progress")
			return
		}
		defer m.cache.Del(r.Context(), lockKey)

		cw := newCaptureWriter(w, 1<<20)
		next.ServeHTTP(cw, r)

		if err := m.cacheResponse(r, dataKey, cw); err != nil {
			m.logger.Warn("Idempotency response not cached", map[string]interface{}{
				"key":   key,
				"error": err,
			})
		}
	})
}

type capturedResponse struct {
	Status  int               `json:"status"`
	Body    []byte            `json:"body"`
	Headers map[string]string `json:"headers"`
}

func (m *IdempotencyMiddleware) replayCached(w http.ResponseWriter, r *http.Request, dataKey string) bool {
	payload, err := m.cache.Get(r.Context(), dataKey).Bytes()
	if err != nil {
		return false
	}

	var cr capturedResponse
	if err := json.Unmarshal(payload, &cr); err != nil {
		return false
	}

	for k, v := range cr.Headers {
		w.Header().Set(k, v)
	}
	w.Header().Set("Idempotent-Replay", "true")
	w.WriteHeader(cr.Status)
	_, _ = w.Write(cr.Body)
	return true
}

func (m *IdempotencyMiddleware) cacheResponse(r *http.Request, dataKey string, cw *captureWriter) error {
	// Server errors are left uncached so the client can retry.
	if cw.status == 0 || cw.status >= http.StatusInternalServerError || len(cw.buf) == 0 {
		return nil
	}

	payload, err := json.Marshal(capturedResponse{
		Status:  cw.status,
		Body:    cw.buf,
		Headers: cw.headers,
	})
	if err != nil {
		return err
	}
	return m.cache.Set(r.Context(), dataKey, payload, m.ttl).Err()
}

type captureWriter struct {
	http.ResponseWriter
	buf     []byte
	limit   int
	status  int
	headers map[string]string
}

func newCaptureWriter(w http.ResponseWriter, limit int) *captureWriter {
	return &captureWriter{
		ResponseWriter: w,
		buf:            make([]byte, 0, 1024),
		limit:          limit,
		headers:        make(map[string]string),
	}
}

func (w *captureWriter) WriteHeader(statusCode int) {
	w.status = statusCode
	for k, v := range w.ResponseWriter.Header() {
		if len(v) > 0 {
			w.headers[k] = v[0]
		}
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *captureWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.WriteHeader(http.StatusOK)
	}
	if space := w.limit - len(w.buf); space > 0 {
		if len(p) < space {
			space = len(p)
		}
		w.buf = append(w.buf, p[:space]...)
	}
	return w.ResponseWriter.Write(p)
}
