package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"sacco/pkg/logger"
)

func redisForTest(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_URL")
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skip("Redis not available")
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestIdempotencyRequiresKey(t *testing.T) {
	mw := NewIdempotencyMiddleware(redisForTest(t), time.Minute, logger.NewNop())
	h := mw.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/payments", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/payments", nil))
	assert.Equal(t, http.StatusCreated, w.Code, "safe methods pass through")
}

func TestIdempotencyReplaysConcurrentDuplicates(t *testing.T) {
	mw := NewIdempotencyMiddleware(redisForTest(t), 10*time.Second, logger.NewNop())

	var calls int32
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"confirmed"}`))
	})
	wrapped := mw.Require(slow)
	key := "confirm-" + uuid.NewString()

	var wg sync.WaitGroup
	codes := make([]int, 2)
	bodies := make([]string, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			time.Sleep(time.Duration(i) * 50 * time.Millisecond)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/x/confirm", nil)
			req.Header.Set("Idempotency-Key", key)
			w := httptest.NewRecorder()
			wrapped.ServeHTTP(w, req)
			codes[i] = w.Code
			bodies[i] = w.Body.String()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, []int{http.StatusOK, http.StatusOK}, codes)
	assert.Equal(t, bodies[0], bodies[1])
}
