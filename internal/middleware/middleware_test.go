package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/metrics"
)

func TestIPRateLimiterBurstAndRefill(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewIPRateLimiter(1, time.Minute, 2, time.Hour)
	limiter.WithNowFunc(func() time.Time { return now })

	if !limiter.Allow("login:10.0.0.1") || !limiter.Allow("login:10.0.0.1") {
		t.Fatal("expected burst of two to be allowed")
	}
	if limiter.Allow("login:10.0.0.1") {
		t.Fatal("expected third request to be limited")
	}
	if !limiter.Allow("login:10.0.0.2") {
		t.Fatal("expected a different key to have its own budget")
	}

	now = now.Add(time.Minute)
	if !limiter.Allow("login:10.0.0.1") {
		t.Fatal("expected a token to refill after one window")
	}
}

func TestIPRateLimiterForgetsIdleKeys(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewIPRateLimiter(1, time.Hour, 1, time.Minute)
	limiter.WithNowFunc(func() time.Time { return now })

	limiter.Allow("a")
	now = now.Add(2 * time.Minute)
	limiter.Allow("b")

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	if _, ok := limiter.visitors["a"]; ok {
		t.Fatal("expected idle key to be collected")
	}
}

func TestLimitRejectsOverBudget(t *testing.T) {
	limiter := NewIPRateLimiter(1, time.Hour, 1, time.Hour)
	reject := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	handler := Limit(limiter, "register", true, reject)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/register", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	if codes[0] != http.StatusCreated || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}
}

func TestLimitWithNilLimiterPassesThrough(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	rec := httptest.NewRecorder()
	Limit(nil, "login", false, nil)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected pass-through, got %d", rec.Code)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.4:5555"
	if got := ClientIP(req, false); got != "192.0.2.4" {
		t.Fatalf("expected remote host, got %q", got)
	}
	req.Header.Set("X-Forwarded-For", " 198.51.100.7 , 192.0.2.4")
	if got := ClientIP(req, false); got != "192.0.2.4" {
		t.Fatalf("expected forwarded header to be ignored without a trusted proxy, got %q", got)
	}
	if got := ClientIP(req, true); got != "198.51.100.7" {
		t.Fatalf("expected first forwarded hop behind a trusted proxy, got %q", got)
	}
}

func TestLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	limiter := NewIPRateLimiter(1, time.Hour, 1, time.Hour)
	reject := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	handler := Limit(limiter, "login", false, reject)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "192.0.2.50:4000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.9.9.%d", i))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		want := http.StatusTooManyRequests
		if i == 0 {
			want = http.StatusOK
		}
		if rec.Code != want {
			t.Fatalf("request %d: expected %d, got %d", i, want, rec.Code)
		}
	}
}

func TestRequestLoggerRecoversPanicIntoEnvelope(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	handler := RequestLogger(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/videos", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Success || body.Message != "Internal Server Error" {
		t.Fatalf("unexpected envelope %+v", body)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected request id header")
	}
	if !strings.Contains(logs.String(), "panic recovered") {
		t.Fatalf("expected panic to be logged, got %s", logs.String())
	}
}

func TestRequestLoggerAttachesRequestScopedLogger(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var requestID string
	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID = logging.RequestIDFromContext(r.Context())
		if logging.FromContext(r.Context()) == nil {
			t.Fatal("expected logger on context")
		}
		w.WriteHeader(http.StatusAccepted)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected handler status, got %d", rec.Code)
	}
	if requestID == "" || rec.Header().Get("X-Request-Id") != requestID {
		t.Fatalf("expected request id %q to match header %q", requestID, rec.Header().Get("X-Request-Id"))
	}
}

func TestPrometheusMetricsUsesRoutePattern(t *testing.T) {
	router := chi.NewRouter()
	router.Use(PrometheusMetrics)
	router.Get("/api/v1/videos/{videoId}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	counter := metrics.HTTPRequests.WithLabelValues("/api/v1/videos/{videoId}", http.MethodGet, "404")
	before := testutil.ToFloat64(counter)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/videos/65f1c0a2b3c4d5e6f7a8b9c0", nil))

	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Fatalf("expected one request recorded under the route pattern, got %v", got)
	}
}
