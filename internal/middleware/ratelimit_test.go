package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/hitoshi/vault/internal/model"
)

func testLimiterConfig(generalBurst, writeBurst int) RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     0.001,
		GeneralBurst:    generalBurst,
		WriteRate:       0.001,
		WriteBurst:      writeBurst,
		CleanupInterval: time.Minute,
	}
}

func requestAs(method, userID string) *http.Request {
	req := httptest.NewRequest(method, "/api/links", nil)
	if userID != "" {
		req = req.WithContext(ContextWithUser(req.Context(), &model.User{ID: userID}))
	}
	return req
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
}

func TestRateLimiter_General_AllowsBurstThen429(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig(3, 10))
	defer rl.Stop()
	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestAs(http.MethodGet, "user-1"))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, w.Code)
		}
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestAs(http.MethodGet, "user-1"))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	retryAfter, err := strconv.Atoi(w.Header().Get("Retry-After"))
	if err != nil || retryAfter < 1 {
		t.Errorf("Retry-After = %q", w.Header().Get("Retry-After"))
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != "RATE_LIMIT_EXCEEDED" {
		t.Errorf("code = %q", body.Code)
	}
}

func TestRateLimiter_General_IsPerUser(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig(1, 10))
	defer rl.Stop()
	handler := rl.GeneralMiddleware()(okHandler())

	for _, user := range []string{"user-a", "user-b"} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestAs(http.MethodGet, user))
		if w.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", user, w.Code)
		}
	}
	if got := rl.GeneralLimiterCount(); got != 2 {
		t.Errorf("GeneralLimiterCount = %d, want 2", got)
	}
}

func TestRateLimiter_AnonymousKeyedByIP(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig(1, 10))
	defer rl.Stop()
	handler := rl.GeneralMiddleware()(okHandler())

	first := requestAs(http.MethodGet, "")
	first.RemoteAddr = "203.0.113.5:4000"
	second := requestAs(http.MethodGet, "")
	second.RemoteAddr = "203.0.113.5:4001"

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, first)
	if w.Code != http.StatusOK {
		t.Fatalf("first status = %d", w.Code)
	}
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, second)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("same IP on a new port should share the limit, got %d", w.Code)
	}
}

func TestRateLimiter_Write_SkipsSafeMethods(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig(100, 1))
	defer rl.Stop()
	handler := rl.WriteMiddleware()(okHandler())

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestAs(http.MethodGet, "user-1"))
		if w.Code != http.StatusOK {
			t.Fatalf("GET %d: status = %d", i, w.Code)
		}
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestAs(http.MethodPost, "user-1"))
	if w.Code != http.StatusOK {
		t.Fatalf("first POST: status = %d", w.Code)
	}
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, requestAs(http.MethodDelete, "user-1"))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("second write: status = %d, want 429", w.Code)
	}
	if rl.WriteLimiterCount() != 1 {
		t.Errorf("WriteLimiterCount = %d, want 1", rl.WriteLimiterCount())
	}
}

func TestRateLimiter_CleanupEvictsIdleEntries(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig(5, 5))
	defer rl.Stop()
	handler := rl.GeneralMiddleware()(okHandler())
	handler.ServeHTTP(httptest.NewRecorder(), requestAs(http.MethodGet, "user-1"))

	rl.cleanup(time.Now())
	if rl.GeneralLimiterCount() != 1 {
		t.Fatal("fresh entry should survive cleanup")
	}
	rl.cleanup(time.Now().Add(3 * time.Minute))
	if rl.GeneralLimiterCount() != 0 {
		t.Errorf("idle entry should be evicted, count = %d", rl.GeneralLimiterCount())
	}
}

func TestRateLimiterConfigPerMinute(t *testing.T) {
	cfg := RateLimiterConfigPerMinute(120, 30)
	if cfg.GeneralRate != 2 || cfg.GeneralBurst != 120 {
		t.Errorf("general = %v/%d", cfg.GeneralRate, cfg.GeneralBurst)
	}
	if cfg.WriteRate != 0.5 || cfg.WriteBurst != 30 {
		t.Errorf("write = %v/%d", cfg.WriteRate, cfg.WriteBurst)
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	rl.Stop()
	rl.Stop()
}
