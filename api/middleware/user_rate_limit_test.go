package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shopzen/shopzen-backend/pkg/enums"
)

func TestUserRateLimiterBurstThenRefill(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewUserRateLimiter(0.5, 2)
	limiter.now = func() time.Time { return now }

	if !limiter.Allow("u1") || !limiter.Allow("u1") {
		t.Fatal("burst of 2 should be allowed")
	}
	if limiter.Allow("u1") {
		t.Fatal("third message inside the burst window must be blocked")
	}
	if !limiter.Allow("u2") {
		t.Fatal("other users keep their own bucket")
	}

	now = now.Add(2 * time.Second)
	if !limiter.Allow("u1") {
		t.Fatal("one token should refill after 2s at 0.5 rps")
	}
}

func TestUserRateLimiterSweepsIdleBuckets(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewUserRateLimiter(1, 1)
	limiter.now = func() time.Time { return now }
	limiter.Allow("idle")

	now = now.Add(limiterIdleTTL + time.Second)
	limiter.Allow("active")

	if removed := limiter.Sweep(); removed != 1 {
		t.Fatalf("expected 1 idle bucket removed, got %d", removed)
	}
	if _, ok := limiter.visitors["active"]; !ok {
		t.Fatal("active bucket must survive the sweep")
	}
}

func TestUserRateLimiterMiddleware(t *testing.T) {
	limiter := NewUserRateLimiter(0.01, 1)
	handler := limiter.Middleware("chat", nil)(okHandler())
	userID := uuid.NewString()

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", nil)
		req = req.WithContext(WithUser(req.Context(), userID, enums.UserRoleUser))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
		if i == 1 && rec.Header().Get("Retry-After") != "100" {
			t.Fatalf("unexpected Retry-After %q", rec.Header().Get("Retry-After"))
		}
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}
}
