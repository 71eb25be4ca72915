//go:build integration

package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"inspekta/internal/platform/middleware"
	"inspekta/pkg/testutil/containers"
)

type RateLimitRedisSuite struct {
	suite.Suite
	redis *containers.RedisContainer
}

func TestRateLimitRedisSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RateLimitRedisSuite))
}

func (s *RateLimitRedisSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
}

func (s *RateLimitRedisSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RateLimitRedisSuite) handler(cfg middleware.RateLimitConfig) http.Handler {
	return middleware.RateLimit(cfg, s.redis.Client)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
}

func (s *RateLimitRedisSuite) get(h http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/bookings", nil)
	req.Header.Set("X-Forwarded-For", ip)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func (s *RateLimitRedisSuite) TestBucketExhaustion() {
	cfg := middleware.RateLimitConfig{
		Capacity:       3,
		RefillTokens:   1,
		RefillInterval: time.Minute,
		TTL:            time.Minute,
		Prefix:         "rl-test",
	}
	h := s.handler(cfg)

	for i := 0; i < 3; i++ {
		rec := s.get(h, "203.0.113.7")
		s.Equal(http.StatusNoContent, rec.Code)
		s.Equal("3", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec := s.get(h, "203.0.113.7")
	s.Equal(http.StatusTooManyRequests, rec.Code)
	s.Equal("0", rec.Header().Get("X-RateLimit-Remaining"))
	s.NotEmpty(rec.Header().Get("Retry-After"))
	s.JSONEq(`{"error":"too_many_requests","error_description":"rate limit exceeded"}`, rec.Body.String())
}

func (s *RateLimitRedisSuite) TestBucketsAreKeyedByCaller() {
	cfg := middleware.RateLimitConfig{
		Capacity:       1,
		RefillTokens:   1,
		RefillInterval: time.Minute,
		TTL:            time.Minute,
		Prefix:         "rl-test",
	}
	h := s.handler(cfg)

	s.Equal(http.StatusNoContent, s.get(h, "203.0.113.1").Code)
	s.Equal(http.StatusTooManyRequests, s.get(h, "203.0.113.1").Code)

	// A different caller has its own bucket.
	s.Equal(http.StatusNoContent, s.get(h, "203.0.113.2").Code)
}

func (s *RateLimitRedisSuite) TestRefill() {
	cfg := middleware.RateLimitConfig{
		Capacity:       1,
		RefillTokens:   1,
		RefillInterval: 200 * time.Millisecond,
		TTL:            time.Minute,
		Prefix:         "rl-test",
	}
	h := s.handler(cfg)

	s.Equal(http.StatusNoContent, s.get(h, "203.0.113.9").Code)
	s.Equal(http.StatusTooManyRequests, s.get(h, "203.0.113.9").Code)

	time.Sleep(250 * time.Millisecond)
	s.Equal(http.StatusNoContent, s.get(h, "203.0.113.9").Code)
}
