package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"flow-gateway/internal/auth"
	"flow-gateway/internal/middleware"
	"flow-gateway/internal/mocks"
)

func rateLimitedChain(t *testing.T, limiter *mocks.MockRateLimiter) (http.Handler, string) {
	t.Helper()

	tokens := auth.NewTokenService("test-secret", time.Hour)
	token, err := tokens.IssueServiceToken("test-service")
	assert.NoError(t, err)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := middleware.AuthMiddleware(tokens, zap.NewNop())(
		middleware.RateLimitMiddleware(limiter, zap.NewNop(), 60, time.Minute)(next),
	)

	return handler, token
}

func TestRateLimitAllows(t *testing.T) {
	limiter := new(mocks.MockRateLimiter)
	limiter.On("CheckRateLimit", mock.Anything, "test-service", 60, time.Minute).Return(false, nil)

	handler, token := rateLimitedChain(t, limiter)

	req := httptest.NewRequest("GET", "/api/v1/deployments/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	limiter.AssertExpectations(t)
}

func TestRateLimitExceeded(t *testing.T) {
	limiter := new(mocks.MockRateLimiter)
	limiter.On("CheckRateLimit", mock.Anything, "test-service", 60, time.Minute).Return(true, nil)

	handler, token := rateLimitedChain(t, limiter)

	req := httptest.NewRequest("GET", "/api/v1/deployments/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))
	assert.Contains(t, rr.Body.String(), "RATE_LIMIT_EXCEEDED")
}
