package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"flow-gateway/internal/cache"
	svcerr "flow-gateway/pkg/errors"
)

// RateLimitMiddleware limits request rates per authenticated subject. It must
// run after AuthMiddleware so the subject is present in the context.
func RateLimitMiddleware(limiter cache.RateLimiter, logger *zap.Logger, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, ok := SubjectFromContext(r.Context())
			if !ok {
				// No subject means the route is unauthenticated; skip limiting.
				next.ServeHTTP(w, r)
				return
			}

			exceeded, err := limiter.CheckRateLimit(r.Context(), subject, limit, window)
			if err != nil {
				logger.Error("Rate limit check failed", zap.Error(err))
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			if exceeded {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				w.WriteHeader(svcerr.ErrRateLimitExceeded.Status)
				json.NewEncoder(w).Encode(map[string]string{
					"error":             svcerr.ErrRateLimitExceeded.Code,
					"error_description": svcerr.ErrRateLimitExceeded.Message,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
