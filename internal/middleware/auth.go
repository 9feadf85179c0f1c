package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"flow-gateway/internal/auth"
	svcerr "flow-gateway/pkg/errors"
)

type contextKey string

// subjectKey carries the authenticated subject through the request context.
const subjectKey contextKey = "subject"

// SubjectFromContext returns the authenticated subject set by AuthMiddleware.
func SubjectFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(subjectKey).(string)
	return subject, ok
}

// AuthMiddleware requires a valid bearer token on every request it wraps.
// Missing or malformed Authorization headers, and any token verification
// failure, short-circuit to 401 with a WWW-Authenticate: Bearer header before
// the handler runs.
func AuthMiddleware(tokens *auth.TokenService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			tokenString, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || tokenString == "" {
				writeUnauthorized(w, svcerr.ErrInvalidToken)
				return
			}

			claims, err := tokens.Verify(tokenString)
			if err != nil {
				logger.Debug("Token verification failed", zap.Error(err))
				writeUnauthorized(w, asServiceError(err))
				return
			}

			subject, err := auth.Subject(claims)
			if err != nil {
				logger.Debug("Token has no subject", zap.Error(err))
				writeUnauthorized(w, asServiceError(err))
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func asServiceError(err error) *svcerr.ServiceError {
	if serviceErr, ok := err.(*svcerr.ServiceError); ok {
		return serviceErr
	}
	return svcerr.Wrap(err, svcerr.ErrInvalidToken)
}

func writeUnauthorized(w http.ResponseWriter, err *svcerr.ServiceError) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(err.Status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":             err.Code,
		"error_description": err.Message,
	})
}
