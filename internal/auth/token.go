package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	svcerr "flow-gateway/pkg/errors"
)

// TokenService issues and verifies HS256-signed identity tokens. Tokens are
// stateless: there is no revocation list, and invalidating outstanding tokens
// requires rotating the shared secret.
type TokenService struct {
	secret        []byte
	defaultExpiry time.Duration
}

// NewTokenService creates a new token service. The secret is process-wide
// configuration; an empty secret is a startup error, checked in config.Load.
func NewTokenService(secret string, defaultExpiry time.Duration) *TokenService {
	return &TokenService{
		secret:        []byte(secret),
		defaultExpiry: defaultExpiry,
	}
}

// Issue creates a signed token for the given subject. A zero ttl uses the
// configured default expiry; a negative ttl produces an already-expired token.
// Extra claims are merged into the token body and must not collide with the
// registered claim names.
func (ts *TokenService) Issue(subject string, ttl time.Duration, extraClaims map[string]interface{}) (string, error) {
	if ttl == 0 {
		ttl = ts.defaultExpiry
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
		"jti": uuid.New().String(),
	}

	for k, v := range extraClaims {
		claims[k] = v
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(ts.secret)
}

// IssueServiceToken creates a token for a trusted service, tagged with a
// type=service claim.
func (ts *TokenService) IssueServiceToken(serviceName string) (string, error) {
	return ts.Issue(serviceName, 0, map[string]interface{}{"type": "service"})
}

// Verify parses and validates a token string. It returns ErrExpiredToken when
// the token is past its expiry and ErrInvalidToken for any other failure (bad
// signature, malformed structure, wrong algorithm). The two are distinct so
// the HTTP layer can report different messages on 401.
func (ts *TokenService) Verify(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return ts.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, svcerr.Wrap(err, svcerr.ErrExpiredToken)
		}
		return nil, svcerr.Wrap(err, svcerr.ErrInvalidToken)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, svcerr.ErrInvalidToken
	}

	return claims, nil
}

// Subject extracts the subject from verified claims. It fails when sub is
// absent, null or the empty string.
func Subject(claims jwt.MapClaims) (string, error) {
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", svcerr.ErrMissingSubject
	}
	return sub, nil
}

// ExpiresIn reports the remaining lifetime of verified claims in seconds.
// Returns 0 when the exp claim is missing.
func ExpiresIn(claims jwt.MapClaims) int64 {
	exp, ok := claims["exp"].(float64)
	if !ok {
		return 0
	}
	remaining := int64(exp) - time.Now().Unix()
	if remaining < 0 {
		return 0
	}
	return remaining
}
