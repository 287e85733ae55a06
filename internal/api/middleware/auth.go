package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/safetrail/safetrail/internal/api/models"
	"github.com/safetrail/safetrail/internal/auth"
)

// operatorKey is the context key for the authenticated operator claims.
type operatorKey struct{}

// Auth creates authentication middleware that validates console
// operator bearer tokens.
func Auth(validator *auth.Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeUnauthorized(w, r, "missing authorization header")
				return
			}

			// Check for Bearer prefix (case-insensitive)
			const bearerPrefix = "Bearer "
			if len(authHeader) < len(bearerPrefix) ||
				!strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
				writeUnauthorized(w, r, "invalid authorization header format")
				return
			}

			tokenString := authHeader[len(bearerPrefix):]
			if tokenString == "" {
				writeUnauthorized(w, r, "missing bearer token")
				return
			}

			claims, err := validator.Validate(tokenString)
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrTokenExpired):
					writeUnauthorized(w, r, "access token has expired")
				case errors.Is(err, auth.ErrInvalidToken):
					writeUnauthorized(w, r, "invalid access token")
				default:
					writeUnauthorized(w, r, "authentication failed")
				}
				return
			}

			ctx := context.WithValue(r.Context(), operatorKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin restricts a route to operators with the admin role.
// Must run after Auth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := GetOperator(r.Context())
		if claims == nil || claims.Role != auth.RoleAdmin {
			traceID := GetRequestID(r.Context())
			problem := models.NewForbidden(traceID, "admin role required")
			problem.Instance = r.URL.Path
			problem.Write(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeUnauthorized writes a 401 Unauthorized response.
// This is implemented directly here to avoid import cycle with response package.
func writeUnauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	traceID := GetRequestID(r.Context())
	problem := models.NewUnauthorized(traceID, detail)
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// GetOperator retrieves the authenticated operator claims from the
// context. Returns nil if not authenticated.
func GetOperator(ctx context.Context) *auth.Claims {
	if claims, ok := ctx.Value(operatorKey{}).(*auth.Claims); ok {
		return claims
	}
	return nil
}

// GetOperatorID retrieves the authenticated operator's ID from the
// context. Returns an empty string if not authenticated.
func GetOperatorID(ctx context.Context) string {
	if claims := GetOperator(ctx); claims != nil {
		return claims.OperatorID
	}
	return ""
}
