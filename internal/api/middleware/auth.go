package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/reelhaven/reelhaven/internal/api/models"
	"github.com/reelhaven/reelhaven/internal/auth"
	"github.com/reelhaven/reelhaven/internal/permission"
)

// userIDKey is the context key for the authenticated user ID.
type userIDKey struct{}

// adminKey is the context key for the admin claim.
type adminKey struct{}

// Auth creates authentication middleware that validates JWT bearer tokens.
func Auth(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Extract bearer token from Authorization header
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

			// Validate the token
			claims, err := jwtService.ValidateAccessToken(tokenString)
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrAccessTokenExpired):
					writeUnauthorized(w, r, "access token has expired")
				case errors.Is(err, auth.ErrInvalidAccessToken):
					writeUnauthorized(w, r, "invalid access token")
				default:
					writeUnauthorized(w, r, "authentication failed")
				}
				return
			}

			// Add identity to context
			ctx := context.WithValue(r.Context(), userIDKey{}, claims.UserID)
			ctx = context.WithValue(ctx, adminKey{}, claims.Admin)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeUnauthorized writes a 401 Unauthorized response.
// This is implemented directly here to avoid import cycle with response package.
func writeUnauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	traceID := GetRequestID(r.Context())
	problem := models.NewUnauthorized(traceID, detail)
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// GetUserID retrieves the authenticated user ID from the context.
// Returns an empty string if not authenticated.
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey{}).(string); ok {
		return id
	}
	return ""
}

// IsAdmin reports whether the authenticated user carries the admin claim.
func IsAdmin(ctx context.Context) bool {
	if admin, ok := ctx.Value(adminKey{}).(bool); ok {
		return admin
	}
	return false
}

// ClaimsChecker resolves permissions from the JWT claims placed in the
// request context by Auth. Any authenticated user may request deletions;
// management requires the admin claim.
type ClaimsChecker struct{}

// HasPermission implements permission.Checker.
func (ClaimsChecker) HasPermission(ctx context.Context, _ string, capability permission.Capability) (bool, error) {
	switch capability {
	case permission.RequestDeletion:
		return true, nil
	case permission.ManageDeletion:
		return IsAdmin(ctx), nil
	default:
		return false, nil
	}
}

// Ensure ClaimsChecker implements permission.Checker.
var _ permission.Checker = ClaimsChecker{}
