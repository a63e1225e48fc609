package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const (
	// ClaimsKey is the context key for JWT claims
	ClaimsKey contextKey = "claims"
	// UserIDKey is the context key for user ID
	UserIDKey contextKey = "userID"
	// RolesKey is the context key for user roles
	RolesKey contextKey = "roles"
)

// TokenHeader is the alternate credential header accepted when no
// Authorization header is sent.
const TokenHeader = "X-Auth-Token"

const maxTokenBytes = 8192

// ErrorResponse is the body of every authentication failure.
type ErrorResponse struct {
	Msg  string `json:"msg"`
	Code string `json:"code"`
}

// ClaimsFromContext extracts the JWT claims from the request context
func ClaimsFromContext(ctx context.Context) *Claims {
	if claims, ok := ctx.Value(ClaimsKey).(*Claims); ok {
		return claims
	}
	return nil
}

// UserIDFromContext extracts the user ID from the request context
func UserIDFromContext(ctx context.Context) int64 {
	if id, ok := ctx.Value(UserIDKey).(int64); ok {
		return id
	}
	return 0
}

// RolesFromContext extracts the user roles from the request context
func RolesFromContext(ctx context.Context) []string {
	if roles, ok := ctx.Value(RolesKey).([]string); ok {
		return roles
	}
	return nil
}

// WithClaims returns a context carrying claims the way AuthMiddleware sets them.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	ctx = context.WithValue(ctx, ClaimsKey, claims)
	ctx = context.WithValue(ctx, UserIDKey, claims.UserID)
	return context.WithValue(ctx, RolesKey, claims.Roles)
}

var publicPaths = map[string]bool{
	"/health":         true,
	"/dbping":         true,
	"/api/auth/login": true,
}

func isPublicPath(path string) bool {
	return publicPaths[path]
}

func sendErrorResponse(w http.ResponseWriter, message, code string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Msg: message, Code: code}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// sendTokenExpirationWarning adds warning headers when the token expires within the hour
func sendTokenExpirationWarning(w http.ResponseWriter, claims *Claims) {
	if claims.ExpiresAt == nil || !claims.IsExpiringSoon(time.Hour) {
		return
	}
	expiresAt := claims.ExpiresAt.Time
	if remaining := time.Until(expiresAt); remaining > 0 {
		w.Header().Set("X-Token-Expires-At", expiresAt.Format(time.RFC3339))
		w.Header().Set("X-Token-Expires-In", remaining.String())
	}
}

func validateTokenFormat(tokenString string) error {
	if len(tokenString) == 0 {
		return errors.New("token cannot be empty")
	}
	if len(tokenString) > maxTokenBytes {
		return errors.New("token size exceeds maximum allowed")
	}
	if len(strings.Split(tokenString, ".")) != 3 {
		return errors.New("invalid JWT token format")
	}
	return nil
}

// tokenFromRequest reads "Authorization: Bearer <jwt>", falling back to the
// X-Auth-Token header.
func tokenFromRequest(r *http.Request) (string, string, bool) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return "", "INVALID_AUTH_FORMAT", false
		}
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer ")), "", true
	}
	if token := strings.TrimSpace(r.Header.Get(TokenHeader)); token != "" {
		return token, "", true
	}
	return "", "MISSING_AUTH_HEADER", false
}

// AuthMiddleware validates JWT tokens and sets user context
func AuthMiddleware(jwtManager *JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			tokenString, code, ok := tokenFromRequest(r)
			if !ok {
				msg := "No token, authorization denied"
				if code == "INVALID_AUTH_FORMAT" {
					msg = "Invalid authorization header format. Expected: Bearer <token>"
				}
				sendErrorResponse(w, msg, code, http.StatusUnauthorized)
				return
			}

			if err := validateTokenFormat(tokenString); err != nil {
				sendErrorResponse(w, "Invalid token format: "+err.Error(), "INVALID_TOKEN_FORMAT", http.StatusUnauthorized)
				return
			}

			claims, err := jwtManager.ValidateToken(tokenString)
			if err != nil {
				switch {
				case errors.Is(err, jwt.ErrTokenExpired):
					sendErrorResponse(w, "Token has expired", "TOKEN_EXPIRED", http.StatusUnauthorized)
				case errors.Is(err, jwt.ErrTokenSignatureInvalid), strings.Contains(err.Error(), "signing method"):
					sendErrorResponse(w, "Invalid token signature", "INVALID_SIGNATURE", http.StatusUnauthorized)
				case errors.Is(err, jwt.ErrTokenMalformed):
					sendErrorResponse(w, "Token is malformed", "MALFORMED_TOKEN", http.StatusUnauthorized)
				default:
					sendErrorResponse(w, "Token is not valid", "INVALID_TOKEN", http.StatusUnauthorized)
				}
				return
			}

			if claims.UserID <= 0 {
				sendErrorResponse(w, "Invalid user ID in token", "INVALID_USER_ID", http.StatusUnauthorized)
				return
			}
			if len(claims.Roles) == 0 {
				sendErrorResponse(w, "No roles assigned to user", "NO_ROLES", http.StatusUnauthorized)
				return
			}

			sendTokenExpirationWarning(w, claims)
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// MustRole creates middleware that requires one of the given roles
func MustRole(requiredRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				sendErrorResponse(w, "Authentication required", "AUTHENTICATION_REQUIRED", http.StatusUnauthorized)
				return
			}
			if len(requiredRoles) == 0 {
				sendErrorResponse(w, "No roles specified for this endpoint", "NO_ROLES_SPECIFIED", http.StatusInternalServerError)
				return
			}
			if !claims.HasRole(requiredRoles...) {
				sendErrorResponse(w, "Access denied", "INSUFFICIENT_PERMISSIONS", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
