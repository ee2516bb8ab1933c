package auth

import (
	"context"
	"net/http"
	"strings"
)

// authUserKey is a context key for the authenticated user.
type authUserKey struct{}

// UserFromContext returns the authenticated user's claims from the
// request context. Returns nil if the request is not authenticated.
func UserFromContext(ctx context.Context) *Claims {
	if c, ok := ctx.Value(authUserKey{}).(*Claims); ok {
		return c
	}
	return nil
}

// Public paths that don't require authentication.
var publicPaths = map[string]bool{
	"/api/auth/login":        true,
	"/api/auth/refresh":      true,
	"/api/auth/logout":       true,
	"/api/auth/setup":        true,
	"/api/auth/setup/status": true,
}

// AuthMiddleware validates JWT access tokens on API routes. Public auth
// paths and non-API paths (the agent channel, healthz, readyz, metrics)
// are skipped.
func AuthMiddleware(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/api/") {
				next.ServeHTTP(w, r)
				return
			}
			if publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
				writeAuthError(w, http.StatusUnauthorized, "missing or invalid authorization header")
				return
			}
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")

			claims, err := tokens.ValidateAccessToken(tokenString)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "invalid or expired access token")
				return
			}

			ctx := context.WithValue(r.Context(), authUserKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole wraps a handler so only users whose role meets or exceeds
// the required one get through. Must run inside AuthMiddleware.
func RequireRole(required Role, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := UserFromContext(r.Context())
		if claims == nil {
			writeAuthError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if !Role(claims.Role).Satisfies(required) {
			writeAuthError(w, http.StatusForbidden, string(required)+" role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// FeatureChecker reports whether a license feature is unlocked.
type FeatureChecker interface {
	HasFeature(ctx context.Context, flag string) (bool, error)
}

// RequireFeature wraps a handler so it only serves requests when the
// installed license unlocks the named feature.
func RequireFeature(flag string, features FeatureChecker, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, err := features.HasFeature(r.Context(), flag)
		if err != nil {
			writeAuthError(w, http.StatusInternalServerError, "feature check failed")
			return
		}
		if !ok {
			writeAuthError(w, http.StatusForbidden, "feature not licensed: "+flag)
			return
		}
		next.ServeHTTP(w, r)
	})
}
