// Package middleware provides HTTP middleware components for the API server.
package middleware

import (
	"io"
	"net/http"
	"strings"

	"github.com/resonate-social/resonate/internal/auth"
)

// writeAuthError writes a minimal JSON error response for auth failures.
// Kept local to avoid a dependency on the api package.
func writeAuthError(w http.ResponseWriter, r *http.Request, code, message string) {
	ctx := SetErrorCode(r.Context(), code)
	UpdateResponseContext(w, ctx)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = io.WriteString(w, `{"error":{"code":"`+code+`","message":"`+message+`"}}`)
}

// bearerToken extracts the token from an Authorization: Bearer header.
// Returns empty string if the header is missing or malformed.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// RequireAuth is a middleware that rejects requests without a valid access
// token. On success the authenticated user ID is stored in the request
// context, retrievable with GetUserID.
func RequireAuth(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeAuthError(w, r, "unauthorized", "Missing or malformed Authorization header")
				return
			}

			claims, err := jwtService.ValidateAccessToken(token)
			if err != nil {
				switch err {
				case auth.ErrExpiredToken:
					writeAuthError(w, r, "token_expired", "Access token has expired")
				case auth.ErrWrongTokenType:
					writeAuthError(w, r, "unauthorized", "Refresh tokens cannot be used for API access")
				default:
					writeAuthError(w, r, "unauthorized", "Invalid access token")
				}
				return
			}

			ctx := SetUserID(r.Context(), claims.Subject)
			UpdateResponseContext(w, ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth is a middleware that attaches the user ID to the context when
// a valid access token is present but lets unauthenticated requests through.
func OptionalAuth(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := jwtService.ValidateAccessToken(token)
			if err != nil {
				// Invalid tokens on optional routes are treated as anonymous.
				next.ServeHTTP(w, r)
				return
			}

			ctx := SetUserID(r.Context(), claims.Subject)
			UpdateResponseContext(w, ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
