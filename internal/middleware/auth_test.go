package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/resonate-social/resonate/internal/auth"
)

const authTestSecret = "test-secret-for-middleware-1234"

func authedHandler(t *testing.T, captured *string) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*captured = GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuth_ValidToken(t *testing.T) {
	jwtSvc := auth.NewJWTService(authTestSecret)
	token, err := jwtSvc.GenerateAccessToken("user-1", "provider-1")
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	var captured string
	handler := RequireAuth(jwtSvc)(authedHandler(t, &captured))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if captured != "user-1" {
		t.Errorf("user ID in context = %q, want user-1", captured)
	}
}

func TestRequireAuth_MissingHeader(t *testing.T) {
	jwtSvc := auth.NewJWTService(authTestSecret)
	var captured string
	handler := RequireAuth(jwtSvc)(authedHandler(t, &captured))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "unauthorized") {
		t.Errorf("expected error code in body, got %s", rec.Body.String())
	}
}

func TestRequireAuth_MalformedHeader(t *testing.T) {
	jwtSvc := auth.NewJWTService(authTestSecret)
	var captured string
	handler := RequireAuth(jwtSvc)(authedHandler(t, &captured))

	for _, header := range []string{"Basic abc123", "Bearer", "token-without-scheme"} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want 401", header, rec.Code)
		}
	}
}

func TestRequireAuth_RefreshTokenRejected(t *testing.T) {
	jwtSvc := auth.NewJWTService(authTestSecret)
	refresh, err := jwtSvc.GenerateRefreshToken("user-1")
	if err != nil {
		t.Fatalf("GenerateRefreshToken failed: %v", err)
	}

	var captured string
	handler := RequireAuth(jwtSvc)(authedHandler(t, &captured))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+refresh)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 for refresh token", rec.Code)
	}
}

func TestOptionalAuth_AnonymousPassesThrough(t *testing.T) {
	jwtSvc := auth.NewJWTService(authTestSecret)
	var captured string
	handler := OptionalAuth(jwtSvc)(authedHandler(t, &captured))

	req := httptest.NewRequest(http.MethodGet, "/posts", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if captured != "" {
		t.Errorf("expected no user ID, got %q", captured)
	}
}

func TestOptionalAuth_ValidTokenAttachesUser(t *testing.T) {
	jwtSvc := auth.NewJWTService(authTestSecret)
	token, err := jwtSvc.GenerateAccessToken("user-9", "provider-9")
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	var captured string
	handler := OptionalAuth(jwtSvc)(authedHandler(t, &captured))

	req := httptest.NewRequest(http.MethodGet, "/posts", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if captured != "user-9" {
		t.Errorf("user ID = %q, want user-9", captured)
	}
}

func TestOptionalAuth_InvalidTokenTreatedAsAnonymous(t *testing.T) {
	jwtSvc := auth.NewJWTService(authTestSecret)
	var captured string
	handler := OptionalAuth(jwtSvc)(authedHandler(t, &captured))

	req := httptest.NewRequest(http.MethodGet, "/posts", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if captured != "" {
		t.Errorf("expected anonymous request, got user %q", captured)
	}
}
