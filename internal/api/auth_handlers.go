// Package api provides HTTP handlers for the Resonate API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/resonate-social/resonate/internal/auth"
	"github.com/resonate-social/resonate/internal/middleware"
	"github.com/resonate-social/resonate/internal/music"
	"github.com/resonate-social/resonate/internal/user"
)

// LoginRequest represents the request body for the OAuth login exchange.
type LoginRequest struct {
	Code string `json:"code"`
}

// RefreshRequest represents the request body for token refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse is returned by login and refresh.
type TokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         UserResponse `json:"user"`
}

// UserResponse is the public view of a user account.
type UserResponse struct {
	ID          string `json:"id"`
	Handle      string `json:"handle"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// AuthHandlers holds dependencies for authentication HTTP handlers.
type AuthHandlers struct {
	users      user.Repository
	provider   music.Provider
	jwtService *auth.JWTService
	logger     *slog.Logger
}

// NewAuthHandlers creates a new AuthHandlers instance.
func NewAuthHandlers(users user.Repository, provider music.Provider, jwtService *auth.JWTService, logger *slog.Logger) *AuthHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandlers{
		users:      users,
		provider:   provider,
		jwtService: jwtService,
		logger:     logger,
	}
}

func userResponse(u *user.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Handle:      u.Handle,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
	}
}

// Login handles POST /auth/login - exchanges an OAuth authorization code for
// API tokens, creating the account on first sign-in.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}
	if req.Code == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "code is required")
		return
	}

	tokens, err := h.provider.ExchangeCode(r.Context(), req.Code)
	if err != nil {
		if errors.Is(err, music.ErrInvalidCode) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
			WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authorization code was rejected")
			return
		}
		h.logger.ErrorContext(r.Context(), "code exchange failed", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeDependencyUnavailable)
		WriteError(w, ctx, http.StatusServiceUnavailable, ErrCodeDependencyUnavailable, "Music provider is unavailable")
		return
	}

	profile, err := h.provider.GetProfile(r.Context(), tokens.AccessToken)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "profile fetch failed", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeDependencyUnavailable)
		WriteError(w, ctx, http.StatusServiceUnavailable, ErrCodeDependencyUnavailable, "Music provider is unavailable")
		return
	}

	account, err := h.users.GetByProviderID(r.Context(), profile.ID)
	if errors.Is(err, user.ErrUserNotFound) {
		account = &user.User{
			ProviderID:  profile.ID,
			Handle:      profile.ID,
			DisplayName: profile.DisplayName,
			AvatarURL:   profile.AvatarURL,
		}
		if err := h.users.Create(r.Context(), account); err != nil {
			h.logger.ErrorContext(r.Context(), "account bootstrap failed", "error", err)
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to create account")
			return
		}
	} else if err != nil {
		h.logger.ErrorContext(r.Context(), "account lookup failed", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to look up account")
		return
	}

	h.writeTokenPair(w, r, account)
}

// Refresh handles POST /auth/refresh - rotates a refresh token into a new
// token pair.
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}
	if req.RefreshToken == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "refresh_token is required")
		return
	}

	claims, err := h.jwtService.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		code := ErrCodeAuthFailed
		message := "Invalid refresh token"
		if errors.Is(err, auth.ErrExpiredToken) {
			message = "Refresh token has expired"
		}
		ctx := middleware.SetErrorCode(r.Context(), code)
		WriteError(w, ctx, http.StatusUnauthorized, code, message)
		return
	}

	account, err := h.users.GetByID(r.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
			WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Account no longer exists")
			return
		}
		h.logger.ErrorContext(r.Context(), "account lookup failed", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to look up account")
		return
	}

	h.writeTokenPair(w, r, account)
}

func (h *AuthHandlers) writeTokenPair(w http.ResponseWriter, r *http.Request, account *user.User) {
	accessToken, err := h.jwtService.GenerateAccessToken(account.ID, account.ProviderID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "access token generation failed", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to issue tokens")
		return
	}
	refreshToken, err := h.jwtService.GenerateRefreshToken(account.ID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "refresh token generation failed", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to issue tokens")
		return
	}

	WriteJSON(w, r.Context(), http.StatusOK, TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         userResponse(account),
	})
}
