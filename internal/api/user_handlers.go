// Package api provides HTTP handlers for the Resonate API.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/resonate-social/resonate/internal/middleware"
	"github.com/resonate-social/resonate/internal/post"
	"github.com/resonate-social/resonate/internal/user"
)

// ProfileResponse is the public view of a user profile, including the
// follower count.
type ProfileResponse struct {
	ID            string `json:"id"`
	Handle        string `json:"handle"`
	DisplayName   string `json:"display_name"`
	AvatarURL     string `json:"avatar_url,omitempty"`
	FollowerCount int    `json:"follower_count"`
}

// UserPostsResponse is the paginated list of a user's posts.
type UserPostsResponse struct {
	Posts []PostResponse `json:"posts"`
	Total int            `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

// UserHandlers holds dependencies for user HTTP handlers.
type UserHandlers struct {
	users  user.Repository
	posts  post.Repository
	logger *slog.Logger
}

// NewUserHandlers creates a new UserHandlers instance.
func NewUserHandlers(users user.Repository, posts post.Repository, logger *slog.Logger) *UserHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserHandlers{
		users:  users,
		posts:  posts,
		logger: logger,
	}
}

// GetUser handles GET /users/{id}.
func (h *UserHandlers) GetUser(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")

	account, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "User not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to fetch user", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to fetch user")
		return
	}

	followers, err := h.users.GetFollowerCount(r.Context(), userID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to count followers", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to fetch user")
		return
	}

	WriteJSON(w, r.Context(), http.StatusOK, ProfileResponse{
		ID:            account.ID,
		Handle:        account.Handle,
		DisplayName:   account.DisplayName,
		AvatarURL:     account.AvatarURL,
		FollowerCount: followers,
	})
}

// Me handles GET /me - returns the authenticated user's own profile.
func (h *UserHandlers) Me(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := requireViewer(w, r)
	if !ok {
		return
	}

	account, err := h.users.GetByID(r.Context(), viewerID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
			WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Account no longer exists")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to fetch account", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to fetch account")
		return
	}

	WriteJSON(w, r.Context(), http.StatusOK, userResponse(account))
}

// Follow handles POST /users/{id}/follow. Idempotent.
func (h *UserHandlers) Follow(w http.ResponseWriter, r *http.Request) {
	h.setFollow(w, r, h.users.Follow)
}

// Unfollow handles DELETE /users/{id}/follow. Idempotent.
func (h *UserHandlers) Unfollow(w http.ResponseWriter, r *http.Request) {
	h.setFollow(w, r, h.users.Unfollow)
}

func (h *UserHandlers) setFollow(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, followerID, followeeID string) error) {
	viewerID, ok := requireViewer(w, r)
	if !ok {
		return
	}
	targetID := r.PathValue("id")

	if err := op(r.Context(), viewerID, targetID); err != nil {
		switch {
		case errors.Is(err, user.ErrSelfFollow):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeSelfFollow)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeSelfFollow, "You cannot follow yourself")
		case errors.Is(err, user.ErrUserNotFound):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "User not found")
		default:
			h.logger.ErrorContext(r.Context(), "failed to update follow", "error", err)
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to update follow")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListPosts handles GET /users/{id}/posts - a user's posts, newest first.
func (h *UserHandlers) ListPosts(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")

	page, limit, err := paginationParams(r)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}
	if page < 1 || limit < 1 {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "page and limit must be positive integers")
		return
	}
	if limit > 50 {
		limit = 50
	}

	if _, err := h.users.GetByID(r.Context(), userID); err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "User not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to fetch user", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to fetch user")
		return
	}

	items, total, err := h.posts.ListByAuthors(r.Context(), []string{userID}, limit, (page-1)*limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list posts", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list posts")
		return
	}

	viewerID := middleware.GetUserID(r.Context())
	responses := make([]PostResponse, 0, len(items))
	for _, p := range items {
		responses = append(responses, postResponse(p, viewerID))
	}

	WriteJSON(w, r.Context(), http.StatusOK, UserPostsResponse{
		Posts: responses,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}
