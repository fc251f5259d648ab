// Package api provides HTTP handlers for the Resonate API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"html"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/resonate-social/resonate/internal/middleware"
	"github.com/resonate-social/resonate/internal/music"
	"github.com/resonate-social/resonate/internal/post"
)

// Caption validation constraints.
const MaxCaptionLength = 2000

// CreatePostRequest represents the request body for creating a post.
type CreatePostRequest struct {
	TrackID string `json:"track_id"`
	Caption string `json:"caption,omitempty"`
}

// PostResponse is the public view of a post.
type PostResponse struct {
	ID              string    `json:"id"`
	AuthorID        string    `json:"author_id"`
	TrackID         string    `json:"track_id"`
	TrackTitle      string    `json:"track_title"`
	TrackArtist     string    `json:"track_artist"`
	Caption         string    `json:"caption,omitempty"`
	LikesCount      int       `json:"likes_count"`
	IsLikedByViewer bool      `json:"is_liked_by_viewer"`
	CreatedAt       time.Time `json:"created_at"`
}

// PostHandlers holds dependencies for post HTTP handlers.
type PostHandlers struct {
	posts    post.Repository
	provider music.Provider
	logger   *slog.Logger
}

// NewPostHandlers creates a new PostHandlers instance.
func NewPostHandlers(posts post.Repository, provider music.Provider, logger *slog.Logger) *PostHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostHandlers{
		posts:    posts,
		provider: provider,
		logger:   logger,
	}
}

func postResponse(p *post.Post, viewerID string) PostResponse {
	return PostResponse{
		ID:              p.ID,
		AuthorID:        p.AuthorID,
		TrackID:         p.TrackID,
		TrackTitle:      p.TrackTitle,
		TrackArtist:     p.TrackArtist,
		Caption:         p.Caption,
		LikesCount:      p.LikeCount(),
		IsLikedByViewer: p.IsLikedBy(viewerID),
		CreatedAt:       p.CreatedAt,
	}
}

// sanitizeCaption strips leading/trailing whitespace and escapes HTML to
// prevent XSS.
func sanitizeCaption(caption string) string {
	return html.EscapeString(strings.TrimSpace(caption))
}

// requireViewer returns the authenticated user ID, writing a 401 if absent.
func requireViewer(w http.ResponseWriter, r *http.Request) (string, bool) {
	viewerID := middleware.GetUserID(r.Context())
	if viewerID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "Authentication required")
		return "", false
	}
	return viewerID, true
}

// CreatePost handles POST /posts - publishes a post referencing a track.
// Track title and artist are resolved at the provider and denormalized onto
// the post.
func (h *PostHandlers) CreatePost(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := requireViewer(w, r)
	if !ok {
		return
	}

	var req CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if strings.TrimSpace(req.TrackID) == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "track_id is required")
		return
	}
	if len(req.Caption) > MaxCaptionLength {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "caption must not exceed 2000 characters")
		return
	}

	track, err := h.provider.GetTrack(r.Context(), strings.TrimSpace(req.TrackID))
	if err != nil {
		if errors.Is(err, music.ErrTrackNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeTrackNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeTrackNotFound, "Track not found at the music provider")
			return
		}
		h.logger.ErrorContext(r.Context(), "track lookup failed", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeDependencyUnavailable)
		WriteError(w, ctx, http.StatusServiceUnavailable, ErrCodeDependencyUnavailable, "Music provider is unavailable")
		return
	}

	newPost := &post.Post{
		AuthorID:    viewerID,
		TrackID:     track.ID,
		TrackTitle:  track.Title,
		TrackArtist: track.Artist,
		Caption:     sanitizeCaption(req.Caption),
	}

	if err := h.posts.Create(r.Context(), newPost); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to create post", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to create post")
		return
	}

	WriteJSON(w, r.Context(), http.StatusCreated, postResponse(newPost, viewerID))
}

// GetPost handles GET /posts/{id}.
func (h *PostHandlers) GetPost(w http.ResponseWriter, r *http.Request) {
	postID := r.PathValue("id")

	p, err := h.posts.GetByID(r.Context(), postID)
	if err != nil {
		if errors.Is(err, post.ErrPostNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Post not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to fetch post", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to fetch post")
		return
	}

	WriteJSON(w, r.Context(), http.StatusOK, postResponse(p, middleware.GetUserID(r.Context())))
}

// DeletePost handles DELETE /posts/{id} - author-only.
func (h *PostHandlers) DeletePost(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := requireViewer(w, r)
	if !ok {
		return
	}
	postID := r.PathValue("id")

	if err := h.posts.Delete(r.Context(), postID, viewerID); err != nil {
		switch {
		case errors.Is(err, post.ErrPostNotFound):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Post not found")
		case errors.Is(err, post.ErrNotAuthor):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeForbidden)
			WriteError(w, ctx, http.StatusForbidden, ErrCodeForbidden, "Only the author can delete a post")
		default:
			h.logger.ErrorContext(r.Context(), "failed to delete post", "error", err)
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to delete post")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// LikePost handles POST /posts/{id}/like. Idempotent.
func (h *PostHandlers) LikePost(w http.ResponseWriter, r *http.Request) {
	h.setLike(w, r, h.posts.Like)
}

// UnlikePost handles DELETE /posts/{id}/like. Idempotent.
func (h *PostHandlers) UnlikePost(w http.ResponseWriter, r *http.Request) {
	h.setLike(w, r, h.posts.Unlike)
}

func (h *PostHandlers) setLike(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, postID, userID string) error) {
	viewerID, ok := requireViewer(w, r)
	if !ok {
		return
	}
	postID := r.PathValue("id")

	if err := op(r.Context(), postID, viewerID); err != nil {
		if errors.Is(err, post.ErrPostNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Post not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to update like", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to update like")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
