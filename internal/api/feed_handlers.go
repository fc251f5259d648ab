// Package api provides HTTP handlers for the Resonate API.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/resonate-social/resonate/internal/feed"
	"github.com/resonate-social/resonate/internal/middleware"
)

// FeedHandlers holds dependencies for feed HTTP handlers.
type FeedHandlers struct {
	feeds  *feed.Service
	logger *slog.Logger
}

// NewFeedHandlers creates a new FeedHandlers instance.
func NewFeedHandlers(feeds *feed.Service, logger *slog.Logger) *FeedHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedHandlers{
		feeds:  feeds,
		logger: logger,
	}
}

// paginationParams reads page and limit query parameters with defaults.
func paginationParams(r *http.Request) (page, limit int, err error) {
	page, limit = 1, 20
	if raw := r.URL.Query().Get("page"); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil {
			return 0, 0, errors.New("page must be an integer")
		}
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			return 0, 0, errors.New("limit must be an integer")
		}
	}
	return page, limit, nil
}

// Discovery handles GET /feed/discovery - the ranked discovery feed.
func (h *FeedHandlers) Discovery(w http.ResponseWriter, r *http.Request) {
	h.serveFeed(w, r, h.feeds.GetDiscoveryFeed)
}

// Home handles GET /feed/home - recent posts from followed authors.
func (h *FeedHandlers) Home(w http.ResponseWriter, r *http.Request) {
	h.serveFeed(w, r, h.feeds.GetHomeFeed)
}

type feedFetcher func(ctx context.Context, viewerID string, page, limit int) (*feed.Page, error)

func (h *FeedHandlers) serveFeed(w http.ResponseWriter, r *http.Request, fetch feedFetcher) {
	viewerID := middleware.GetUserID(r.Context())
	if viewerID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "Authentication required")
		return
	}

	page, limit, err := paginationParams(r)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	result, err := fetch(r.Context(), viewerID, page, limit)
	if err != nil {
		h.writeFeedError(w, r, err)
		return
	}

	WriteJSON(w, r.Context(), http.StatusOK, result)
}

func (h *FeedHandlers) writeFeedError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, feed.ErrInvalidPagination):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "page and limit must be positive integers")
	case errors.Is(err, feed.ErrViewerNotFound):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Viewer account not found")
	case errors.Is(err, feed.ErrDependencyUnavailable):
		h.logger.ErrorContext(r.Context(), "feed dependency failed", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeDependencyUnavailable)
		WriteError(w, ctx, http.StatusServiceUnavailable, ErrCodeDependencyUnavailable, "Feed is temporarily unavailable")
	default:
		h.logger.ErrorContext(r.Context(), "feed request failed", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to build feed")
	}
}
