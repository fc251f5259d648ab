// Package post provides models and repository for track posts and likes.
package post

import (
	"context"
	"errors"
	"time"
)

// Common errors for post operations.
var (
	ErrPostNotFound = errors.New("post not found")
	ErrNotAuthor    = errors.New("user is not the post author")
)

// Post represents a published post referencing a track.
// LikeIDs is the set of user IDs that have liked the post.
type Post struct {
	ID          string    `json:"id"`
	AuthorID    string    `json:"author_id"`
	TrackID     string    `json:"track_id"`
	TrackTitle  string    `json:"track_title"`
	TrackArtist string    `json:"track_artist"`
	Caption     string    `json:"caption,omitempty"`
	LikeIDs     []string  `json:"like_ids,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// LikeCount returns the number of likes on the post.
func (p *Post) LikeCount() int {
	return len(p.LikeIDs)
}

// IsLikedBy reports whether the given user has liked the post.
func (p *Post) IsLikedBy(userID string) bool {
	for _, id := range p.LikeIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Repository defines the interface for post data operations.
type Repository interface {
	// Create inserts a new post with a generated UUID.
	Create(ctx context.Context, p *Post) error

	// GetByID retrieves a post by its UUID.
	GetByID(ctx context.Context, id string) (*Post, error)

	// Delete removes a post. Returns ErrNotAuthor when authorID does not
	// match the post author.
	Delete(ctx context.Context, id, authorID string) error

	// Like records a like from the given user. Idempotent: liking an
	// already-liked post is a no-op.
	Like(ctx context.Context, postID, userID string) error

	// Unlike removes a like from the given user. Idempotent.
	Unlike(ctx context.Context, postID, userID string) error

	// ListRecentExcluding retrieves posts whose author is NOT in the
	// excluded set, ordered by created_at DESC (id ASC tie-break), capped
	// at cap entries. Returns an empty slice when every author is excluded.
	ListRecentExcluding(ctx context.Context, excluded map[string]struct{}, cap int) ([]*Post, error)

	// CountExcluding counts all posts whose author is NOT in the excluded
	// set, independent of any cap.
	CountExcluding(ctx context.Context, excluded map[string]struct{}) (int, error)

	// ListByAuthors retrieves posts authored by the given users, ordered by
	// created_at DESC (id ASC tie-break), with offset pagination.
	// Returns the page and the total count of matching posts.
	ListByAuthors(ctx context.Context, authorIDs []string, limit, offset int) ([]*Post, int, error)
}
