// Package user provides models and repository for user accounts and the
// follow graph.
package user

import (
	"context"
	"errors"
	"time"
)

// Common errors for user operations.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrSelfFollow   = errors.New("cannot follow yourself")
)

// User represents an account bootstrapped from a music-provider profile.
type User struct {
	ID          string    `json:"id"`
	ProviderID  string    `json:"provider_id"`
	Handle      string    `json:"handle"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Display holds the author metadata attached to feed items.
type Display struct {
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// Repository defines the interface for user and follow-graph data operations.
type Repository interface {
	// Create inserts a new user with a generated UUID.
	Create(ctx context.Context, u *User) error

	// GetByID retrieves a user by its UUID.
	GetByID(ctx context.Context, id string) (*User, error)

	// GetByProviderID retrieves a user by the music-provider account ID.
	GetByProviderID(ctx context.Context, providerID string) (*User, error)

	// Follow creates a follow edge from follower to followee.
	// Idempotent: following an already-followed user is a no-op.
	// Returns ErrSelfFollow when follower == followee and ErrUserNotFound
	// when either side does not exist.
	Follow(ctx context.Context, followerID, followeeID string) error

	// Unfollow removes a follow edge. Idempotent: removing an absent edge
	// is a no-op.
	Unfollow(ctx context.Context, followerID, followeeID string) error

	// GetFollowedIDs resolves the outgoing follow edges of a user to
	// canonical user IDs.
	GetFollowedIDs(ctx context.Context, userID string) ([]string, error)

	// GetFollowerCount returns the number of users following the given user.
	GetFollowerCount(ctx context.Context, userID string) (int, error)

	// GetFollowerCounts batches follower-count lookups over a set of user IDs.
	// IDs with no followers map to 0; unknown IDs are omitted.
	GetFollowerCounts(ctx context.Context, userIDs []string) (map[string]int, error)

	// GetDisplays resolves display metadata for a set of user IDs.
	// Unknown IDs are omitted from the result.
	GetDisplays(ctx context.Context, userIDs []string) (map[string]Display, error)
}
