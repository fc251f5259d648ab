package user

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu        sync.RWMutex
	users     map[string]*User            // UUID -> User
	byProv    map[string]string           // provider ID -> UUID
	following map[string]map[string]bool  // follower -> followee set
	followers map[string]map[string]bool  // followee -> follower set
}

// NewInMemoryRepository creates a new in-memory user repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		users:     make(map[string]*User),
		byProv:    make(map[string]string),
		following: make(map[string]map[string]bool),
		followers: make(map[string]map[string]bool),
	}
}

// Create inserts a new user with a generated UUID.
func (r *InMemoryRepository) Create(ctx context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}

	userCopy := *u
	r.users[u.ID] = &userCopy
	if u.ProviderID != "" {
		r.byProv[u.ProviderID] = u.ID
	}

	return nil
}

// GetByID retrieves a user by its UUID.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}

	userCopy := *u
	return &userCopy, nil
}

// GetByProviderID retrieves a user by the music-provider account ID.
func (r *InMemoryRepository) GetByProviderID(ctx context.Context, providerID string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byProv[providerID]
	if !ok {
		return nil, ErrUserNotFound
	}

	userCopy := *r.users[id]
	return &userCopy, nil
}

// Follow creates a follow edge from follower to followee.
func (r *InMemoryRepository) Follow(ctx context.Context, followerID, followeeID string) error {
	if followerID == followeeID {
		return ErrSelfFollow
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[followerID]; !ok {
		return ErrUserNotFound
	}
	if _, ok := r.users[followeeID]; !ok {
		return ErrUserNotFound
	}

	if r.following[followerID] == nil {
		r.following[followerID] = make(map[string]bool)
	}
	if r.followers[followeeID] == nil {
		r.followers[followeeID] = make(map[string]bool)
	}
	r.following[followerID][followeeID] = true
	r.followers[followeeID][followerID] = true

	return nil
}

// Unfollow removes a follow edge.
func (r *InMemoryRepository) Unfollow(ctx context.Context, followerID, followeeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[followerID]; !ok {
		return ErrUserNotFound
	}

	delete(r.following[followerID], followeeID)
	delete(r.followers[followeeID], followerID)

	return nil
}

// GetFollowedIDs resolves the outgoing follow edges of a user.
func (r *InMemoryRepository) GetFollowedIDs(ctx context.Context, userID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.users[userID]; !ok {
		return nil, ErrUserNotFound
	}

	ids := make([]string, 0, len(r.following[userID]))
	for id := range r.following[userID] {
		ids = append(ids, id)
	}

	return ids, nil
}

// GetFollowerCount returns the number of users following the given user.
func (r *InMemoryRepository) GetFollowerCount(ctx context.Context, userID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.users[userID]; !ok {
		return 0, ErrUserNotFound
	}

	return len(r.followers[userID]), nil
}

// GetFollowerCounts batches follower-count lookups over a set of user IDs.
func (r *InMemoryRepository) GetFollowerCounts(ctx context.Context, userIDs []string) (map[string]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int, len(userIDs))
	for _, id := range userIDs {
		if _, ok := r.users[id]; !ok {
			continue
		}
		counts[id] = len(r.followers[id])
	}

	return counts, nil
}

// GetDisplays resolves display metadata for a set of user IDs.
func (r *InMemoryRepository) GetDisplays(ctx context.Context, userIDs []string) (map[string]Display, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	displays := make(map[string]Display, len(userIDs))
	for _, id := range userIDs {
		u, ok := r.users[id]
		if !ok {
			continue
		}
		displays[id] = Display{
			DisplayName: u.DisplayName,
			AvatarURL:   u.AvatarURL,
		}
	}

	return displays, nil
}
