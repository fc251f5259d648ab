package post

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu    sync.RWMutex
	posts map[string]*Post // UUID -> Post
}

// NewInMemoryRepository creates a new in-memory post repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		posts: make(map[string]*Post),
	}
}

// Create inserts a new post with a generated UUID.
func (r *InMemoryRepository) Create(ctx context.Context, p *Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}

	postCopy := clonePost(p)
	r.posts[p.ID] = postCopy

	return nil
}

// GetByID retrieves a post by its UUID.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.posts[id]
	if !ok {
		return nil, ErrPostNotFound
	}

	return clonePost(p), nil
}

// Delete removes a post if authorID matches the post author.
func (r *InMemoryRepository) Delete(ctx context.Context, id, authorID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[id]
	if !ok {
		return ErrPostNotFound
	}
	if p.AuthorID != authorID {
		return ErrNotAuthor
	}

	delete(r.posts, id)
	return nil
}

// Like records a like from the given user.
func (r *InMemoryRepository) Like(ctx context.Context, postID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[postID]
	if !ok {
		return ErrPostNotFound
	}

	if p.IsLikedBy(userID) {
		return nil
	}
	p.LikeIDs = append(p.LikeIDs, userID)

	return nil
}

// Unlike removes a like from the given user.
func (r *InMemoryRepository) Unlike(ctx context.Context, postID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[postID]
	if !ok {
		return ErrPostNotFound
	}

	for i, id := range p.LikeIDs {
		if id == userID {
			p.LikeIDs = append(p.LikeIDs[:i], p.LikeIDs[i+1:]...)
			break
		}
	}

	return nil
}

// ListRecentExcluding retrieves posts whose author is not in the excluded set.
func (r *InMemoryRepository) ListRecentExcluding(ctx context.Context, excluded map[string]struct{}, cap int) ([]*Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	candidates := make([]*Post, 0)
	for _, p := range r.posts {
		if _, skip := excluded[p.AuthorID]; skip {
			continue
		}
		candidates = append(candidates, p)
	}

	sortPostsByCreatedDesc(candidates)

	if cap > 0 && len(candidates) > cap {
		candidates = candidates[:cap]
	}

	copies := make([]*Post, len(candidates))
	for i, p := range candidates {
		copies[i] = clonePost(p)
	}

	return copies, nil
}

// CountExcluding counts all posts whose author is not in the excluded set.
func (r *InMemoryRepository) CountExcluding(ctx context.Context, excluded map[string]struct{}) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, p := range r.posts {
		if _, skip := excluded[p.AuthorID]; skip {
			continue
		}
		count++
	}

	return count, nil
}

// ListByAuthors retrieves posts authored by the given users with offset pagination.
func (r *InMemoryRepository) ListByAuthors(ctx context.Context, authorIDs []string, limit, offset int) ([]*Post, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	authors := make(map[string]struct{}, len(authorIDs))
	for _, id := range authorIDs {
		authors[id] = struct{}{}
	}

	matches := make([]*Post, 0)
	for _, p := range r.posts {
		if _, ok := authors[p.AuthorID]; !ok {
			continue
		}
		matches = append(matches, p)
	}

	sortPostsByCreatedDesc(matches)
	total := len(matches)

	if offset >= len(matches) {
		return []*Post{}, total, nil
	}
	matches = matches[offset:]
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	copies := make([]*Post, len(matches))
	for i, p := range matches {
		copies[i] = clonePost(p)
	}

	return copies, total, nil
}

// clonePost returns a deep copy to prevent external mutation of stored posts.
func clonePost(p *Post) *Post {
	postCopy := *p
	if p.LikeIDs != nil {
		postCopy.LikeIDs = make([]string, len(p.LikeIDs))
		copy(postCopy.LikeIDs, p.LikeIDs)
	}
	return &postCopy
}

// sortPostsByCreatedDesc sorts posts by created_at DESC, then by ID ASC for
// tie-breaking. This provides stable ordering for pagination.
func sortPostsByCreatedDesc(posts []*Post) {
	sort.Slice(posts, func(i, j int) bool {
		if posts[i].CreatedAt.After(posts[j].CreatedAt) {
			return true
		}
		if posts[i].CreatedAt.Before(posts[j].CreatedAt) {
			return false
		}
		return posts[i].ID < posts[j].ID
	})
}
