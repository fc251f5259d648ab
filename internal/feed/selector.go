package feed

import (
	"context"
	"errors"

	"github.com/resonate-social/resonate/internal/post"
	"github.com/resonate-social/resonate/internal/user"
)

// Selector builds the viewer's exclusion set and retrieves the candidate
// pool for ranking. Read-only; every invocation is a pure function of the
// stored data.
type Selector struct {
	users user.Repository
	posts post.Repository
}

// NewSelector creates a new candidate selector.
func NewSelector(users user.Repository, posts post.Repository) *Selector {
	return &Selector{
		users: users,
		posts: posts,
	}
}

// SelectCandidates retrieves recent posts authored by users the viewer does
// not follow, capped at limit * poolMultiplier to give the scorer enough
// material to rank before truncation.
//
// The exclusion set always contains the viewer's own ID and every author the
// viewer follows, resolved to canonical user IDs. An exclusion set covering
// the whole author population yields an empty slice, not an error.
//
// Returns the candidates and the exclusion set (the latter so callers can
// count the total eligible population with the same filter).
func (s *Selector) SelectCandidates(ctx context.Context, viewerID string, poolMultiplier, limit int) ([]*post.Post, map[string]struct{}, error) {
	// Viewer existence is a precondition, checked before any ranking work.
	if _, err := s.users.GetByID(ctx, viewerID); err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, nil, ErrViewerNotFound
		}
		return nil, nil, dependencyError("viewer lookup", err)
	}

	followedIDs, err := s.users.GetFollowedIDs(ctx, viewerID)
	if err != nil {
		return nil, nil, dependencyError("follow list resolution", err)
	}

	excluded := make(map[string]struct{}, len(followedIDs)+1)
	excluded[viewerID] = struct{}{}
	for _, id := range followedIDs {
		excluded[id] = struct{}{}
	}

	poolCap := limit * poolMultiplier
	candidates, err := s.posts.ListRecentExcluding(ctx, excluded, poolCap)
	if err != nil {
		return nil, nil, dependencyError("candidate query", err)
	}

	return candidates, excluded, nil
}
