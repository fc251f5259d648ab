package feed

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/resonate-social/resonate/internal/post"
	"github.com/resonate-social/resonate/internal/user"
)

// ScoredPost is a candidate post annotated with its computed engagement
// score. Exists only within one request's lifetime; never persisted.
type ScoredPost struct {
	Post  *post.Post
	Score float64
}

// Scorer computes engagement scores for a batch of candidate posts.
type Scorer struct {
	users   user.Repository
	weights *Weights
	logger  *slog.Logger

	// randFloat draws the uniform random term; injectable for tests.
	randFloat func() float64
}

// NewScorer creates a new engagement scorer.
func NewScorer(users user.Repository, weights *Weights, logger *slog.Logger) *Scorer {
	if weights == nil {
		weights = DefaultWeights()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{
		users:     users,
		weights:   weights,
		logger:    logger,
		randFloat: rand.Float64,
	}
}

// ScoreCandidates computes an engagement score for each candidate.
//
// Author follower counts are fetched once per distinct author and memoized
// for the batch to avoid N+1 lookups. A failed batch lookup degrades every
// affected author's popularity term to 0 rather than failing the page, since
// popularity is an enhancement term, not a correctness requirement.
func (s *Scorer) ScoreCandidates(ctx context.Context, candidates []*post.Post, now time.Time) []ScoredPost {
	if len(candidates) == 0 {
		return []ScoredPost{}
	}

	authorSet := make(map[string]struct{}, len(candidates))
	for _, p := range candidates {
		authorSet[p.AuthorID] = struct{}{}
	}
	authorIDs := make([]string, 0, len(authorSet))
	for id := range authorSet {
		authorIDs = append(authorIDs, id)
	}

	followerCounts, err := s.users.GetFollowerCounts(ctx, authorIDs)
	if err != nil {
		s.logger.WarnContext(ctx, "follower count batch failed, degrading popularity to 0",
			slog.Int("authors", len(authorIDs)),
			slog.String("error", err.Error()))
		followerCounts = map[string]int{}
	}

	scored := make([]ScoredPost, len(candidates))
	for i, p := range candidates {
		scored[i] = ScoredPost{
			Post: p,
			Score: EngagementScore(ScoreParams{
				LikeCount:     p.LikeCount(),
				FollowerCount: followerCounts[p.AuthorID],
				CreatedAt:     p.CreatedAt,
				Now:           now,
				Random:        s.randFloat(),
			}, s.weights),
		}
	}

	return scored
}
