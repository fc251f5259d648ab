package feed

import (
	"math"
	"sort"
)

// ShuffleFunc shuffles n elements via the provided swap callback.
// Matches the signature of rand.Shuffle from math/rand/v2.
type ShuffleFunc func(n int, swap func(i, j int))

// Blend produces the final ordering of scored candidates.
//
// Algorithm:
//  1. Sort descending by score (stable; ties broken by created_at DESC, then
//     post ID ASC for full determinism).
//  2. Keep the first ceil(n * topFraction) entries verbatim - the
//     "guaranteed best" slice.
//  3. Shuffle the remaining entries in place.
//  4. Truncate to limit, unless n <= limit.
//
// An empty input returns immediately without invoking the shuffle. A top
// count of 0 is valid and degenerates to a pure shuffle. The input slice is
// reordered in place; the returned slice aliases it.
func Blend(scored []ScoredPost, limit int, topFraction float64, shuffle ShuffleFunc) []ScoredPost {
	if len(scored) == 0 {
		return scored
	}

	sortScoredDesc(scored)

	topCount := int(math.Ceil(float64(len(scored)) * topFraction))
	if topCount > len(scored) {
		topCount = len(scored)
	}

	tail := scored[topCount:]
	if len(tail) > 1 {
		shuffle(len(tail), func(i, j int) {
			tail[i], tail[j] = tail[j], tail[i]
		})
	}

	if limit > 0 && len(scored) > limit {
		return scored[:limit]
	}
	return scored
}

// sortScoredDesc sorts by score DESC, created_at DESC, then ID ASC.
// The two tie-breakers make the pre-blend order fully deterministic for a
// fixed set of scores.
func sortScoredDesc(scored []ScoredPost) {
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if !scored[i].Post.CreatedAt.Equal(scored[j].Post.CreatedAt) {
			return scored[i].Post.CreatedAt.After(scored[j].Post.CreatedAt)
		}
		return scored[i].Post.ID < scored[j].Post.ID
	})
}
