package feed

import (
	"math"
	"time"
)

// FreshnessWeight computes the recency component of the engagement score,
// normalized to [0, 1]. Decays linearly from 1.0 at publication time to 0 at
// the end of the window; posts older than the window contribute exactly 0.
//
// Parameters:
//   - createdAt: The publication time of the post
//   - now: The reference time for the computation
//   - windowHours: The decay window in hours
//
// Returns a value between 0.0 (stale) and 1.0 (just published).
func FreshnessWeight(createdAt, now time.Time, windowHours float64) float64 {
	if windowHours <= 0 {
		return 0
	}

	hoursSince := now.Sub(createdAt).Hours()
	if hoursSince < 0 {
		// Clock skew can produce future-dated posts; treat as just published
		hoursSince = 0
	}

	remaining := windowHours - hoursSince
	if remaining <= 0 {
		return 0
	}

	return remaining / windowHours
}

// PopularityWeight computes the author-reach component of the engagement
// score. Logarithmic so high-follower authors don't dominate purely on reach.
//
// Parameters:
//   - followerCount: The author's follower count
//
// Returns ln(followerCount + 1); 0 for an author with no followers.
func PopularityWeight(followerCount int) float64 {
	if followerCount < 0 {
		followerCount = 0
	}
	return math.Log(float64(followerCount) + 1)
}

// ScoreParams holds the inputs for computing a candidate's engagement score.
type ScoreParams struct {
	LikeCount     int       // Number of likes on the candidate post
	FollowerCount int       // The post author's follower count
	CreatedAt     time.Time // Publication time of the candidate post
	Now           time.Time // Reference time for recency decay
	Random        float64   // Uniform sample in [0, 1), drawn per candidate per call
}

// EngagementScore computes the final additive engagement score for a
// candidate post.
//
// Formula: score = likes*W_like + ln(followers+1)*W_pop + freshness*W_fresh + random*W_rand
//
// The score is monotonically non-decreasing in LikeCount when the other
// inputs are held fixed.
//
// Parameters:
//   - params: The component inputs
//   - weights: The calibrated weight configuration (optional, uses default if nil)
func EngagementScore(params ScoreParams, weights *Weights) float64 {
	if weights == nil {
		weights = DefaultWeights()
	}

	return float64(params.LikeCount)*weights.Like +
		PopularityWeight(params.FollowerCount)*weights.Popularity +
		FreshnessWeight(params.CreatedAt, params.Now, weights.FreshnessWindowHours)*weights.Freshness +
		params.Random*weights.Randomness
}
