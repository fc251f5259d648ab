package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/resonate-social/resonate/internal/post"
	"github.com/resonate-social/resonate/internal/tracing"
	"github.com/resonate-social/resonate/internal/user"
)

// Common errors for feed operations.
var (
	// ErrViewerNotFound is returned when the viewer identity does not
	// resolve to an existing user.
	ErrViewerNotFound = errors.New("viewer not found")

	// ErrInvalidPagination is returned for non-positive page or limit.
	// Rejected rather than clamped, to avoid masking caller bugs.
	ErrInvalidPagination = errors.New("page and limit must be positive")

	// ErrDependencyUnavailable is returned when a collaborator read failed.
	// Retryable by the caller; the pipeline performs no internal retry.
	ErrDependencyUnavailable = errors.New("feed dependency unavailable")
)

// Defaults for feed tuning parameters.
const (
	// DefaultPoolMultiplier is the over-fetch factor for the candidate pool.
	DefaultPoolMultiplier = 3

	// DefaultMaxLimit is the resource-protection cap on page size.
	// Larger limits are clamped, not rejected.
	DefaultMaxLimit = 50
)

// Item is a single post in a feed response, annotated for response shaping.
type Item struct {
	PostID            string    `json:"post_id"`
	AuthorID          string    `json:"author_id"`
	AuthorDisplayName string    `json:"author_display_name"`
	AuthorAvatarURL   string    `json:"author_avatar_url,omitempty"`
	TrackID           string    `json:"track_id"`
	TrackTitle        string    `json:"track_title"`
	TrackArtist       string    `json:"track_artist"`
	Caption           string    `json:"caption,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	LikesCount        int       `json:"likes_count"`
	IsLikedByViewer   bool      `json:"is_liked_by_viewer"`
	EngagementScore   float64   `json:"engagement_score,omitempty"`
}

// Pagination is the metadata block attached to every feed page.
// Total reports all candidates matching the exclusion filter, independent of
// the over-fetch cap and the blend truncation.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// Page is a feed response: an ordered list of items plus pagination metadata.
type Page struct {
	Data       []Item     `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// ServiceConfig configures the feed service.
type ServiceConfig struct {
	Users user.Repository
	Posts post.Repository

	// Weights is the scoring calibration. Nil uses defaults.
	Weights *Weights

	// PoolMultiplier is the candidate over-fetch factor. Values < 1 use the default.
	PoolMultiplier int

	// MaxLimit caps the page size. Values < 1 use the default.
	MaxLimit int

	Logger  *slog.Logger
	Metrics *Metrics
}

// Service implements the discovery and home feeds. Stateless across
// requests; every invocation is a pure function of its inputs plus current
// time and a source of randomness.
type Service struct {
	users    user.Repository
	posts    post.Repository
	weights  *Weights
	selector *Selector
	scorer   *Scorer

	poolMultiplier int
	maxLimit       int

	logger  *slog.Logger
	metrics *Metrics

	// shuffle randomizes the blend tail; injectable for tests.
	shuffle ShuffleFunc

	// now is the time source; injectable for tests.
	now func() time.Time
}

// NewService creates a new feed service.
func NewService(cfg ServiceConfig) *Service {
	weights := cfg.Weights
	if weights == nil {
		weights = DefaultWeights()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	poolMultiplier := cfg.PoolMultiplier
	if poolMultiplier < 1 {
		poolMultiplier = DefaultPoolMultiplier
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = DefaultMaxLimit
	}

	return &Service{
		users:          cfg.Users,
		posts:          cfg.Posts,
		weights:        weights,
		selector:       NewSelector(cfg.Users, cfg.Posts),
		scorer:         NewScorer(cfg.Users, weights, logger),
		poolMultiplier: poolMultiplier,
		maxLimit:       maxLimit,
		logger:         logger,
		metrics:        cfg.Metrics,
		shuffle:        rand.Shuffle,
		now:            time.Now,
	}
}

// GetDiscoveryFeed runs the full ranking pipeline for the viewer and returns
// one page of discovery results.
//
// The pool is re-selected and re-scored on every call: engagement scores
// intentionally change between calls (recency decay plus the random term),
// so pages are not stable across fetches. The page parameter is validated
// and echoed in the pagination block; Total and TotalPages report the full
// eligible population.
func (s *Service) GetDiscoveryFeed(ctx context.Context, viewerID string, page, limit int) (*Page, error) {
	start := s.now()

	result, err := s.getDiscoveryFeed(ctx, viewerID, page, limit)

	if s.metrics != nil {
		s.metrics.ObserveRankingDuration(s.now().Sub(start).Seconds())
		if err != nil {
			s.metrics.IncRequests("discovery", "error")
		} else {
			s.metrics.IncRequests("discovery", "ok")
			if len(result.Data) == 0 {
				s.metrics.IncEmptyPages("discovery")
			}
		}
	}

	return result, err
}

func (s *Service) getDiscoveryFeed(ctx context.Context, viewerID string, page, limit int) (*Page, error) {
	ctx, endSpan := tracing.StartSpan(ctx, "feed.discovery")
	var err error
	defer func() { endSpan(err) }()

	page, limit, err = s.validatePagination(page, limit)
	if err != nil {
		return nil, err
	}

	candidates, excluded, err := s.selector.SelectCandidates(ctx, viewerID, s.poolMultiplier, limit)
	if err != nil {
		return nil, err
	}

	total, err := s.posts.CountExcluding(ctx, excluded)
	if err != nil {
		err = dependencyError("candidate count", err)
		return nil, err
	}

	scored := s.scorer.ScoreCandidates(ctx, candidates, s.now())
	if s.metrics != nil {
		s.metrics.AddCandidates(len(scored))
	}

	blended := Blend(scored, limit, s.weights.TopSliceFraction, s.shuffle)

	items, err := s.buildItems(ctx, blended, viewerID)
	if err != nil {
		return nil, err
	}

	return &Page{
		Data:       items,
		Pagination: buildPagination(page, limit, total),
	}, nil
}

// GetHomeFeed returns recent posts from authors the viewer follows, newest
// first, with offset pagination.
func (s *Service) GetHomeFeed(ctx context.Context, viewerID string, page, limit int) (*Page, error) {
	result, err := s.getHomeFeed(ctx, viewerID, page, limit)

	if s.metrics != nil {
		if err != nil {
			s.metrics.IncRequests("home", "error")
		} else {
			s.metrics.IncRequests("home", "ok")
			if len(result.Data) == 0 {
				s.metrics.IncEmptyPages("home")
			}
		}
	}

	return result, err
}

func (s *Service) getHomeFeed(ctx context.Context, viewerID string, page, limit int) (*Page, error) {
	ctx, endSpan := tracing.StartSpan(ctx, "feed.home")
	var err error
	defer func() { endSpan(err) }()

	page, limit, err = s.validatePagination(page, limit)
	if err != nil {
		return nil, err
	}

	if _, err = s.users.GetByID(ctx, viewerID); err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			err = ErrViewerNotFound
			return nil, err
		}
		err = dependencyError("viewer lookup", err)
		return nil, err
	}

	followedIDs, err := s.users.GetFollowedIDs(ctx, viewerID)
	if err != nil {
		err = dependencyError("follow list resolution", err)
		return nil, err
	}

	posts, total, err := s.posts.ListByAuthors(ctx, followedIDs, limit, (page-1)*limit)
	if err != nil {
		err = dependencyError("home feed query", err)
		return nil, err
	}

	scored := make([]ScoredPost, len(posts))
	for i, p := range posts {
		scored[i] = ScoredPost{Post: p}
	}

	items, err := s.buildItems(ctx, scored, viewerID)
	if err != nil {
		return nil, err
	}

	return &Page{
		Data:       items,
		Pagination: buildPagination(page, limit, total),
	}, nil
}

// validatePagination rejects non-positive values and clamps the limit to the
// configured maximum.
func (s *Service) validatePagination(page, limit int) (int, int, error) {
	if page < 1 || limit < 1 {
		return 0, 0, fmt.Errorf("%w: page=%d limit=%d", ErrInvalidPagination, page, limit)
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	return page, limit, nil
}

// buildItems resolves author display metadata for the final page and shapes
// the response items.
func (s *Service) buildItems(ctx context.Context, scored []ScoredPost, viewerID string) ([]Item, error) {
	if len(scored) == 0 {
		return []Item{}, nil
	}

	authorSet := make(map[string]struct{}, len(scored))
	for _, sp := range scored {
		authorSet[sp.Post.AuthorID] = struct{}{}
	}
	authorIDs := make([]string, 0, len(authorSet))
	for id := range authorSet {
		authorIDs = append(authorIDs, id)
	}

	displays, err := s.users.GetDisplays(ctx, authorIDs)
	if err != nil {
		return nil, dependencyError("author display resolution", err)
	}

	items := make([]Item, len(scored))
	for i, sp := range scored {
		display := displays[sp.Post.AuthorID]
		items[i] = Item{
			PostID:            sp.Post.ID,
			AuthorID:          sp.Post.AuthorID,
			AuthorDisplayName: display.DisplayName,
			AuthorAvatarURL:   display.AvatarURL,
			TrackID:           sp.Post.TrackID,
			TrackTitle:        sp.Post.TrackTitle,
			TrackArtist:       sp.Post.TrackArtist,
			Caption:           sp.Post.Caption,
			CreatedAt:         sp.Post.CreatedAt,
			LikesCount:        sp.Post.LikeCount(),
			IsLikedByViewer:   sp.Post.IsLikedBy(viewerID),
			EngagementScore:   sp.Score,
		}
	}

	return items, nil
}

// buildPagination computes the pagination block. TotalPages is the ceiling
// of total/limit.
func buildPagination(page, limit, total int) Pagination {
	totalPages := 0
	if total > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
	}
}

// dependencyError wraps a collaborator failure with the retryable error kind.
func dependencyError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrDependencyUnavailable, err)
}
