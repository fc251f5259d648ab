package feed

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/resonate-social/resonate/internal/post"
	"github.com/resonate-social/resonate/internal/user"
)

// newTestService wires a service over in-memory repositories with a seeded
// random source so results are reproducible.
func newTestService(users user.Repository, posts post.Repository, seed uint64) *Service {
	svc := NewService(ServiceConfig{
		Users: users,
		Posts: posts,
	})
	r := rand.New(rand.NewPCG(seed, seed))
	svc.shuffle = r.Shuffle
	svc.scorer.randFloat = r.Float64
	return svc
}

func TestGetDiscoveryFeed_MostLikedRanksFirst(t *testing.T) {
	users, posts, viewer, authors := fixtures(t, 10)

	// fixtures gives every author one post; like the first author's post
	// five times. With zero followers and all posts fresh, its score is at
	// least 8 (5 likes + 3 freshness) while every other post scores at
	// most 5 (freshness 3 + randomness 1 + slight like noise), so it must
	// occupy the verbatim top slice regardless of seed.
	target, _, err := posts.ListByAuthors(context.Background(), []string{authors[0].ID}, 1, 0)
	if err != nil || len(target) != 1 {
		t.Fatalf("failed to find target post: %v", err)
	}
	likers := authors[5:]
	for _, liker := range likers {
		if err := posts.Like(context.Background(), target[0].ID, liker.ID); err != nil {
			t.Fatalf("Like failed: %v", err)
		}
	}

	svc := newTestService(users, posts, 42)
	page, err := svc.GetDiscoveryFeed(context.Background(), viewer.ID, 1, 5)
	if err != nil {
		t.Fatalf("GetDiscoveryFeed failed: %v", err)
	}

	if len(page.Data) != 5 {
		t.Fatalf("expected 5 items, got %d", len(page.Data))
	}
	if page.Data[0].PostID != target[0].ID {
		t.Errorf("expected most-liked post first, got %s", page.Data[0].PostID)
	}
	if page.Data[0].LikesCount != 5 {
		t.Errorf("expected 5 likes, got %d", page.Data[0].LikesCount)
	}
	if page.Data[0].AuthorDisplayName != authors[0].DisplayName {
		t.Errorf("expected author display name %q, got %q", authors[0].DisplayName, page.Data[0].AuthorDisplayName)
	}
}

func TestGetDiscoveryFeed_EmptyWhenAllFollowed(t *testing.T) {
	users, posts, viewer, authors := fixtures(t, 4)
	for _, a := range authors {
		if err := users.Follow(context.Background(), viewer.ID, a.ID); err != nil {
			t.Fatalf("Follow failed: %v", err)
		}
	}

	svc := newTestService(users, posts, 1)
	page, err := svc.GetDiscoveryFeed(context.Background(), viewer.ID, 1, 10)
	if err != nil {
		t.Fatalf("expected empty page, not error: %v", err)
	}

	if len(page.Data) != 0 {
		t.Errorf("expected no items, got %d", len(page.Data))
	}
	if page.Pagination.Total != 0 {
		t.Errorf("expected total 0, got %d", page.Pagination.Total)
	}
	if page.Pagination.TotalPages != 0 {
		t.Errorf("expected 0 total pages, got %d", page.Pagination.TotalPages)
	}
}

func TestGetDiscoveryFeed_NoTruncationWhenFewCandidates(t *testing.T) {
	users, posts, viewer, _ := fixtures(t, 3)

	svc := newTestService(users, posts, 5)
	page, err := svc.GetDiscoveryFeed(context.Background(), viewer.ID, 1, 20)
	if err != nil {
		t.Fatalf("GetDiscoveryFeed failed: %v", err)
	}

	if len(page.Data) != 3 {
		t.Errorf("expected all 3 candidates, got %d", len(page.Data))
	}
	if page.Pagination.Limit != 20 {
		t.Errorf("expected echoed limit 20, got %d", page.Pagination.Limit)
	}
}

func TestGetDiscoveryFeed_MembershipStableAcrossSeeds(t *testing.T) {
	users, posts, viewer, _ := fixtures(t, 6)

	collect := func(seed uint64) map[string]bool {
		svc := newTestService(users, posts, seed)
		page, err := svc.GetDiscoveryFeed(context.Background(), viewer.ID, 1, 10)
		if err != nil {
			t.Fatalf("GetDiscoveryFeed failed: %v", err)
		}
		ids := make(map[string]bool, len(page.Data))
		for _, item := range page.Data {
			ids[item.PostID] = true
		}
		return ids
	}

	first := collect(1)
	second := collect(1000)

	if len(first) != 6 || len(second) != 6 {
		t.Fatalf("expected all 6 candidates in both runs, got %d and %d", len(first), len(second))
	}
	for id := range first {
		if !second[id] {
			t.Errorf("membership differs across seeds: %s missing", id)
		}
	}
}

func TestGetDiscoveryFeed_InvalidPagination(t *testing.T) {
	users, posts, viewer, _ := fixtures(t, 1)
	svc := newTestService(users, posts, 1)

	for _, tc := range []struct{ page, limit int }{
		{0, 10},
		{-1, 10},
		{1, 0},
		{1, -5},
	} {
		_, err := svc.GetDiscoveryFeed(context.Background(), viewer.ID, tc.page, tc.limit)
		if !errors.Is(err, ErrInvalidPagination) {
			t.Errorf("page=%d limit=%d: expected ErrInvalidPagination, got %v", tc.page, tc.limit, err)
		}
	}
}

func TestGetDiscoveryFeed_LimitClamped(t *testing.T) {
	users, posts, viewer, _ := fixtures(t, 2)
	svc := newTestService(users, posts, 1)

	page, err := svc.GetDiscoveryFeed(context.Background(), viewer.ID, 1, 500)
	if err != nil {
		t.Fatalf("expected clamping, not rejection: %v", err)
	}
	if page.Pagination.Limit != DefaultMaxLimit {
		t.Errorf("expected limit clamped to %d, got %d", DefaultMaxLimit, page.Pagination.Limit)
	}
}

func TestGetDiscoveryFeed_ViewerNotFound(t *testing.T) {
	users, posts, _, _ := fixtures(t, 1)
	svc := newTestService(users, posts, 1)

	_, err := svc.GetDiscoveryFeed(context.Background(), "ghost", 1, 10)
	if !errors.Is(err, ErrViewerNotFound) {
		t.Errorf("expected ErrViewerNotFound, got %v", err)
	}
}

func TestGetDiscoveryFeed_LikedByViewerAnnotation(t *testing.T) {
	users, posts, viewer, authors := fixtures(t, 2)

	target, _, err := posts.ListByAuthors(context.Background(), []string{authors[0].ID}, 1, 0)
	if err != nil || len(target) != 1 {
		t.Fatalf("failed to find target post: %v", err)
	}
	if err := posts.Like(context.Background(), target[0].ID, viewer.ID); err != nil {
		t.Fatalf("Like failed: %v", err)
	}

	svc := newTestService(users, posts, 1)
	page, err := svc.GetDiscoveryFeed(context.Background(), viewer.ID, 1, 10)
	if err != nil {
		t.Fatalf("GetDiscoveryFeed failed: %v", err)
	}

	found := false
	for _, item := range page.Data {
		if item.PostID == target[0].ID {
			found = true
			if !item.IsLikedByViewer {
				t.Error("expected is_liked_by_viewer true on the liked post")
			}
		} else if item.IsLikedByViewer {
			t.Errorf("unexpected is_liked_by_viewer on %s", item.PostID)
		}
	}
	if !found {
		t.Error("liked post missing from feed")
	}
}

func TestGetDiscoveryFeed_TotalIgnoresPoolCap(t *testing.T) {
	users, posts, viewer, authors := fixtures(t, 1)

	// 30 posts for one author but limit 5 with multiplier 3 pools only 15.
	now := time.Now()
	for i := 0; i < 29; i++ {
		p := &post.Post{AuthorID: authors[0].ID, TrackID: "t", CreatedAt: now.Add(-time.Duration(i) * time.Second)}
		if err := posts.Create(context.Background(), p); err != nil {
			t.Fatalf("failed to create post: %v", err)
		}
	}

	svc := newTestService(users, posts, 1)
	page, err := svc.GetDiscoveryFeed(context.Background(), viewer.ID, 1, 5)
	if err != nil {
		t.Fatalf("GetDiscoveryFeed failed: %v", err)
	}

	if len(page.Data) != 5 {
		t.Errorf("expected 5 items, got %d", len(page.Data))
	}
	if page.Pagination.Total != 30 {
		t.Errorf("expected total 30 (full eligible population), got %d", page.Pagination.Total)
	}
	if page.Pagination.TotalPages != 6 {
		t.Errorf("expected 6 total pages, got %d", page.Pagination.TotalPages)
	}
}

// failingCountPosts wraps the in-memory repository and fails CountExcluding.
type failingCountPosts struct {
	*post.InMemoryRepository
}

func (f *failingCountPosts) CountExcluding(ctx context.Context, excluded map[string]struct{}) (int, error) {
	return 0, errors.New("connection refused")
}

func TestGetDiscoveryFeed_DependencyError(t *testing.T) {
	users, posts, viewer, _ := fixtures(t, 2)
	svc := newTestService(users, &failingCountPosts{posts}, 1)

	_, err := svc.GetDiscoveryFeed(context.Background(), viewer.ID, 1, 10)
	if !errors.Is(err, ErrDependencyUnavailable) {
		t.Errorf("expected ErrDependencyUnavailable, got %v", err)
	}
}

// failingDisplayUsers wraps the in-memory repository and fails GetDisplays.
type failingDisplayUsers struct {
	*user.InMemoryRepository
}

func (f *failingDisplayUsers) GetDisplays(ctx context.Context, ids []string) (map[string]user.Display, error) {
	return nil, errors.New("connection refused")
}

func TestGetDiscoveryFeed_DisplayResolutionError(t *testing.T) {
	users, posts, viewer, _ := fixtures(t, 2)
	svc := newTestService(&failingDisplayUsers{users}, posts, 1)

	_, err := svc.GetDiscoveryFeed(context.Background(), viewer.ID, 1, 10)
	if !errors.Is(err, ErrDependencyUnavailable) {
		t.Errorf("expected ErrDependencyUnavailable, got %v", err)
	}
}

func TestGetHomeFeed_FollowedAuthorsOnly(t *testing.T) {
	users, posts, viewer, authors := fixtures(t, 4)

	if err := users.Follow(context.Background(), viewer.ID, authors[0].ID); err != nil {
		t.Fatalf("Follow failed: %v", err)
	}
	if err := users.Follow(context.Background(), viewer.ID, authors[1].ID); err != nil {
		t.Fatalf("Follow failed: %v", err)
	}

	svc := newTestService(users, posts, 1)
	page, err := svc.GetHomeFeed(context.Background(), viewer.ID, 1, 10)
	if err != nil {
		t.Fatalf("GetHomeFeed failed: %v", err)
	}

	if len(page.Data) != 2 {
		t.Fatalf("expected 2 items, got %d", len(page.Data))
	}
	for _, item := range page.Data {
		if item.AuthorID != authors[0].ID && item.AuthorID != authors[1].ID {
			t.Errorf("unexpected author %s in home feed", item.AuthorID)
		}
	}
	// Newest first; fixtures staggers posts a minute apart.
	if page.Data[0].CreatedAt.Before(page.Data[1].CreatedAt) {
		t.Error("home feed not ordered newest first")
	}
}

func TestGetHomeFeed_Pagination(t *testing.T) {
	users, posts, viewer, authors := fixtures(t, 1)

	now := time.Now()
	for i := 0; i < 4; i++ {
		p := &post.Post{AuthorID: authors[0].ID, TrackID: "t", CreatedAt: now.Add(-time.Duration(i+1) * time.Hour)}
		if err := posts.Create(context.Background(), p); err != nil {
			t.Fatalf("failed to create post: %v", err)
		}
	}
	if err := users.Follow(context.Background(), viewer.ID, authors[0].ID); err != nil {
		t.Fatalf("Follow failed: %v", err)
	}

	svc := newTestService(users, posts, 1)

	first, err := svc.GetHomeFeed(context.Background(), viewer.ID, 1, 2)
	if err != nil {
		t.Fatalf("GetHomeFeed page 1 failed: %v", err)
	}
	second, err := svc.GetHomeFeed(context.Background(), viewer.ID, 2, 2)
	if err != nil {
		t.Fatalf("GetHomeFeed page 2 failed: %v", err)
	}

	if len(first.Data) != 2 || len(second.Data) != 2 {
		t.Fatalf("expected 2 items per page, got %d and %d", len(first.Data), len(second.Data))
	}
	if first.Pagination.Total != 5 {
		t.Errorf("expected total 5, got %d", first.Pagination.Total)
	}
	if first.Pagination.TotalPages != 3 {
		t.Errorf("expected 3 total pages, got %d", first.Pagination.TotalPages)
	}
	if first.Data[1].PostID == second.Data[0].PostID {
		t.Error("pages overlap")
	}
	// Page 2 continues strictly after page 1.
	if first.Data[1].CreatedAt.Before(second.Data[0].CreatedAt) {
		t.Error("page boundary out of order")
	}
}

func TestGetHomeFeed_EmptyWhenFollowingNoOne(t *testing.T) {
	users, posts, viewer, _ := fixtures(t, 2)
	svc := newTestService(users, posts, 1)

	page, err := svc.GetHomeFeed(context.Background(), viewer.ID, 1, 10)
	if err != nil {
		t.Fatalf("GetHomeFeed failed: %v", err)
	}
	if len(page.Data) != 0 {
		t.Errorf("expected empty home feed, got %d items", len(page.Data))
	}
	if page.Pagination.Total != 0 {
		t.Errorf("expected total 0, got %d", page.Pagination.Total)
	}
}

func TestGetHomeFeed_ViewerNotFound(t *testing.T) {
	users, posts, _, _ := fixtures(t, 1)
	svc := newTestService(users, posts, 1)

	_, err := svc.GetHomeFeed(context.Background(), "ghost", 1, 10)
	if !errors.Is(err, ErrViewerNotFound) {
		t.Errorf("expected ErrViewerNotFound, got %v", err)
	}
}

func TestGetHomeFeed_OutcomesCounted(t *testing.T) {
	users, posts, viewer, authors := fixtures(t, 3)
	if err := users.Follow(context.Background(), viewer.ID, authors[0].ID); err != nil {
		t.Fatalf("Follow failed: %v", err)
	}

	metrics := NewMetrics()
	svc := NewService(ServiceConfig{Users: users, Posts: posts, Metrics: metrics})

	if _, err := svc.GetHomeFeed(context.Background(), viewer.ID, 1, 10); err != nil {
		t.Fatalf("GetHomeFeed failed: %v", err)
	}
	if _, err := svc.GetHomeFeed(context.Background(), "ghost", 1, 10); !errors.Is(err, ErrViewerNotFound) {
		t.Fatalf("expected ErrViewerNotFound, got %v", err)
	}

	if got := testutil.ToFloat64(metrics.requests.WithLabelValues("home", "ok")); got != 1 {
		t.Errorf("home ok requests = %f, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.requests.WithLabelValues("home", "error")); got != 1 {
		t.Errorf("home error requests = %f, want 1", got)
	}
}
