package feed

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/resonate-social/resonate/internal/post"
)

// makeScored builds a scored candidate with a synthetic ID and score.
func makeScored(id string, score float64, createdAt time.Time) ScoredPost {
	return ScoredPost{
		Post: &post.Post{
			ID:        id,
			AuthorID:  "author-" + id,
			CreatedAt: createdAt,
		},
		Score: score,
	}
}

// seededShuffle returns a deterministic ShuffleFunc for tests.
func seededShuffle(seed uint64) ShuffleFunc {
	r := rand.New(rand.NewPCG(seed, seed))
	return r.Shuffle
}

func TestBlend_Empty(t *testing.T) {
	shuffleCalled := false
	result := Blend([]ScoredPost{}, 10, 0.3, func(n int, swap func(i, j int)) {
		shuffleCalled = true
	})

	if len(result) != 0 {
		t.Errorf("expected empty result, got %d", len(result))
	}
	if shuffleCalled {
		t.Error("shuffle must not be invoked for empty input")
	}
}

func TestBlend_VerbatimTopSlice(t *testing.T) {
	now := time.Now()
	scored := make([]ScoredPost, 10)
	for i := 0; i < 10; i++ {
		// Scores 10, 9, 8, ... so sorted order is a0, a1, a2, ...
		scored[i] = makeScored(string(rune('a'+i)), float64(10-i), now)
	}

	result := Blend(scored, 10, 0.3, seededShuffle(7))

	// ceil(10 * 0.3) = 3 entries preserved verbatim in sorted order.
	wantTop := []string{"a", "b", "c"}
	for i, want := range wantTop {
		if result[i].Post.ID != want {
			t.Errorf("top slice position %d: expected %s, got %s", i, want, result[i].Post.ID)
		}
	}
}

func TestBlend_NoTruncationWhenSmall(t *testing.T) {
	now := time.Now()
	scored := []ScoredPost{
		makeScored("a", 3, now),
		makeScored("b", 2, now),
		makeScored("c", 1, now),
	}

	result := Blend(scored, 20, 0.3, seededShuffle(1))

	if len(result) != 3 {
		t.Fatalf("expected all 3 entries, got %d", len(result))
	}
	// ceil(3 * 0.3) = 1: the best entry stays first.
	if result[0].Post.ID != "a" {
		t.Errorf("expected best entry first, got %s", result[0].Post.ID)
	}
}

func TestBlend_Truncation(t *testing.T) {
	now := time.Now()
	scored := make([]ScoredPost, 30)
	for i := 0; i < 30; i++ {
		scored[i] = makeScored(string(rune('a'+i)), float64(30-i), now)
	}

	result := Blend(scored, 10, 0.3, seededShuffle(3))

	if len(result) != 10 {
		t.Fatalf("expected 10 entries after truncation, got %d", len(result))
	}
	// ceil(30 * 0.3) = 9 verbatim entries appear first, in sorted order.
	for i := 0; i < 9; i++ {
		want := string(rune('a' + i))
		if result[i].Post.ID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, result[i].Post.ID)
		}
	}
}

func TestBlend_MembershipStableAcrossSeeds(t *testing.T) {
	now := time.Now()

	build := func() []ScoredPost {
		scored := make([]ScoredPost, 8)
		for i := 0; i < 8; i++ {
			scored[i] = makeScored(string(rune('a'+i)), float64(8-i), now)
		}
		return scored
	}

	first := Blend(build(), 10, 0.3, seededShuffle(1))
	second := Blend(build(), 10, 0.3, seededShuffle(99))

	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}

	membership := func(scored []ScoredPost) map[string]bool {
		m := make(map[string]bool, len(scored))
		for _, sp := range scored {
			m[sp.Post.ID] = true
		}
		return m
	}

	firstSet := membership(first)
	for id := range membership(second) {
		if !firstSet[id] {
			t.Errorf("membership changed across seeds: %s missing", id)
		}
	}
}

func TestBlend_TieBreaking(t *testing.T) {
	now := time.Now()
	older := now.Add(-time.Hour)

	// Same score: newer first; same score and time: ID ascending.
	scored := []ScoredPost{
		makeScored("z", 5, older),
		makeScored("b", 5, now),
		makeScored("a", 5, now),
	}

	// Fraction 1.0 keeps everything verbatim so ordering is fully deterministic.
	result := Blend(scored, 10, 1.0, seededShuffle(1))

	wantOrder := []string{"a", "b", "z"}
	for i, want := range wantOrder {
		if result[i].Post.ID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, result[i].Post.ID)
		}
	}
}

func TestBlend_SingleEntry(t *testing.T) {
	shuffleCalled := false
	scored := []ScoredPost{makeScored("only", 1, time.Now())}

	result := Blend(scored, 5, 0.3, func(n int, swap func(i, j int)) {
		shuffleCalled = true
	})

	if len(result) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(result))
	}
	if shuffleCalled {
		t.Error("shuffle must not run on a tail of fewer than 2 entries")
	}
}
