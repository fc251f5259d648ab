package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetUser_IncludesFollowerCount(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	carol := env.createUser(t, "carol")
	for _, follower := range []string{bob.ID, carol.ID} {
		if err := env.users.Follow(context.Background(), follower, alice.ID); err != nil {
			t.Fatalf("seed follow: %v", err)
		}
	}
	h := NewUserHandlers(env.users, env.posts, nil)

	req := httptest.NewRequest(http.MethodGet, "/users/"+alice.ID, nil)
	req.SetPathValue("id", alice.ID)
	rec := httptest.NewRecorder()
	h.GetUser(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp ProfileResponse
	decodeJSON(t, rec.Body, &resp)
	if resp.Handle != "alice" {
		t.Errorf("handle = %q, want alice", resp.Handle)
	}
	if resp.FollowerCount != 2 {
		t.Errorf("follower count = %d, want 2", resp.FollowerCount)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	env := newTestEnv(t)
	h := NewUserHandlers(env.users, env.posts, nil)

	req := httptest.NewRequest(http.MethodGet, "/users/nope", nil)
	req.SetPathValue("id", "nope")
	rec := httptest.NewRecorder()
	h.GetUser(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")
	h := NewUserHandlers(env.users, env.posts, nil)

	req := asViewer(httptest.NewRequest(http.MethodGet, "/me", nil), alice.ID)
	rec := httptest.NewRecorder()
	h.Me(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp UserResponse
	decodeJSON(t, rec.Body, &resp)
	if resp.ID != alice.ID {
		t.Errorf("user ID = %q, want %q", resp.ID, alice.ID)
	}
}

func TestMe_Unauthenticated(t *testing.T) {
	env := newTestEnv(t)
	h := NewUserHandlers(env.users, env.posts, nil)

	rec := httptest.NewRecorder()
	h.Me(rec, httptest.NewRequest(http.MethodGet, "/me", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestFollow_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	h := NewUserHandlers(env.users, env.posts, nil)

	follow := func() int {
		req := asViewer(httptest.NewRequest(http.MethodPost, "/users/"+bob.ID+"/follow", nil), alice.ID)
		req.SetPathValue("id", bob.ID)
		rec := httptest.NewRecorder()
		h.Follow(rec, req)
		return rec.Code
	}

	if code := follow(); code != http.StatusNoContent {
		t.Fatalf("first follow status = %d, want 204", code)
	}
	if code := follow(); code != http.StatusNoContent {
		t.Fatalf("second follow status = %d, want 204", code)
	}

	count, err := env.users.GetFollowerCount(context.Background(), bob.ID)
	if err != nil {
		t.Fatalf("follower count: %v", err)
	}
	if count != 1 {
		t.Errorf("follower count = %d, want 1 after duplicate follows", count)
	}
}

func TestFollow_Self(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")
	h := NewUserHandlers(env.users, env.posts, nil)

	req := asViewer(httptest.NewRequest(http.MethodPost, "/users/"+alice.ID+"/follow", nil), alice.ID)
	req.SetPathValue("id", alice.ID)
	rec := httptest.NewRecorder()
	h.Follow(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if detail := decodeError(t, rec.Body); detail.Code != ErrCodeSelfFollow {
		t.Errorf("error code = %q, want %q", detail.Code, ErrCodeSelfFollow)
	}
}

func TestFollow_UnknownTarget(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")
	h := NewUserHandlers(env.users, env.posts, nil)

	req := asViewer(httptest.NewRequest(http.MethodPost, "/users/nope/follow", nil), alice.ID)
	req.SetPathValue("id", "nope")
	rec := httptest.NewRecorder()
	h.Follow(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestUnfollow(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	if err := env.users.Follow(context.Background(), alice.ID, bob.ID); err != nil {
		t.Fatalf("seed follow: %v", err)
	}
	h := NewUserHandlers(env.users, env.posts, nil)

	req := asViewer(httptest.NewRequest(http.MethodDelete, "/users/"+bob.ID+"/follow", nil), alice.ID)
	req.SetPathValue("id", bob.ID)
	rec := httptest.NewRecorder()
	h.Unfollow(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	count, err := env.users.GetFollowerCount(context.Background(), bob.ID)
	if err != nil {
		t.Fatalf("follower count: %v", err)
	}
	if count != 0 {
		t.Errorf("follower count = %d, want 0", count)
	}
}

func TestListPosts_NewestFirstPaginated(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")
	for i := 0; i < 5; i++ {
		env.createPost(t, alice.ID, "trk-"+string(rune('a'+i)))
	}
	h := NewUserHandlers(env.users, env.posts, nil)

	req := httptest.NewRequest(http.MethodGet, "/users/"+alice.ID+"/posts?page=1&limit=3", nil)
	req.SetPathValue("id", alice.ID)
	rec := httptest.NewRecorder()
	h.ListPosts(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp UserPostsResponse
	decodeJSON(t, rec.Body, &resp)
	if resp.Total != 5 {
		t.Errorf("total = %d, want 5", resp.Total)
	}
	if len(resp.Posts) != 3 {
		t.Fatalf("page size = %d, want 3", len(resp.Posts))
	}
	for i := 1; i < len(resp.Posts); i++ {
		if resp.Posts[i].CreatedAt.After(resp.Posts[i-1].CreatedAt) {
			t.Errorf("posts not sorted newest first at index %d", i)
		}
	}
}

func TestListPosts_UnknownUser(t *testing.T) {
	env := newTestEnv(t)
	h := NewUserHandlers(env.users, env.posts, nil)

	req := httptest.NewRequest(http.MethodGet, "/users/nope/posts", nil)
	req.SetPathValue("id", "nope")
	rec := httptest.NewRecorder()
	h.ListPosts(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
