package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/resonate-social/resonate/internal/auth"
	"github.com/resonate-social/resonate/internal/feed"
	"github.com/resonate-social/resonate/internal/middleware"
	"github.com/resonate-social/resonate/internal/music"
	"github.com/resonate-social/resonate/internal/post"
	"github.com/resonate-social/resonate/internal/user"
)

const handlerTestSecret = "dGVzdC1zZWNyZXQtZm9yLWp3dC1zaWduaW5nLTEyMzQ1Ngo="

// testEnv bundles the in-memory dependencies the handler tests share.
type testEnv struct {
	users    *user.InMemoryRepository
	posts    *post.InMemoryRepository
	provider *music.FakeProvider
	jwt      *auth.JWTService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return &testEnv{
		users:    user.NewInMemoryRepository(),
		posts:    post.NewInMemoryRepository(),
		provider: music.NewFakeProvider(),
		jwt:      auth.NewJWTService(handlerTestSecret),
	}
}

// createUser inserts a user and returns it.
func (e *testEnv) createUser(t *testing.T, handle string) *user.User {
	t.Helper()
	u := &user.User{
		ProviderID:  "prov-" + handle,
		Handle:      handle,
		DisplayName: handle,
	}
	if err := e.users.Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

// createPost inserts a post by the given author and returns it.
func (e *testEnv) createPost(t *testing.T, authorID, trackID string) *post.Post {
	t.Helper()
	p := &post.Post{
		AuthorID:    authorID,
		TrackID:     trackID,
		TrackTitle:  "Title " + trackID,
		TrackArtist: "Artist " + trackID,
	}
	if err := e.posts.Create(context.Background(), p); err != nil {
		t.Fatalf("create post: %v", err)
	}
	return p
}

// jsonRequest builds a request with a JSON body.
func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// asViewer attaches an authenticated user ID the way the auth middleware does.
func asViewer(r *http.Request, userID string) *http.Request {
	return r.WithContext(middleware.SetUserID(r.Context(), userID))
}

// decodeError unpacks the standard error envelope.
func decodeError(t *testing.T, body io.Reader) ErrorDetail {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp.Error
}

func decodeJSON(t *testing.T, body io.Reader, into any) {
	t.Helper()
	if err := json.NewDecoder(body).Decode(into); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func (e *testEnv) feedService() *feed.Service {
	return feed.NewService(feed.ServiceConfig{Users: e.users, Posts: e.posts})
}
