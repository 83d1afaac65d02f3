package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WiggoHelgesson/stridefeed/internal/engine"
	"github.com/WiggoHelgesson/stridefeed/internal/engine/actors"
	"github.com/WiggoHelgesson/stridefeed/internal/models"
	"github.com/WiggoHelgesson/stridefeed/internal/presence"
	"github.com/WiggoHelgesson/stridefeed/internal/utils"
)

// stubAPI serves a fixed small dataset.
type stubAPI struct{}

func (stubAPI) Feed(_ context.Context, _ string) ([]*models.Post, error) {
	p1 := &models.Post{ID: "p1", AuthorID: "u1", Activity: "run", Title: "Tempo intervals", CreatedAt: "2024-01-02T10:00:00Z", Author: models.KnownAuthor("Runner One", "", false)}
	p1.SetLikes(3)
	p2 := &models.Post{ID: "p2", AuthorID: "u2", Activity: "ride", Title: "Coastal loop", CreatedAt: "2024-01-01T10:00:00Z", Author: models.KnownAuthor("Rider Two", "", true)}
	p2.SetLikes(1)
	return []*models.Post{p1, p2}, nil
}

func (stubAPI) Comments(_ context.Context, postID, _ string) ([]*models.Comment, error) {
	return []*models.Comment{
		{ID: "c1", PostID: postID, AuthorID: "u2", Content: "strong pace", CreatedAt: "2024-01-02T11:00:00Z"},
	}, nil
}

func (stubAPI) Profile(_ context.Context, userID string) (*models.Profile, error) {
	return &models.Profile{UserID: userID, Name: "someone"}, nil
}

func (stubAPI) ActiveFriends(_ context.Context, _ string) ([]*models.ActiveFriend, error) {
	return []*models.ActiveFriend{{UserID: "u2", Name: "Rider Two"}}, nil
}

func (stubAPI) LikePost(_ context.Context, _, _ string) (int, error)   { return 4, nil }
func (stubAPI) UnlikePost(_ context.Context, _, _ string) (int, error) { return 3, nil }
func (stubAPI) LikeComment(_ context.Context, _, _ string) error       { return nil }
func (stubAPI) UnlikeComment(_ context.Context, _, _ string) error     { return nil }
func (stubAPI) AddComment(_ context.Context, c *models.Comment) (*models.Comment, error) {
	return c.Clone(), nil
}
func (stubAPI) DeleteComment(_ context.Context, _, _ string) error { return nil }
func (stubAPI) DeletePost(_ context.Context, _, _ string) error    { return nil }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	api := stubAPI{}
	system := actor.NewActorSystem()
	metrics := utils.NewMetricsCollector()
	eng := engine.NewEngine(system, api, nil, nil, metrics)
	poller := presence.NewPoller(api, time.Hour)
	t.Cleanup(poller.Stop)
	return NewServer(system, eng, metrics, poller, nil)
}

func getFeed(t *testing.T, server *Server, viewerID string) actors.FeedSnapshot {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/feed?viewerId="+viewerID, nil)
	w := httptest.NewRecorder()
	server.HandleFeed().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var snapshot actors.FeedSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snapshot))
	return snapshot
}

func TestFeedEndpointFlow(t *testing.T) {
	server := newTestServer(t)

	// The first response may be empty while the background fetch runs;
	// poll until the feed lands.
	require.Eventually(t, func() bool {
		return len(getFeed(t, server, "viewer-1").Posts) == 2
	}, 2*time.Second, 20*time.Millisecond)

	snapshot := getFeed(t, server, "viewer-1")
	assert.Equal(t, "p1", snapshot.Posts[0].ID, "newest first")
	assert.Equal(t, "p2", snapshot.Posts[1].ID)
}

func TestFeedEndpointRequiresViewer(t *testing.T) {
	server := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/feed", nil)
	w := httptest.NewRecorder()
	server.HandleFeed().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLikeEndpointTogglesOptimistically(t *testing.T) {
	server := newTestServer(t)
	require.Eventually(t, func() bool {
		return len(getFeed(t, server, "viewer-1").Posts) == 2
	}, 2*time.Second, 20*time.Millisecond)

	body, _ := json.Marshal(LikePostRequest{PostID: "p1", ViewerID: "viewer-1"})
	req := httptest.NewRequest(http.MethodPost, "/post/like", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.HandlePostLike().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var post models.Post
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &post))
	assert.True(t, post.Liked())
	assert.Equal(t, 4, post.Likes())
}

func TestLikeEndpointUnknownPost(t *testing.T) {
	server := newTestServer(t)

	body, _ := json.Marshal(LikePostRequest{PostID: "missing", ViewerID: "viewer-1"})
	req := httptest.NewRequest(http.MethodPost, "/post/like", bytes.NewReader(body))
	w := httptest.NewRecorder()
	server.HandlePostLike().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCommentEndpointsFlow(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/comments?postId=p1&viewerId=viewer-1", nil)
	w := httptest.NewRecorder()
	server.HandleComments().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var snapshot actors.ThreadSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snapshot))
	require.Len(t, snapshot.Threads, 1)
	assert.Equal(t, "c1", snapshot.Threads[0].Root.ID)

	body, _ := json.Marshal(AddCommentRequest{PostID: "p1", AuthorID: "viewer-1", Content: "thanks!"})
	req = httptest.NewRequest(http.MethodPost, "/comment", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	server.HandleComment().ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var comment models.Comment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &comment))
	assert.NotEmpty(t, comment.ID)
	assert.Equal(t, "thanks!", comment.Content)
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	server.HandleHealth().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, "healthy", payload["status"])
}

func TestPresenceEndpoint(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/presence?viewerId=viewer-1", nil)
	w := httptest.NewRecorder()
	server.HandlePresence().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}
