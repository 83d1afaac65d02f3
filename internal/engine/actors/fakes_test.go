package actors

import (
	"context"
	"sync"

	"github.com/WiggoHelgesson/stridefeed/internal/models"
)

// fakeAPI implements backend.API with overridable behavior per method.
// Unset methods succeed with zero values.
type fakeAPI struct {
	mu sync.Mutex

	feedFn          func(viewerID string) ([]*models.Post, error)
	commentsFn      func(postID string) ([]*models.Comment, error)
	profileFn       func(userID string) (*models.Profile, error)
	likePostFn      func(postID, userID string) (int, error)
	unlikePostFn    func(postID, userID string) (int, error)
	likeCommentFn   func(commentID string) error
	unlikeCommentFn func(commentID string) error
	addCommentFn    func(c *models.Comment) (*models.Comment, error)
	deleteCommentFn func(commentID string) error
	deletePostFn    func(postID string) error

	feedCalls int
}

func (f *fakeAPI) Feed(_ context.Context, viewerID string) ([]*models.Post, error) {
	f.mu.Lock()
	f.feedCalls++
	fn := f.feedFn
	f.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(viewerID)
}

func (f *fakeAPI) Comments(_ context.Context, postID, _ string) ([]*models.Comment, error) {
	f.mu.Lock()
	fn := f.commentsFn
	f.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(postID)
}

func (f *fakeAPI) Profile(_ context.Context, userID string) (*models.Profile, error) {
	f.mu.Lock()
	fn := f.profileFn
	f.mu.Unlock()
	if fn == nil {
		return &models.Profile{UserID: userID, Name: "someone"}, nil
	}
	return fn(userID)
}

func (f *fakeAPI) ActiveFriends(_ context.Context, _ string) ([]*models.ActiveFriend, error) {
	return nil, nil
}

func (f *fakeAPI) LikePost(_ context.Context, postID, userID string) (int, error) {
	f.mu.Lock()
	fn := f.likePostFn
	f.mu.Unlock()
	if fn == nil {
		return 1, nil
	}
	return fn(postID, userID)
}

func (f *fakeAPI) UnlikePost(_ context.Context, postID, userID string) (int, error) {
	f.mu.Lock()
	fn := f.unlikePostFn
	f.mu.Unlock()
	if fn == nil {
		return 0, nil
	}
	return fn(postID, userID)
}

func (f *fakeAPI) LikeComment(_ context.Context, commentID, _ string) error {
	f.mu.Lock()
	fn := f.likeCommentFn
	f.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(commentID)
}

func (f *fakeAPI) UnlikeComment(_ context.Context, commentID, _ string) error {
	f.mu.Lock()
	fn := f.unlikeCommentFn
	f.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(commentID)
}

func (f *fakeAPI) AddComment(_ context.Context, c *models.Comment) (*models.Comment, error) {
	f.mu.Lock()
	fn := f.addCommentFn
	f.mu.Unlock()
	if fn == nil {
		return c.Clone(), nil
	}
	return fn(c)
}

func (f *fakeAPI) DeleteComment(_ context.Context, commentID, _ string) error {
	f.mu.Lock()
	fn := f.deleteCommentFn
	f.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(commentID)
}

func (f *fakeAPI) DeletePost(_ context.Context, postID, _ string) error {
	f.mu.Lock()
	fn := f.deletePostFn
	f.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(postID)
}

func (f *fakeAPI) FeedCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.feedCalls
}

// memStore is an in-memory cache.Store.
type memStore struct {
	mu    sync.Mutex
	feeds map[string][]*models.Post
}

func newMemStore() *memStore {
	return &memStore{feeds: make(map[string][]*models.Post)}
}

func (m *memStore) Feed(viewerID string) ([]*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	posts, ok := m.feeds[viewerID]
	if !ok {
		return nil, nil
	}
	return models.ClonePosts(posts), nil
}

func (m *memStore) SaveFeed(viewerID string, posts []*models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feeds[viewerID] = models.ClonePosts(posts)
	return nil
}
