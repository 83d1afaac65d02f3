// Package backend is the REST client for the hosted data API. The backend's
// internals are out of scope here; this package only speaks the narrow
// contract the reconciliation core depends on.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/WiggoHelgesson/stridefeed/internal/auth"
	"github.com/WiggoHelgesson/stridefeed/internal/models"
	"github.com/WiggoHelgesson/stridefeed/internal/utils"
)

// API is the contract the engine actors depend on. The concrete client talks
// HTTP; tests substitute an in-memory implementation.
type API interface {
	// Reads (bounded retry applies)
	Feed(ctx context.Context, viewerID string) ([]*models.Post, error)
	Comments(ctx context.Context, postID, viewerID string) ([]*models.Comment, error)
	Profile(ctx context.Context, userID string) (*models.Profile, error)
	ActiveFriends(ctx context.Context, viewerID string) ([]*models.ActiveFriend, error)

	// Writes (never retried; the caller rolls optimistic state back instead)
	LikePost(ctx context.Context, postID, userID string) (int, error)
	UnlikePost(ctx context.Context, postID, userID string) (int, error)
	LikeComment(ctx context.Context, commentID, userID string) error
	UnlikeComment(ctx context.Context, commentID, userID string) error
	AddComment(ctx context.Context, comment *models.Comment) (*models.Comment, error)
	DeleteComment(ctx context.Context, commentID, authorID string) error
	DeletePost(ctx context.Context, postID, userID string) error
}

const (
	readRetryAttempts = 3
	readRetryBackoff  = 500 * time.Millisecond
)

// Client is the HTTP implementation of API.
type Client struct {
	baseURL string
	apiKey  string
	session *auth.Session
	http    *http.Client
}

func NewClient(baseURL, apiKey string, session *auth.Session, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		session: session,
		http:    &http.Client{Timeout: timeout},
	}
}

// likeResponse is the confirmed server truth after a like/unlike write.
type likeResponse struct {
	LikeCount int `json:"likeCount"`
}

func (c *Client) Feed(ctx context.Context, viewerID string) ([]*models.Post, error) {
	var posts []*models.Post
	q := url.Values{"viewerId": {viewerID}}
	if err := c.getWithRetry(ctx, "/feed", q, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (c *Client) Comments(ctx context.Context, postID, viewerID string) ([]*models.Comment, error) {
	var comments []*models.Comment
	q := url.Values{"postId": {postID}, "viewerId": {viewerID}}
	if err := c.getWithRetry(ctx, "/comments", q, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

func (c *Client) Profile(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	q := url.Values{"userId": {userID}}
	if err := c.getWithRetry(ctx, "/profile", q, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (c *Client) ActiveFriends(ctx context.Context, viewerID string) ([]*models.ActiveFriend, error) {
	var friends []*models.ActiveFriend
	q := url.Values{"viewerId": {viewerID}}
	if err := c.getWithRetry(ctx, "/friends/active", q, &friends); err != nil {
		return nil, err
	}
	return friends, nil
}

func (c *Client) LikePost(ctx context.Context, postID, userID string) (int, error) {
	var resp likeResponse
	body := map[string]string{"postId": postID, "userId": userID}
	if err := c.do(ctx, http.MethodPost, "/post/like", nil, body, &resp); err != nil {
		return 0, err
	}
	return resp.LikeCount, nil
}

func (c *Client) UnlikePost(ctx context.Context, postID, userID string) (int, error) {
	var resp likeResponse
	body := map[string]string{"postId": postID, "userId": userID}
	if err := c.do(ctx, http.MethodPost, "/post/unlike", nil, body, &resp); err != nil {
		return 0, err
	}
	return resp.LikeCount, nil
}

func (c *Client) LikeComment(ctx context.Context, commentID, userID string) error {
	body := map[string]string{"commentId": commentID, "userId": userID}
	return c.do(ctx, http.MethodPost, "/comment/like", nil, body, nil)
}

func (c *Client) UnlikeComment(ctx context.Context, commentID, userID string) error {
	body := map[string]string{"commentId": commentID, "userId": userID}
	return c.do(ctx, http.MethodPost, "/comment/unlike", nil, body, nil)
}

func (c *Client) AddComment(ctx context.Context, comment *models.Comment) (*models.Comment, error) {
	var saved models.Comment
	if err := c.do(ctx, http.MethodPost, "/comment", nil, comment, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

func (c *Client) DeleteComment(ctx context.Context, commentID, authorID string) error {
	q := url.Values{"commentId": {commentID}, "authorId": {authorID}}
	return c.do(ctx, http.MethodDelete, "/comment", q, nil, nil)
}

func (c *Client) DeletePost(ctx context.Context, postID, userID string) error {
	q := url.Values{"postId": {postID}, "userId": {userID}}
	return c.do(ctx, http.MethodDelete, "/post", q, nil, nil)
}

// getWithRetry wraps a read with the bounded retry policy: up to three
// attempts with a fixed backoff. Cancellation and backend rejections are
// final immediately.
func (c *Client) getWithRetry(ctx context.Context, path string, query url.Values, out interface{}) error {
	var lastErr error
	for attempt := 1; attempt <= readRetryAttempts; attempt++ {
		lastErr = c.do(ctx, http.MethodGet, path, query, nil, out)
		if lastErr == nil {
			return nil
		}
		if !utils.IsRetryable(lastErr) {
			return lastErr
		}
		if attempt < readRetryAttempts {
			slog.Warn("read failed, retrying", "path", path, "attempt", attempt, "error", lastErr)
			select {
			case <-time.After(readRetryBackoff):
			case <-ctx.Done():
				return utils.NewCancelledError(path)
			}
		}
	}
	return lastErr
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return utils.NewAppError(utils.ErrInvalidInput, "Failed to encode request body", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return utils.NewAppError(utils.ErrInvalidInput, "Failed to build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	if c.session != nil {
		if c.session.Expired() {
			slog.Warn("access token expired, request will likely be rejected", "path", path)
		}
		req.Header.Set("Authorization", "Bearer "+c.session.Token())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
			return utils.NewCancelledError(fmt.Sprintf("%s %s", method, path))
		}
		return utils.NewAppError(utils.ErrNetwork, fmt.Sprintf("Request failed: %s %s", method, path), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return utils.NewAppError(utils.ErrUnauthorized, "Backend rejected credentials", nil)
	}
	if resp.StatusCode == http.StatusNotFound {
		return utils.NewAppError(utils.ErrNotFound, fmt.Sprintf("Not found: %s %s", method, path), nil)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return utils.NewBackendStatusError(fmt.Sprintf("%s %s", method, path), resp.StatusCode)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return utils.NewAppError(utils.ErrDecode, fmt.Sprintf("Failed to decode response: %s %s", method, path), err)
	}
	return nil
}
