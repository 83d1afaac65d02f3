package models

import "encoding/json"

// Realtime event kinds delivered over the subscription channel. Delivery is
// at-least-once with no ordering guarantee, so consumers must be idempotent
// where feasible.
const (
	EventPostLikeDelta    = "post_like_delta"
	EventCommentAdded     = "comment_added"
	EventCommentDeleted   = "comment_deleted"
	EventCommentLikeDelta = "comment_like_delta"
)

// Event is the wire envelope for realtime deltas.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type PostLikeDeltaEvent struct {
	PostID  string `json:"postId"`
	ActorID string `json:"actorId"`
	Delta   int    `json:"delta"`
}

type CommentAddedEvent struct {
	Comment Comment `json:"comment"`
}

type CommentDeletedEvent struct {
	CommentID string `json:"commentId"`
	PostID    string `json:"postId"`
}

type CommentLikeDeltaEvent struct {
	CommentID string `json:"commentId"`
	PostID    string `json:"postId"`
	ActorID   string `json:"actorId"`
	Delta     int    `json:"delta"`
}

// ActiveFriend is one entry in the short-lived "friends currently active"
// state polled alongside the feed.
type ActiveFriend struct {
	UserID    string `json:"userId"`
	Name      string `json:"name,omitempty"`
	Activity  string `json:"activity"`
	StartedAt string `json:"startedAt"`
}

// StatusResponse is the generic acknowledgement shape for mutations.
type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
