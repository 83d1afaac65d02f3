package actors

import (
	stdctx "context"
	"fmt"
	"log/slog"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"

	"github.com/WiggoHelgesson/stridefeed/internal/backend"
	"github.com/WiggoHelgesson/stridefeed/internal/feed"
	"github.com/WiggoHelgesson/stridefeed/internal/models"
	"github.com/WiggoHelgesson/stridefeed/internal/utils"
)

// Message types for ThreadActor
type (
	// LoadThreadsMsg points the actor at a post and loads its comments.
	// The response (a *ThreadSnapshot) is sent once the fetch resolves;
	// on fetch failure the current (possibly empty) structure is
	// returned rather than an error.
	LoadThreadsMsg struct {
		PostID   string
		ViewerID string
	}

	// GetThreadsMsg responds with the current *ThreadSnapshot.
	GetThreadsMsg struct{}

	// CloseThreadsMsg cancels any in-flight load (screen dismissed).
	CloseThreadsMsg struct{}

	// AddCommentMsg inserts a comment optimistically and confirms it in
	// the background. Responds with the optimistic *models.Comment.
	AddCommentMsg struct {
		PostID   string
		AuthorID string
		Content  string
		ParentID *string
	}

	// DeleteCommentMsg removes a comment after backend confirmation.
	// Responds with *models.StatusResponse or *utils.AppError.
	DeleteCommentMsg struct {
		CommentID string
		AuthorID  string
	}

	// ToggleCommentLikeMsg flips the viewer's like on a comment
	// optimistically. Responds with the updated *models.Comment.
	ToggleCommentLikeMsg struct {
		CommentID string
		ViewerID  string
	}

	// Realtime-sourced events. Deliveries may be duplicated; insertion is
	// idempotent on comment id, and like deltas from the viewer's own
	// actions are skipped because the optimistic path already applied them.
	RemoteCommentAddedMsg struct {
		Comment *models.Comment
	}

	RemoteCommentDeletedMsg struct {
		CommentID string
		PostID    string
	}

	RemoteCommentLikeMsg struct {
		CommentID string
		PostID    string
		ActorID   string
		Delta     int
	}

	// Internal messages
	threadsFetchedMsg struct {
		seq      uint64
		postID   string
		comments []*models.Comment
		err      error
		replyTo  *actor.PID
	}

	commentSaveResolvedMsg struct {
		commentID string
		postID    string
		err       error
	}

	commentDeleteResolvedMsg struct {
		commentID string
		err       error
		replyTo   *actor.PID
	}

	commentLikeResolvedMsg struct {
		commentID string
		err       error
	}
)

// ThreadSnapshot is the immutable thread view handed to readers.
type ThreadSnapshot struct {
	PostID  string                  `json:"postId"`
	Threads []*models.CommentThread `json:"threads"`
}

// ThreadActor maintains the two-level comment thread view for one post at a
// time, the post whose detail screen is open. Optimistic edits and realtime
// events funnel through here so nothing is duplicated or lost; comment count
// changes are forwarded to the FeedActor so feed rows stay in step.
type ThreadActor struct {
	api     backend.API
	feedPID *actor.PID
	metrics *utils.MetricsCollector

	postID   string
	viewerID string
	builder  *feed.ThreadBuilder

	loadSeq    uint64
	appliedSeq uint64
	cancelLoad stdctx.CancelFunc

	// Realtime delivery is at-least-once. The builder catches duplicates
	// for the open post, but count deltas for other posts need their own
	// guard, so recently handled event ids are remembered here.
	seenEvents map[string]bool
	seenOrder  []string

	selfPID *actor.PID
	rootCtx *actor.RootContext
}

// seenEventLimit bounds the duplicate-delivery window. Realtime redelivery
// happens within seconds, so a few hundred ids is plenty.
const seenEventLimit = 256

func NewThreadActor(api backend.API, feedPID *actor.PID, metrics *utils.MetricsCollector) actor.Actor {
	return &ThreadActor{
		api:        api,
		feedPID:    feedPID,
		metrics:    metrics,
		builder:    feed.NewThreadBuilder(),
		seenEvents: make(map[string]bool),
	}
}

func (a *ThreadActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *actor.Started:
		a.selfPID = context.Self()
		a.rootCtx = context.ActorSystem().Root
		slog.Info("ThreadActor started", "pid", context.Self().String())

	case *LoadThreadsMsg:
		a.handleLoad(context, msg)

	case *GetThreadsMsg:
		context.Respond(a.snapshot())

	case *CloseThreadsMsg:
		if a.cancelLoad != nil {
			a.cancelLoad()
			a.cancelLoad = nil
		}

	case *AddCommentMsg:
		a.handleAddComment(context, msg)

	case *DeleteCommentMsg:
		a.handleDeleteComment(context, msg)

	case *ToggleCommentLikeMsg:
		a.handleToggleLike(context, msg)

	case *RemoteCommentAddedMsg:
		a.handleRemoteAdded(msg)

	case *RemoteCommentDeletedMsg:
		a.handleRemoteDeleted(msg)

	case *RemoteCommentLikeMsg:
		a.handleRemoteLike(msg)

	case *threadsFetchedMsg:
		a.handleFetched(context, msg)

	case *commentSaveResolvedMsg:
		a.handleSaveResolved(msg)

	case *commentDeleteResolvedMsg:
		a.handleDeleteResolved(context, msg)

	case *commentLikeResolvedMsg:
		a.handleLikeResolved(msg)

	default:
		slog.Debug("ThreadActor: unhandled message", "type", fmt.Sprintf("%T", msg))
	}
}

func (a *ThreadActor) handleLoad(context actor.Context, msg *LoadThreadsMsg) {
	start := time.Now()
	defer a.metrics.AddOperationLatency("threads_load", time.Since(start))

	if msg.PostID != a.postID {
		a.postID = msg.PostID
		a.builder.Reset()
	}
	a.viewerID = msg.ViewerID

	if a.cancelLoad != nil {
		a.cancelLoad()
	}
	ctx, cancel := stdctx.WithCancel(stdctx.Background())
	a.cancelLoad = cancel

	a.loadSeq++
	seq := a.loadSeq

	self := context.Self()
	root := context.ActorSystem().Root
	replyTo := context.Sender()
	api := a.api
	go func() {
		comments, err := api.Comments(ctx, msg.PostID, msg.ViewerID)
		root.Send(self, &threadsFetchedMsg{seq: seq, postID: msg.PostID, comments: comments, err: err, replyTo: replyTo})
	}()
}

func (a *ThreadActor) handleFetched(context actor.Context, msg *threadsFetchedMsg) {
	defer func() {
		if msg.replyTo != nil {
			context.Send(msg.replyTo, a.snapshot())
		}
	}()

	if msg.seq <= a.appliedSeq {
		slog.Info("discarding stale comments response", "post", msg.postID, "seq", msg.seq)
		a.metrics.IncrementStaleFetches()
		return
	}
	if msg.postID != a.postID {
		return
	}
	if msg.err != nil {
		if utils.IsErrorCode(msg.err, utils.ErrCancelled) {
			slog.Debug("comments fetch cancelled", "post", msg.postID)
		} else {
			slog.Warn("comments fetch failed, keeping current threads", "post", msg.postID, "error", msg.err)
			a.metrics.IncrementErrors()
		}
		return
	}

	a.builder.Rebuild(msg.comments)
	a.appliedSeq = msg.seq
	slog.Info("comment threads rebuilt", "post", msg.postID, "comments", len(msg.comments))
}

func (a *ThreadActor) handleAddComment(context actor.Context, msg *AddCommentMsg) {
	// The id is generated locally and sent with the save, so the
	// realtime echo of this comment arrives under the same id and is
	// dropped by the idempotence check.
	comment := &models.Comment{
		ID:            uuid.NewString(),
		PostID:        msg.PostID,
		AuthorID:      msg.AuthorID,
		Content:       msg.Content,
		ParentID:      msg.ParentID,
		LikeCount:     0,
		LikedByViewer: false,
		CreatedAt:     time.Now().UTC().Format(time.RFC3339),
	}

	a.builder.Append(comment)
	context.Send(a.feedPID, &ApplyCommentDeltaMsg{PostID: msg.PostID, Delta: 1})
	context.Respond(comment.Clone())

	self := context.Self()
	root := context.ActorSystem().Root
	api := a.api
	go func() {
		_, err := api.AddComment(stdctx.Background(), comment)
		root.Send(self, &commentSaveResolvedMsg{commentID: comment.ID, postID: comment.PostID, err: err})
	}()
}

func (a *ThreadActor) handleSaveResolved(msg *commentSaveResolvedMsg) {
	if msg.err == nil {
		slog.Debug("comment confirmed", "comment", msg.commentID)
		return
	}
	// The failed comment simply disappears; no error banner.
	slog.Warn("comment save failed, removing optimistic copy", "comment", msg.commentID, "error", msg.err)
	if a.builder.Remove(msg.commentID) {
		a.rootCtx.Send(a.feedPID, &ApplyCommentDeltaMsg{PostID: msg.postID, Delta: -1})
	}
	a.metrics.IncrementRollbacks()
}

func (a *ThreadActor) handleDeleteComment(context actor.Context, msg *DeleteCommentMsg) {
	if !a.builder.Contains(msg.CommentID) {
		context.Respond(utils.NewCommentNotFoundError(msg.CommentID))
		return
	}

	self := context.Self()
	root := context.ActorSystem().Root
	replyTo := context.Sender()
	api := a.api
	go func() {
		err := api.DeleteComment(stdctx.Background(), msg.CommentID, msg.AuthorID)
		root.Send(self, &commentDeleteResolvedMsg{commentID: msg.CommentID, err: err, replyTo: replyTo})
	}()
}

func (a *ThreadActor) handleDeleteResolved(context actor.Context, msg *commentDeleteResolvedMsg) {
	if msg.err != nil {
		slog.Warn("comment delete failed", "comment", msg.commentID, "error", msg.err)
		a.metrics.IncrementErrors()
		if msg.replyTo != nil {
			context.Send(msg.replyTo, utils.NewAppError(utils.ErrBackend, "Failed to delete comment", msg.err))
		}
		return
	}

	if a.builder.Remove(msg.commentID) {
		context.Send(a.feedPID, &ApplyCommentDeltaMsg{PostID: a.postID, Delta: -1})
	}
	slog.Info("comment removed", "comment", msg.commentID)
	if msg.replyTo != nil {
		context.Send(msg.replyTo, &models.StatusResponse{Success: true, Message: "Comment deleted"})
	}
}

func (a *ThreadActor) handleToggleLike(context actor.Context, msg *ToggleCommentLikeMsg) {
	nowLiked, ok := a.builder.ToggleLike(msg.CommentID)
	if !ok {
		context.Respond(utils.NewCommentNotFoundError(msg.CommentID))
		return
	}
	context.Respond(a.builder.Get(msg.CommentID).Clone())

	self := context.Self()
	root := context.ActorSystem().Root
	api := a.api
	go func() {
		var err error
		if nowLiked {
			err = api.LikeComment(stdctx.Background(), msg.CommentID, msg.ViewerID)
		} else {
			err = api.UnlikeComment(stdctx.Background(), msg.CommentID, msg.ViewerID)
		}
		root.Send(self, &commentLikeResolvedMsg{commentID: msg.CommentID, err: err})
	}()
}

func (a *ThreadActor) handleLikeResolved(msg *commentLikeResolvedMsg) {
	if msg.err == nil {
		return
	}
	// Rollback is the same toggle applied again.
	slog.Warn("comment like failed, rolling back", "comment", msg.commentID, "error", msg.err)
	a.builder.ToggleLike(msg.commentID)
	a.metrics.IncrementRollbacks()
}

// markSeen records a realtime event id, reporting false when the event
// was already handled and must be dropped.
func (a *ThreadActor) markSeen(key string) bool {
	if a.seenEvents[key] {
		return false
	}
	a.seenEvents[key] = true
	a.seenOrder = append(a.seenOrder, key)
	if len(a.seenOrder) > seenEventLimit {
		delete(a.seenEvents, a.seenOrder[0])
		a.seenOrder = a.seenOrder[1:]
	}
	return true
}

func (a *ThreadActor) handleRemoteAdded(msg *RemoteCommentAddedMsg) {
	comment := msg.Comment
	if !a.markSeen("comment-added:" + comment.ID) {
		slog.Debug("duplicate realtime delivery discarded", "comment", comment.ID)
		return
	}
	if comment.PostID == a.postID {
		if !a.builder.Append(comment.Clone()) {
			// Echo of the viewer's own optimistic insert.
			slog.Debug("duplicate realtime comment discarded", "comment", comment.ID)
			return
		}
	} else if comment.AuthorID == a.viewerID {
		// Own comments already bumped the count optimistically.
		return
	}
	a.rootCtx.Send(a.feedPID, &ApplyCommentDeltaMsg{PostID: comment.PostID, Delta: 1})
}

func (a *ThreadActor) handleRemoteDeleted(msg *RemoteCommentDeletedMsg) {
	if !a.markSeen("comment-deleted:" + msg.CommentID) {
		slog.Debug("duplicate realtime delivery discarded", "comment", msg.CommentID)
		return
	}
	if msg.PostID == a.postID {
		if !a.builder.Remove(msg.CommentID) {
			// Already gone locally (own delete); count was adjusted then.
			return
		}
	}
	a.rootCtx.Send(a.feedPID, &ApplyCommentDeltaMsg{PostID: msg.PostID, Delta: -1})
}

func (a *ThreadActor) handleRemoteLike(msg *RemoteCommentLikeMsg) {
	if msg.PostID != a.postID {
		return
	}
	if msg.ActorID == a.viewerID {
		// The viewer's own like was applied optimistically; applying the
		// echo would double-count it.
		slog.Debug("own comment like echo skipped", "comment", msg.CommentID)
		return
	}
	a.builder.ApplyLikeDelta(msg.CommentID, msg.Delta)
}

func (a *ThreadActor) snapshot() *ThreadSnapshot {
	return &ThreadSnapshot{
		PostID:  a.postID,
		Threads: a.builder.Threads(),
	}
}
